package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Conversation holds CLI flags for history and memory bounds
type Conversation struct {
	storageCap     int
	contextCap     int
	memoryLimit    int
	persistTimeout time.Duration
}

// Flags returns CLI flags for conversation configuration
func (c *Conversation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "history-storage-cap",
			Usage:       "Maximum number of messages kept per character",
			Value:       usecase.DefaultStorageCap,
			Category:    "Conversation",
			Sources:     cli.EnvVars("COMPANION_HISTORY_STORAGE_CAP"),
			Destination: &c.storageCap,
		},
		&cli.IntFlag{
			Name:        "history-context-cap",
			Usage:       "Maximum number of past messages sent to the model",
			Value:       usecase.DefaultContextCap,
			Category:    "Conversation",
			Sources:     cli.EnvVars("COMPANION_HISTORY_CONTEXT_CAP"),
			Destination: &c.contextCap,
		},
		&cli.IntFlag{
			Name:        "memory-limit",
			Usage:       "Maximum length of a character's memory in characters",
			Value:       usecase.DefaultMemoryLimit,
			Category:    "Conversation",
			Sources:     cli.EnvVars("COMPANION_MEMORY_LIMIT"),
			Destination: &c.memoryLimit,
		},
		&cli.DurationFlag{
			Name:        "persist-timeout",
			Usage:       "Timeout of one durable write",
			Value:       usecase.DefaultPersistTimeout,
			Category:    "Conversation",
			Sources:     cli.EnvVars("COMPANION_PERSIST_TIMEOUT"),
			Destination: &c.persistTimeout,
		},
	}
}

// LogAttrs returns log attributes for the conversation configuration
func (c *Conversation) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("storage_cap", c.storageCap),
		slog.Int("context_cap", c.contextCap),
		slog.Int("memory_limit", c.memoryLimit),
		slog.Duration("persist_timeout", c.persistTimeout),
	}
}

// Configure validates the flags and returns the store options
func (c *Conversation) Configure() ([]usecase.StoreOption, error) {
	if c.storageCap <= 0 || c.contextCap <= 0 || c.memoryLimit <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "history and memory bounds must be positive",
			goerr.V("storage_cap", c.storageCap),
			goerr.V("context_cap", c.contextCap),
			goerr.V("memory_limit", c.memoryLimit))
	}
	if c.contextCap > c.storageCap {
		return nil, goerr.Wrap(ErrInvalidConfig, "context cap cannot exceed storage cap",
			goerr.V("storage_cap", c.storageCap),
			goerr.V("context_cap", c.contextCap))
	}

	return []usecase.StoreOption{
		usecase.WithStorageCap(c.storageCap),
		usecase.WithContextCap(c.contextCap),
		usecase.WithMemoryLimit(c.memoryLimit),
		usecase.WithPersistTimeout(c.persistTimeout),
	}, nil
}
