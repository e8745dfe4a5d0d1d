package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/service/life"
	"github.com/urfave/cli/v3"
)

// Life holds CLI flags for the built-in life-management board
type Life struct {
	seedPath string
}

// Flags returns CLI flags for life board configuration
func (l *Life) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "life-seed-file",
			Usage:       "Initial tasks, habits, appointments and XP (TOML)",
			Category:    "Life",
			Sources:     cli.EnvVars("COMPANION_LIFE_SEED_FILE"),
			Destination: &l.seedPath,
		},
	}
}

// LogAttrs returns log attributes for the life board configuration
func (l *Life) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("seed_path", l.seedPath)}
}

// Configure creates the board, seeded from the file when one is set
func (l *Life) Configure() (*life.Board, error) {
	if l.seedPath == "" {
		return life.New(), nil
	}

	data, err := os.ReadFile(l.seedPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "life seed not found", goerr.V(ConfigPathKey, l.seedPath))
		}
		return nil, goerr.Wrap(err, "failed to read life seed", goerr.V(ConfigPathKey, l.seedPath))
	}

	seed, err := life.ParseSeed(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load life seed", goerr.V(ConfigPathKey, l.seedPath))
	}
	return life.New(life.WithSeed(seed)), nil
}
