package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/companion/pkg/cli/config"
	"github.com/secmon-lab/companion/pkg/repository/memory"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestParseCharacterCatalog(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		wantIDs []string
	}{
		{
			name: "valid catalog",
			content: `
[[character]]
id = "mika"
name = "Mika"
identity = "You are Mika."
accent = { color = "#ff77aa", emoji = "🌸" }

[[character.relationship]]
min_level = 1
label = "new friend"

[[character]]
id = "ren"
name = "Ren"
identity = "You are Ren."
`,
			wantIDs: []string{"mika", "ren"},
		},
		{
			name: "duplicate ID",
			content: `
[[character]]
id = "mika"
name = "Mika"
identity = "You are Mika."

[[character]]
id = "mika"
name = "Mika 2"
identity = "You are another Mika."
`,
			wantErr: usecase.ErrDuplicateCharacter,
		},
		{
			name:    "empty catalog",
			content: ``,
			wantErr: usecase.ErrNoCharacter,
		},
		{
			name:    "broken TOML",
			content: `[[character`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, err := config.ParseCharacterCatalog([]byte(tt.content))
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err).Required()

			characters := registry.List()
			gt.Array(t, characters).Length(len(tt.wantIDs)).Required()
			for i, id := range tt.wantIDs {
				gt.Value(t, characters[i].ID.String()).Equal(id)
			}
		})
	}

	t.Run("invalid ID", func(t *testing.T) {
		_, err := config.ParseCharacterCatalog([]byte(`
[[character]]
id = "Mika!"
name = "Mika"
identity = "You are Mika."
`))
		gt.Value(t, err).NotNil()
	})

	t.Run("relationship labels", func(t *testing.T) {
		registry, err := config.ParseCharacterCatalog([]byte(`
[[character]]
id = "mika"
name = "Mika"
identity = "You are Mika."

[[character.relationship]]
min_level = 1
label = "new friend"

[[character.relationship]]
min_level = 5
label = "close friend"
`))
		gt.NoError(t, err).Required()
		c := registry.Default()
		gt.Value(t, c.LabelFor(1)).Equal("new friend")
		gt.Value(t, c.LabelFor(7)).Equal("close friend")
	})
}

func TestCharacterConfigure(t *testing.T) {
	t.Run("built-in persona", func(t *testing.T) {
		registry, err := config.NewCharacterForTest("").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, registry.Default().ID.String()).Equal(config.DefaultCharacter.ID)
	})

	t.Run("file", func(t *testing.T) {
		path := writeFile(t, "characters.toml", `
[[character]]
id = "ren"
name = "Ren"
identity = "You are Ren."
`)
		registry, err := config.NewCharacterForTest(path).Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, registry.Default().Name).Equal("Ren")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.NewCharacterForTest(filepath.Join(t.TempDir(), "none.toml")).Configure()
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})
}

func TestLifeConfigure(t *testing.T) {
	t.Run("empty board", func(t *testing.T) {
		board, err := config.NewLifeForTest("").Configure()
		gt.NoError(t, err).Required()
		tasks, err := board.ListTasks(t.Context())
		gt.NoError(t, err).Required()
		gt.Array(t, tasks).Length(0)
	})

	t.Run("seeded board", func(t *testing.T) {
		path := writeFile(t, "life.toml", `
[[task]]
id = "t1"
title = "Water plants"
priority = "low"
category = "home"
`)
		board, err := config.NewLifeForTest(path).Configure()
		gt.NoError(t, err).Required()
		tasks, err := board.ListTasks(t.Context())
		gt.NoError(t, err).Required()
		gt.Array(t, tasks).Length(1)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.NewLifeForTest(filepath.Join(t.TempDir(), "none.toml")).Configure()
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})
}

func TestRepositoryConfigure(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "", "alice").Configure(t.Context())
		gt.NoError(t, err).Required()
		defer repo.Close()
		_, ok := repo.(*memory.Memory)
		gt.Bool(t, ok).True()
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "companion.db")
		repo, err := config.NewRepositoryForTest("sqlite", path, "alice").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("firestore without project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "", "alice").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrMissingParameter)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("redis", "", "alice").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("returns flags", func(t *testing.T) {
		cfg := config.NewRepositoryForTest("memory", "", "")
		gt.Number(t, len(cfg.Flags())).Equal(6)
	})
}

func TestLLMConfigure(t *testing.T) {
	t.Run("gemini requires project", func(t *testing.T) {
		_, err := config.NewLLMForTest("gemini", "", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrMissingParameter)
	})

	t.Run("openai requires token", func(t *testing.T) {
		_, err := config.NewLLMForTest("openai", "", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrMissingParameter)
	})

	t.Run("openai", func(t *testing.T) {
		client, err := config.NewLLMForTest("openai", "sk-test", "").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.Value(t, client).NotNil()
	})

	t.Run("ollama", func(t *testing.T) {
		client, err := config.NewLLMForTest("ollama", "", "llama3.2").Configure(t.Context())
		gt.NoError(t, err).Required()
		gt.Value(t, client).NotNil()
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := config.NewLLMForTest("bard", "", "").Configure(t.Context())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("token is not logged", func(t *testing.T) {
		for _, attr := range config.NewLLMForTest("openai", "sk-secret", "").LogAttrs() {
			gt.Bool(t, attr.Value.String() == "sk-secret").False()
		}
	})
}

func TestProactiveConfigure(t *testing.T) {
	repo := memory.New()

	t.Run("valid", func(t *testing.T) {
		opts, err := config.NewProactiveForTest(time.Minute, 9, false).Configure(repo, time.Minute)
		gt.NoError(t, err).Required()
		gt.Array(t, opts).Length(3)
	})

	t.Run("persisted dedup", func(t *testing.T) {
		opts, err := config.NewProactiveForTest(time.Minute, 9, true).Configure(repo, time.Minute)
		gt.NoError(t, err).Required()
		gt.Array(t, opts).Length(4)
	})

	t.Run("invalid hour", func(t *testing.T) {
		_, err := config.NewProactiveForTest(time.Minute, 24, false).Configure(repo, time.Minute)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := config.NewProactiveForTest(0, 9, false).Configure(repo, time.Minute)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestConversationConfigure(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		opts, err := config.NewConversationForTest(100, 40, 4000).Configure()
		gt.NoError(t, err).Required()
		gt.Array(t, opts).Length(4)
	})

	t.Run("context cap larger than storage cap", func(t *testing.T) {
		_, err := config.NewConversationForTest(10, 40, 4000).Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("zero memory limit", func(t *testing.T) {
		_, err := config.NewConversationForTest(100, 40, 0).Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestLoggerConfigure(t *testing.T) {
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	t.Run("json file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "companion.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()
		closer()

		_, err = os.Stat(path)
		gt.NoError(t, err)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "console", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
