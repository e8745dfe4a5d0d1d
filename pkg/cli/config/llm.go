package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/service/llm"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// LLM holds configuration for the completion provider
type LLM struct {
	provider string
	timeout  time.Duration

	geminiProject  string
	geminiLocation string
	geminiModel    string

	openaiBaseURL string
	openaiToken   string `masq:"secret"`
	openaiModel   string

	ollamaURL   string
	ollamaModel string
}

// Flags returns CLI flags for LLM configuration
func (l *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "Completion provider [gemini|openai|ollama]",
			Value:       "gemini",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_LLM_PROVIDER"),
			Destination: &l.provider,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Maximum duration of one reply",
			Value:       usecase.DefaultStreamTimeout,
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_LLM_TIMEOUT"),
			Destination: &l.timeout,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_GEMINI_PROJECT"),
			Destination: &l.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Value:       "us-central1",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_GEMINI_LOCATION"),
			Destination: &l.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name (provider default when empty)",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_GEMINI_MODEL"),
			Destination: &l.geminiModel,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI-compatible endpoint (api.openai.com when empty)",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_OPENAI_BASE_URL"),
			Destination: &l.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-token",
			Usage:       "API token of the OpenAI-compatible endpoint",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_OPENAI_TOKEN", "OPENAI_API_KEY"),
			Destination: &l.openaiToken,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "Model name of the OpenAI-compatible endpoint",
			Value:       "gpt-4o-mini",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_OPENAI_MODEL"),
			Destination: &l.openaiModel,
		},
		&cli.StringFlag{
			Name:        "ollama-url",
			Usage:       "Ollama server URL",
			Value:       "http://localhost:11434",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_OLLAMA_URL"),
			Destination: &l.ollamaURL,
		},
		&cli.StringFlag{
			Name:        "ollama-model",
			Usage:       "Ollama model name",
			Value:       "llama3.2",
			Category:    "LLM",
			Sources:     cli.EnvVars("COMPANION_OLLAMA_MODEL"),
			Destination: &l.ollamaModel,
		},
	}
}

// Timeout returns the reply timeout
func (l *LLM) Timeout() time.Duration {
	return l.timeout
}

// LogAttrs returns log attributes for the LLM configuration. The token is never logged.
func (l *LLM) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("provider", l.provider),
		slog.Duration("timeout", l.timeout),
	}
	switch l.provider {
	case "gemini":
		attrs = append(attrs,
			slog.String("project_id", l.geminiProject),
			slog.String("location", l.geminiLocation),
			slog.String("model", l.geminiModel))
	case "openai":
		attrs = append(attrs,
			slog.String("base_url", l.openaiBaseURL),
			slog.String("model", l.openaiModel),
			slog.Bool("token_set", l.openaiToken != ""))
	case "ollama":
		attrs = append(attrs,
			slog.String("url", l.ollamaURL),
			slog.String("model", l.ollamaModel))
	}
	return attrs
}

// Configure creates the completion client of the selected provider
func (l *LLM) Configure(ctx context.Context) (interfaces.CompletionClient, error) {
	switch l.provider {
	case "gemini":
		if l.geminiProject == "" {
			return nil, goerr.Wrap(ErrMissingParameter, "gemini-project is required when using gemini provider")
		}
		var opts []gemini.Option
		if l.geminiModel != "" {
			opts = append(opts, gemini.WithModel(l.geminiModel))
		}
		client, err := gemini.New(ctx, l.geminiProject, l.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return llm.NewGollem(client), nil

	case "openai":
		if l.openaiToken == "" {
			return nil, goerr.Wrap(ErrMissingParameter, "openai-token is required when using openai provider")
		}
		client, err := llm.NewOpenAI(l.openaiBaseURL, l.openaiToken, l.openaiModel)
		if err != nil {
			return nil, err
		}
		return client, nil

	case "ollama":
		if l.ollamaModel == "" {
			return nil, goerr.Wrap(ErrMissingParameter, "ollama-model is required when using ollama provider")
		}
		client, err := llm.NewOllama(l.ollamaURL, l.ollamaModel)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid LLM provider", goerr.V(ProviderKey, l.provider))
	}
}
