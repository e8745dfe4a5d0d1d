package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/cli/config"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/service/gcs"
	"github.com/secmon-lab/companion/pkg/service/worker"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/secmon-lab/companion/pkg/utils/logging"
	"github.com/secmon-lab/companion/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// appConfig is the flag set shared by the serve and chat commands
type appConfig struct {
	repo         config.Repository
	llm          config.LLM
	character    config.Character
	life         config.Life
	proactive    config.Proactive
	conversation config.Conversation
	attachment   config.Attachment
}

func (a *appConfig) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, a.repo.Flags()...)
	flags = append(flags, a.llm.Flags()...)
	flags = append(flags, a.character.Flags()...)
	flags = append(flags, a.life.Flags()...)
	flags = append(flags, a.proactive.Flags()...)
	flags = append(flags, a.conversation.Flags()...)
	flags = append(flags, a.attachment.Flags()...)
	return flags
}

func (a *appConfig) logAttrs(ctx context.Context) {
	logger := logging.Default()
	logger.LogAttrs(ctx, slog.LevelInfo, "Repository configuration", a.repo.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "LLM configuration", a.llm.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "Character configuration", a.character.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "Life configuration", a.life.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "Proactive configuration", a.proactive.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "Conversation configuration", a.conversation.LogAttrs()...)
	logger.LogAttrs(ctx, slog.LevelInfo, "Attachment configuration", a.attachment.LogAttrs()...)
}

// application is the wired conversation core with its resources
type application struct {
	uc      *usecase.UseCases
	repo    interfaces.Repository
	archive *gcs.Archive
	worker  *worker.ProactiveWorker
}

// build loads configuration, restores durable state and wires use cases. The
// proactive worker is created but not started.
func (a *appConfig) build(ctx context.Context) (*application, error) {
	a.logAttrs(ctx)

	registry, err := a.character.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load characters")
	}

	board, err := a.life.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load life board")
	}

	client, err := a.llm.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure LLM")
	}

	storeOpts, err := a.conversation.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "invalid conversation configuration")
	}

	repo, err := a.repo.Configure(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize repository")
	}
	app := &application{repo: repo}

	proactiveOpts, err := a.proactive.Configure(repo, a.llm.Timeout())
	if err != nil {
		app.Close(ctx)
		return nil, goerr.Wrap(err, "invalid proactive configuration")
	}

	convOpts := []usecase.ConversationOption{
		usecase.WithStreamTimeout(a.llm.Timeout()),
	}
	archive, err := a.attachment.Configure(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, goerr.Wrap(err, "failed to configure image archive")
	}
	if archive != nil {
		app.archive = archive
		convOpts = append(convOpts, usecase.WithImageArchive(archive))
	}

	uc, err := usecase.New(repo, registry, client, usecase.Collaborators{
		Tasks:        board,
		Habits:       board,
		Appointments: board,
		XP:           board,
	},
		usecase.WithOwner(a.repo.Owner()),
		usecase.WithStoreOptions(storeOpts...),
		usecase.WithConversationOptions(convOpts...),
		usecase.WithProactiveOptions(proactiveOpts...),
	)
	if err != nil {
		app.Close(ctx)
		return nil, goerr.Wrap(err, "failed to initialize use cases")
	}
	app.uc = uc

	if err := uc.Store.Load(ctx); err != nil {
		app.Close(ctx)
		return nil, goerr.Wrap(err, "failed to load conversations")
	}
	if a.proactive.PersistDedup() {
		if err := uc.Proactive.LoadFired(ctx); err != nil {
			app.Close(ctx)
			return nil, goerr.Wrap(err, "failed to load fired triggers")
		}
	}

	if a.proactive.Enabled() {
		app.worker = worker.NewProactiveWorker(uc.Proactive, a.proactive.Interval())
	}

	logging.Default().Info("Companion is ready",
		"characters", len(registry.List()),
		"active", uc.Presence.Active(),
		"proactive", a.proactive.Enabled())
	return app, nil
}

// start launches the proactive worker when it is enabled
func (app *application) start(ctx context.Context) error {
	if app.worker == nil {
		return nil
	}
	if err := app.worker.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start proactive worker")
	}
	return nil
}

// Close stops the worker and releases resources
func (app *application) Close(ctx context.Context) {
	if app.worker != nil {
		app.worker.Stop()
	}
	if app.archive != nil {
		safe.Close(ctx, app.archive)
	}
	if app.repo != nil {
		safe.Close(ctx, app.repo)
	}
}
