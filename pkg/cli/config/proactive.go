package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/service/worker"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Proactive holds CLI flags for the proactive reminder worker
type Proactive struct {
	disabled     bool
	interval     time.Duration
	startHour    int
	lookahead    time.Duration
	persistDedup bool
}

// Flags returns CLI flags for proactive configuration
func (p *Proactive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "proactive-disable",
			Usage:       "Disable proactive reminders",
			Category:    "Proactive",
			Sources:     cli.EnvVars("COMPANION_PROACTIVE_DISABLE"),
			Destination: &p.disabled,
		},
		&cli.DurationFlag{
			Name:        "proactive-interval",
			Usage:       "Interval between trigger evaluations",
			Value:       worker.DefaultProactiveInterval,
			Category:    "Proactive",
			Sources:     cli.EnvVars("COMPANION_PROACTIVE_INTERVAL"),
			Destination: &p.interval,
		},
		&cli.IntFlag{
			Name:        "proactive-habit-start-hour",
			Usage:       "Hour of day (0-23) from which unfinished daily habits are reminded",
			Value:       usecase.DefaultHabitStartHour,
			Category:    "Proactive",
			Sources:     cli.EnvVars("COMPANION_PROACTIVE_HABIT_START_HOUR"),
			Destination: &p.startHour,
		},
		&cli.DurationFlag{
			Name:        "proactive-lookahead",
			Usage:       "How far ahead appointments are reminded",
			Value:       usecase.DefaultLookahead,
			Category:    "Proactive",
			Sources:     cli.EnvVars("COMPANION_PROACTIVE_LOOKAHEAD"),
			Destination: &p.lookahead,
		},
		&cli.BoolFlag{
			Name:        "proactive-persist-dedup",
			Usage:       "Store fired trigger keys so reminders are not repeated after a restart",
			Category:    "Proactive",
			Sources:     cli.EnvVars("COMPANION_PROACTIVE_PERSIST_DEDUP"),
			Destination: &p.persistDedup,
		},
	}
}

// Enabled reports whether the worker should run
func (p *Proactive) Enabled() bool {
	return !p.disabled
}

// Interval returns the evaluation interval
func (p *Proactive) Interval() time.Duration {
	return p.interval
}

// PersistDedup reports whether fired triggers are stored
func (p *Proactive) PersistDedup() bool {
	return p.persistDedup
}

// LogAttrs returns log attributes for the proactive configuration
func (p *Proactive) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Bool("enabled", p.Enabled()),
		slog.Duration("interval", p.interval),
		slog.Int("habit_start_hour", p.startHour),
		slog.Duration("lookahead", p.lookahead),
		slog.Bool("persist_dedup", p.persistDedup),
	}
}

// Configure validates the flags and returns the use case options
func (p *Proactive) Configure(repo interfaces.Repository, timeout time.Duration) ([]usecase.ProactiveOption, error) {
	if p.startHour < 0 || p.startHour > 23 {
		return nil, goerr.Wrap(ErrInvalidConfig, "habit start hour must be between 0 and 23", goerr.V("hour", p.startHour))
	}
	if p.Enabled() && p.interval <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "proactive interval must be positive", goerr.V("interval", p.interval))
	}

	opts := []usecase.ProactiveOption{
		usecase.WithHabitStartHour(p.startHour),
		usecase.WithLookahead(p.lookahead),
		usecase.WithProactiveTimeout(timeout),
	}
	if p.persistDedup {
		opts = append(opts, usecase.WithFiredTriggerRepository(repo.FiredTrigger()))
	}
	return opts, nil
}
