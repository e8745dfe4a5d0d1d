package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

// ErrWorkerAlreadyStarted is returned by a second Start call
var ErrWorkerAlreadyStarted = goerr.New("worker already started")

// DefaultProactiveInterval is the default period between trigger passes
const DefaultProactiveInterval = 30 * time.Minute

// Evaluator runs one proactive trigger pass
type Evaluator interface {
	Evaluate(ctx context.Context) []model.ProactiveTrigger
}

// ProactiveWorker runs trigger passes on a fixed interval
//
// Architecture assumptions:
// - One worker per session; the owner calls Start once and Stop on shutdown
// - Passes never overlap because they run on the worker goroutine
type ProactiveWorker struct {
	evaluator Evaluator
	interval  time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewProactiveWorker creates a worker. A non-positive interval falls back to DefaultProactiveInterval.
func NewProactiveWorker(evaluator Evaluator, interval time.Duration) *ProactiveWorker {
	if interval <= 0 {
		interval = DefaultProactiveInterval
	}
	return &ProactiveWorker{
		evaluator: evaluator,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background loop. The first pass runs after one interval.
func (w *ProactiveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return goerr.Wrap(ErrWorkerAlreadyStarted, "failed to start proactive worker")
	}
	w.started = true

	logging.From(ctx).Info("Proactive worker starting", "interval", w.interval.String())
	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for the running pass to finish.
// It is safe to call more than once and before Start.
func (w *ProactiveWorker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopCh)
	w.mu.Unlock()

	if started {
		<-w.doneCh
	}
	logging.Default().Info("Proactive worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *ProactiveWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.pass(ctx)

		case <-w.stopCh:
			logging.From(ctx).Info("Proactive worker received stop signal")
			return

		case <-ctx.Done():
			logging.From(ctx).Info("Proactive worker context cancelled")
			return
		}
	}
}

func (w *ProactiveWorker) pass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("panic in proactive pass", "panic", r)
		}
	}()

	startTime := time.Now()
	fired := w.evaluator.Evaluate(ctx)
	logging.From(ctx).Debug("Proactive pass completed",
		"fired", len(fired),
		"duration", time.Since(startTime).String())
}
