package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

type ctxLoggerKey struct{}

var (
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultMu     sync.RWMutex
)

// Default returns the process-wide logger
func Default() *slog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(logger *slog.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// With embeds logger into ctx
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// From returns the logger embedded in ctx, or Default() when there is none
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}

// ErrAttr builds an "error" attribute. goerr values are expanded into a group.
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}

	var ge *goerr.Error
	if !errors.As(err, &ge) {
		return slog.String("error", err.Error())
	}

	attrs := []any{slog.String("message", err.Error())}
	for k, v := range ge.Values() {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.Group("error", attrs...)
}
