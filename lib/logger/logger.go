// Package logger carries a *slog.Logger through a context.Context, the way
// every request-scoped component in this repo expects to find one.
package logger

import (
	"context"
	"log/slog"
	"sync"
)

type ctxKey struct{}

// AddToContext returns a new context carrying l, retrievable via FromContext.
func AddToContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or slog.Default() if none was set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// instance is a cached (scope, area) logger, per §3's LoggerInstance.
type instance struct {
	scope string
	area  string
	log   *slog.Logger
}

// Factory caches LoggerInstance values by (scope, area) so repeated
// Create calls with identical keys return the identical instance
// (testable property #7).
type Factory struct {
	base *slog.Logger

	mu    sync.Mutex
	cache map[key]*instance
}

type key struct{ scope, area string }

// NewFactory creates a Factory whose child loggers derive from base.
func NewFactory(base *slog.Logger) *Factory {
	if base == nil {
		base = slog.Default()
	}
	return &Factory{base: base, cache: make(map[key]*instance)}
}

// Create returns the cached logger for (scope, area), creating it on first use.
func (f *Factory) Create(scope, area string) *slog.Logger {
	k := key{scope, area}

	f.mu.Lock()
	defer f.mu.Unlock()
	if inst, ok := f.cache[k]; ok {
		return inst.log
	}
	l := f.base.With(slog.String("scope", scope), slog.String("area", area))
	f.cache[k] = &instance{scope: scope, area: area, log: l}
	return l
}

// Clear drops all cached instances. Intended for onComplete teardown.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[key]*instance)
}
