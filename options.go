package charter

import (
	"log/slog"
	"time"

	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCache sets the current-policy cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
		if e.plugins != nil {
			e.plugins = rebuildRegistry(e.plugins, l)
		}
	}
}

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}

func rebuildRegistry(old *plugin.Registry, l *slog.Logger) *plugin.Registry {
	r := plugin.NewRegistry(l)
	for _, p := range old.Plugins() {
		r.Register(p)
	}
	return r
}
