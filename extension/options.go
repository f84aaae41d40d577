package extension

import (
	"log/slog"

	"github.com/xraph/charter"
	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/store"
)

// ExtOption configures the Charter Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.store = s
	}
}

// WithCache sets the current-policy cache, e.g. a cache.Redis shared by
// several instances.
func WithCache(c charter.Cache) ExtOption {
	return func(e *Extension) {
		e.cache = c
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...charter.Option) ExtOption {
	return func(e *Extension) {
		e.charterOpts = append(e.charterOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithTokenSecret sets the bearer-token verification key.
func WithTokenSecret(secret string) ExtOption {
	return func(e *Extension) {
		e.config.TokenSecret = secret
	}
}

// WithGroveDriver builds the store from the container's *grove.DB.
func WithGroveDriver(driver string) ExtOption {
	return func(e *Extension) {
		e.config.GroveDriver = driver
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
