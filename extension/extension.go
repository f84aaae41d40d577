// Package extension provides a Forge extension entry point for Charter.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/charter"
	"github.com/xraph/charter/api"
	"github.com/xraph/charter/auth"
	"github.com/xraph/charter/cache"
	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/mongo"
	"github.com/xraph/charter/store/postgres"
	"github.com/xraph/charter/store/sqlite"
	"github.com/xraph/charter/ui"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "charter"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Versioned store policies with typed configuration and single-active activation"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Charter as a Forge extension.
type Extension struct {
	config      Config
	eng         *charter.Engine
	store       store.Store
	cache       charter.Cache
	apiHandler  *api.API
	pages       *ui.Pages
	logger      *slog.Logger
	charterOpts []charter.Option
	plugins     []plugin.Plugin
}

// New creates a Charter Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Charter engine.
func (e *Extension) Engine() *charter.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*charter.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("charter: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := e.resolveStore(fapp)
	if err != nil {
		return err
	}

	opts := make([]charter.Option, 0, len(e.charterOpts)+len(e.plugins)+3)
	opts = append(opts,
		charter.WithLogger(logger),
		charter.WithStore(s),
		charter.WithCache(e.resolveCache(fapp.Container())),
	)
	opts = append(opts, e.charterOpts...)
	for _, x := range e.plugins {
		opts = append(opts, charter.WithPlugin(x))
	}

	eng, err := charter.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("charter: create engine: %w", err)
	}
	e.eng = eng

	var authn *auth.Authenticator
	if e.config.TokenSecret != "" {
		authn = auth.NewAuthenticator([]byte(e.config.TokenSecret))
	} else {
		logger.Warn("charter: no token secret configured, management routes will reject all requests")
	}
	e.apiHandler = api.New(eng, authn, fapp.Router(),
		api.WithBasePath(e.config.BasePath),
		api.WithLogger(logger),
	)

	if !e.config.DisablePages {
		pages, err := ui.New(eng, ui.WithBasePath(e.config.BasePath), ui.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("charter: build pages: %w", err)
		}
		e.pages = pages
	}

	if !e.config.DisableRoutes {
		if err := e.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("charter: register routes: %w", err)
		}
	}

	return nil
}

// resolveStore picks the store in order: explicit option, a store.Store in
// the container, a *grove.DB in the container wrapped per GroveDriver.
func (e *Extension) resolveStore(fapp forge.App) (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		return s, nil
	}
	if e.config.GroveDriver == "" {
		return nil, errors.New("charter: no store configured")
	}
	db, err := forge.Inject[*grove.DB](fapp.Container())
	if err != nil {
		return nil, fmt.Errorf("charter: resolve grove database: %w", err)
	}
	return storeForDriver(e.config.GroveDriver, db)
}

// resolveCache picks the cache in order: explicit option, a charter.Cache in
// the container, an in-process cache honoring CacheTTL.
func (e *Extension) resolveCache(c forge.Container) charter.Cache {
	if e.cache != nil {
		return e.cache
	}
	if c != nil {
		if ch, err := forge.Inject[charter.Cache](c); err == nil && ch != nil {
			return ch
		}
	}
	var opts []cache.MemoryOption
	if e.config.CacheTTL > 0 {
		opts = append(opts, cache.WithTTL(e.config.CacheTTL))
	}
	return cache.NewMemory(opts...)
}

func storeForDriver(driver string, db *grove.DB) (store.Store, error) {
	switch driver {
	case "postgres", "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("charter: unknown grove driver %q", driver)
	}
}

// Start begins the charter engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("charter: extension not initialized")
	}

	if !e.config.DisableMigrate {
		s := e.eng.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("charter: migration failed: %w", err)
			}
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the charter engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("charter: extension not initialized")
	}
	s := e.eng.Store()
	if s == nil {
		return errors.New("charter: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all charter API and page routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		if err := e.apiHandler.RegisterRoutes(router); err != nil {
			return err
		}
	}
	if e.pages != nil {
		return e.pages.RegisterRoutes(router)
	}
	return nil
}
