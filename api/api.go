// Package api provides the HTTP handlers for Charter's policy service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/auth"
)

// API wires all Charter HTTP handlers together.
type API struct {
	eng      *charter.Engine
	authn    *auth.Authenticator
	router   forge.Router
	basePath string
	logger   *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithBasePath mounts every route under prefix.
func WithBasePath(prefix string) Option {
	return func(a *API) { a.basePath = prefix }
}

// WithLogger sets the logger used for unexpected handler errors.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API from an Engine, the bearer-token authenticator and a
// Forge router. A nil authn rejects every management request with 401.
func New(eng *charter.Engine, authn *auth.Authenticator, router forge.Router, opts ...Option) *API {
	a := &API{eng: eng, authn: authn, router: router, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("charter: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerPolicyRoutes,
		a.registerAuditRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}

func (a *API) group(router forge.Router, tag string) forge.Router {
	if a.basePath == "" || a.basePath == "/" {
		return router
	}
	return router.Group(a.basePath, forge.WithGroupTags(tag))
}
