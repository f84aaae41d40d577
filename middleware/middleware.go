// Package middleware provides the bearer-token gate for Charter's
// management routes.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/auth"
)

type contextKey struct{}

// Authorize resolves the caller from the Authorization header and checks
// that its role holds capability c. A missing or invalid token yields
// charter.ErrUnauthenticated, a role without the capability yields
// charter.ErrForbidden.
func Authorize(ctx forge.Context, authn *auth.Authenticator, c auth.Capability) (*auth.Principal, error) {
	return AuthorizeHeader(ctx.Request().Header.Get("Authorization"), authn, c)
}

// AuthorizeHeader is Authorize for a raw header value.
func AuthorizeHeader(header string, authn *auth.Authenticator, c auth.Capability) (*auth.Principal, error) {
	if authn == nil {
		return nil, fmt.Errorf("%w: authentication is not configured", charter.ErrUnauthenticated)
	}
	p, err := authn.VerifyHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", charter.ErrUnauthenticated, err)
	}
	if !p.Can(c) {
		return nil, fmt.Errorf("%w: role %s lacks %s", charter.ErrForbidden, p.Role, c)
	}
	return p, nil
}

// Require rejects requests whose caller lacks capability c before the
// request is bound or the handler runs. On success the principal and its
// subject (as the charter actor) are stored in the request context.
func Require(authn *auth.Authenticator, c auth.Capability) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			p, err := Authorize(ctx, authn, c)
			if err != nil {
				return denyResponse(ctx, err)
			}
			ctx.WithContext(WithPrincipal(ctx.Context(), p))
			return next(ctx)
		}
	}
}

// WithPrincipal returns a context carrying p, with p.Subject as the actor
// of engine writes.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	ctx = context.WithValue(ctx, contextKey{}, p)
	return charter.WithActor(ctx, p.Subject)
}

// PrincipalFrom returns the principal stored by Require, if any.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*auth.Principal)
	return p, ok && p != nil
}

// Status returns the HTTP status for an Authorize error.
func Status(err error) int {
	if errors.Is(err, charter.ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func denyResponse(ctx forge.Context, err error) error {
	status := Status(err)
	msg := "forbidden"
	if status == http.StatusUnauthorized {
		ctx.SetHeader("WWW-Authenticate", `Bearer realm="charter"`)
		msg = "authentication required"
	}
	return ctx.JSON(status, map[string]any{
		"statusCode": status,
		"message":    msg,
		"metadata":   nil,
	})
}
