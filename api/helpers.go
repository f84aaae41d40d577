package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/forge"
	"github.com/xraph/go-utils/val"

	"github.com/xraph/charter"
	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/auth"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/middleware"
	"github.com/xraph/charter/schema"
)

// respond writes env as the response body with status.
func respond(ctx forge.Context, status int, msg string, metadata any) error {
	return ctx.JSON(status, &Envelope{StatusCode: status, Message: msg, Metadata: metadata})
}

// fail writes the envelope for err.
func (a *API) fail(ctx forge.Context, err error) error {
	status, msg, metadata := mapError(err)
	if status == http.StatusUnauthorized {
		ctx.SetHeader("WWW-Authenticate", `Bearer realm="charter"`)
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed",
			slog.String("path", ctx.Request().URL.Path),
			slog.String("error", err.Error()),
		)
	}
	return respond(ctx, status, msg, metadata)
}

// bindError reports a request that could not be bound: malformed JSON, a
// wrongly typed field or a missing required field.
type bindError struct {
	fields []schema.FieldError
	err    error
}

func (e *bindError) Error() string { return "invalid request: " + e.err.Error() }
func (e *bindError) Unwrap() error { return e.err }

// bind fills req from the path, query and body of the request.
func bind(ctx forge.Context, req any) error {
	err := ctx.BindRequest(req)
	if err == nil {
		return nil
	}
	be := &bindError{err: err}
	var ve *val.ValidationError
	if errors.As(err, &ve) {
		for _, fe := range ve.Errors {
			be.fields = append(be.fields, schema.FieldError{Field: fe.Field, Reason: fe.Message})
		}
	}
	return be
}

// mapError maps domain errors to an HTTP status, a client-safe message and
// optional metadata.
func mapError(err error) (int, string, any) {
	var (
		ve *schema.ValidationError
		be *bindError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, err.Error(), ve.Fields
	case errors.As(err, &be):
		return http.StatusBadRequest, be.Error(), be.fields
	case errors.Is(err, charter.ErrValidation),
		errors.Is(err, charter.ErrTypeImmutable),
		errors.Is(err, charter.ErrInvalidType),
		errors.Is(err, charter.ErrInvalidID):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, charter.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required", nil
	case errors.Is(err, charter.ErrForbidden):
		return http.StatusForbidden, "forbidden", nil
	case errors.Is(err, charter.ErrPolicyNotFound), errors.Is(err, charter.ErrNoActivePolicy):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, charter.ErrPolicyActive),
		errors.Is(err, charter.ErrVersionConflict),
		errors.Is(err, charter.ErrActivationConflict):
		return http.StatusConflict, err.Error(), nil
	default:
		return http.StatusInternalServerError, "internal server error", nil
	}
}

// require gates a route on capability c ahead of request binding.
func (a *API) require(c auth.Capability) forge.RouteOption {
	return forge.WithMiddleware(middleware.Require(a.authn, c))
}

func parsePolicyRef(ref string) (id.PolicyID, error) {
	polID, err := id.ParsePolicyID(strings.TrimSpace(ref))
	if err != nil {
		return id.Nil, errors.Join(charter.ErrInvalidID, err)
	}
	return polID, nil
}

func parseActive(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "true", "1":
		t := true
		return &t, nil
	case "false", "0":
		f := false
		return &f, nil
	}
	return nil, fmt.Errorf("%w: active must be true or false, got %q", charter.ErrValidation, s)
}

func auditFilter(req *ListAuditRequest) (*audit.ListFilter, error) {
	f := &audit.ListFilter{
		PolicyType: req.Type,
		Action:     audit.Action(req.Action),
		ActorID:    req.ActorID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if req.PolicyID != "" {
		polID, err := parsePolicyRef(req.PolicyID)
		if err != nil {
			return nil, err
		}
		f.PolicyID = polID
	}
	return f, nil
}
