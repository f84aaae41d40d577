package charter

import "errors"

var (
	// ErrPolicyNotFound is returned when a policy version cannot be found.
	ErrPolicyNotFound = errors.New("charter: policy not found")

	// ErrNoActivePolicy is returned when a type has no active version.
	ErrNoActivePolicy = errors.New("charter: no active policy for type")

	// ErrInvalidType is returned for a policy type outside the known set.
	ErrInvalidType = errors.New("charter: invalid policy type")

	// ErrInvalidID is returned when a policy reference is not a policy ID.
	ErrInvalidID = errors.New("charter: invalid policy id")

	// ErrValidation is returned when a policy's content or config is
	// rejected. It wraps *schema.ValidationError for config failures.
	ErrValidation = errors.New("charter: validation failed")

	// ErrTypeImmutable is returned when an update tries to change the type.
	ErrTypeImmutable = errors.New("charter: policy type cannot be changed")

	// ErrPolicyActive is returned when editing the content of an active
	// version. Deactivate it or author a new version instead.
	ErrPolicyActive = errors.New("charter: active policy cannot be edited")

	// ErrVersionConflict is returned when a concurrent create claimed the
	// same version number.
	ErrVersionConflict = errors.New("charter: policy version conflict")

	// ErrActivationConflict is returned when a concurrent activation of the
	// same type won the single-active constraint. Retrying is safe.
	ErrActivationConflict = errors.New("charter: concurrent activation conflict")

	// ErrUnauthenticated is returned when a request carries no valid token.
	ErrUnauthenticated = errors.New("charter: authentication required")

	// ErrForbidden is returned when the caller's role lacks a capability.
	ErrForbidden = errors.New("charter: forbidden")
)
