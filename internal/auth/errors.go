package auth

import (
	"context"
	"errors"
	"fmt"
)

// Business outcomes surfaced verbatim to callers of the engine.
var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrInvalid         = errors.New("auth: invalid")
	ErrConflict        = errors.New("auth: conflict")
	ErrNotConfigured   = errors.New("auth: not configured")
	ErrInfrastructure  = errors.New("auth: infrastructure failure")
)

// ErrNotFound is part of the store contract. The engine only returns it joined
// with ErrInvalid, for administrative lookups of a named member or invite.
var ErrNotFound = errors.New("auth: not found")

// ErrSigning reports a codec that cannot sign because it lacks key material.
var ErrSigning = fmt.Errorf("%w: access token signing key missing", ErrNotConfigured)

// Kind classifies an error into the engine taxonomy.
type Kind string

const (
	KindNone            Kind = ""
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindInvalid         Kind = "invalid"
	KindConflict        Kind = "conflict"
	KindNotConfigured   Kind = "not_configured"
	KindInfrastructure  Kind = "infrastructure"
)

// KindOf maps err onto the taxonomy. Unknown errors are infrastructure failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInfrastructure):
		return KindInfrastructure
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotConfigured):
		return KindNotConfigured
	default:
		return KindInfrastructure
	}
}

func isBusiness(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalid) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrInfrastructure)
}

// infra wraps a store failure so it is never mistaken for a business outcome.
// Timeouts and cancellations keep their cause for retry decisions.
func infra(op string, err error) error {
	if err == nil || isBusiness(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return KindOf(err) == KindInfrastructure && !errors.Is(err, context.Canceled)
}
