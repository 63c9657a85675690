package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Error Taxonomy
//
// Every remote operation fails into exactly one class, because callers make
// different decisions per class:
//
//   NotAuthenticated — no valid session. Blocks owner-scoped writes; the UI
//                      prompts sign-in. Never retried automatically.
//   Transient        — timeout/connectivity/5xx. Safe to retry; idempotent
//                      operations may simply be re-issued.
//   NotFound         — row absent on update/select-one. Resolved by falling
//                      back to insert.
//   Conflict         — duplicate key on insert. Resolved by falling back to
//                      update.
//   Authorization    — mutating another user's row. Surfaced, never retried.
// ============================================================================

// Kind classifies a remote failure.
type Kind int

const (
	KindTransient Kind = iota + 1
	KindNotAuthenticated
	KindNotFound
	KindConflict
	KindAuthorization
)

// String returns the taxonomy name for logs and API error payloads.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	}
	return "unknown"
}

// Error is a classified remote-store failure. It cooperates with the
// stdlib errors package: errors.As extracts it through serr wrapping.
type Error struct {
	Kind   Kind
	Status int    // HTTP status when one was received, 0 otherwise
	Op     string // operation, e.g. "select notes"
	Err    error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s failed (%s): %v", e.Op, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("remote %s failed (%s): status %d", e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("remote %s failed (%s)", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the taxonomy class from any error in the chain.
// Unclassified errors report KindTransient — the conservative default,
// since unknown failures are treated as retryable.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// IsNotAuthenticated reports whether err is a missing/invalid-session failure.
func IsNotAuthenticated(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindNotAuthenticated
}

// IsNotFound reports whether err means the targeted row is absent.
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindNotFound
}

// IsConflict reports whether err is a duplicate-key insert failure.
func IsConflict(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindConflict
}

// IsAuthorization reports whether err means the caller may not mutate the row.
func IsAuthorization(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindAuthorization
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// classifyStatus maps an HTTP response status onto the taxonomy.
func classifyStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindNotAuthenticated
	case http.StatusForbidden:
		return KindAuthorization
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		// Remaining 4xx are treated as transient too: the operation
		// vocabulary is fixed, so an unexpected 4xx is a service-side
		// condition the caller can only retry or report.
		return KindTransient
	}
}
