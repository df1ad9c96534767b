/*
errors.go - Centralized error types for the evaluation engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers branch on kinds with errors.Is; structured errors carry context
  and unwrap to their kind.

ERROR KINDS:
  1. ErrAuthExpired   - delivery center rejected the credentials (operator
                        must refresh the cookie, retrying does not help)
  2. ErrFetchFailure  - network, HTTP, timeout or parse failure (transient)
  3. ErrNotFound      - no worker matches name + login suffix
  4. ErrAmbiguous     - more than one worker matches
  5. ErrInvalidInput  - malformed suffix, date or key

USAGE:
    if errors.Is(err, generic.ErrAuthExpired) {
        // tell the operator to refresh credentials
    }

SEE ALSO:
  - deliverycenter/client.go: builds FetchError
  - grade/evaluator.go: NotFound / Ambiguous / InvalidInput
  - api/handlers.go: maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAuthExpired is returned when the external source answers 401/403 or
	// no credentials are available at all.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrFetchFailure is returned for every other failed external call.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrNotFound is returned when no worker matches a lookup.
	ErrNotFound = errors.New("worker not found")

	// ErrAmbiguous is returned when a lookup matches several workers. The
	// lookup never picks one, that would show another person's data.
	ErrAmbiguous = errors.New("ambiguous worker match")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FetchError describes one failed call to the external source.
// Kind is ErrAuthExpired or ErrFetchFailure.
type FetchError struct {
	Op         string // e.g. "riders", "delivery-status"
	FetchID    string
	StatusCode int // 0 when no response was received
	Timeout    bool
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s (fetch %s", e.Op, e.Kind, e.FetchID)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	if e.Timeout {
		msg += ", timeout"
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// AmbiguousMatchError reports how many workers matched a lookup.
type AmbiguousMatchError struct {
	NameKey string
	Suffix  string
	Matches int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous worker match: %d workers for %s|%s", e.Matches, e.NameKey, e.Suffix)
}

func (e *AmbiguousMatchError) Unwrap() error {
	return ErrAmbiguous
}

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInvalidInput is a shorthand for &InvalidInputError{...}.
func NewInvalidInput(field, value, reason string) error {
	return &InvalidInputError{Field: field, Value: value, Reason: reason}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsAuthExpired returns true if credentials must be refreshed by an operator.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}

// IsRetryable returns true if the same call might succeed later. The engine
// itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFetchFailure) && !errors.Is(err, ErrAuthExpired)
}

// IsClientError returns true if the error is due to the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAmbiguous)
}

// IsNotFound returns true if no worker matched.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
