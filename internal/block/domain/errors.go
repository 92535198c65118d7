package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotSupported is returned when neither native blocking nor privacy
	// lists can be used on the connected server.
	ErrNotSupported = errors.New("blocking not supported by server")
	// ErrInvalidAddress is returned for empty or malformed block targets.
	// It is raised before any network activity.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrListNotFound is returned by privacy list stores when a named list
	// does not exist.
	ErrListNotFound = errors.New("privacy list not found")
)

// Stanza error conditions (RFC 6120 §8.3.3) that the engine inspects.
const (
	ConditionBadRequest            = "bad-request"
	ConditionConflict              = "conflict"
	ConditionFeatureNotImplemented = "feature-not-implemented"
	ConditionItemNotFound          = "item-not-found"
	ConditionServiceUnavailable    = "service-unavailable"
)

// ProtocolError is a request the server rejected. Condition is the stanza
// error condition; Text is the optional human-readable reason.
type ProtocolError struct {
	Condition string
	Text      string
}

func (e *ProtocolError) Error() string {
	if e.Text == "" {
		return "server rejected request: " + e.Condition
	}
	return fmt.Sprintf("server rejected request: %s: %s", e.Condition, e.Text)
}

// Is lets callers match server-side "not implemented" answers against
// ErrNotSupported and item-not-found answers against ErrListNotFound.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrNotSupported:
		return e.Condition == ConditionFeatureNotImplemented || e.Condition == ConditionServiceUnavailable
	case ErrListNotFound:
		return e.Condition == ConditionItemNotFound
	}
	return false
}

// NetworkError is a transport failure or timeout while talking to the server.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// InconsistentStateError reports a multi-step update that failed part way
// and could not be rolled back. The server may now hold a saved list whose
// default or active designation is stale.
type InconsistentStateError struct {
	// Op is the public operation, e.g. "block".
	Op string
	// List is the privacy list being modified.
	List string
	// Failed is the step that failed.
	Failed string
	// Completed lists the steps that succeeded before Failed, in order.
	Completed []string
	// Err is the error returned by Failed.
	Err error
	// CompensationErr is the error from undoing Completed.
	CompensationErr error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s on list %q left inconsistent state: step %s failed after [%s]: %v (rollback: %v)",
		e.Op, e.List, e.Failed, strings.Join(e.Completed, ", "), e.Err, e.CompensationErr)
}

func (e *InconsistentStateError) Unwrap() []error {
	return []error{e.Err, e.CompensationErr}
}
