package simpleai

import (
	"errors"
	"fmt"
)

// Sentinel errors marking the failure kind of anything Run returns.
// All use prefix "simpleai:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrSettings     = errors.New("simpleai: invalid or missing configuration")
	ErrResolution   = errors.New("simpleai: provider or model could not be resolved")
	ErrProvider     = errors.New("simpleai: provider call failed")
	ErrRateLimited  = errors.New("simpleai: provider rate limit persisted after retries")
	ErrOutputFormat = errors.New("simpleai: output does not match the requested format")
	ErrFile         = errors.New("simpleai: file attachment could not be processed")
)

// Error is the catch-all wrapper every failure from Run is returned as. Kind
// is one of the sentinel errors above and Cause is the underlying failure;
// both are reachable through errors.Is/errors.As.
type Error struct {
	Kind     error
	Provider string
	Message  string
	Cause    error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("simpleai: %s (provider %s): %v", e.Message, e.Provider, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("simpleai: %s: %v", e.Message, e.Cause)
	}
	return "simpleai: " + e.Message
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// wrapErr returns err unchanged when it is already an *Error, otherwise wraps
// it with the given kind.
func wrapErr(kind error, provider, message string, cause error) error {
	var already *Error
	if errors.As(cause, &already) {
		return cause
	}
	return &Error{Kind: kind, Provider: provider, Message: message, Cause: cause}
}

// Compile-time check that Error implements error.
var _ error = (*Error)(nil)
