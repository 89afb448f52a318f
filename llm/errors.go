package llm

import (
	"errors"
)

// Every completion failure is classified as transient or fatal before it
// surfaces from the client. Transient failures (rate limits, 5xx, dropped
// connections) are retried against the same endpoint and then handed down
// the capability's fallback chain. Fatal failures (bad credentials,
// malformed requests) abort the chain outright, since every endpoint would
// reject them the same way. By the time the generation fan-out sees an
// error the classification has already run its course: a strategy whose
// completion fails becomes a missing candidate, never a blocked round.

// TransientError marks a completion failure worth retrying.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps err so the retry loop will try again.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError marks a completion failure that retrying cannot help.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps err so the retry loop and fallback chain stop.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err was classified as non-retryable.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
