package workflow

import (
	"errors"
	"fmt"

	"github.com/querytrio/querytrio/strategy"
)

// ErrBusy is returned when a question or decision arrives while a prior
// one is still being processed. The caller should re-read the snapshot
// and retry; the engine never queues overlapping inputs.
var ErrBusy = errors.New("a decision is already in flight for this session")

// InvalidPhaseError is returned when an input violates the state machine
// contract, such as submitting a question while a round is in flight.
type InvalidPhaseError struct {
	// Phase is the session phase at the time of the call.
	Phase Phase

	// Op is the rejected operation.
	Op string
}

func (e *InvalidPhaseError) Error() string {
	return fmt.Sprintf("%s is not valid in phase %q", e.Op, e.Phase)
}

// UnknownOriginError is returned when a decision references an origin
// with no candidate in the current round.
type UnknownOriginError struct {
	Origin strategy.Origin
}

func (e *UnknownOriginError) Error() string {
	return fmt.Sprintf("no candidate for origin %q in the current round", e.Origin)
}

// GenerationExhaustedError is returned when every strategy failed to
// produce a candidate, ending the round before any feedback.
type GenerationExhaustedError struct {
	// Errs holds the per-origin failures.
	Errs []error
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("all %d generation strategies failed: %v", len(e.Errs), errors.Join(e.Errs...))
}

func (e *GenerationExhaustedError) Unwrap() []error {
	return e.Errs
}

// RepairExhaustedError is returned when the repair loop consumed every
// allowed attempt without a clean execution.
type RepairExhaustedError struct {
	// Origin identifies the failing candidate's strategy.
	Origin strategy.Origin

	// Attempts is the number of repair attempts consumed.
	Attempts int

	// LastErr is the final execution or generation failure.
	LastErr error
}

func (e *RepairExhaustedError) Error() string {
	return fmt.Sprintf("repair of %s candidate exhausted after %d attempts: %v",
		e.Origin, e.Attempts, e.LastErr)
}

func (e *RepairExhaustedError) Unwrap() error {
	return e.LastErr
}
