// Package workflow implements the query round state machine: question
// submission fans out the three generation strategies, a human decision
// routes the round to execution, regeneration, or cancellation, and
// classified execution failures drive a bounded repair loop. The engine
// exclusively owns the session state; callers only submit inputs and read
// snapshots.
package workflow

// Phase represents the current state of the active query round.
type Phase string

const (
	// PhaseIdle indicates no round is active.
	PhaseIdle Phase = "idle"
	// PhaseGenerating indicates candidate generation is in flight.
	PhaseGenerating Phase = "generating"
	// PhaseAwaitingFeedback indicates candidates are ready and the round
	// is waiting on a human decision.
	PhaseAwaitingFeedback Phase = "awaiting_feedback"
	// PhaseExecuting indicates the chosen candidate is running against
	// the database.
	PhaseExecuting Phase = "executing"
	// PhaseRepairing indicates a failed execution is being regenerated
	// and retried.
	PhaseRepairing Phase = "repairing"
	// PhaseDone indicates the round finished with a successful execution.
	PhaseDone Phase = "done"
	// PhaseCancelled indicates the human abandoned the round.
	PhaseCancelled Phase = "cancelled"
	// PhaseFailed indicates the round ended without a successful
	// execution: every strategy failed to generate, execution hit a
	// fatal error, or repair attempts ran out.
	PhaseFailed Phase = "failed"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid returns true if the phase is a defined workflow phase.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseGenerating, PhaseAwaitingFeedback,
		PhaseExecuting, PhaseRepairing,
		PhaseDone, PhaseCancelled, PhaseFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the phase ends the round. Terminal phases
// are observable only in the result of the call that reached them; the
// stored session phase resets to idle immediately after.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseCancelled || p == PhaseFailed
}

// CanTransitionTo returns true if the phase can transition to the target phase.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhaseIdle:
		return target == PhaseGenerating
	case PhaseGenerating:
		// generating → awaiting_feedback (at least one candidate) or
		// failed (every strategy failed)
		return target == PhaseAwaitingFeedback || target == PhaseFailed
	case PhaseAwaitingFeedback:
		// awaiting_feedback → executing (Execute), generating
		// (Regenerate), or cancelled (Cancel)
		return target == PhaseExecuting || target == PhaseGenerating || target == PhaseCancelled
	case PhaseExecuting:
		// executing → done (clean run), repairing (repairable error),
		// or failed (connectivity and other fatal classes)
		return target == PhaseDone || target == PhaseRepairing || target == PhaseFailed
	case PhaseRepairing:
		return target == PhaseDone || target == PhaseRepairing || target == PhaseFailed
	case PhaseDone, PhaseCancelled, PhaseFailed:
		// Terminal phases reset to idle.
		return target == PhaseIdle
	default:
		return false
	}
}
