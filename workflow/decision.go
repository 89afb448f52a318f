package workflow

import (
	"fmt"

	"github.com/querytrio/querytrio/strategy"
)

// DecisionKind identifies what the human chose to do with the candidates.
type DecisionKind string

const (
	// DecisionExecute runs the candidate from the named origin.
	DecisionExecute DecisionKind = "execute"
	// DecisionRegenerate regenerates candidates with human feedback.
	DecisionRegenerate DecisionKind = "regenerate"
	// DecisionCancel abandons the round.
	DecisionCancel DecisionKind = "cancel"
)

// Decision is a structured human choice submitted from the feedback
// phase. Free-text intent classification, if any, belongs to the
// presentation layer; the engine only accepts structured decisions.
type Decision struct {
	// Kind selects the action.
	Kind DecisionKind `json:"kind"`

	// Origin names the candidate to execute. Required for execute,
	// ignored otherwise.
	Origin strategy.Origin `json:"origin,omitempty"`

	// Feedback is the human's free-form guidance for regeneration.
	// Required for regenerate, ignored otherwise.
	Feedback string `json:"feedback,omitempty"`

	// Target restricts regeneration to one origin. Empty means all
	// origins regenerate.
	Target strategy.Origin `json:"target,omitempty"`
}

// Execute builds an execute decision for the given origin.
func Execute(origin strategy.Origin) Decision {
	return Decision{Kind: DecisionExecute, Origin: origin}
}

// Regenerate builds a regenerate decision. A zero target regenerates
// every origin.
func Regenerate(feedback string, target strategy.Origin) Decision {
	return Decision{Kind: DecisionRegenerate, Feedback: feedback, Target: target}
}

// Cancel builds a cancel decision.
func Cancel() Decision {
	return Decision{Kind: DecisionCancel}
}

// Validate checks the decision's internal consistency.
func (d Decision) Validate() error {
	switch d.Kind {
	case DecisionExecute:
		// Whether the origin names a real candidate is the engine's call;
		// its lookup classifies unknown origins distinctly from malformed
		// decisions.
		if d.Origin == "" {
			return fmt.Errorf("execute requires an origin")
		}
	case DecisionRegenerate:
		if d.Feedback == "" {
			return fmt.Errorf("regenerate requires feedback text")
		}
		if d.Target != "" && !d.Target.IsValid() {
			return fmt.Errorf("unknown regeneration target %q", d.Target)
		}
	case DecisionCancel:
	default:
		return fmt.Errorf("unknown decision kind %q", d.Kind)
	}
	return nil
}
