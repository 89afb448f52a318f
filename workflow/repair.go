package workflow

import (
	"context"
	"fmt"

	"github.com/querytrio/querytrio/dbexec"
	"github.com/querytrio/querytrio/strategy"
)

// repairFeedback composes the internal feedback for a repair attempt.
// This rides the same feedback channel as human guidance but is never
// stored in the session; it exists only for the regeneration prompt.
func repairFeedback(query string, execErr *dbexec.ExecError) string {
	return fmt.Sprintf(
		"The previous query failed to execute.\nQuery:\n%s\nDatabase error: %s\nFix the query so it executes cleanly.",
		query, execErr.Message())
}

// repair regenerates and re-executes the failing candidate until it runs
// cleanly or the allowed attempts run out. Each attempt supersedes the
// candidate with a new one carrying the incremented attempt count.
// Connectivity and other non-repairable errors abort immediately; only
// syntax and semantic failures consume further attempts.
func (e *Engine) repair(ctx context.Context, cand *strategy.Candidate, execErr *dbexec.ExecError) (*strategy.Candidate, *dbexec.Result, error) {
	current := cand
	lastErr := error(execErr)

	for attempt := cand.Attempt + 1; attempt <= e.maxAttempts; attempt++ {
		repairAttemptsTotal.WithLabelValues(string(current.Origin)).Inc()
		e.logger.Info("repair attempt",
			"session", e.sess.id, "origin", current.Origin, "attempt", attempt, "max", e.maxAttempts)

		feedback := ""
		if lastExec := asExecError(lastErr); lastExec != nil {
			feedback = repairFeedback(current.Text, lastExec)
		} else {
			feedback = fmt.Sprintf("The previous attempt failed: %v\nProduce a corrected query.", lastErr)
		}

		regenerated, err := e.generator.Generate(ctx, strategy.Request{
			Origin:     current.Origin,
			Question:   e.sess.question,
			SchemaText: e.sess.schemaText,
			Feedback:   feedback,
			Dialect:    e.dialect,
			RowLimit:   e.rowLimit,
		})
		if err != nil {
			// A generation failure consumes the attempt; the next
			// attempt retries from the same error context.
			lastErr = err
			current = supersede(current, current.Text, attempt)
			continue
		}

		regenerated.Attempt = attempt
		current = regenerated

		e.stateMu.Lock()
		e.sess.candidates[current.Origin] = current
		e.stateMu.Unlock()

		result, err := e.executor.Execute(ctx, current.Text)
		if err == nil {
			executionsTotal.WithLabelValues("").Inc()
			return current, result, nil
		}

		nextErr := dbexec.ClassifyError(err)
		executionsTotal.WithLabelValues(string(nextErr.Kind)).Inc()
		e.logger.Warn("repair execution failed",
			"session", e.sess.id, "origin", current.Origin, "attempt", attempt,
			"kind", nextErr.Kind, "error", nextErr)

		if !nextErr.Repairable() {
			return current, nil, nextErr
		}
		lastErr = nextErr
	}

	return current, nil, &RepairExhaustedError{
		Origin:   cand.Origin,
		Attempts: e.maxAttempts,
		LastErr:  lastErr,
	}
}

// supersede builds the replacement candidate for a repair attempt.
func supersede(prev *strategy.Candidate, text string, attempt int) *strategy.Candidate {
	next := *prev
	next.Text = text
	next.Attempt = attempt
	return &next
}

func asExecError(err error) *dbexec.ExecError {
	if execErr, ok := err.(*dbexec.ExecError); ok {
		return execErr
	}
	return nil
}
