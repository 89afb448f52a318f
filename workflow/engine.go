package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/querytrio/querytrio/dbexec"
	"github.com/querytrio/querytrio/schema"
	"github.com/querytrio/querytrio/strategy"
)

// Generator produces one candidate for an origin. Satisfied by
// *strategy.Generator.
type Generator interface {
	Generate(ctx context.Context, req strategy.Request) (*strategy.Candidate, error)
}

// RoundResult reports what a SubmitQuestion or SubmitDecision call did.
// Phase is the phase the round reached in this call, including terminal
// phases that the stored session has already reset away from. Snapshot
// reflects the stored state after the call.
type RoundResult struct {
	// Phase is the round phase this call reached.
	Phase Phase `json:"phase"`

	// Snapshot is the session state after the call.
	Snapshot Snapshot `json:"snapshot"`

	// Executed is the candidate that ran, set only on a done round.
	Executed *strategy.Candidate `json:"executed,omitempty"`

	// Result is the execution result, set only on a done round.
	Result *dbexec.Result `json:"result,omitempty"`

	// Turn is the history record appended by this call, set when the
	// round reached a terminal phase.
	Turn *TurnRecord `json:"turn,omitempty"`
}

// Engine is the workflow state machine for one session. It owns the
// session state exclusively: callers submit questions and decisions and
// read snapshots, nothing else. One decision is processed at a time;
// overlapping calls are rejected with ErrBusy rather than queued.
type Engine struct {
	generator Generator
	executor  dbexec.Executor
	schemas   schema.Supplier

	dialect     string
	rowLimit    int
	maxAttempts int
	publisher   *Publisher
	logger      *slog.Logger

	// busy is the single-in-flight gate. stateMu guards the session for
	// short reads and writes only; it is never held across a generation
	// or execution call.
	busy    atomic.Bool
	stateMu sync.Mutex
	sess    *session
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDialect sets the SQL dialect name interpolated into prompts.
func WithDialect(dialect string) EngineOption {
	return func(e *Engine) {
		e.dialect = dialect
	}
}

// WithRowLimit sets the row limit interpolated into prompts.
func WithRowLimit(n int) EngineOption {
	return func(e *Engine) {
		e.rowLimit = n
	}
}

// WithMaxRepairAttempts bounds the repair loop.
func WithMaxRepairAttempts(n int) EngineOption {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithPublisher sets the round lifecycle event publisher.
func WithPublisher(p *Publisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine with a fresh idle session.
func NewEngine(generator Generator, executor dbexec.Executor, schemas schema.Supplier, opts ...EngineOption) *Engine {
	e := &Engine{
		generator:   generator,
		executor:    executor,
		schemas:     schemas,
		dialect:     "postgresql",
		rowLimit:    5,
		maxAttempts: 3,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.sess = newSession()
	return e
}

// SessionID identifies this engine's session.
func (e *Engine) SessionID() string {
	return e.sess.id
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.sess.snapshot()
}

// acquire takes the single-in-flight gate.
func (e *Engine) acquire() error {
	if !e.busy.CompareAndSwap(false, true) {
		decisionsRejectedTotal.WithLabelValues("busy").Inc()
		return ErrBusy
	}
	return nil
}

func (e *Engine) release() {
	e.busy.Store(false)
}

// SubmitQuestion opens a new round: it clears prior round state, fans out
// the three generation strategies concurrently, and moves the round to
// the feedback phase. Valid only while the session is idle.
//
// When every strategy fails, the returned result carries PhaseFailed
// alongside a *GenerationExhaustedError; the result is nil only when the
// call was rejected before the round advanced.
func (e *Engine) SubmitQuestion(ctx context.Context, question string) (*RoundResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	e.stateMu.Lock()
	if e.sess.phase != PhaseIdle {
		phase := e.sess.phase
		e.stateMu.Unlock()
		decisionsRejectedTotal.WithLabelValues("invalid_phase").Inc()
		return nil, &InvalidPhaseError{Phase: phase, Op: "submit_question"}
	}
	e.sess.beginRound(question, e.schemas.SchemaText())
	e.sess.transition(PhaseGenerating)
	e.stateMu.Unlock()

	e.logger.Info("round started", "session", e.sess.id, "question", question)
	e.publisher.roundStarted(RoundStartedEvent{
		SessionID: e.sess.id,
		Question:  question,
		StartedAt: time.Now(),
	})

	candidates, errs := e.generateAll(ctx, question, strategy.AllOrigins(), "")

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if len(candidates) == 0 {
		e.sess.appendTurn(OutcomeFailed, nil, "", "all generation strategies failed")
		return e.finishRound(PhaseFailed, OutcomeFailed, nil, 0), &GenerationExhaustedError{Errs: errs}
	}

	origins := make([]strategy.Origin, 0, len(candidates))
	for _, cand := range candidates {
		e.sess.candidates[cand.Origin] = cand
		origins = append(origins, cand.Origin)
	}
	e.sess.transition(PhaseAwaitingFeedback)

	e.publisher.candidatesReady(CandidatesReadyEvent{SessionID: e.sess.id, Origins: origins})
	return &RoundResult{Phase: PhaseAwaitingFeedback, Snapshot: e.sess.snapshot()}, nil
}

// SubmitDecision routes a human decision from the feedback phase:
// Execute runs a candidate (with automatic repair on classified failures),
// Regenerate replaces the targeted candidates using the feedback text, and
// Cancel abandons the round.
//
// The returned result is nil only when the decision was rejected before
// the round advanced; a failed round carries PhaseFailed alongside the
// failure error.
func (e *Engine) SubmitDecision(ctx context.Context, decision Decision) (*RoundResult, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	e.stateMu.Lock()
	if e.sess.phase != PhaseAwaitingFeedback {
		phase := e.sess.phase
		e.stateMu.Unlock()
		decisionsRejectedTotal.WithLabelValues("invalid_phase").Inc()
		return nil, &InvalidPhaseError{Phase: phase, Op: "submit_decision"}
	}

	switch decision.Kind {
	case DecisionExecute:
		cand, ok := e.sess.candidates[decision.Origin]
		if !ok {
			e.stateMu.Unlock()
			decisionsRejectedTotal.WithLabelValues("unknown_origin").Inc()
			return nil, &UnknownOriginError{Origin: decision.Origin}
		}
		e.sess.transition(PhaseExecuting)
		e.stateMu.Unlock()
		return e.runExecution(ctx, cand)

	case DecisionRegenerate:
		e.sess.feedback = decision.Feedback
		e.sess.transition(PhaseGenerating)
		e.stateMu.Unlock()
		return e.runRegeneration(ctx, decision)

	case DecisionCancel:
		e.sess.appendTurn(OutcomeCancelled, nil, "", "")
		res := e.finishRound(PhaseCancelled, OutcomeCancelled, nil, 0)
		e.stateMu.Unlock()
		return res, nil

	default:
		e.stateMu.Unlock()
		return nil, fmt.Errorf("unknown decision kind %q", decision.Kind)
	}
}

// runRegeneration replaces the targeted candidates using the human
// feedback, then returns to the feedback phase. A regeneration failure
// keeps the prior candidate for that origin; candidates outside the
// target are never touched.
func (e *Engine) runRegeneration(ctx context.Context, decision Decision) (*RoundResult, error) {
	targets := strategy.AllOrigins()
	if decision.Target != "" {
		targets = []strategy.Origin{decision.Target}
	}

	candidates, _ := e.generateAll(ctx, e.sess.question, targets, decision.Feedback)

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	// Feedback is consumed exactly once per transition.
	e.sess.feedback = ""

	origins := make([]strategy.Origin, 0, len(candidates))
	for _, cand := range candidates {
		e.sess.candidates[cand.Origin] = cand
		origins = append(origins, cand.Origin)
	}
	if len(candidates) < len(targets) {
		e.logger.Warn("regeneration partially failed, prior candidates retained",
			"session", e.sess.id, "requested", len(targets), "regenerated", len(candidates))
	}
	e.sess.transition(PhaseAwaitingFeedback)

	e.publisher.candidatesReady(CandidatesReadyEvent{SessionID: e.sess.id, Origins: origins, Regen: true})
	return &RoundResult{Phase: PhaseAwaitingFeedback, Snapshot: e.sess.snapshot()}, nil
}

// runExecution executes the chosen candidate and drives the repair loop
// on classified failures. Entered in the executing phase.
func (e *Engine) runExecution(ctx context.Context, cand *strategy.Candidate) (*RoundResult, error) {
	result, err := e.executor.Execute(ctx, cand.Text)
	if err == nil {
		executionsTotal.WithLabelValues("").Inc()
		return e.completeExecution(cand, result), nil
	}

	execErr := dbexec.ClassifyError(err)
	executionsTotal.WithLabelValues(string(execErr.Kind)).Inc()
	e.logger.Warn("execution failed",
		"session", e.sess.id, "origin", cand.Origin, "kind", execErr.Kind, "error", execErr)

	if !execErr.Repairable() {
		e.stateMu.Lock()
		defer e.stateMu.Unlock()
		e.sess.appendTurn(OutcomeFailed, nil, "", execErr.Error())
		return e.finishRound(PhaseFailed, OutcomeFailed, cand, cand.Attempt), execErr
	}

	e.stateMu.Lock()
	e.sess.transition(PhaseRepairing)
	e.stateMu.Unlock()

	repaired, result, repairErr := e.repair(ctx, cand, execErr)

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if repairErr != nil {
		attempts := cand.Attempt
		if repaired != nil {
			attempts = repaired.Attempt
		}
		e.sess.appendTurn(OutcomeFailed, nil, "", repairErr.Error())
		return e.finishRound(PhaseFailed, OutcomeFailed, cand, attempts), repairErr
	}

	turn := e.sess.appendTurn(OutcomeDone, repaired, result.Summary(), "")
	res := e.finishRound(PhaseDone, OutcomeDone, repaired, repaired.Attempt)
	res.Executed = repaired
	res.Result = result
	res.Turn = &turn
	return res, nil
}

// completeExecution records a clean first-try execution.
func (e *Engine) completeExecution(cand *strategy.Candidate, result *dbexec.Result) *RoundResult {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	turn := e.sess.appendTurn(OutcomeDone, cand, result.Summary(), "")
	res := e.finishRound(PhaseDone, OutcomeDone, cand, cand.Attempt)
	res.Executed = cand
	res.Result = result
	res.Turn = &turn
	return res
}

// finishRound publishes the terminal event, resets the session to idle,
// and builds the result. Callers hold stateMu and have already appended
// the turn record.
func (e *Engine) finishRound(phase Phase, outcome Outcome, cand *strategy.Candidate, attempts int) *RoundResult {
	e.sess.transition(phase)

	roundsTotal.WithLabelValues(string(outcome)).Inc()
	event := RoundCompletedEvent{SessionID: e.sess.id, Outcome: outcome, RepairAttempt: attempts}
	if cand != nil {
		event.Origin = cand.Origin
	}
	if outcome == OutcomeFailed && len(e.sess.history) > 0 {
		event.Error = e.sess.history[len(e.sess.history)-1].ErrorMessage
	}
	e.publisher.roundCompleted(event)
	e.logger.Info("round completed", "session", e.sess.id, "outcome", outcome)

	var turn *TurnRecord
	if len(e.sess.history) > 0 {
		t := e.sess.history[len(e.sess.history)-1]
		turn = &t
	}

	e.sess.reset()
	return &RoundResult{Phase: phase, Snapshot: e.sess.snapshot(), Turn: turn}
}

// generateAll fans out one generation per origin. Each origin writes its
// own slot, so the goroutines share nothing; failures are collected, not
// propagated, because the round tolerates partial generation.
func (e *Engine) generateAll(ctx context.Context, question string, origins []strategy.Origin, feedback string) ([]*strategy.Candidate, []error) {
	// The schema was pinned at round start; regeneration and repair must
	// not drift to a newer document than the candidates they revise.
	schemaText := e.sess.schemaText

	results := make([]*strategy.Candidate, len(origins))
	failures := make([]error, len(origins))

	g, ctx := errgroup.WithContext(ctx)
	for i, origin := range origins {
		g.Go(func() error {
			start := time.Now()
			cand, err := e.generator.Generate(ctx, strategy.Request{
				Origin:     origin,
				Question:   question,
				SchemaText: schemaText,
				Feedback:   feedback,
				Dialect:    e.dialect,
				RowLimit:   e.rowLimit,
			})
			generationDuration.WithLabelValues(string(origin)).Observe(time.Since(start).Seconds())
			if err != nil {
				generationsTotal.WithLabelValues(string(origin), "error").Inc()
				e.logger.Warn("generation failed", "session", e.sess.id, "origin", origin, "error", err)
				failures[i] = err
				return nil
			}
			generationsTotal.WithLabelValues(string(origin), "ok").Inc()
			results[i] = cand
			return nil
		})
	}
	_ = g.Wait()

	candidates := make([]*strategy.Candidate, 0, len(origins))
	var errs []error
	for i := range origins {
		if results[i] != nil {
			candidates = append(candidates, results[i])
		} else if failures[i] != nil {
			errs = append(errs, failures[i])
		}
	}
	return candidates, errs
}
