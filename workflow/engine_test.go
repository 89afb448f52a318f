package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querytrio/querytrio/dbexec"
	"github.com/querytrio/querytrio/dbexec/testutil"
	"github.com/querytrio/querytrio/schema"
	"github.com/querytrio/querytrio/strategy"
)

// stubGenerator scripts per-request generation behavior and records every
// request it receives.
type stubGenerator struct {
	mu       sync.Mutex
	requests []strategy.Request
	respond  func(req strategy.Request) (*strategy.Candidate, error)
}

func (g *stubGenerator) Generate(_ context.Context, req strategy.Request) (*strategy.Candidate, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.respond != nil {
		return g.respond(req)
	}
	return &strategy.Candidate{
		Text:        fmt.Sprintf("SELECT * FROM queries_%s LIMIT %d", req.Origin, req.RowLimit),
		Origin:      req.Origin,
		GeneratedAt: time.Now(),
	}, nil
}

func (g *stubGenerator) Requests() []strategy.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]strategy.Request, len(g.requests))
	copy(out, g.requests)
	return out
}

func newTestEngine(gen *stubGenerator, exec dbexec.Executor) *Engine {
	return NewEngine(gen, exec, schema.StaticSupplier("bots(id, name, active)"),
		WithDialect("postgresql"),
		WithRowLimit(5),
		WithMaxRepairAttempts(3),
	)
}

// toFeedback drives a fresh engine through question submission.
func toFeedback(t *testing.T, e *Engine, question string) *RoundResult {
	t.Helper()
	res, err := e.SubmitQuestion(context.Background(), question)
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingFeedback, res.Phase)
	return res
}

func syntaxErr() error {
	return &pgconn.PgError{Code: "42601", Message: "syntax error at or near \"SELCT\""}
}

func connectivityErr() error {
	return &pgconn.PgError{Code: "08006", Message: "connection failure"}
}

func TestSubmitQuestionProducesThreeCandidates(t *testing.T) {
	gen := &stubGenerator{}
	e := newTestEngine(gen, &testutil.MockExecutor{})

	res := toFeedback(t, e, "list active bot names")

	assert.Len(t, res.Snapshot.Candidates, 3)
	for _, origin := range strategy.AllOrigins() {
		cand, ok := res.Snapshot.Candidates[origin]
		require.True(t, ok, "missing candidate for %s", origin)
		assert.Equal(t, origin, cand.Origin)
		assert.Equal(t, 0, cand.Attempt)
		assert.NotEmpty(t, cand.Text)
	}

	// Each strategy saw the question and schema, with no feedback.
	reqs := gen.Requests()
	require.Len(t, reqs, 3)
	for _, req := range reqs {
		assert.Equal(t, "list active bot names", req.Question)
		assert.Equal(t, "bots(id, name, active)", req.SchemaText)
		assert.Empty(t, req.Feedback)
	}

	assert.Equal(t, PhaseAwaitingFeedback, e.Snapshot().Phase)
}

func TestSubmitQuestionEmptyQuestion(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})
	_, err := e.SubmitQuestion(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSubmitQuestionRejectedMidRound(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})
	toFeedback(t, e, "first question")

	_, err := e.SubmitQuestion(context.Background(), "second question")

	var phaseErr *InvalidPhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseAwaitingFeedback, phaseErr.Phase)
}

func TestPartialGenerationFailure(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			if req.Origin == strategy.OriginAdvanced {
				return nil, &strategy.GenerationError{Origin: req.Origin, Err: errors.New("model unavailable")}
			}
			return &strategy.Candidate{Text: "SELECT 1", Origin: req.Origin}, nil
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})

	res := toFeedback(t, e, "how many bots are there")

	assert.Len(t, res.Snapshot.Candidates, 2)
	assert.Contains(t, res.Snapshot.Candidates, strategy.OriginBasic)
	assert.Contains(t, res.Snapshot.Candidates, strategy.OriginOptimized)
	assert.NotContains(t, res.Snapshot.Candidates, strategy.OriginAdvanced)
}

func TestAllGenerationsFail(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			return nil, &strategy.GenerationError{Origin: req.Origin, Err: errors.New("model unavailable")}
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})

	res, err := e.SubmitQuestion(context.Background(), "anything")

	var exhausted *GenerationExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Errs, 3)

	require.NotNil(t, res)
	assert.Equal(t, PhaseFailed, res.Phase)

	// Session has auto-reset and recorded the failed round.
	snap := e.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Candidates)
	require.Len(t, snap.History, 1)
	assert.Equal(t, OutcomeFailed, snap.History[0].Outcome)

	// A new question is accepted after the reset.
	gen.respond = nil
	toFeedback(t, e, "try again")
}

func TestExecuteSuccess(t *testing.T) {
	gen := &stubGenerator{}
	exec := &testutil.MockExecutor{
		Results: []*dbexec.Result{{
			Columns: []string{"name"},
			Rows:    [][]string{{"alpha"}, {"beta"}},
		}},
	}
	e := newTestEngine(gen, exec)
	toFeedback(t, e, "list active bot names")

	res, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginOptimized))
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, res.Phase)
	require.NotNil(t, res.Executed)
	assert.Equal(t, strategy.OriginOptimized, res.Executed.Origin)
	require.NotNil(t, res.Result)
	assert.Equal(t, 2, res.Result.RowCount())

	require.NotNil(t, res.Turn)
	assert.Equal(t, OutcomeDone, res.Turn.Outcome)
	assert.Equal(t, strategy.OriginOptimized, res.Turn.Executed.Origin)
	assert.Contains(t, res.Turn.ResultSummary, "2 rows")

	// Auto-reset: idle with an empty candidate map, history intact.
	snap := e.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Candidates)
	require.Len(t, snap.History, 1)
	assert.Equal(t, 0, snap.History[0].Ordinal)

	// The executed text is the optimized candidate's.
	require.Len(t, exec.Queries(), 1)
	assert.Contains(t, exec.Queries()[0], "optimized")
}

func TestExecuteUnknownOrigin(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			if req.Origin == strategy.OriginAdvanced {
				return nil, &strategy.GenerationError{Origin: req.Origin, Err: errors.New("down")}
			}
			return &strategy.Candidate{Text: "SELECT 1", Origin: req.Origin}, nil
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})
	toFeedback(t, e, "question")

	_, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginAdvanced))

	var unknownErr *UnknownOriginError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, strategy.OriginAdvanced, unknownErr.Origin)

	// The round is still awaiting feedback; a valid decision proceeds.
	assert.Equal(t, PhaseAwaitingFeedback, e.Snapshot().Phase)
	res, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))
	require.NoError(t, err)
	assert.Equal(t, PhaseDone, res.Phase)
}

func TestExecuteUnrecognizedOrigin(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})
	toFeedback(t, e, "question")

	// An origin outside the enum is classified the same as a valid origin
	// with no candidate: the caller referenced something that isn't there.
	_, err := e.SubmitDecision(context.Background(), Execute(strategy.Origin("mystery")))

	var unknownErr *UnknownOriginError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, strategy.Origin("mystery"), unknownErr.Origin)
	assert.Equal(t, PhaseAwaitingFeedback, e.Snapshot().Phase)
}

func TestDecisionRejectedWhileIdle(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})

	_, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))

	var phaseErr *InvalidPhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseIdle, phaseErr.Phase)
}

func TestRepairSucceedsFirstAttempt(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			if req.Feedback != "" {
				return &strategy.Candidate{Text: "SELECT name FROM bots", Origin: req.Origin}, nil
			}
			return &strategy.Candidate{Text: "SELCT name FROM bots", Origin: req.Origin}, nil
		},
	}
	exec := &testutil.MockExecutor{
		Errs: []error{syntaxErr(), nil},
		Results: []*dbexec.Result{
			nil,
			{Columns: []string{"name"}, Rows: [][]string{{"alpha"}}},
		},
	}
	e := newTestEngine(gen, exec)
	toFeedback(t, e, "list bot names")

	res, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))
	require.NoError(t, err)

	assert.Equal(t, PhaseDone, res.Phase)
	assert.Equal(t, "SELECT name FROM bots", res.Executed.Text)
	assert.Equal(t, 1, res.Executed.Attempt)

	// The repair regeneration carried the database error message.
	reqs := gen.Requests()
	repairReq := reqs[len(reqs)-1]
	assert.Equal(t, strategy.OriginBasic, repairReq.Origin)
	assert.Contains(t, repairReq.Feedback, "syntax error")
	assert.Contains(t, repairReq.Feedback, "SELCT name FROM bots")

	assert.Equal(t, 2, exec.CallCount())
}

func TestRepairExhausted(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			return &strategy.Candidate{Text: "SELCT broken", Origin: req.Origin}, nil
		},
	}
	exec := &testutil.MockExecutor{
		ExecuteFunc: func(_ context.Context, _ string) (*dbexec.Result, error) {
			return nil, syntaxErr()
		},
	}
	e := newTestEngine(gen, exec)
	toFeedback(t, e, "question")

	res, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))

	var exhausted *RepairExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, strategy.OriginBasic, exhausted.Origin)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, exhausted.LastErr.Error(), "syntax error")

	require.NotNil(t, res)
	assert.Equal(t, PhaseFailed, res.Phase)

	// Initial execution plus exactly max_attempts repair executions.
	assert.Equal(t, 4, exec.CallCount())

	snap := e.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	require.Len(t, snap.History, 1)
	assert.Equal(t, OutcomeFailed, snap.History[0].Outcome)
	assert.Nil(t, snap.History[0].Executed)
}

func TestConnectivityErrorIsFatalOnExecute(t *testing.T) {
	exec := &testutil.MockExecutor{Errs: []error{connectivityErr()}}
	e := newTestEngine(&stubGenerator{}, exec)
	toFeedback(t, e, "question")

	res, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))

	var execErr *dbexec.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, dbexec.KindConnectivity, execErr.Kind)

	require.NotNil(t, res)
	assert.Equal(t, PhaseFailed, res.Phase)

	// No repair was attempted.
	assert.Equal(t, 1, exec.CallCount())
	assert.Equal(t, PhaseIdle, e.Snapshot().Phase)
}

func TestConnectivityErrorIsFatalMidRepair(t *testing.T) {
	exec := &testutil.MockExecutor{
		Errs: []error{syntaxErr(), connectivityErr()},
	}
	e := newTestEngine(&stubGenerator{}, exec)
	toFeedback(t, e, "question")

	res, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))

	var execErr *dbexec.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, dbexec.KindConnectivity, execErr.Kind)
	assert.Equal(t, PhaseFailed, res.Phase)

	// One initial execution, one repair execution, no further attempts.
	assert.Equal(t, 2, exec.CallCount())
}

func TestRegenerateTargetedLeavesOthersUntouched(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			text := fmt.Sprintf("SELECT * FROM queries_%s", req.Origin)
			if req.Feedback != "" {
				text = fmt.Sprintf("SELECT * FROM users -- %s", req.Origin)
			}
			return &strategy.Candidate{Text: text, Origin: req.Origin}, nil
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})
	first := toFeedback(t, e, "list users")

	basicBefore := first.Snapshot.Candidates[strategy.OriginBasic]
	optimizedBefore := first.Snapshot.Candidates[strategy.OriginOptimized]

	res, err := e.SubmitDecision(context.Background(),
		Regenerate("use the users table instead", strategy.OriginAdvanced))
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingFeedback, res.Phase)

	// Only the advanced candidate changed.
	after := res.Snapshot.Candidates
	assert.Equal(t, basicBefore, after[strategy.OriginBasic])
	assert.Equal(t, optimizedBefore, after[strategy.OriginOptimized])
	assert.Contains(t, after[strategy.OriginAdvanced].Text, "users")

	// Only the advanced strategy was re-invoked, with the feedback.
	reqs := gen.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, strategy.OriginAdvanced, reqs[3].Origin)
	assert.Equal(t, "use the users table instead", reqs[3].Feedback)
}

func TestRegenerateAllOrigins(t *testing.T) {
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			text := "SELECT v1"
			if req.Feedback != "" {
				text = "SELECT v2"
			}
			return &strategy.Candidate{Text: text, Origin: req.Origin}, nil
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})
	toFeedback(t, e, "question")

	res, err := e.SubmitDecision(context.Background(), Regenerate("add a limit", ""))
	require.NoError(t, err)

	assert.Len(t, res.Snapshot.Candidates, 3)
	for origin, cand := range res.Snapshot.Candidates {
		assert.Equal(t, "SELECT v2", cand.Text, "origin %s not regenerated", origin)
	}
	assert.Len(t, gen.Requests(), 6)
}

func TestRegenerateFailureRetainsPriorCandidate(t *testing.T) {
	fail := false
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			if fail {
				return nil, &strategy.GenerationError{Origin: req.Origin, Err: errors.New("down")}
			}
			return &strategy.Candidate{Text: "SELECT original", Origin: req.Origin}, nil
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})
	toFeedback(t, e, "question")

	fail = true
	res, err := e.SubmitDecision(context.Background(), Regenerate("feedback", strategy.OriginBasic))
	require.NoError(t, err)

	assert.Equal(t, PhaseAwaitingFeedback, res.Phase)
	assert.Equal(t, "SELECT original", res.Snapshot.Candidates[strategy.OriginBasic].Text)
}

func TestCancel(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})
	toFeedback(t, e, "never mind")

	res, err := e.SubmitDecision(context.Background(), Cancel())
	require.NoError(t, err)

	assert.Equal(t, PhaseCancelled, res.Phase)
	require.NotNil(t, res.Turn)
	assert.Equal(t, OutcomeCancelled, res.Turn.Outcome)
	assert.Nil(t, res.Turn.Executed)

	snap := e.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.Candidates)
	require.Len(t, snap.History, 1)
}

func TestNewQuestionClearsPriorCandidates(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})
	toFeedback(t, e, "first")
	_, err := e.SubmitDecision(context.Background(), Cancel())
	require.NoError(t, err)

	res := toFeedback(t, e, "second")

	assert.Equal(t, "second", res.Snapshot.Question)
	for _, cand := range res.Snapshot.Candidates {
		assert.Equal(t, 0, cand.Attempt)
	}
	require.Len(t, res.Snapshot.History, 1)
}

func TestBusyRejectsOverlappingDecision(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			once.Do(func() { close(started) })
			<-proceed
			return &strategy.Candidate{Text: "SELECT 1", Origin: req.Origin}, nil
		},
	}
	e := newTestEngine(gen, &testutil.MockExecutor{})

	done := make(chan error, 1)
	go func() {
		_, err := e.SubmitQuestion(context.Background(), "slow question")
		done <- err
	}()

	<-started
	_, err := e.SubmitDecision(context.Background(), Cancel())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.SubmitQuestion(context.Background(), "another")
	assert.ErrorIs(t, err, ErrBusy)

	close(proceed)
	require.NoError(t, <-done)
	assert.Equal(t, PhaseAwaitingFeedback, e.Snapshot().Phase)
}

func TestDecisionValidate(t *testing.T) {
	tests := []struct {
		name     string
		decision Decision
		wantErr  bool
	}{
		{"execute valid", Execute(strategy.OriginBasic), false},
		{"execute empty origin", Execute(""), true},
		// Origins outside the enum pass validation; the engine's candidate
		// lookup classifies them as unknown origins.
		{"execute unrecognized origin", Execute(strategy.Origin("mystery")), false},
		{"regenerate all", Regenerate("feedback", ""), false},
		{"regenerate targeted", Regenerate("feedback", strategy.OriginAdvanced), false},
		{"regenerate no feedback", Regenerate("", strategy.OriginBasic), true},
		{"regenerate bad target", Regenerate("feedback", strategy.Origin("mystery")), true},
		{"cancel", Cancel(), false},
		{"unknown kind", Decision{Kind: DecisionKind("shrug")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEngine(&stubGenerator{}, &testutil.MockExecutor{})
	toFeedback(t, e, "question")

	snap := e.Snapshot()
	cand := snap.Candidates[strategy.OriginBasic]
	cand.Text = "tampered"
	snap.Candidates[strategy.OriginBasic] = cand

	fresh := e.Snapshot()
	assert.False(t, strings.Contains(fresh.Candidates[strategy.OriginBasic].Text, "tampered"))
}

// mutableSchema lets a test swap the schema document mid-round, the way
// the file watcher does in production.
type mutableSchema struct {
	mu   sync.Mutex
	text string
}

func (s *mutableSchema) SchemaText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *mutableSchema) set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

func TestRoundPinsSchemaAcrossReload(t *testing.T) {
	supplier := &mutableSchema{text: "bots(id, name)"}
	gen := &stubGenerator{
		respond: func(req strategy.Request) (*strategy.Candidate, error) {
			if req.Feedback != "" {
				return &strategy.Candidate{Text: "SELECT name FROM bots", Origin: req.Origin}, nil
			}
			return &strategy.Candidate{Text: "SELCT name FROM bots", Origin: req.Origin}, nil
		},
	}
	exec := &testutil.MockExecutor{
		Errs: []error{syntaxErr(), nil},
		Results: []*dbexec.Result{
			nil,
			{Columns: []string{"name"}, Rows: [][]string{{"alpha"}}},
		},
	}
	e := NewEngine(gen, exec, supplier,
		WithDialect("postgresql"),
		WithRowLimit(5),
		WithMaxRepairAttempts(3),
	)

	toFeedback(t, e, "list bot names")

	// The document is reloaded while the round awaits feedback.
	supplier.set("bots(id, name, active, created_at)")

	_, err := e.SubmitDecision(context.Background(), Execute(strategy.OriginBasic))
	require.NoError(t, err)

	// Every generation in the round, repair included, saw the schema
	// pinned at round start.
	for _, req := range gen.Requests() {
		assert.Equal(t, "bots(id, name)", req.SchemaText)
	}

	// The next round picks up the reloaded document.
	toFeedback(t, e, "list active bots")
	reqs := gen.Requests()
	assert.Equal(t, "bots(id, name, active, created_at)", reqs[len(reqs)-1].SchemaText)
}
