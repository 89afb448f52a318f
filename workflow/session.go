package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/querytrio/querytrio/strategy"
)

// Outcome records how a round ended.
type Outcome string

const (
	// OutcomeDone means the round executed a candidate successfully.
	OutcomeDone Outcome = "done"
	// OutcomeCancelled means the human abandoned the round.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed means the round ended on an unrecoverable error.
	OutcomeFailed Outcome = "failed"
)

// TurnRecord is an immutable history entry for one completed round.
type TurnRecord struct {
	// Ordinal is the record's position in the session history, starting
	// at zero.
	Ordinal int `json:"ordinal"`

	// Question is the round's natural-language question.
	Question string `json:"question"`

	// Outcome records how the round ended.
	Outcome Outcome `json:"outcome"`

	// Executed is the candidate that ran, nil when the round was
	// cancelled or failed before a clean execution.
	Executed *strategy.Candidate `json:"executed,omitempty"`

	// ResultSummary is a short description of the execution result.
	ResultSummary string `json:"result_summary,omitempty"`

	// ErrorMessage carries the final error text for failed rounds.
	ErrorMessage string `json:"error_message,omitempty"`

	// CompletedAt is when the record was appended.
	CompletedAt time.Time `json:"completed_at"`
}

// session holds the state of one conversation. It is exclusively owned
// by the Engine; external callers receive copies via Snapshot.
type session struct {
	id         string
	question   string
	schemaText string
	candidates map[strategy.Origin]*strategy.Candidate
	feedback   string
	phase      Phase
	history    []TurnRecord
	createdAt  time.Time
}

func newSession() *session {
	return &session{
		id:         uuid.NewString(),
		candidates: make(map[strategy.Origin]*strategy.Candidate),
		phase:      PhaseIdle,
		createdAt:  time.Now(),
	}
}

// transition moves the session to the target phase. Callers guard with
// CanTransitionTo; transition panics on a violation because an invalid
// internal transition is a programming error, never caller input.
func (s *session) transition(target Phase) {
	if !s.phase.CanTransitionTo(target) {
		panic("workflow: invalid transition " + s.phase.String() + " -> " + target.String())
	}
	s.phase = target
}

// beginRound clears prior round state and installs the new question.
// The schema text is pinned here so every generation in the round, repair
// attempts included, works against the same snapshot even if the backing
// document is reloaded mid-round.
func (s *session) beginRound(question, schemaText string) {
	s.question = question
	s.schemaText = schemaText
	s.candidates = make(map[strategy.Origin]*strategy.Candidate)
	s.feedback = ""
}

// appendTurn records a completed round and returns the new record.
func (s *session) appendTurn(outcome Outcome, executed *strategy.Candidate, summary, errMsg string) TurnRecord {
	rec := TurnRecord{
		Ordinal:       len(s.history),
		Question:      s.question,
		Outcome:       outcome,
		Executed:      executed,
		ResultSummary: summary,
		ErrorMessage:  errMsg,
		CompletedAt:   time.Now(),
	}
	s.history = append(s.history, rec)
	return rec
}

// reset clears round state and returns the session to idle. History
// survives: only the active round is discarded.
func (s *session) reset() {
	s.question = ""
	s.schemaText = ""
	s.candidates = make(map[strategy.Origin]*strategy.Candidate)
	s.feedback = ""
	s.phase = PhaseIdle
}

// Snapshot is the caller-facing view of a session. All fields are copies;
// mutating a snapshot never affects the session.
type Snapshot struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// Phase is the current workflow phase.
	Phase Phase `json:"phase"`

	// Question is the active question, empty when idle.
	Question string `json:"question,omitempty"`

	// Candidates maps origin to the latest candidate for that origin.
	Candidates map[strategy.Origin]strategy.Candidate `json:"candidates,omitempty"`

	// History is the ordered sequence of completed rounds.
	History []TurnRecord `json:"history,omitempty"`
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Phase:     s.phase,
		Question:  s.question,
	}
	if len(s.candidates) > 0 {
		snap.Candidates = make(map[strategy.Origin]strategy.Candidate, len(s.candidates))
		for origin, cand := range s.candidates {
			snap.Candidates[origin] = *cand
		}
	}
	if len(s.history) > 0 {
		snap.History = make([]TurnRecord, len(s.history))
		copy(snap.History, s.history)
	}
	return snap
}
