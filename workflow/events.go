package workflow

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/querytrio/querytrio/strategy"
)

// Round lifecycle events are published on per-event-type subjects under
// "<prefix>.rounds.<action>", enabling subject-based routing on the
// consumer side. Publishing is best-effort: a failed publish is logged
// and never affects the round.

// RoundStartedEvent is published when a question opens a new round.
type RoundStartedEvent struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	StartedAt time.Time `json:"started_at"`
}

// CandidatesReadyEvent is published when generation completes and the
// round reaches the feedback phase.
type CandidatesReadyEvent struct {
	SessionID string            `json:"session_id"`
	Origins   []strategy.Origin `json:"origins"`
	Regen     bool              `json:"regen,omitempty"`
}

// RoundCompletedEvent is published when a round reaches a terminal phase.
type RoundCompletedEvent struct {
	SessionID     string          `json:"session_id"`
	Outcome       Outcome         `json:"outcome"`
	Origin        strategy.Origin `json:"origin,omitempty"`
	RepairAttempt int             `json:"repair_attempt,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Subject suffixes under the configured prefix.
const (
	subjectRoundStarted    = "rounds.started"
	subjectCandidatesReady = "rounds.candidates_ready"
	subjectRoundCompleted  = "rounds.completed"
)

// Publisher emits round lifecycle events to NATS. A nil Publisher is
// valid and publishes nothing, so the engine works without a broker.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher wraps a NATS connection. The prefix namespaces all
// subjects, typically "querytrio".
func NewPublisher(conn *nats.Conn, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

func (p *Publisher) publish(suffix string, event any) {
	if p == nil || p.conn == nil {
		return
	}
	subject := p.prefix + "." + suffix
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshaling event failed", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("publishing event failed", "subject", subject, "error", err)
	}
}

func (p *Publisher) roundStarted(event RoundStartedEvent) {
	p.publish(subjectRoundStarted, event)
}

func (p *Publisher) candidatesReady(event CandidatesReadyEvent) {
	p.publish(subjectCandidatesReady, event)
}

func (p *Publisher) roundCompleted(event RoundCompletedEvent) {
	p.publish(subjectRoundCompleted, event)
}
