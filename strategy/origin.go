// Package strategy implements the three independent query generation
// strategies and the candidate generator that invokes them.
package strategy

import (
	"time"

	"github.com/querytrio/querytrio/model"
)

// Origin identifies which generation strategy produced a candidate.
type Origin string

const (
	// OriginBasic is the straightforward translation strategy.
	OriginBasic Origin = "basic"
	// OriginOptimized is the performance-minded strategy.
	OriginOptimized Origin = "optimized"
	// OriginAdvanced is the deep-reasoning strategy; the only one that
	// also produces structural-improvement notes.
	OriginAdvanced Origin = "advanced"
)

// AllOrigins lists every strategy in presentation order.
func AllOrigins() []Origin {
	return []Origin{OriginBasic, OriginOptimized, OriginAdvanced}
}

// IsValid checks if an origin string is a known strategy.
func (o Origin) IsValid() bool {
	switch o {
	case OriginBasic, OriginOptimized, OriginAdvanced:
		return true
	}
	return false
}

// String returns the string representation of the origin.
func (o Origin) String() string {
	return string(o)
}

// ParseOrigin converts a string to an Origin, returning empty for invalid
// values.
func ParseOrigin(s string) Origin {
	o := Origin(s)
	if o.IsValid() {
		return o
	}
	return ""
}

// Capability returns the model capability used by this strategy.
// The advanced strategy runs on the smart tier; the others on the query tier.
func (o Origin) Capability() model.Capability {
	if o == OriginAdvanced {
		return model.CapabilitySmart
	}
	return model.CapabilityQuery
}

// Candidate is one generated query attributable to exactly one strategy.
// Candidates are immutable; regeneration supersedes them with a new value.
type Candidate struct {
	// Text is the query string.
	Text string `json:"text"`

	// Origin identifies the strategy that produced this candidate.
	Origin Origin `json:"origin"`

	// Notes holds optional structural-improvement suggestions.
	// Only the advanced strategy populates this; notes never affect
	// execution.
	Notes []string `json:"notes,omitempty"`

	// Attempt counts repair attempts consumed for this candidate.
	Attempt int `json:"attempt"`

	// Model is the model that produced the text, for provenance display.
	Model string `json:"model,omitempty"`

	// GeneratedAt is when the candidate was produced.
	GeneratedAt time.Time `json:"generated_at"`
}
