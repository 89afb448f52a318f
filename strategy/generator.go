package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/querytrio/querytrio/llm"
)

// GenerationError reports a capability failure during candidate generation.
// It is not retried here; the workflow engine decides whether the round can
// proceed with fewer candidates.
type GenerationError struct {
	Origin Origin
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s candidate: %v", e.Origin, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Request carries the inputs for one candidate generation.
type Request struct {
	// Origin selects the strategy-specific prompt template.
	Origin Origin

	// Question is the natural-language question.
	Question string

	// SchemaText is the entity-relationship document.
	SchemaText string

	// Feedback is free-form guidance folded into the prompt; empty means
	// no feedback. Human feedback and repair-loop error messages both
	// arrive through this channel.
	Feedback string

	// Dialect is the SQL dialect name.
	Dialect string

	// RowLimit bounds the result size of generated queries.
	RowLimit int
}

// Generator produces query candidates by invoking the completion capability
// with strategy-specific prompts.
type Generator struct {
	completer   llm.Completer
	temperature float64
	logger      *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTemperature sets the sampling temperature for generation requests.
func WithTemperature(temp float64) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temp
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// NewGenerator creates a generator backed by the given completer.
func NewGenerator(completer llm.Completer, opts ...GeneratorOption) *Generator {
	g := &Generator{
		completer:   completer,
		temperature: 0.2,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate produces one candidate for the requested origin.
// Returns a *GenerationError on capability failure or malformed output.
func (g *Generator) Generate(ctx context.Context, req Request) (*Candidate, error) {
	if !req.Origin.IsValid() {
		return nil, &GenerationError{Origin: req.Origin, Err: fmt.Errorf("unknown origin %q", req.Origin)}
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, &GenerationError{Origin: req.Origin, Err: fmt.Errorf("question is empty")}
	}

	params := PromptParams{
		Dialect:    req.Dialect,
		RowLimit:   req.RowLimit,
		SchemaText: req.SchemaText,
	}

	temp := g.temperature
	resp, err := g.completer.Complete(ctx, llm.Request{
		Capability: req.Origin.Capability().String(),
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt(req.Origin, params)},
			{Role: "user", Content: UserPrompt(req.Question, req.Feedback)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, &GenerationError{Origin: req.Origin, Err: err}
	}

	candidate, err := g.parseResponse(req.Origin, resp)
	if err != nil {
		return nil, &GenerationError{Origin: req.Origin, Err: err}
	}

	g.logger.Debug("Generated candidate",
		"origin", req.Origin,
		"model", resp.Model,
		"notes", len(candidate.Notes))

	return candidate, nil
}

// parseResponse extracts the candidate from the model output.
// The advanced strategy answers with JSON carrying suggestions; the others
// answer with a fenced SQL statement.
func (g *Generator) parseResponse(origin Origin, resp *llm.Response) (*Candidate, error) {
	candidate := &Candidate{
		Origin:      origin,
		Model:       resp.Model,
		GeneratedAt: time.Now().UTC(),
	}

	if origin == OriginAdvanced {
		if raw := llm.ExtractJSON(resp.Content); raw != "" {
			var out struct {
				Query       string   `json:"query"`
				Suggestions []string `json:"suggestions"`
			}
			if err := json.Unmarshal([]byte(raw), &out); err == nil && strings.TrimSpace(out.Query) != "" {
				candidate.Text = strings.TrimSpace(out.Query)
				candidate.Notes = out.Suggestions
				return candidate, nil
			}
		}
		// Some models ignore the JSON instruction; fall back to the plain
		// SQL shape and forgo suggestions.
	}

	text := llm.ExtractSQL(resp.Content)
	if text == "" {
		return nil, fmt.Errorf("empty response from model %s", resp.Model)
	}

	candidate.Text = text
	return candidate, nil
}
