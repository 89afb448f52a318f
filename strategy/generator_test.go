package strategy_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querytrio/querytrio/llm"
	"github.com/querytrio/querytrio/llm/testutil"
	"github.com/querytrio/querytrio/strategy"
)

func testRequest(origin strategy.Origin) strategy.Request {
	return strategy.Request{
		Origin:     origin,
		Question:   "list active bot names",
		SchemaText: "bots(id, name, active)",
		Dialect:    "postgresql",
		RowLimit:   5,
	}
}

func TestGenerator_Generate_Basic(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{
			{Content: "```sql\nSELECT name FROM bots WHERE active LIMIT 5;\n```", Model: "test-model"},
		},
	}
	gen := strategy.NewGenerator(mock)

	candidate, err := gen.Generate(context.Background(), testRequest(strategy.OriginBasic))
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM bots WHERE active LIMIT 5;", candidate.Text)
	assert.Equal(t, strategy.OriginBasic, candidate.Origin)
	assert.Empty(t, candidate.Notes)
	assert.Equal(t, 0, candidate.Attempt)

	// The basic strategy runs on the query capability tier.
	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "query", reqs[0].Capability)
}

func TestGenerator_Generate_AdvancedParsesSuggestions(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{
			{
				Content: "```json\n{\"query\": \"SELECT name FROM bots WHERE active\", \"suggestions\": [\"add index on bots.active\"]}\n```",
				Model:   "smart-model",
			},
		},
	}
	gen := strategy.NewGenerator(mock)

	candidate, err := gen.Generate(context.Background(), testRequest(strategy.OriginAdvanced))
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM bots WHERE active", candidate.Text)
	assert.Equal(t, []string{"add index on bots.active"}, candidate.Notes)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "smart", reqs[0].Capability)
}

func TestGenerator_Generate_AdvancedFallsBackToPlainSQL(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{
			{Content: "```sql\nSELECT 1\n```", Model: "smart-model"},
		},
	}
	gen := strategy.NewGenerator(mock)

	candidate, err := gen.Generate(context.Background(), testRequest(strategy.OriginAdvanced))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", candidate.Text)
	assert.Empty(t, candidate.Notes)
}

func TestGenerator_Generate_FeedbackReachesPrompt(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{
			{Content: "SELECT name FROM users", Model: "test-model"},
		},
	}
	gen := strategy.NewGenerator(mock)

	req := testRequest(strategy.OriginOptimized)
	req.Feedback = "use the users table instead"
	_, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Contains(t, reqs[0].Messages[1].Content, "use the users table instead")
	assert.Contains(t, reqs[0].Messages[0].Content, "bots(id, name, active)")
}

func TestGenerator_Generate_CapabilityFailure(t *testing.T) {
	mock := &testutil.MockCompleter{Err: errors.New("connection refused")}
	gen := strategy.NewGenerator(mock)

	_, err := gen.Generate(context.Background(), testRequest(strategy.OriginBasic))
	require.Error(t, err)

	var genErr *strategy.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, strategy.OriginBasic, genErr.Origin)
}

func TestGenerator_Generate_EmptyResponse(t *testing.T) {
	mock := &testutil.MockCompleter{
		Responses: []*llm.Response{{Content: "   ", Model: "test-model"}},
	}
	gen := strategy.NewGenerator(mock)

	_, err := gen.Generate(context.Background(), testRequest(strategy.OriginBasic))
	var genErr *strategy.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Error(), "empty response")
}

func TestSystemPrompt_PerStrategy(t *testing.T) {
	params := strategy.PromptParams{
		Dialect:    "postgresql",
		RowLimit:   5,
		SchemaText: "bots(id, name)",
	}

	for _, origin := range strategy.AllOrigins() {
		prompt := strategy.SystemPrompt(origin, params)
		assert.Contains(t, prompt, "postgresql", "origin %s", origin)
		assert.Contains(t, prompt, "bots(id, name)", "origin %s", origin)
		assert.Contains(t, prompt, "5", "origin %s", origin)
	}

	// Only the advanced strategy asks for suggestions.
	assert.Contains(t, strategy.SystemPrompt(strategy.OriginAdvanced, params), "suggestions")
	assert.NotContains(t, strategy.SystemPrompt(strategy.OriginBasic, params), "suggestions")
	assert.NotContains(t, strategy.SystemPrompt(strategy.OriginOptimized, params), "suggestions")
}

func TestUserPrompt(t *testing.T) {
	assert.Equal(t, "Question: q", strategy.UserPrompt("q", ""))

	withFeedback := strategy.UserPrompt("q", "fix the join")
	assert.True(t, strings.HasPrefix(withFeedback, "Question: q"))
	assert.Contains(t, withFeedback, "fix the join")
}
