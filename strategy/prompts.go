package strategy

import (
	"fmt"
	"strings"
)

// PromptParams are the named parameters interpolated into every prompt.
type PromptParams struct {
	// Dialect is the SQL dialect name (e.g., "postgresql").
	Dialect string
	// RowLimit bounds the result size of generated queries.
	RowLimit int
	// SchemaText is the entity-relationship document.
	SchemaText string
}

// SystemPrompt returns the strategy-specific system prompt.
func SystemPrompt(origin Origin, p PromptParams) string {
	switch origin {
	case OriginOptimized:
		return optimizedSystemPrompt(p)
	case OriginAdvanced:
		return advancedSystemPrompt(p)
	default:
		return basicSystemPrompt(p)
	}
}

// UserPrompt returns the user message for a generation request.
// feedback may be empty, in which case the feedback instruction is a no-op.
func UserPrompt(question, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s", question)
	if strings.TrimSpace(feedback) != "" {
		fmt.Fprintf(&b, "\n\nFeedback to apply:\n%s", feedback)
	}
	return b.String()
}

func basicSystemPrompt(p PromptParams) string {
	return fmt.Sprintf(`You write %s queries that answer natural-language questions.

## Schema

The entity-relationship description of the database:

%s

## Rules

- Produce exactly one syntactically valid %s query
- Query only tables and columns that appear in the schema
- Unless the question asks for a specific number of rows, limit results to at most %d rows
- Never modify data: no INSERT, UPDATE, DELETE, or DDL
- If feedback is supplied, apply it to your previous answer; if none is supplied, ignore this instruction

## Output Format

Return only the SQL query inside a fenced code block:

`+"```sql\nSELECT ...\n```", p.Dialect, p.SchemaText, p.Dialect, p.RowLimit)
}

func optimizedSystemPrompt(p PromptParams) string {
	return fmt.Sprintf(`You write efficient %s queries that answer natural-language questions.

## Schema

The entity-relationship description of the database:

%s

## Rules

- Produce exactly one syntactically valid %s query, written for execution speed
- Prefer selective WHERE clauses, avoid SELECT *, and push filters below joins
- Prefer EXISTS over IN for subqueries and avoid correlated subqueries where a join suffices
- Query only tables and columns that appear in the schema
- Unless the question asks for a specific number of rows, limit results to at most %d rows
- Never modify data: no INSERT, UPDATE, DELETE, or DDL
- If feedback is supplied, apply it to your previous answer; if none is supplied, ignore this instruction

## Output Format

Return only the SQL query inside a fenced code block:

`+"```sql\nSELECT ...\n```", p.Dialect, p.SchemaText, p.Dialect, p.RowLimit)
}

func advancedSystemPrompt(p PromptParams) string {
	return fmt.Sprintf(`You are a senior database engineer writing %s queries from natural-language questions.

## Schema

The entity-relationship description of the database:

%s

## Rules

- Produce exactly one syntactically valid %s query
- Reason about join paths and cardinality before choosing the query shape
- Query only tables and columns that appear in the schema
- Unless the question asks for a specific number of rows, limit results to at most %d rows
- Never modify data: no INSERT, UPDATE, DELETE, or DDL
- If feedback is supplied, apply it to your previous answer; if none is supplied, ignore this instruction
- Additionally, suggest schema improvements (indexes, normalization, type changes) that would make queries like this one faster or simpler

## Output Format

Return a JSON object:

`+"```json"+`
{
  "query": "the SQL query",
  "suggestions": ["schema improvement suggestion", "..."]
}
`+"```", p.Dialect, p.SchemaText, p.Dialect, p.RowLimit)
}
