// Package dbexec executes approved queries against the database and
// classifies execution failures so the workflow engine can decide between
// repairing and aborting. The engine depends only on the classification,
// never on the database technology.
package dbexec

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Executor runs a query and returns its result set or a classified error.
type Executor interface {
	Execute(ctx context.Context, query string) (*Result, error)
}

// Result holds an executed query's result set.
type Result struct {
	// Columns are the result column names in order.
	Columns []string `json:"columns"`

	// Rows are the stringified result values.
	Rows [][]string `json:"rows"`

	// Truncated indicates the row cap cut the result short.
	Truncated bool `json:"truncated,omitempty"`

	// Duration is how long execution took.
	Duration time.Duration `json:"duration"`
}

// RowCount returns the number of fetched rows.
func (r *Result) RowCount() int {
	return len(r.Rows)
}

// Summary returns a short human-readable description of the result.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d row", len(r.Rows))
	if len(r.Rows) != 1 {
		b.WriteString("s")
	}
	if len(r.Columns) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(r.Columns, ", "))
	}
	if r.Truncated {
		b.WriteString(", truncated")
	}
	return b.String()
}
