// Package testutil provides a scripted Executor for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/querytrio/querytrio/dbexec"
)

// MockExecutor records queries and replays scripted results.
type MockExecutor struct {
	mu      sync.Mutex
	queries []string

	// Results are returned in order; when exhausted the last entry repeats.
	Results []*dbexec.Result

	// Errs are paired with Results by call index; a nil entry means success.
	Errs []error

	// ExecuteFunc, when set, overrides the scripted behavior.
	ExecuteFunc func(ctx context.Context, query string) (*dbexec.Result, error)
}

// Execute implements dbexec.Executor.
func (m *MockExecutor) Execute(ctx context.Context, query string) (*dbexec.Result, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	idx := len(m.queries) - 1
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, query)
	}

	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return nil, m.Errs[idx]
	}

	if len(m.Results) == 0 {
		return &dbexec.Result{Columns: []string{"ok"}, Rows: [][]string{{"1"}}}, nil
	}
	if idx >= len(m.Results) {
		idx = len(m.Results) - 1
	}
	return m.Results[idx], nil
}

// Queries returns a copy of the queries executed so far.
func (m *MockExecutor) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// CallCount returns how many times Execute was called.
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// Reset clears recorded queries.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = nil
}
