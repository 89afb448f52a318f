package dbexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgExecutor runs queries against a Postgres connection pool.
type PgExecutor struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	maxRows      int
	logger       *slog.Logger
}

// PgOption configures a PgExecutor.
type PgOption func(*PgExecutor)

// WithQueryTimeout sets the per-query deadline.
func WithQueryTimeout(d time.Duration) PgOption {
	return func(e *PgExecutor) {
		e.queryTimeout = d
	}
}

// WithMaxRows caps how many rows a result may carry before truncation.
func WithMaxRows(n int) PgOption {
	return func(e *PgExecutor) {
		e.maxRows = n
	}
}

// WithPgLogger sets the logger.
func WithPgLogger(logger *slog.Logger) PgOption {
	return func(e *PgExecutor) {
		e.logger = logger
	}
}

// NewPgExecutor connects a pool to the given database URL.
func NewPgExecutor(ctx context.Context, databaseURL string, opts ...PgOption) (*PgExecutor, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	e := &PgExecutor{
		pool:         pool,
		queryTimeout: 30 * time.Second,
		maxRows:      500,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Ping verifies the database is reachable.
func (e *PgExecutor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close releases the pool.
func (e *PgExecutor) Close() {
	e.pool.Close()
}

// Execute runs the query and collects up to maxRows rows, with every value
// rendered as text. Failures come back classified as *ExecError.
func (e *PgExecutor) Execute(ctx context.Context, query string) (*Result, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if e.maxRows > 0 && len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, ClassifyError(err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = renderValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ClassifyError(err)
	}
	result.Duration = time.Since(start)

	e.logger.Debug("query executed",
		"rows", len(result.Rows),
		"truncated", result.Truncated,
		"duration", result.Duration)

	return result, nil
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}
