package dbexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   ErrorKind
		repairable bool
	}{
		{
			name:       "syntax error",
			err:        &pgconn.PgError{Code: "42601", Message: "syntax error at or near \"SELCT\""},
			wantKind:   KindSyntax,
			repairable: true,
		},
		{
			name:       "undefined table",
			err:        &pgconn.PgError{Code: "42P01", Message: "relation \"userz\" does not exist"},
			wantKind:   KindSemantic,
			repairable: true,
		},
		{
			name:       "undefined column",
			err:        &pgconn.PgError{Code: "42703", Message: "column \"nmae\" does not exist"},
			wantKind:   KindSemantic,
			repairable: true,
		},
		{
			name:       "division by zero",
			err:        &pgconn.PgError{Code: "22012", Message: "division by zero"},
			wantKind:   KindSemantic,
			repairable: true,
		},
		{
			name:       "connection failure class 08",
			err:        &pgconn.PgError{Code: "08006", Message: "connection failure"},
			wantKind:   KindConnectivity,
			repairable: false,
		},
		{
			name:       "server shutdown class 57",
			err:        &pgconn.PgError{Code: "57P01", Message: "terminating connection"},
			wantKind:   KindConnectivity,
			repairable: false,
		},
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("query: %w", context.DeadlineExceeded),
			wantKind:   KindConnectivity,
			repairable: false,
		},
		{
			name:       "network error",
			err:        &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			wantKind:   KindConnectivity,
			repairable: false,
		},
		{
			name:       "insufficient privilege",
			err:        &pgconn.PgError{Code: "42501", Message: "permission denied"},
			wantKind:   KindSemantic,
			repairable: true,
		},
		{
			name:       "unknown error",
			err:        errors.New("something odd"),
			wantKind:   KindOther,
			repairable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execErr := ClassifyError(tt.err)
			assert.Equal(t, tt.wantKind, execErr.Kind)
			assert.Equal(t, tt.repairable, execErr.Repairable())
		})
	}
}

func TestClassifyErrorIdempotent(t *testing.T) {
	orig := &ExecError{Kind: KindSyntax, Code: "42601", Err: errors.New("bad")}
	got := ClassifyError(fmt.Errorf("wrapped: %w", orig))
	assert.Same(t, orig, got)
}

func TestExecErrorMessage(t *testing.T) {
	err := ClassifyError(&pgconn.PgError{
		Code:    "42703",
		Message: `column "nmae" does not exist`,
		Hint:    `Perhaps you meant to reference the column "users.name".`,
	})
	assert.Contains(t, err.Message(), `column "nmae" does not exist`)
	assert.Contains(t, err.Message(), "users.name")

	plain := ClassifyError(errors.New("boom"))
	assert.Equal(t, "boom", plain.Message())
}

func TestExecErrorUnwrap(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42601", Message: "syntax error"}
	execErr := ClassifyError(pgErr)

	var target *pgconn.PgError
	require.True(t, errors.As(execErr, &target))
	assert.Equal(t, "42601", target.Code)
}

func TestResultSummary(t *testing.T) {
	r := &Result{
		Columns:  []string{"id", "name"},
		Rows:     [][]string{{"1", "ada"}, {"2", "grace"}},
		Duration: 10 * time.Millisecond,
	}
	assert.Equal(t, 2, r.RowCount())
	assert.Contains(t, r.Summary(), "2 rows")
	assert.Contains(t, r.Summary(), "id, name")

	r.Truncated = true
	assert.Contains(t, r.Summary(), "truncated")

	empty := &Result{Columns: []string{"id"}}
	assert.Contains(t, empty.Summary(), "0 rows")
}
