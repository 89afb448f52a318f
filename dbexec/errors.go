package dbexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies an execution failure.
type ErrorKind string

const (
	// KindSyntax means the query text itself is malformed.
	KindSyntax ErrorKind = "syntax"
	// KindSemantic means the query is well-formed but wrong for this
	// database: unknown tables or columns, type mismatches, and so on.
	KindSemantic ErrorKind = "semantic"
	// KindConnectivity means the database could not be reached or the
	// connection died. Never repaired; fatal for the round.
	KindConnectivity ErrorKind = "connectivity"
	// KindOther covers everything else.
	KindOther ErrorKind = "other"
)

// ExecError is a classified execution failure.
type ExecError struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Code is the SQLSTATE code when the database reported one.
	Code string

	// Err is the underlying error.
	Err error
}

func (e *ExecError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("execution failed (%s, SQLSTATE %s): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("execution failed (%s): %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Repairable reports whether the failure is a candidate for the automatic
// repair loop. Only syntax and semantic failures qualify.
func (e *ExecError) Repairable() bool {
	return e.Kind == KindSyntax || e.Kind == KindSemantic
}

// Message returns the database's own description of the failure, suitable
// for folding into a regeneration prompt.
func (e *ExecError) Message() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		msg := pgErr.Message
		if pgErr.Hint != "" {
			msg += " (hint: " + pgErr.Hint + ")"
		}
		return msg
	}
	return e.Err.Error()
}

// ClassifyError wraps an execution error with its classification.
// SQLSTATE class 42 covers both malformed statements and access-rule
// violations; 42601 is the grammar error, the rest (unknown table, unknown
// column, ambiguous reference) are semantic. Class 08 and transport-level
// failures are connectivity.
func ClassifyError(err error) *ExecError {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &ExecError{
			Kind: classifyCode(pgErr.Code),
			Code: pgErr.Code,
			Err:  err,
		}
	}

	if isConnectivityError(err) {
		return &ExecError{Kind: KindConnectivity, Err: err}
	}

	return &ExecError{Kind: KindOther, Err: err}
}

func classifyCode(code string) ErrorKind {
	switch {
	case code == "42601":
		return KindSyntax
	case strings.HasPrefix(code, "42"):
		return KindSemantic
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		// Data exceptions and constraint violations: the statement is
		// valid but wrong for the data. Repairable.
		return KindSemantic
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57"):
		return KindConnectivity
	default:
		return KindOther
	}
}

func isConnectivityError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
