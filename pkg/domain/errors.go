package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ExecutionErrorKind classifies a failed execution by cause so the
// orchestrator and executor can decide retry eligibility and response
// wording without re-parsing driver error strings downstream.
type ExecutionErrorKind string

const (
	ExecSyntax              ExecutionErrorKind = "syntax"
	ExecNotFound             ExecutionErrorKind = "not_found"
	ExecUniqueViolation      ExecutionErrorKind = "unique_violation"
	ExecForeignKeyViolation  ExecutionErrorKind = "foreign_key_violation"
	ExecPermission           ExecutionErrorKind = "permission"
	ExecTimeout              ExecutionErrorKind = "timeout"
	ExecConnection           ExecutionErrorKind = "connection"
	ExecOther                ExecutionErrorKind = "other"
)

// Retryable reports whether the executor's retry policy applies to this
// kind. Only Connection and Timeout failures are considered transient.
func (k ExecutionErrorKind) Retryable() bool {
	return k == ExecConnection || k == ExecTimeout
}

// ClassifyError maps a driver-returned error to the executor's retry
// taxonomy by inspecting its message for dialect-agnostic substrings.
// Backends with a structured driver error type (pgconn.PgError,
// mysql.MySQLError, sqlite3.Error, mssql.Error) should check that type
// first and only fall back to this substring match for unrecognized
// error shapes.
func ClassifyError(err error) ExecutionErrorKind {
	if err == nil {
		return ExecOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExecTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ExecTimeout
	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "bad connection"):
		return ExecConnection
	case strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "insufficient privilege"):
		return ExecPermission
	case strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation"):
		return ExecUniqueViolation
	case strings.Contains(msg, "foreign key"):
		return ExecForeignKeyViolation
	case strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "not found"):
		return ExecNotFound
	case strings.Contains(msg, "syntax error") || strings.Contains(msg, "syntax"):
		return ExecSyntax
	default:
		return ExecOther
	}
}

// IntentError signals the intent extractor could not classify the utterance.
type IntentError struct {
	Utterance string
	Cause     error
}

func (e *IntentError) Error() string {
	return fmt.Sprintf("intent extraction failed for %q: %v", e.Utterance, e.Cause)
}

func (e *IntentError) Unwrap() error { return e.Cause }

// SchemaError signals the schema cache could not produce a usable snapshot
// for BackendID, either because the refresh failed or the backend is unknown.
type SchemaError struct {
	BackendID string
	Cause     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema unavailable for backend %q: %v", e.BackendID, e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// SqlGenerationError signals the synthesizer could not produce a valid
// statement after exhausting its repair attempts.
type SqlGenerationError struct {
	Attempts int
	Cause    error
}

func (e *SqlGenerationError) Error() string {
	return fmt.Sprintf("sql synthesis failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *SqlGenerationError) Unwrap() error { return e.Cause }

// SafetyRejection signals the safety gate rejected a synthesized statement.
// Reason names the specific rule that tripped (e.g. "multi_statement",
// "disallowed_verb", "read_only_backend", "unbound_parameter").
type SafetyRejection struct {
	Reason    string
	Statement string
}

func (e *SafetyRejection) Error() string {
	return fmt.Sprintf("statement rejected by safety gate (%s): %s", e.Reason, e.Statement)
}

// ExecutionError wraps a classified failure from running a statement against
// a backend.
type ExecutionError struct {
	BackendID string
	Kind      ExecutionErrorKind
	Cause     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed on backend %q (%s): %v", e.BackendID, e.Kind, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// UpstreamError wraps a failure from an external dependency that is not
// itself part of the query pipeline's own logic: an LLM provider outage,
// a rate limit, or a transport-level failure talking to a backend driver
// before a statement was even attempted.
type UpstreamError struct {
	Service string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure from %s: %v", e.Service, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }
