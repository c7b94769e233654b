// Package errs defines duskdb's compilation/execution error taxonomy
// (§7): Syntactic, Semantic, Constraint, Runtime, Internal; lexical errors
// are lexer.LexError in the lexer package. Each is a distinct Go type;
// SyntaxError, SemanticError and ConstraintError carry an optional Hint line
// (the `智能提示：` text, see internal/engine/hints) so the CLI can tell, via
// errors.As, whether to print a hint block alongside the message.
//
// Built as small explicit error types rather than fmt.Errorf-wrapped
// sentinels, since duskdb's CLI needs to distinguish taxonomy levels to
// decide formatting, not just display a string.
package errs

import (
	"fmt"

	"github.com/google/uuid"
)

// SyntaxError is a parse-time expected/got mismatch with location info.
type SyntaxError struct {
	Line, Col int
	Message   string
	Hint      string
}

func (e *SyntaxError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("syntax error at line %d, col %d: %s", e.Line, e.Col, e.Message)
	}
	return fmt.Sprintf("syntax error at line %d, col %d: %s\n%s", e.Line, e.Col, e.Message, e.Hint)
}

// SemanticError reports an AST validation failure (unknown table/column,
// ambiguity, type mismatch, arity mismatch, grouping violation, ...).
type SemanticError struct {
	Message string
	Hint    string
}

func (e *SemanticError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + "\n" + e.Hint
}

// ConstraintError reports a primary-key or foreign-key violation. IncidentID
// is a run-unique id a student can grep for in the compile log (§6).
type ConstraintError struct {
	Message    string
	Hint       string
	IncidentID string
}

// NewConstraintError builds a ConstraintError stamped with a fresh incident ID.
func NewConstraintError(message, hint string) *ConstraintError {
	return &ConstraintError{Message: message, Hint: hint, IncidentID: uuid.NewString()}
}

func (e *ConstraintError) Error() string {
	msg := e.Message
	if e.IncidentID != "" {
		msg = fmt.Sprintf("[%s] %s", e.IncidentID, msg)
	}
	if e.Hint == "" {
		return msg
	}
	return msg + "\n" + e.Hint
}

// RuntimeError reports an I/O failure, page deserialization failure, or
// unparseable predicate encountered during execution. IncidentID is a
// run-unique id a student can grep for in the compile log (§6).
type RuntimeError struct {
	Message    string
	Cause      error
	IncidentID string
}

// NewRuntimeError builds a RuntimeError stamped with a fresh incident ID.
func NewRuntimeError(message string, cause error) *RuntimeError {
	return &RuntimeError{Message: message, Cause: cause, IncidentID: uuid.NewString()}
}

func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.IncidentID != "" {
		msg = fmt.Sprintf("[%s] %s", e.IncidentID, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// InternalError reports an unsupported plan node or aggregate: a bug in
// duskdb itself rather than in the user's SQL.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return "internal error: " + e.Message }
