// Package tankerr defines the typed error kinds the core raises, per the
// error handling design: schema, coercion, resolution, expression,
// database, and usage errors. Each wraps an underlying cause with %w so
// callers can still errors.Is/errors.As through to it.
package tankerr

import "fmt"

// SchemaError reports a malformed column definition, a missing key
// column, an unknown column name, an unsupported index kind, or a
// constraint name that is too long. Raised during registration; fatal.
type SchemaError struct {
	Table   string
	Column  string
	Message string
	Cause   error
}

func (e *SchemaError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("schema: table %q column %q: %s", e.Table, e.Column, e.Message)
	case e.Table != "":
		return fmt.Sprintf("schema: table %q: %s", e.Table, e.Message)
	default:
		return fmt.Sprintf("schema: %s", e.Message)
	}
}

func (e *SchemaError) Unwrap() error { return e.Cause }

func NewSchemaError(table, column, message string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Message: message}
}

// CoercionError reports a value that cannot be converted to a column's
// declared type. Raised from Column.Format; fatal for the whole batch.
type CoercionError struct {
	Column string
	CType  string
	Value  any
	Cause  error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("coercion: column %q (%s): unexpected value %#v", e.Column, e.CType, e.Value)
}

func (e *CoercionError) Unwrap() error { return e.Cause }

func NewCoercionError(column, ctype string, value any) *CoercionError {
	return &CoercionError{Column: column, CType: ctype, Value: value}
}

// ResolutionError reports that the FK cache could not map a non-null
// natural-key tuple to an id. Raised from the write pipeline; fatal for
// the batch.
type ResolutionError struct {
	RemoteTable string
	Key         []any
	Cause       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution: no row in %q matches key %v", e.RemoteTable, e.Key)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

func NewResolutionError(remoteTable string, key []any) *ResolutionError {
	return &ResolutionError{RemoteTable: remoteTable, Key: key}
}

// ExpressionError reports a parser syntax error or an unresolved symbol
// in an s-expression.
type ExpressionError struct {
	Message string
	Pos     int
}

func (e *ExpressionError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("expression: %s (at token %d)", e.Message, e.Pos)
	}
	return fmt.Sprintf("expression: %s", e.Message)
}

func NewExpressionError(message string, pos int) *ExpressionError {
	return &ExpressionError{Message: message, Pos: pos}
}

// DatabaseError wraps a backend-reported failure, preserving the original
// message together with the query and parameters that produced it.
type DatabaseError struct {
	Query  string
	Params []any
	Cause  error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %v (query: %s, params: %v)", e.Cause, e.Query, e.Params)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

func NewDatabaseError(query string, params []any, cause error) *DatabaseError {
	return &DatabaseError{Query: query, Params: params, Cause: cause}
}

// UsageError reports a caller mistake: write/delete without the full key
// columns, both data and filters passed to delete, or an unsupported
// action.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s", e.Message)
}

func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}
