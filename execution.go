// Package dbprogram invokes stored procedures and functions through typed,
// schema-validated program handles. Programs are resolved from configuration
// by database id and executed against one connection or fanned out to every
// connection of a load-balanced set.
package dbprogram

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/ignaciocaff/dbprogram/internal/core"
)

type (
	Program       = core.Program
	Definition    = core.Definition
	Reader        = core.Reader
	Arg           = core.Arg
	Overrides     = core.Overrides
	ParameterSpec = core.ParameterSpec
	SQLType       = core.SQLType
	Kind          = core.Kind

	ConstraintMode = core.ConstraintMode

	ExecutionError  = core.ExecutionError
	ValidationError = core.ValidationError
	ConstraintError = core.ConstraintError

	Out[T any]         = core.Out[T]
	MultiOut[T any]    = core.MultiOut[T]
	OutputValue[T any] = core.OutputValue[T]
)

const (
	ConstraintStrict = core.ConstraintStrict
	ConstraintWarn   = core.ConstraintWarn
	ConstraintSilent = core.ConstraintSilent
)

var (
	ErrArityMismatch               = core.ErrArityMismatch
	ErrMixedArguments              = core.ErrMixedArguments
	ErrUnknownParameter            = core.ErrUnknownParameter
	ErrDuplicateParameter          = core.ErrDuplicateParameter
	ErrInvalidParameterMapping     = core.ErrInvalidParameterMapping
	ErrUnknownOrDisabledDatabase   = core.ErrUnknownOrDisabledDatabase
	ErrUnknownOrDisabledConnection = core.ErrUnknownOrDisabledConnection
	ErrInvalidOutUsage             = core.ErrInvalidOutUsage
	ErrValidationMismatch          = core.ErrValidationMismatch
	ErrConstraintViolation         = core.ErrConstraintViolation
	ErrExecutionFailed             = core.ErrExecutionFailed
	ErrNotReady                    = core.ErrNotReady
)

// Named pairs a parameter name with its value.
func Named(name string, value any) Arg { return core.Named(name, value) }

// NewOut returns an output capture for a single-connection call.
func NewOut[T any]() *Out[T] { return core.NewOut[T]() }

// NewInOut returns an output capture that also sends v.
func NewInOut[T any](v T) *Out[T] { return core.NewInOut(v) }

// NewMultiOut returns an output capture that keeps one value per connection.
func NewMultiOut[T any]() *MultiOut[T] { return core.NewMultiOut[T]() }

// NewMultiInOut is NewMultiOut sending v to every connection.
func NewMultiInOut[T any](v T) *MultiOut[T] { return core.NewMultiInOut(v) }

// Bool, Duration and Mode build override values.
func Bool(v bool) *bool { return &v }
func Duration(d time.Duration) *time.Duration { return &d }
func Mode(m ConstraintMode) *ConstraintMode { return &m }

// Execute resolves program in databaseID using the names of args, runs it
// once and maps its rows onto result, a pointer to a struct or to a slice.
func Execute(ctx context.Context, r core.Resolver, databaseID, program string, result any, args ...Arg) error {
	return core.Execute(ctx, r, databaseID, program, result, args...)
}

// Scalar runs p once and converts its scalar result to T.
func Scalar[T any](ctx context.Context, p *Program, args ...any) (T, error) {
	return core.Scalar[T](ctx, p, args...)
}

// Read runs p once and returns what fn decodes from its rows.
func Read[T any](ctx context.Context, p *Program, fn func(*Reader) (T, error), args ...any) (T, error) {
	return core.Read(ctx, p, fn, args...)
}

// ReadAll runs p on every connection and returns one value per connection.
func ReadAll[T any](ctx context.Context, p *Program, fn func(*Reader) (T, error), args ...any) ([]T, error) {
	return core.ReadAll(ctx, p, fn, args...)
}

// ReadXML runs p once and decodes its XML result with fn.
func ReadXML[T any](ctx context.Context, p *Program, fn func(*xml.Decoder) (T, error), args ...any) (T, error) {
	return core.ReadXML(ctx, p, fn, args...)
}

// ReadXMLAll is the fan-out form of ReadXML.
func ReadXMLAll[T any](ctx context.Context, p *Program, fn func(*xml.Decoder) (T, error), args ...any) ([]T, error) {
	return core.ReadXMLAll(ctx, p, fn, args...)
}
