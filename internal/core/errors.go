package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrArityMismatch               = errors.New("arity mismatch")
	ErrMixedArguments              = errors.New("named and positional arguments cannot be mixed")
	ErrUnknownParameter            = errors.New("unknown parameter")
	ErrDuplicateParameter          = errors.New("duplicate parameter")
	ErrInvalidParameterMapping     = errors.New("invalid parameter mapping")
	ErrUnknownOrDisabledDatabase   = errors.New("unknown or disabled database")
	ErrUnknownOrDisabledConnection = errors.New("unknown or disabled connection")
	ErrInvalidOutUsage             = errors.New("invalid output parameter usage")
	ErrValidationMismatch          = errors.New("program does not match live schema")
	ErrConstraintViolation         = errors.New("value does not fit parameter type")
	ErrExecutionFailed             = errors.New("program execution failed")
	ErrNotReady                    = errors.New("program is not ready")
	ErrNoConnections               = errors.New("connection set is empty")
	ErrProgramNotFound             = errors.New("program not found")
)

// ParameterValue is a snapshot of one bound value, kept for diagnostics.
type ParameterValue struct {
	Name  string
	Value any
}

func (p ParameterValue) String() string {
	return fmt.Sprintf("%s=%v", p.Name, p.Value)
}

// ExecutionError wraps a failure raised while executing a bound program.
type ExecutionError struct {
	Program    string
	Connection string
	CallID     string
	Parameters []ParameterValue
	Err        error
}

func (e *ExecutionError) Error() string {
	params := make([]string, len(e.Parameters))
	for i, p := range e.Parameters {
		params[i] = p.String()
	}
	return fmt.Sprintf("program %q failed on connection %q (call %s, parameters [%s]): %v",
		e.Program, e.Connection, e.CallID, strings.Join(params, ", "), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecutionFailed }

// ValidationError lists the mismatches between a definition and the live schema.
type ValidationError struct {
	Program    string
	Mismatches []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("program %q does not match live schema: %s", e.Program, strings.Join(e.Mismatches, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationMismatch }

// ConstraintError is returned when a value cannot be bound to its parameter type.
type ConstraintError struct {
	Parameter string
	Type      SQLType
	Value     any
	Reason    string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("parameter %s (%s): value %v: %s", e.Parameter, e.Type, e.Value, e.Reason)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }
