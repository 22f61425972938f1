package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Definition.
type State int32

const (
	StateUnvalidated State = iota
	StateValidating
	StateReady
	StateReadyWithWarnings
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateReady:
		return "ready"
	case StateReadyWithWarnings:
		return "ready-with-warnings"
	case StateInvalid:
		return "invalid"
	}
	return "unvalidated"
}

// Usable reports whether a program in this state may be bound and executed.
func (s State) Usable() bool { return s == StateReady || s == StateReadyWithWarnings }

// Definition is the resolved description of a program call.
type Definition struct {
	name       string
	physical   string
	connection string
	params     []ParameterDefinition
	arity      int
	timeout    time.Duration
	mode       ConstraintMode
	state      atomic.Int32
	warnings   []string
}

func newDefinition(req Request, connection string) *Definition {
	physical := req.PhysicalName
	if physical == "" {
		physical = req.Name
	}
	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Definition{
		name:       req.Name,
		physical:   physical,
		connection: connection,
		arity:      len(req.Parameters),
		timeout:    timeout,
		mode:       req.Options.Mode,
	}
}

// Name returns the logical program name.
func (d *Definition) Name() string { return d.name }

// PhysicalName returns the name of the procedure in the database.
func (d *Definition) PhysicalName() string { return d.physical }

// Connection returns the logical connection the program is bound to.
func (d *Definition) Connection() string { return d.connection }

// Arity returns the number of values a call supplies.
func (d *Definition) Arity() int { return d.arity }

// Timeout returns the default command timeout.
func (d *Definition) Timeout() time.Duration { return d.timeout }

// Mode returns the constraint mode applied when binding.
func (d *Definition) Mode() ConstraintMode { return d.mode }

// State returns the lifecycle state.
func (d *Definition) State() State { return State(d.state.Load()) }

func (d *Definition) setState(s State) { d.state.Store(int32(s)) }

// Parameters returns a copy of the declared parameters in declaration order.
func (d *Definition) Parameters() []ParameterDefinition {
	out := make([]ParameterDefinition, len(d.params))
	copy(out, d.params)
	return out
}

// Warnings returns the schema mismatches tolerated during validation.
func (d *Definition) Warnings() []string {
	out := make([]string, len(d.warnings))
	copy(out, d.warnings)
	return out
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s -> %s@%s (%d parameters, %s)", d.name, d.physical, d.connection, len(d.params), d.State())
}

// indexOf resolves a parameter name or alias case-insensitively.
func (d *Definition) indexOf(name string) (int, bool) {
	key := normalizeName(name)
	for i, p := range d.params {
		if normalizeName(p.Name) == key {
			return i, true
		}
	}
	for i, p := range d.params {
		if p.Alias != "" && normalizeName(p.Alias) == key {
			return i, true
		}
	}
	return -1, false
}

// validateAgainst builds the declared parameter list from the caller's specs
// and the live schema, returning every mismatch found.
func validateAgainst(specs []ParameterSpec, schema *ProgramSchema, checkOrder bool) ([]ParameterDefinition, []string) {
	var mismatches []string
	positional := len(specs) > 0 && specs[0].Name == ""

	if schema == nil {
		mismatches = append(mismatches, "program not found in live schema")
		params := make([]ParameterDefinition, len(specs))
		for i, s := range specs {
			name := s.Name
			if name == "" {
				name = fmt.Sprintf("p%d", i+1)
			}
			params[i] = ParameterDefinition{Name: name, Alias: s.Alias, Type: s.Type, Ordinal: i + 1, Direction: DirectionInOut}
		}
		return params, mismatches
	}

	if positional {
		params := make([]ParameterDefinition, len(schema.Parameters))
		for i, ps := range schema.Parameters {
			params[i] = fromSchema(ps)
		}
		if len(params) < len(specs) {
			mismatches = append(mismatches, fmt.Sprintf("program declares %d parameters, %d required", len(params), len(specs)))
		}
		for i := 0; i < len(specs) && i < len(params); i++ {
			if !specs[i].Type.Compatible(params[i].Type) {
				mismatches = append(mismatches, fmt.Sprintf("parameter %d (%s) is %s, expected %s", i+1, params[i].Name, params[i].Type, specs[i].Type))
			}
		}
		return params, mismatches
	}

	params := make([]ParameterDefinition, len(specs))
	lastOrdinal, lastName := 0, ""
	for i, s := range specs {
		ps, ok := findSchemaParameter(schema, s.Name)
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("parameter %s not found", s.Name))
			params[i] = ParameterDefinition{Name: s.Name, Alias: s.Alias, Type: s.Type, Ordinal: i + 1, Direction: DirectionInOut}
			continue
		}
		params[i] = fromSchema(ps)
		params[i].Alias = s.Alias
		if !s.Type.Compatible(ps.Type) {
			mismatches = append(mismatches, fmt.Sprintf("parameter %s is %s, expected %s", ps.Name, ps.Type, s.Type))
		}
		if checkOrder {
			if ps.Ordinal <= lastOrdinal {
				mismatches = append(mismatches, fmt.Sprintf("parameter %s is at position %d, before %s", ps.Name, ps.Ordinal, lastName))
			}
			lastOrdinal, lastName = ps.Ordinal, ps.Name
		}
	}
	return params, mismatches
}

func findSchemaParameter(schema *ProgramSchema, name string) (ParameterSchema, bool) {
	key := normalizeName(name)
	for _, ps := range schema.Parameters {
		if normalizeName(ps.Name) == key {
			return ps, true
		}
	}
	return ParameterSchema{}, false
}

func fromSchema(ps ParameterSchema) ParameterDefinition {
	return ParameterDefinition{Name: ps.Name, Type: ps.Type, Ordinal: ps.Ordinal, Direction: ps.Direction}
}
