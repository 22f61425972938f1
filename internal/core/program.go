package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Request describes a program to construct.
type Request struct {
	// Name is the logical name used in logs and errors.
	Name string
	// PhysicalName is the procedure name in the database; defaults to Name.
	PhysicalName string
	// Parameters are either all named or all positional.
	Parameters []ParameterSpec
	Options    Options
}

// Program is a validated, executable handle to one stored procedure or function.
type Program struct {
	def    *Definition
	set    ConnectionSet
	source SchemaSource
	cache  *ParameterCache
	opts   Options
	base   *zap.Logger
	logger *zap.Logger
}

// Create resolves req against the live schema reachable through set and
// returns a program ready to execute. Malformed parameter lists are rejected
// before any connection is used. Schema mismatches fail with a
// *ValidationError unless req.Options.IgnoreValidationErrors is set.
func Create(ctx context.Context, set ConnectionSet, source SchemaSource, req Request, logger *zap.Logger) (*Program, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := checkSpecs(req.Parameters); err != nil {
		return nil, fmt.Errorf("program %q: %w", req.Name, err)
	}
	if set == nil || source == nil {
		return nil, fmt.Errorf("program %q: connection set and schema source are required", req.Name)
	}

	def := newDefinition(req, set.Name())
	p := &Program{
		def:    def,
		set:    set,
		source: source,
		cache:  newParameterCache(),
		opts:   req.Options,
		base:   logger,
		logger: logger.With(zap.String("program", def.name), zap.String("connection", def.connection)),
	}

	def.setState(StateValidating)
	conn, err := set.Pick()
	if err != nil {
		def.setState(StateInvalid)
		return nil, fmt.Errorf("program %q: %w", req.Name, err)
	}
	schema, err := source.Describe(ctx, conn, def.physical)
	switch {
	case errors.Is(err, ErrProgramNotFound):
		schema = nil
	case err != nil:
		def.setState(StateInvalid)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("program %q: describe %s: %w", req.Name, def.physical, err)
	}
	if err := ctx.Err(); err != nil {
		def.setState(StateInvalid)
		return nil, err
	}

	params, mismatches := validateAgainst(req.Parameters, schema, req.Options.CheckOrder)
	def.params = params
	if len(mismatches) > 0 {
		if !req.Options.IgnoreValidationErrors {
			def.setState(StateInvalid)
			p.logger.Error("program failed validation", zap.Strings("mismatches", mismatches))
			return nil, &ValidationError{Program: def.name, Mismatches: mismatches}
		}
		def.warnings = mismatches
		def.setState(StateReadyWithWarnings)
		p.logger.Warn("program validated with warnings", zap.Strings("mismatches", mismatches))
		return p, nil
	}
	def.setState(StateReady)
	p.logger.Debug("program ready", zap.String("physical", def.physical), zap.Int("parameters", len(params)))
	return p, nil
}

func checkSpecs(specs []ParameterSpec) error {
	if len(specs) == 0 {
		return nil
	}
	positional := specs[0].Name == ""
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if (s.Name == "") != positional {
			return ErrMixedArguments
		}
		if positional {
			continue
		}
		key := normalizeName(s.Name)
		if seen[key] {
			return fmt.Errorf("%w: %s", ErrDuplicateParameter, s.Name)
		}
		seen[key] = true
	}
	return nil
}

// WithParameters constructs a new program for the same procedure, connection
// and options, declaring a different parameter list.
func (p *Program) WithParameters(ctx context.Context, specs ...ParameterSpec) (*Program, error) {
	return Create(ctx, p.set, p.source, Request{
		Name:         p.def.name,
		PhysicalName: p.def.physical,
		Parameters:   specs,
		Options:      p.opts,
	}, p.base)
}

// Definition returns the program's definition.
func (p *Program) Definition() *Definition { return p.def }

// Cache returns the program's parameter cache.
func (p *Program) Cache() *ParameterCache { return p.cache }

// Connections returns the connection set the program executes against.
func (p *Program) Connections() ConnectionSet { return p.set }
