package core

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Arg is a value addressed by parameter name.
type Arg struct {
	Name  string
	Value any
}

// Named pairs a parameter name with its value.
func Named(name string, value any) Arg { return Arg{Name: name, Value: value} }

// BoundParameter is one parameter of a single call: its handle, the coerced
// value and the output capture, if any.
type BoundParameter struct {
	Handle     *ParameterHandle
	Definition ParameterDefinition
	Value      any
	Output     OutputCapture
}

// Name returns the parameter's full name.
func (b BoundParameter) Name() string { return b.Definition.Name }

// Binding is the result of binding one call's arguments.
type Binding struct {
	Parameters []BoundParameter
	Warnings   []string
}

// Snapshot returns the bound values for diagnostics.
func (b *Binding) Snapshot() []ParameterValue {
	out := make([]ParameterValue, len(b.Parameters))
	for i, bp := range b.Parameters {
		v := bp.Value
		if bp.Output != nil && v == nil {
			v = bp.Output.OutputKind().String()
		}
		out[i] = ParameterValue{Name: bp.Name(), Value: v}
	}
	return out
}

type pendingValue struct {
	index  int
	value  any
	output OutputCapture
}

// Bind validates args against the definition and returns the bound parameters
// in declaration order. Args are either all Arg values (named form) or none
// (ordinal form). Nothing in the parameter cache changes unless every value
// binds.
func (p *Program) Bind(args ...any) (*Binding, error) {
	def := p.def
	if !def.State().Usable() {
		return nil, fmt.Errorf("program %q is %s: %w", def.name, def.State(), ErrNotReady)
	}

	slots, err := p.resolveSlots(args)
	if err != nil {
		return nil, err
	}

	binding := &Binding{Parameters: make([]BoundParameter, 0, len(slots))}
	for i := range slots {
		slot := &slots[i]
		pd := def.params[slot.index]
		raw := slot.value
		if oc, ok := raw.(OutputCapture); ok {
			if !pd.Direction.IsOutput() {
				return nil, fmt.Errorf("program %q: parameter %s is input-only: %w", def.name, pd.Name, ErrInvalidOutUsage)
			}
			slot.output = oc
			raw, _ = oc.input()
		}
		coerced, loss, err := pd.Type.Coerce(raw)
		if err != nil {
			return nil, &ConstraintError{Parameter: pd.Name, Type: pd.Type, Value: raw, Reason: err.Error()}
		}
		if loss != "" {
			switch def.mode {
			case ConstraintStrict:
				return nil, &ConstraintError{Parameter: pd.Name, Type: pd.Type, Value: raw, Reason: loss}
			case ConstraintWarn:
				binding.Warnings = append(binding.Warnings, fmt.Sprintf("parameter %s (%s): value %v %s", pd.Name, pd.Type, raw, loss))
			}
		}
		slot.value = coerced
	}

	p.cache.mu.Lock()
	for _, slot := range slots {
		h := p.cache.handle(def.params[slot.index], slot.index)
		h.last = slot.value
		h.binds++
		binding.Parameters = append(binding.Parameters, BoundParameter{
			Handle:     h,
			Definition: h.def,
			Value:      slot.value,
			Output:     slot.output,
		})
	}
	p.cache.mu.Unlock()

	for _, w := range binding.Warnings {
		p.logger.Warn("parameter value coerced", zap.String("detail", w))
	}
	return binding, nil
}

// resolveSlots maps args onto definition indexes, sorted by declaration order.
func (p *Program) resolveSlots(args []any) ([]pendingValue, error) {
	def := p.def
	named := 0
	for _, a := range args {
		if _, ok := a.(Arg); ok {
			named++
		}
	}
	if named != 0 && named != len(args) {
		return nil, fmt.Errorf("program %q: %w", def.name, ErrMixedArguments)
	}
	if len(args) != def.arity {
		return nil, fmt.Errorf("program %q: expected %d values, got %d: %w", def.name, def.arity, len(args), ErrArityMismatch)
	}

	slots := make([]pendingValue, len(args))
	if named == 0 {
		if len(def.params) < def.arity {
			return nil, fmt.Errorf("program %q declares %d parameters, %d required: %w", def.name, len(def.params), def.arity, ErrArityMismatch)
		}
		for i, a := range args {
			slots[i] = pendingValue{index: i, value: a}
		}
		return slots, nil
	}

	seen := make(map[int]bool, len(args))
	for i, a := range args {
		arg := a.(Arg)
		idx, ok := def.indexOf(arg.Name)
		if !ok {
			return nil, fmt.Errorf("program %q: %w: %s", def.name, ErrUnknownParameter, arg.Name)
		}
		if seen[idx] {
			return nil, fmt.Errorf("program %q: %w: %s", def.name, ErrDuplicateParameter, arg.Name)
		}
		seen[idx] = true
		slots[i] = pendingValue{index: idx, value: arg.Value}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].index < slots[j].index })
	return slots, nil
}
