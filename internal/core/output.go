package core

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// OutputKind tags the two output capture variants.
type OutputKind int

const (
	// OutputSingle captures one value from a single connection.
	OutputSingle OutputKind = iota
	// OutputMulti captures one value per connection and is legal in fan-out calls.
	OutputMulti
)

func (k OutputKind) String() string {
	if k == OutputMulti {
		return "multi-out"
	}
	return "out"
}

// OutputCapture is implemented by Out and MultiOut only.
type OutputCapture interface {
	OutputKind() OutputKind
	input() (any, bool)
	begin(connections int)
	capture(index int, connection string, raw any) error
	clear()
}

// Out receives an output parameter value from a single-connection call.
type Out[T any] struct {
	mu         sync.Mutex
	in         any
	hasIn      bool
	value      T
	valid      bool
	connection string
}

// NewOut returns an output-only capture.
func NewOut[T any]() *Out[T] { return &Out[T]{} }

// NewInOut returns a capture that also sends v as the parameter's input.
func NewInOut[T any](v T) *Out[T] { return &Out[T]{in: v, hasIn: true} }

func (o *Out[T]) OutputKind() OutputKind { return OutputSingle }

// Value returns the captured value, or the zero value when the database
// returned NULL or the call has not run.
func (o *Out[T]) Value() T {
	v, _ := o.Get()
	return v
}

// Get returns the captured value and whether it was non-NULL.
func (o *Out[T]) Get() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value, o.valid
}

// Connection returns the name of the connection the value came from.
func (o *Out[T]) Connection() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.connection
}

func (o *Out[T]) input() (any, bool) { return o.in, o.hasIn }

func (o *Out[T]) begin(int) { o.clear() }

func (o *Out[T]) capture(_ int, connection string, raw any) error {
	v, valid, err := convertOutput[T](raw)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.value, o.valid, o.connection = v, valid, connection
	return nil
}

func (o *Out[T]) clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	var zero T
	o.value, o.valid, o.connection = zero, false, ""
}

// OutputValue is the value captured from one connection.
type OutputValue[T any] struct {
	Connection string
	Value      T
	Valid      bool
}

// MultiOut receives one output value per connection of a fan-out call,
// ordered like the connection set.
type MultiOut[T any] struct {
	mu     sync.Mutex
	in     any
	hasIn  bool
	values []OutputValue[T]
}

// NewMultiOut returns an output-only capture for fan-out calls.
func NewMultiOut[T any]() *MultiOut[T] { return &MultiOut[T]{} }

// NewMultiInOut returns a fan-out capture that also sends v as input.
func NewMultiInOut[T any](v T) *MultiOut[T] { return &MultiOut[T]{in: v, hasIn: true} }

func (m *MultiOut[T]) OutputKind() OutputKind { return OutputMulti }

// Values returns a copy of the captured values.
func (m *MultiOut[T]) Values() []OutputValue[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutputValue[T], len(m.values))
	copy(out, m.values)
	return out
}

func (m *MultiOut[T]) input() (any, bool) { return m.in, m.hasIn }

func (m *MultiOut[T]) begin(connections int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make([]OutputValue[T], connections)
}

func (m *MultiOut[T]) capture(index int, connection string, raw any) error {
	v, valid, err := convertOutput[T](raw)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if index >= len(m.values) {
		grown := make([]OutputValue[T], index+1)
		copy(grown, m.values)
		m.values = grown
	}
	m.values[index] = OutputValue[T]{Connection: connection, Value: v, Valid: valid}
	return nil
}

func (m *MultiOut[T]) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = nil
}

func convertOutput[T any](raw any) (T, bool, error) {
	var zero T
	if raw == nil {
		return zero, false, nil
	}
	if v, ok := raw.(T); ok {
		return v, true, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if target.Kind() == reflect.Interface {
		rv := reflect.ValueOf(raw)
		if rv.Type().Implements(target) {
			return rv.Interface().(T), true, nil
		}
	}
	if target.Kind() == reflect.String {
		var s string
		if b, ok := raw.([]byte); ok {
			s = string(b)
		} else {
			s = fmt.Sprint(raw)
		}
		return reflect.ValueOf(s).Convert(target).Interface().(T), true, nil
	}
	rv := reflect.ValueOf(raw)
	if s, ok := raw.(string); ok && isNumeric(target.Kind()) {
		// oracle returns function results as text
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return zero, false, fmt.Errorf("cannot assign %q to %s", s, target)
		}
		return reflect.ValueOf(f).Convert(target).Interface().(T), true, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) {
		return rv.Convert(target).Interface().(T), true, nil
	}
	if rv.Type().ConvertibleTo(target) && rv.Kind() != reflect.String {
		return rv.Convert(target).Interface().(T), true, nil
	}
	return zero, false, fmt.Errorf("cannot assign output value of type %T to %s", raw, target)
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}
