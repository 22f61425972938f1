// Package coretest provides in-memory connections, connection sets and schema
// sources for tests of code built on internal/core.
package coretest

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ignaciocaff/dbprogram/internal/core"
)

// ExecFunc answers one call on a fake connection.
type ExecFunc func(ctx context.Context, call *core.Call) (*core.Outcome, error)

// Conn is a fake endpoint. Calls are recorded in order.
type Conn struct {
	name string
	exec ExecFunc

	mu    sync.Mutex
	calls []*core.Call
}

// NewConn returns a connection answering with exec. A nil exec returns an
// empty outcome.
func NewConn(name string, exec ExecFunc) *Conn {
	return &Conn{name: name, exec: exec}
}

func (c *Conn) Name() string { return c.name }

func (c *Conn) Execute(ctx context.Context, call *core.Call) (*core.Outcome, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	if c.exec == nil {
		return &core.Outcome{Outputs: make([]any, len(call.Parameters))}, nil
	}
	return c.exec(ctx, call)
}

// Calls returns the calls received so far.
func (c *Conn) Calls() []*core.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*core.Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Set is a fake connection set. Pick rotates like the real pool.
type Set struct {
	name  string
	conns []core.Conn
	next  atomic.Uint64
	picks atomic.Int64
	alls  atomic.Int64
}

func NewSet(name string, conns ...*Conn) *Set {
	s := &Set{name: name}
	for _, c := range conns {
		s.conns = append(s.conns, c)
	}
	return s
}

func (s *Set) Name() string { return s.name }

func (s *Set) Pick() (core.Conn, error) {
	s.picks.Add(1)
	if len(s.conns) == 0 {
		return nil, core.ErrNoConnections
	}
	i := s.next.Add(1) - 1
	return s.conns[i%uint64(len(s.conns))], nil
}

func (s *Set) All() []core.Conn {
	s.alls.Add(1)
	out := make([]core.Conn, len(s.conns))
	copy(out, s.conns)
	return out
}

// Contacts reports how often the set was asked for connections.
func (s *Set) Contacts() int64 { return s.picks.Load() + s.alls.Load() }

// Schema is a fake catalog keyed by program name, case-insensitively.
type Schema struct {
	mu       sync.Mutex
	programs map[string]*core.ProgramSchema
	err      error
	calls    int
}

func NewSchema(programs ...*core.ProgramSchema) *Schema {
	s := &Schema{programs: map[string]*core.ProgramSchema{}}
	for _, p := range programs {
		s.programs[strings.ToLower(p.Name)] = p
	}
	return s
}

// Fail makes every Describe return err.
func (s *Schema) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the number of Describe calls.
func (s *Schema) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Schema) Describe(ctx context.Context, _ core.Conn, program string) (*core.ProgramSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.programs[strings.ToLower(program)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrProgramNotFound, program)
	}
	return p, nil
}

// Program builds a program schema from parameters in ordinal order.
func Program(name string, params ...core.ParameterSchema) *core.ProgramSchema {
	for i := range params {
		if params[i].Ordinal == 0 {
			params[i].Ordinal = i + 1
		}
	}
	return &core.ProgramSchema{Name: name, Parameters: params}
}

// In, Out and InOut build parameter schemas.
func In(name string, t core.SQLType) core.ParameterSchema {
	return core.ParameterSchema{Name: name, Type: t, Direction: core.DirectionIn}
}

func Out(name string, t core.SQLType) core.ParameterSchema {
	return core.ParameterSchema{Name: name, Type: t, Direction: core.DirectionOut}
}

func InOut(name string, t core.SQLType) core.ParameterSchema {
	return core.ParameterSchema{Name: name, Type: t, Direction: core.DirectionInOut}
}

// Rows is a static result set.
type Rows struct {
	cols   []string
	rows   [][]driver.Value
	pos    int
	closed bool
}

func NewRows(cols []string, rows ...[]driver.Value) *Rows {
	return &Rows{cols: cols, rows: rows}
}

func (r *Rows) Columns() []string { return r.cols }

func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func (r *Rows) Close() error {
	r.closed = true
	return nil
}

// Closed reports whether Close was called.
func (r *Rows) Closed() bool { return r.closed }

// Respond returns an ExecFunc that feeds rows to reader calls and answers
// other calls with outcome. Output values are copied per call.
func Respond(outcome core.Outcome, rows func() *Rows) ExecFunc {
	return func(ctx context.Context, call *core.Call) (*core.Outcome, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := outcome
		out.Outputs = make([]any, len(call.Parameters))
		copy(out.Outputs, outcome.Outputs)
		if call.Kind == core.CallReader && call.Read != nil && rows != nil {
			src := rows()
			defer func() { _ = src.Close() }()
			if err := call.Read(src); err != nil {
				return nil, err
			}
		}
		return &out, nil
	}
}
