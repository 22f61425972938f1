package core

import (
	"context"
	"database/sql/driver"
	"time"
)

// CallKind selects how a call's results are read.
type CallKind int

const (
	CallNonQuery CallKind = iota
	CallScalar
	CallReader
)

func (k CallKind) String() string {
	switch k {
	case CallScalar:
		return "scalar"
	case CallReader:
		return "reader"
	}
	return "non-query"
}

// RowSource is a forward-only result set. Next fills dest with the next row
// and returns io.EOF once the rows are exhausted, like driver.Rows.
type RowSource interface {
	Columns() []string
	Next(dest []driver.Value) error
	Close() error
}

// Call is one bound program call handed to a Conn.
type Call struct {
	Kind       CallKind
	Program    string
	Parameters []BoundParameter
	Timeout    time.Duration
	// Read consumes the result rows of a CallReader call. The rows are closed
	// by the Conn once Read returns.
	Read func(RowSource) error
}

// Outcome is what a Conn returns for a call. Outputs is indexed like
// Call.Parameters and holds nil for input-only parameters.
type Outcome struct {
	Scalar       any
	RowsAffected int64
	Outputs      []any
}

// Conn executes bound calls against one physical endpoint.
type Conn interface {
	Name() string
	Execute(ctx context.Context, call *Call) (*Outcome, error)
}

// ConnectionSet is the ordered, load-balanced set of endpoints behind one
// logical connection.
type ConnectionSet interface {
	Name() string
	// Pick selects the endpoint for a single-target call.
	Pick() (Conn, error)
	// All returns every endpoint in declaration order.
	All() []Conn
}

// ConnectionProvider supplies the connection set of a database connection.
type ConnectionProvider interface {
	Connections(ctx context.Context, databaseID, connection string) (ConnectionSet, error)
}

// ParameterSchema is one parameter as declared in the live database.
type ParameterSchema struct {
	Name      string
	Type      SQLType
	Ordinal   int
	Direction Direction
}

// ProgramSchema is a program as declared in the live database.
type ProgramSchema struct {
	Name       string
	Parameters []ParameterSchema
}

// SchemaSource describes programs from the live schema reachable through conn.
type SchemaSource interface {
	Describe(ctx context.Context, conn Conn, program string) (*ProgramSchema, error)
}
