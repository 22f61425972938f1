// Package conn provides the sqlx-backed connection sets and the transport
// that executes bound program calls through database/sql.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	_ "github.com/jackc/pgx/v5/stdlib"   // PostgreSQL driver
	"github.com/jmoiron/sqlx"

	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/dialect"
)

// Endpoint is one physical database behind a connection. It implements core.Conn.
type Endpoint struct {
	name    string
	driver  string
	dialect dialect.Dialect
	db      *sqlx.DB
}

// NewEndpoint wraps an open handle. The driver name selects the dialect.
func NewEndpoint(name, driver string, db *sqlx.DB) (*Endpoint, error) {
	d, err := dialect.ForDriver(driver)
	if err != nil {
		return nil, err
	}
	return &Endpoint{name: name, driver: strings.ToLower(driver), dialect: d, db: db}, nil
}

func (e *Endpoint) Name() string { return e.name }

// DB returns the underlying handle.
func (e *Endpoint) DB() *sqlx.DB { return e.db }

// Dialect returns the endpoint's dialect.
func (e *Endpoint) Dialect() dialect.Dialect { return e.dialect }

// Close closes the underlying handle.
func (e *Endpoint) Close() error { return e.db.Close() }

// boundCall is a call translated to driver arguments.
type boundCall struct {
	text    string
	args    []any
	dests   map[int]any // parameter index -> output destination pointer
	byCol   map[int]string
	cursor  *cursorDest
	returns any
}

// Execute runs call on this endpoint.
func (e *Endpoint) Execute(ctx context.Context, call *core.Call) (*core.Outcome, error) {
	bc, err := e.bind(call)
	if err != nil {
		return nil, err
	}
	outcome := &core.Outcome{Outputs: make([]any, len(call.Parameters))}

	switch {
	case e.dialect == dialect.Oracle:
		err = e.executeOracle(ctx, call, bc, outcome)
	case call.Kind == core.CallNonQuery && len(bc.byCol) == 0:
		var res sql.Result
		res, err = e.db.ExecContext(ctx, bc.text, bc.args...)
		if err == nil {
			// some drivers cannot report affected rows for procedure calls
			outcome.RowsAffected, _ = res.RowsAffected()
		}
	default:
		err = e.query(ctx, call, bc, outcome)
	}
	if err != nil {
		return nil, err
	}

	for i, dest := range bc.dests {
		outcome.Outputs[i] = reflect.ValueOf(dest).Elem().Interface()
	}
	return outcome, nil
}

// bind translates bound parameters into named or positional driver arguments.
func (e *Endpoint) bind(call *core.Call) (*boundCall, error) {
	bc := &boundCall{dests: map[int]any{}, byCol: map[int]string{}}
	var names []string
	for i, bp := range call.Parameters {
		def := bp.Definition
		name := dialect.BindName(def.Name)

		if def.Type.Kind == core.KindRefCursor {
			if e.dialect != dialect.Oracle {
				return nil, fmt.Errorf("parameter %s: ref cursors are only supported on oracle", def.Name)
			}
			bc.cursor = newCursorDest(e.driver)
			names = append(names, def.Name)
			bc.args = append(bc.args, sql.Named(name, sql.Out{Dest: bc.cursor.dest()}))
			continue
		}

		if bp.Output == nil {
			names = append(names, def.Name)
			bc.args = append(bc.args, e.arg(name, bp.Value))
			continue
		}

		if e.dialect == dialect.Postgres {
			// postgres returns OUT parameters as result columns
			bc.byCol[i] = strings.ToLower(name)
			if def.Direction == core.DirectionInOut {
				names = append(names, def.Name)
				bc.args = append(bc.args, bp.Value)
			}
			continue
		}

		dest, err := outputDest(def.Type, bp.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", def.Name, err)
		}
		bc.dests[i] = dest
		names = append(names, def.Name)
		bc.args = append(bc.args, sql.Named(name, sql.Out{Dest: dest, In: bp.Value != nil}))
	}

	if e.dialect == dialect.Oracle && call.Kind == core.CallScalar {
		ret := new(sql.NullString)
		bc.returns = ret
		bc.args = append(bc.args, sql.Named(dialect.ReturnName, sql.Out{Dest: ret}))
	}
	bc.text = e.dialect.CallText(call.Kind, call.Program, names)
	return bc, nil
}

func (e *Endpoint) arg(name string, value any) any {
	if e.dialect == dialect.Postgres {
		return value
	}
	return sql.Named(name, value)
}

// query runs a row-returning call: the first value is the scalar, reader
// calls hand the rows to call.Read, and postgres outputs come from the first row.
func (e *Endpoint) query(ctx context.Context, call *core.Call, bc *boundCall, outcome *core.Outcome) error {
	rows, err := e.db.QueryxContext(ctx, bc.text, bc.args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if call.Kind == core.CallReader {
		if call.Read == nil {
			return fmt.Errorf("reader call without a read function")
		}
		if err := call.Read(newRowSource(rows)); err != nil {
			return err
		}
		return rows.Close()
	}

	if rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return err
		}
		if len(values) > 0 {
			outcome.Scalar = normalize(values[0])
		}
		if len(bc.byCol) > 0 {
			cols, err := rows.Columns()
			if err != nil {
				return err
			}
			for idx, col := range bc.byCol {
				for j, c := range cols {
					if strings.EqualFold(c, col) {
						outcome.Outputs[idx] = normalize(values[j])
					}
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// output parameters are only populated once the rows are closed
	return rows.Close()
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// outputDest allocates a typed destination for an output parameter, seeded
// with the input value for in/out parameters.
func outputDest(t core.SQLType, in any) (any, error) {
	var dest any
	switch {
	case t.Kind.IsInteger():
		dest = new(int64)
	case t.Kind == core.KindDecimal || t.Kind == core.KindReal || t.Kind == core.KindFloat:
		dest = new(float64)
	case t.Kind == core.KindBit:
		dest = new(bool)
	case t.Kind == core.KindBinary || t.Kind == core.KindVarBinary:
		dest = new([]byte)
	case t.Kind == core.KindDate || t.Kind == core.KindDateTime:
		dest = new(time.Time)
	case t.Kind == core.KindVariant:
		if in == nil {
			dest = new(string)
			break
		}
		dest = reflect.New(reflect.TypeOf(in)).Interface()
	default:
		dest = new(string)
	}
	if in == nil {
		return dest, nil
	}
	elem := reflect.ValueOf(dest).Elem()
	v := reflect.ValueOf(in)
	if !v.Type().ConvertibleTo(elem.Type()) {
		return nil, fmt.Errorf("cannot send %T as %s", in, t)
	}
	elem.Set(v.Convert(elem.Type()))
	return dest, nil
}
