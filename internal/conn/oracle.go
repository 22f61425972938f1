package conn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	_ "github.com/godror/godror" // Oracle driver (cgo, ODPI-C)
	ora "github.com/sijms/go-ora/v2"

	"github.com/ignaciocaff/dbprogram/internal/core"
)

var errNoCursor = errors.New("reader call requires a ref cursor parameter on oracle")

// cursorDest holds the out destination of a ref cursor parameter. godror
// returns the cursor as driver.Rows, go-ora as a RefCursor to be queried.
type cursorDest struct {
	godror bool
	rows   driver.Rows
	ref    ora.RefCursor
}

func newCursorDest(driverName string) *cursorDest {
	return &cursorDest{godror: driverName == "godror"}
}

func (c *cursorDest) dest() any {
	if c.godror {
		return &c.rows
	}
	return &c.ref
}

func (c *cursorDest) open() (core.RowSource, error) {
	if c.godror {
		if c.rows == nil {
			return nil, errors.New("ref cursor was not opened by the program")
		}
		return c.rows, nil
	}
	ds, err := c.ref.Query()
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *cursorDest) close() {
	if c.godror {
		if c.rows != nil {
			_ = c.rows.Close()
		}
		return
	}
	_ = c.ref.Close()
}

// executeOracle runs the anonymous PL/SQL block. Scalars come back through
// the function return bind, rows through the ref cursor.
func (e *Endpoint) executeOracle(ctx context.Context, call *core.Call, bc *boundCall, outcome *core.Outcome) error {
	if call.Kind == core.CallReader && bc.cursor == nil {
		return errNoCursor
	}
	res, err := e.db.ExecContext(ctx, bc.text, bc.args...)
	if err != nil {
		return err
	}
	if bc.cursor != nil {
		defer bc.cursor.close()
	}

	switch call.Kind {
	case core.CallNonQuery:
		outcome.RowsAffected, _ = res.RowsAffected()
	case core.CallScalar:
		if ret, ok := bc.returns.(*sql.NullString); ok && ret.Valid {
			outcome.Scalar = ret.String
		}
	case core.CallReader:
		if call.Read == nil {
			return errors.New("reader call without a read function")
		}
		src, err := bc.cursor.open()
		if err != nil {
			return err
		}
		return call.Read(src)
	}
	return nil
}
