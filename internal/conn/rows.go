package conn

import (
	"database/sql/driver"
	"io"

	"github.com/jmoiron/sqlx"
)

// rowSource adapts *sqlx.Rows to core.RowSource.
type rowSource struct {
	rows *sqlx.Rows
	cols []string
}

func newRowSource(rows *sqlx.Rows) *rowSource {
	cols, _ := rows.Columns()
	return &rowSource{rows: rows, cols: cols}
}

func (r *rowSource) Columns() []string { return r.cols }

func (r *rowSource) Next(dest []driver.Value) error {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	values, err := r.rows.SliceScan()
	if err != nil {
		return err
	}
	for i := range dest {
		if i < len(values) {
			dest[i] = values[i]
		}
	}
	return nil
}

func (r *rowSource) Close() error { return r.rows.Close() }
