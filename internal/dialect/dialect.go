// Package dialect holds the per-database details of calling a stored program:
// driver to dialect mapping, the call envelope, bind names and type names.
package dialect

import (
	"fmt"
	"strings"

	"github.com/ignaciocaff/dbprogram/internal/core"
)

// Dialect identifies a database family.
type Dialect string

const (
	Oracle    Dialect = "oracle"
	SQLServer Dialect = "sqlserver"
	Postgres  Dialect = "postgres"
)

var drivers = map[string]Dialect{
	"godror":    Oracle,
	"oracle":    Oracle,
	"sqlserver": SQLServer,
	"mssql":     SQLServer,
	"pgx":       Postgres,
	"postgres":  Postgres,
}

// ForDriver returns the dialect spoken by a database/sql driver name.
func ForDriver(driver string) (Dialect, error) {
	d, ok := drivers[strings.ToLower(driver)]
	if !ok {
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
	return d, nil
}

// Drivers lists the supported driver names.
func Drivers() []string {
	return []string{"godror", "oracle", "sqlserver", "mssql", "pgx", "postgres"}
}

// BindName strips the dialect's parameter prefix from a declared name.
func BindName(name string) string {
	return strings.TrimLeft(name, "@:")
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int, name string) string {
	switch d {
	case Oracle:
		return ":" + BindName(name)
	case SQLServer:
		return "@" + BindName(name)
	}
	return fmt.Sprintf("$%d", n)
}

// ReturnName is the bind name used for a function's return value.
const ReturnName = "dbprogram_return"

// CallText builds the statement that invokes program with the named
// arguments. SQL Server calls stored procedures by bare name.
func (d Dialect) CallText(kind core.CallKind, program string, names []string) string {
	if d == SQLServer {
		return program
	}
	args := make([]string, len(names))
	for i, n := range names {
		args[i] = fmt.Sprintf("%s => %s", BindName(n), d.Placeholder(i+1, n))
	}
	list := strings.Join(args, ", ")
	if d == Oracle {
		if kind == core.CallScalar {
			return fmt.Sprintf("BEGIN :%s := %s(%s); END;", ReturnName, program, list)
		}
		return fmt.Sprintf("BEGIN %s(%s); END;", program, list)
	}
	if kind == core.CallNonQuery {
		return fmt.Sprintf("CALL %s(%s)", program, list)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", program, list)
}

// ParseType maps a catalog type name onto a core.SQLType. Sizes are in
// characters for character types and bytes for binary types.
func (d Dialect) ParseType(name string, size, precision, scale int) core.SQLType {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = strings.TrimSpace(n[:i])
	}
	switch n {
	case "int", "integer", "int4", "pls_integer", "binary_integer":
		return core.Type(core.KindInt)
	case "bigint", "int8":
		return core.Type(core.KindBigInt)
	case "smallint", "int2":
		return core.Type(core.KindSmallInt)
	case "tinyint":
		return core.Type(core.KindTinyInt)
	case "bit", "boolean", "bool":
		return core.Type(core.KindBit)
	case "decimal", "numeric", "number", "money", "smallmoney":
		return core.Decimal(precision, scale)
	case "real", "float4", "binary_float":
		return core.Type(core.KindReal)
	case "float", "float8", "double precision", "binary_double":
		return core.Type(core.KindFloat)
	case "char", "character", "bpchar":
		return core.Sized(core.KindChar, size)
	case "nchar":
		return core.Sized(core.KindNChar, size)
	case "varchar", "varchar2", "character varying":
		return core.Sized(core.KindVarChar, size)
	case "nvarchar", "nvarchar2":
		return core.Sized(core.KindNVarChar, size)
	case "text", "ntext", "clob", "nclob", "long":
		return core.Type(core.KindText)
	case "binary":
		return core.Sized(core.KindBinary, size)
	case "varbinary", "raw", "blob", "bytea", "image", "long raw":
		return core.Sized(core.KindVarBinary, size)
	case "date":
		if d == Oracle {
			return core.SQLType{Kind: core.KindDateTime}
		}
		return core.Type(core.KindDate)
	case "datetime":
		return core.SQLType{Kind: core.KindDateTime, Precision: 3}
	case "smalldatetime":
		return core.SQLType{Kind: core.KindDateTime}
	case "datetime2", "datetimeoffset", "timestamp", "timestamptz", "timestamp with time zone",
		"timestamp without time zone", "timestamp with local time zone":
		return core.SQLType{Kind: core.KindDateTime, Precision: scale}
	case "uniqueidentifier", "uuid":
		return core.Type(core.KindGUID)
	case "xml", "xmltype":
		return core.Type(core.KindXML)
	case "ref cursor", "refcursor", "sys_refcursor":
		return core.Type(core.KindRefCursor)
	}
	return core.Type(core.KindVariant)
}

// ParseDirection maps a catalog parameter mode onto a core.Direction.
func ParseDirection(mode string) core.Direction {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(mode), "/", "")) {
	case "OUT", "OUTPUT":
		return core.DirectionOut
	case "INOUT", "IN OUT":
		return core.DirectionInOut
	}
	return core.DirectionIn
}
