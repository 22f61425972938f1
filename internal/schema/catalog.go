// Package schema reads stored program signatures from the database catalogs.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/dialect"
)

// catalogConn is a connection whose catalog can be queried directly.
type catalogConn interface {
	DB() *sqlx.DB
	Dialect() dialect.Dialect
}

// Catalog describes programs from the live catalog of a connection. It
// implements core.SchemaSource.
type Catalog struct {
	logger *zap.Logger
}

func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{logger: logger}
}

// Each query yields one row per parameter, or a single row of NULLs for a
// program without parameters. No rows means the program does not exist.
const (
	sqlServerQuery = `
		SELECT p.name, TYPE_NAME(p.user_type_id), p.max_length, p.precision, p.scale,
			p.parameter_id, CASE WHEN p.is_output = 1 THEN 'INOUT' ELSE 'IN' END
		FROM sys.objects o
		LEFT JOIN sys.parameters p ON p.object_id = o.object_id AND p.parameter_id > 0
		WHERE o.object_id = OBJECT_ID(@name)
		ORDER BY p.parameter_id`

	oracleQuery = `
		SELECT ARGUMENT_NAME, DATA_TYPE, NVL(CHAR_LENGTH, DATA_LENGTH), DATA_PRECISION, DATA_SCALE,
			POSITION, IN_OUT
		FROM ALL_ARGUMENTS
		WHERE OBJECT_NAME = :name AND DATA_LEVEL = 0%s
		ORDER BY POSITION`

	postgresQuery = `
		SELECT p.parameter_name, p.data_type, p.character_maximum_length, p.numeric_precision,
			p.numeric_scale, p.ordinal_position, p.parameter_mode
		FROM information_schema.routines r
		LEFT JOIN information_schema.parameters p
			ON p.specific_schema = r.specific_schema AND p.specific_name = r.specific_name
		WHERE r.routine_schema = $1 AND r.routine_name = $2
		ORDER BY p.ordinal_position`
)

// Describe reads program's parameters. It fails with core.ErrProgramNotFound
// when the catalog has no such program.
func (c *Catalog) Describe(ctx context.Context, conn core.Conn, program string) (*core.ProgramSchema, error) {
	cc, ok := conn.(catalogConn)
	if !ok {
		return nil, fmt.Errorf("connection %s does not expose a catalog", conn.Name())
	}
	d := cc.Dialect()
	query, args := catalogQuery(d, program)

	rows, err := cc.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	schema := &core.ProgramSchema{Name: program}
	found := false
	for rows.Next() {
		var (
			name, typeName, mode            sql.NullString
			size, precision, scale, ordinal sql.NullInt64
		)
		if err := rows.Scan(&name, &typeName, &size, &precision, &scale, &ordinal, &mode); err != nil {
			return nil, fmt.Errorf("failed to scan parameter metadata: %w", err)
		}
		found = true
		// function return values and parameterless programs have no name
		if !name.Valid || name.String == "" || ordinal.Int64 <= 0 {
			continue
		}
		schema.Parameters = append(schema.Parameters, core.ParameterSchema{
			Name:      name.String,
			Type:      d.ParseType(typeName.String, charSize(d, typeName.String, size), int(precision.Int64), int(scale.Int64)),
			Ordinal:   int(ordinal.Int64),
			Direction: dialect.ParseDirection(mode.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parameter metadata: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", core.ErrProgramNotFound, program)
	}

	c.logger.Debug("described program",
		zap.String("program", program),
		zap.String("dialect", string(d)),
		zap.Int("parameters", len(schema.Parameters)))
	return schema, nil
}

func catalogQuery(d dialect.Dialect, program string) (string, []any) {
	qualifier, name := splitName(program)
	switch d {
	case dialect.Oracle:
		if qualifier == "" {
			return fmt.Sprintf(oracleQuery, ""), []any{sql.Named("name", strings.ToUpper(name))}
		}
		return fmt.Sprintf(oracleQuery, " AND (PACKAGE_NAME = :pkg OR OWNER = :owner)"), []any{
			sql.Named("name", strings.ToUpper(name)),
			sql.Named("pkg", strings.ToUpper(qualifier)),
			sql.Named("owner", strings.ToUpper(qualifier)),
		}
	case dialect.Postgres:
		if qualifier == "" {
			qualifier = "public"
		}
		return postgresQuery, []any{qualifier, name}
	}
	return sqlServerQuery, []any{sql.Named("name", program)}
}

// splitName separates a schema or package qualifier from the program name.
func splitName(program string) (qualifier, name string) {
	if i := strings.LastIndexByte(program, '.'); i >= 0 {
		return program[:i], program[i+1:]
	}
	return "", program
}

// charSize converts the catalog length to the unit ParseType expects.
// SQL Server reports national character lengths in bytes and -1 for max.
func charSize(d dialect.Dialect, typeName string, size sql.NullInt64) int {
	if !size.Valid {
		return 0
	}
	n := int(size.Int64)
	if d != dialect.SQLServer {
		return n
	}
	if n == -1 {
		return core.MaxSize
	}
	switch strings.ToLower(typeName) {
	case "nchar", "nvarchar":
		return n / 2
	}
	return n
}
