// Package pkg holds the synchronous helpers. They resolve programs through
// the resolver installed with Configure and run on its application context.
package pkg

import (
	"github.com/ignaciocaff/dbprogram/internal/core"
)

// Execute resolves program in databaseID and maps its rows onto result,
// a pointer to a struct or to a slice of structs.
func Execute(databaseID, program string, result any, args ...core.Arg) error {
	return core.Execute(core.GetContext(), core.GetResolver(), databaseID, program, result, args...)
}

// ExecuteNonQuery runs program once and returns the affected row count.
func ExecuteNonQuery(databaseID, program string, args ...core.Arg) (int64, error) {
	ctx := core.GetContext()
	p, values, err := core.Prepare(ctx, core.GetResolver(), databaseID, program, args...)
	if err != nil {
		return 0, err
	}
	return p.ExecuteNonQuery(ctx, values...)
}

// ExecuteScalar runs program once and returns its scalar result.
func ExecuteScalar(databaseID, program string, args ...core.Arg) (any, error) {
	ctx := core.GetContext()
	p, values, err := core.Prepare(ctx, core.GetResolver(), databaseID, program, args...)
	if err != nil {
		return nil, err
	}
	return p.ExecuteScalar(ctx, values...)
}

// ExecuteNonQueryAll runs program on every connection of its connection set.
func ExecuteNonQueryAll(databaseID, program string, args ...core.Arg) ([]int64, error) {
	ctx := core.GetContext()
	p, values, err := core.Prepare(ctx, core.GetResolver(), databaseID, program, args...)
	if err != nil {
		return nil, err
	}
	return p.ExecuteNonQueryAll(ctx, values...)
}

// ExecuteScalarAll returns one scalar per connection, in connection order.
func ExecuteScalarAll(databaseID, program string, args ...core.Arg) ([]any, error) {
	ctx := core.GetContext()
	p, values, err := core.Prepare(ctx, core.GetResolver(), databaseID, program, args...)
	if err != nil {
		return nil, err
	}
	return p.ExecuteScalarAll(ctx, values...)
}
