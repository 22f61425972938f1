package core

import (
	"context"
	"errors"
	"reflect"
)

var errNoResolver = errors.New("dbprogram: no resolver configured")

// Prepare resolves program with the names of args and returns it together
// with args in the form Bind expects.
func Prepare(ctx context.Context, r Resolver, databaseID, program string, args ...Arg) (*Program, []any, error) {
	if r == nil {
		return nil, nil, errNoResolver
	}
	names := make([]string, len(args))
	values := make([]any, len(args))
	for i, a := range args {
		names[i] = a.Name
		values[i] = a
	}
	p, err := r.Program(ctx, databaseID, program, names, Overrides{})
	if err != nil {
		return nil, nil, err
	}
	return p, values, nil
}

// Execute resolves and runs a reader program, mapping its rows onto result:
// a pointer to a slice receives every row, a pointer to a struct the first.
func Execute(ctx context.Context, r Resolver, databaseID, program string, result any, args ...Arg) error {
	p, values, err := Prepare(ctx, r, databaseID, program, args...)
	if err != nil {
		return err
	}
	return p.ExecuteReader(ctx, func(rd *Reader) error {
		rv := reflect.ValueOf(result)
		if rv.Kind() == reflect.Ptr && rv.Elem().Kind() == reflect.Slice {
			return rd.ScanAll(result)
		}
		if rd.Next() {
			return rd.Scan(result)
		}
		return rd.Err()
	}, values...)
}
