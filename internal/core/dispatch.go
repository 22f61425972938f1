package core

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type readFunc func(RowSource) (any, error)

// ExecuteNonQuery runs the program once and returns the affected row count.
func (p *Program) ExecuteNonQuery(ctx context.Context, args ...any) (int64, error) {
	v, err := p.dispatch(ctx, CallNonQuery, nil, args)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ExecuteScalar runs the program once and returns the first column of the
// first row, or the function's return value.
func (p *Program) ExecuteScalar(ctx context.Context, args ...any) (any, error) {
	return p.dispatch(ctx, CallScalar, nil, args)
}

// ExecuteReader runs the program once and hands its rows to fn.
func (p *Program) ExecuteReader(ctx context.Context, fn func(*Reader) error, args ...any) error {
	_, err := p.dispatch(ctx, CallReader, readerOf(func(r *Reader) (any, error) { return nil, fn(r) }), args)
	return err
}

// ExecuteXMLReader runs the program once and decodes its XML result with fn.
func (p *Program) ExecuteXMLReader(ctx context.Context, fn func(*xml.Decoder) error, args ...any) error {
	_, err := p.dispatch(ctx, CallReader, xmlReaderOf(func(d *xml.Decoder) (any, error) { return nil, fn(d) }), args)
	return err
}

// ExecuteNonQueryAll runs the program on every connection and returns the
// affected row counts in connection order.
func (p *Program) ExecuteNonQueryAll(ctx context.Context, args ...any) ([]int64, error) {
	values, err := p.dispatchAll(ctx, CallNonQuery, nil, args)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.(int64)
	}
	return out, nil
}

// ExecuteScalarAll runs the program on every connection and returns one
// scalar per connection.
func (p *Program) ExecuteScalarAll(ctx context.Context, args ...any) ([]any, error) {
	return p.dispatchAll(ctx, CallScalar, nil, args)
}

// ExecuteReaderAll runs the program on every connection, calling fn once per
// connection. Calls to fn may run concurrently.
func (p *Program) ExecuteReaderAll(ctx context.Context, fn func(*Reader) error, args ...any) error {
	_, err := p.dispatchAll(ctx, CallReader, readerOf(func(r *Reader) (any, error) { return nil, fn(r) }), args)
	return err
}

// ExecuteXMLReaderAll runs the program on every connection, decoding each XML
// result with fn. Calls to fn may run concurrently.
func (p *Program) ExecuteXMLReaderAll(ctx context.Context, fn func(*xml.Decoder) error, args ...any) error {
	_, err := p.dispatchAll(ctx, CallReader, xmlReaderOf(func(d *xml.Decoder) (any, error) { return nil, fn(d) }), args)
	return err
}

// Scalar runs p once and converts its scalar result to T.
func Scalar[T any](ctx context.Context, p *Program, args ...any) (T, error) {
	var zero T
	v, err := p.ExecuteScalar(ctx, args...)
	if err != nil {
		return zero, err
	}
	out, _, err := convertOutput[T](v)
	return out, err
}

// Read runs p once and returns what fn decodes from its rows.
func Read[T any](ctx context.Context, p *Program, fn func(*Reader) (T, error), args ...any) (T, error) {
	var zero T
	v, err := p.dispatch(ctx, CallReader, readerOf(func(r *Reader) (any, error) { return fn(r) }), args)
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}

// ReadAll runs p on every connection and returns one decoded value per
// connection, in connection order.
func ReadAll[T any](ctx context.Context, p *Program, fn func(*Reader) (T, error), args ...any) ([]T, error) {
	values, err := p.dispatchAll(ctx, CallReader, readerOf(func(r *Reader) (any, error) { return fn(r) }), args)
	if err != nil {
		return nil, err
	}
	return castAll[T](values), nil
}

// ReadXML runs p once and returns what fn decodes from its XML result.
func ReadXML[T any](ctx context.Context, p *Program, fn func(*xml.Decoder) (T, error), args ...any) (T, error) {
	var zero T
	v, err := p.dispatch(ctx, CallReader, xmlReaderOf(func(d *xml.Decoder) (any, error) { return fn(d) }), args)
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}

// ReadXMLAll is the fan-out form of ReadXML.
func ReadXMLAll[T any](ctx context.Context, p *Program, fn func(*xml.Decoder) (T, error), args ...any) ([]T, error) {
	values, err := p.dispatchAll(ctx, CallReader, xmlReaderOf(func(d *xml.Decoder) (any, error) { return fn(d) }), args)
	if err != nil {
		return nil, err
	}
	return castAll[T](values), nil
}

func castAll[T any](values []any) []T {
	out := make([]T, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = v.(T)
		}
	}
	return out
}

func readerOf(fn func(*Reader) (any, error)) readFunc {
	return func(src RowSource) (any, error) { return fn(newReader(src)) }
}

func xmlReaderOf(fn func(*xml.Decoder) (any, error)) readFunc {
	return func(src RowSource) (any, error) {
		return fn(xml.NewDecoder(&xmlSource{r: newReader(src)}))
	}
}

// dispatch binds args and executes the call against one connection.
func (p *Program) dispatch(ctx context.Context, kind CallKind, read readFunc, args []any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	binding, err := p.Bind(args...)
	if err != nil {
		return nil, err
	}
	conn, err := p.set.Pick()
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", p.def.name, err)
	}
	for _, bp := range binding.Parameters {
		if bp.Output != nil {
			bp.Output.begin(1)
		}
	}
	return p.execute(ctx, conn, 0, kind, binding, read, uuid.NewString())
}

// dispatchAll binds args once and executes the identical call on every
// connection concurrently. Results are returned in connection order only when
// every connection succeeded.
func (p *Program) dispatchAll(ctx context.Context, kind CallKind, read readFunc, args []any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name, ok := singleOutput(args); ok {
		return nil, fmt.Errorf("program %q: parameter %s uses a single-connection output in a fan-out call: %w",
			p.def.name, name, ErrInvalidOutUsage)
	}
	binding, err := p.Bind(args...)
	if err != nil {
		return nil, err
	}
	conns := p.set.All()
	if len(conns) == 0 {
		return nil, fmt.Errorf("program %q: %s: %w", p.def.name, p.set.Name(), ErrNoConnections)
	}
	for _, bp := range binding.Parameters {
		if bp.Output != nil {
			bp.Output.begin(len(conns))
		}
	}

	callID := uuid.NewString()
	results := make([]any, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	for i, conn := range conns {
		g.Go(func() error {
			v, err := p.execute(gctx, conn, i, kind, binding, read, callID)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, bp := range binding.Parameters {
			if bp.Output != nil {
				bp.Output.clear()
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return results, nil
}

// singleOutput returns the first argument carrying an Out capture.
func singleOutput(args []any) (string, bool) {
	for i, a := range args {
		name, v := fmt.Sprintf("#%d", i+1), a
		if arg, ok := a.(Arg); ok {
			name, v = arg.Name, arg.Value
		}
		if oc, ok := v.(OutputCapture); ok && oc.OutputKind() == OutputSingle {
			return name, true
		}
	}
	return "", false
}

// execute runs one bound call on conn and captures its outputs at index.
func (p *Program) execute(ctx context.Context, conn Conn, index int, kind CallKind, binding *Binding, read readFunc, callID string) (any, error) {
	def := p.def
	log := p.logger.With(zap.String("call_id", callID), zap.String("endpoint", conn.Name()), zap.Stringer("kind", kind))

	execCtx, cancel := context.WithTimeout(ctx, def.timeout)
	defer cancel()

	var decoded any
	call := &Call{
		Kind:       kind,
		Program:    def.physical,
		Parameters: binding.Parameters,
		Timeout:    def.timeout,
	}
	if read != nil {
		call.Read = func(src RowSource) error {
			v, err := read(src)
			decoded = v
			return err
		}
	}

	start := time.Now()
	outcome, err := conn.Execute(execCtx, call)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Debug("program call cancelled", zap.Error(ctxErr))
			return nil, ctxErr
		}
		log.Error("program call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, p.executionError(conn, callID, binding, err)
	}
	log.Debug("program call completed", zap.Duration("elapsed", time.Since(start)))

	for i, bp := range binding.Parameters {
		if bp.Output == nil || i >= len(outcome.Outputs) {
			continue
		}
		if err := bp.Output.capture(index, conn.Name(), outcome.Outputs[i]); err != nil {
			return nil, p.executionError(conn, callID, binding, fmt.Errorf("output %s: %w", bp.Name(), err))
		}
	}

	switch kind {
	case CallScalar:
		return outcome.Scalar, nil
	case CallNonQuery:
		return outcome.RowsAffected, nil
	}
	return decoded, nil
}

func (p *Program) executionError(conn Conn, callID string, binding *Binding, err error) error {
	return &ExecutionError{
		Program:    p.def.name,
		Connection: conn.Name(),
		CallID:     callID,
		Parameters: binding.Snapshot(),
		Err:        err,
	}
}
