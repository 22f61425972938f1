package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/coretest"
)

func newProgram(t *testing.T, schema *core.ProgramSchema, specs []core.ParameterSpec, opts core.Options, conns ...*coretest.Conn) (*core.Program, *coretest.Set) {
	t.Helper()
	if len(conns) == 0 {
		conns = []*coretest.Conn{coretest.NewConn("primary", nil)}
	}
	set := coretest.NewSet("main", conns...)
	p, err := core.Create(context.Background(), set, coretest.NewSchema(schema), core.Request{
		Name:       schema.Name,
		Parameters: specs,
		Options:    opts,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p, set
}

func names(b *core.Binding) []string {
	out := make([]string, len(b.Parameters))
	for i, bp := range b.Parameters {
		out[i] = bp.Name()
	}
	return out
}

func TestBindNamedFollowsDeclarationOrder(t *testing.T) {
	for n := 1; n <= 8; n++ {
		t.Run(fmt.Sprintf("arity %d", n), func(t *testing.T) {
			var params []core.ParameterSchema
			var declared []string
			for i := 1; i <= n; i++ {
				name := fmt.Sprintf("p%d", i)
				params = append(params, coretest.In(name, core.Type(core.KindInt)))
				declared = append(declared, name)
			}
			p, _ := newProgram(t, coretest.Program("proc", params...), core.Params(declared...), core.Options{})

			// supply in reverse order
			args := make([]any, n)
			for i := 0; i < n; i++ {
				args[i] = core.Named(declared[n-1-i], n-1-i)
			}
			b, err := p.Bind(args...)
			require.NoError(t, err)
			require.Len(t, b.Parameters, n)
			assert.Equal(t, declared, names(b))
			for i, bp := range b.Parameters {
				assert.Equal(t, int64(i), bp.Value)
			}
		})
	}
}

func TestBindArityMismatch(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("a", core.Type(core.KindInt)),
		coretest.In("b", core.Type(core.KindInt)))
	p, _ := newProgram(t, schema, core.Params("a", "b"), core.Options{})

	tests := []struct {
		name string
		args []any
	}{
		{"too few", []any{core.Named("a", 1)}},
		{"too many", []any{core.Named("a", 1), core.Named("b", 2), core.Named("c", 3)}},
		{"none", nil},
		{"too few positional", []any{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Bind(tt.args...)
			require.ErrorIs(t, err, core.ErrArityMismatch)
			assert.Equal(t, 0, p.Cache().Len())
		})
	}
}

func TestBindUnknownParameterLeavesCacheUntouched(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("id", core.Type(core.KindInt)),
		coretest.In("name", core.Sized(core.KindVarChar, 10)))
	p, _ := newProgram(t, schema, core.Params("id", "name"), core.Options{})

	_, err := p.Bind(core.Named("id", 1), core.Named("nmae", "x"))
	require.ErrorIs(t, err, core.ErrUnknownParameter)
	assert.Equal(t, 0, p.Cache().Len())
}

func TestBindNamesAreCaseInsensitive(t *testing.T) {
	schema := coretest.Program("proc", coretest.In("@Id", core.Type(core.KindInt)))
	p, _ := newProgram(t, schema, core.Params("id"), core.Options{})

	first, err := p.Bind(core.Named("Id", 1))
	require.NoError(t, err)
	second, err := p.Bind(core.Named("id", 2))
	require.NoError(t, err)
	third, err := p.Bind(core.Named("@ID", 3))
	require.NoError(t, err)

	assert.Same(t, first.Parameters[0].Handle, second.Parameters[0].Handle)
	assert.Same(t, first.Parameters[0].Handle, third.Parameters[0].Handle)
	assert.Equal(t, 1, p.Cache().Len())
}

func TestBindByAlias(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("customer_id", core.Type(core.KindInt)),
		coretest.In("region", core.Sized(core.KindVarChar, 10)))
	specs := []core.ParameterSpec{{Name: "customer_id", Alias: "cust"}, {Name: "region"}}
	p, _ := newProgram(t, schema, specs, core.Options{})

	params := p.Definition().Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "cust", params[0].Alias)

	byAlias, err := p.Bind(core.Named("region", "north"), core.Named("@CUST", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "region"}, names(byAlias))

	byName, err := p.Bind(core.Named("customer_id", 2), core.Named("region", "south"))
	require.NoError(t, err)
	assert.Same(t, byAlias.Parameters[0].Handle, byName.Parameters[0].Handle)

	_, err = p.Bind(core.Named("cust", 3), core.Named("customer_id", 4))
	assert.ErrorIs(t, err, core.ErrDuplicateParameter)
}

func TestBindReusesCachedHandle(t *testing.T) {
	schema := coretest.Program("proc", coretest.In("id", core.Type(core.KindBigInt)))
	p, _ := newProgram(t, schema, core.Params("id"), core.Options{})

	first, err := p.Bind(core.Named("id", 10))
	require.NoError(t, err)
	second, err := p.Bind(core.Named("id", 20))
	require.NoError(t, err)

	h, ok := p.Cache().Lookup("id")
	require.True(t, ok)
	assert.Same(t, h, first.Parameters[0].Handle)
	assert.Same(t, h, second.Parameters[0].Handle)

	last, binds, ok := p.Cache().LastValue("ID")
	require.True(t, ok)
	assert.Equal(t, int64(20), last)
	assert.Equal(t, 2, binds)
	// earlier bindings keep their own values
	assert.Equal(t, int64(10), first.Parameters[0].Value)
}

func TestBindConstraintModes(t *testing.T) {
	schema := coretest.Program("proc", coretest.In("amount", core.Decimal(5, 2)))

	tests := []struct {
		mode     core.ConstraintMode
		wantErr  bool
		warnings int
	}{
		{core.ConstraintStrict, true, 0},
		{core.ConstraintWarn, false, 1},
		{core.ConstraintSilent, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			p, _ := newProgram(t, schema, core.Params("amount"), core.Options{Mode: tt.mode})
			b, err := p.Bind(core.Named("amount", 1.234))
			if tt.wantErr {
				var ce *core.ConstraintError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "amount", ce.Parameter)
				assert.ErrorIs(t, err, core.ErrConstraintViolation)
				assert.Equal(t, 0, p.Cache().Len())
				return
			}
			require.NoError(t, err)
			assert.Len(t, b.Warnings, tt.warnings)
			assert.Equal(t, 1.23, b.Parameters[0].Value)
		})
	}
}

func TestBindOutOfRangeFailsInEveryMode(t *testing.T) {
	schema := coretest.Program("proc", coretest.In("n", core.Type(core.KindSmallInt)))
	for _, mode := range []core.ConstraintMode{core.ConstraintStrict, core.ConstraintWarn, core.ConstraintSilent} {
		p, _ := newProgram(t, schema, core.Params("n"), core.Options{Mode: mode})
		_, err := p.Bind(core.Named("n", 70000))
		assert.ErrorIs(t, err, core.ErrConstraintViolation, mode.String())
	}
}

func TestBindIsAllOrNothing(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("a", core.Type(core.KindInt)),
		coretest.In("b", core.Type(core.KindTinyInt)))
	p, _ := newProgram(t, schema, core.Params("a", "b"), core.Options{Mode: core.ConstraintStrict})

	_, err := p.Bind(core.Named("a", 1), core.Named("b", 2))
	require.NoError(t, err)
	hA, _ := p.Cache().Lookup("a")

	_, err = p.Bind(core.Named("a", 99), core.Named("b", 300))
	require.ErrorIs(t, err, core.ErrConstraintViolation)

	last, binds, ok := p.Cache().LastValue("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), last)
	assert.Equal(t, 1, binds)
	hA2, _ := p.Cache().Lookup("a")
	assert.Same(t, hA, hA2)
}

func TestBindRejectsMixedArguments(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("a", core.Type(core.KindInt)),
		coretest.In("b", core.Type(core.KindInt)))
	p, _ := newProgram(t, schema, core.Params("a", "b"), core.Options{})

	_, err := p.Bind(core.Named("a", 1), 2)
	assert.ErrorIs(t, err, core.ErrMixedArguments)
}

func TestBindOutputOnInputParameter(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("a", core.Type(core.KindInt)),
		coretest.Out("total", core.Type(core.KindInt)))
	p, _ := newProgram(t, schema, core.Params("a", "total"), core.Options{})

	_, err := p.Bind(core.Named("a", core.NewOut[int]()), core.Named("total", core.NewOut[int]()))
	assert.ErrorIs(t, err, core.ErrInvalidOutUsage)

	out := core.NewOut[int]()
	b, err := p.Bind(core.Named("a", 1), core.Named("total", out))
	require.NoError(t, err)
	assert.Same(t, out, b.Parameters[1].Output)
	assert.Nil(t, b.Parameters[1].Value)
}

func TestBindInOutSendsInput(t *testing.T) {
	schema := coretest.Program("proc", coretest.InOut("counter", core.Type(core.KindInt)))
	p, _ := newProgram(t, schema, core.Params("counter"), core.Options{})

	b, err := p.Bind(core.Named("counter", core.NewInOut(5)))
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Parameters[0].Value)
	assert.Equal(t, core.OutputSingle, b.Parameters[0].Output.OutputKind())
}

func TestBindPositional(t *testing.T) {
	schema := coretest.Program("proc",
		coretest.In("id", core.Type(core.KindInt)),
		coretest.In("name", core.Sized(core.KindVarChar, 4)),
		coretest.In("extra", core.Type(core.KindBit)))
	p, _ := newProgram(t, schema, core.Positional(core.Type(core.KindInt), core.Type(core.KindVarChar)), core.Options{})

	assert.Equal(t, 2, p.Definition().Arity())
	assert.Len(t, p.Definition().Parameters(), 3)

	b, err := p.Bind("7", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, names(b))
	assert.Equal(t, int64(7), b.Parameters[0].Value)
	assert.Equal(t, "abcd", b.Parameters[1].Value)
	assert.Len(t, b.Warnings, 1)
}

func TestBindPositionalInsufficientDeclaredParameters(t *testing.T) {
	schema := coretest.Program("proc", coretest.In("only", core.Type(core.KindInt)))
	p, _ := newProgram(t, schema,
		core.Positional(core.Type(core.KindInt), core.Type(core.KindInt)),
		core.Options{IgnoreValidationErrors: true})
	require.Equal(t, core.StateReadyWithWarnings, p.Definition().State())

	_, err := p.Bind(1, 2)
	require.ErrorIs(t, err, core.ErrArityMismatch)
	assert.Contains(t, err.Error(), "declares 1 parameters, 2 required")
}

func TestConstraintErrorMatchesSentinel(t *testing.T) {
	err := &core.ConstraintError{Parameter: "x", Type: core.Type(core.KindInt), Value: "y", Reason: "bad"}
	assert.True(t, errors.Is(err, core.ErrConstraintViolation))
	assert.Contains(t, err.Error(), "x")
}
