package resolve_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/coretest"
	"github.com/ignaciocaff/dbprogram/internal/resolve"
)

const registryYAML = `
databases:
  - id: sales
    connections:
      - name: west
        driver: sqlserver
        enabled: false
        endpoints: ["sqlserver://west"]
      - name: east
        driver: sqlserver
        endpoints: ["sqlserver://east"]
      - name: reporting
        driver: sqlserver
        endpoints: ["sqlserver://reporting"]
    programs:
      - name: GetOrders
        map_to: dbo.spGetOrders
        connection: reporting
        check_order: true
        default_command_timeout: 90s
        parameters:
          - name: p1
            map_to: param_one
      - name: Broken
        parameters:
          - name: p1
            map_to: ""
      - name: OnWest
        connection: west
  - id: archive
    enabled: false
    connections:
      - name: main
        driver: pgx
        endpoints: ["postgres://archive"]
`

// provider hands out coretest sets and records every request.
type provider struct {
	mu       sync.Mutex
	sets     map[string]*coretest.Set
	conns    map[string]*coretest.Conn
	requests []string
}

func (p *provider) Connections(ctx context.Context, databaseID, connection string) (core.ConnectionSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, databaseID+"/"+connection)
	s, ok := p.sets[strings.ToLower(connection)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownOrDisabledConnection, connection)
	}
	return s, nil
}

func (p *provider) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

func newRegistry(t *testing.T, schema *coretest.Schema) (*resolve.Registry, *provider) {
	t.Helper()
	cfg, err := config.Parse([]byte(registryYAML))
	require.NoError(t, err)
	east, reporting := coretest.NewConn("east#0", nil), coretest.NewConn("reporting#0", nil)
	p := &provider{
		sets: map[string]*coretest.Set{
			"east":      coretest.NewSet("east", east),
			"reporting": coretest.NewSet("reporting", reporting),
		},
		conns: map[string]*coretest.Conn{"east": east, "reporting": reporting},
	}
	return resolve.NewRegistry(cfg, p, schema, zaptest.NewLogger(t)), p
}

func ordersSchema() *core.ProgramSchema {
	return coretest.Program("dbo.spGetOrders",
		coretest.In("param_one", core.Type(core.KindInt)),
		coretest.In("status", core.Sized(core.KindVarChar, 10)))
}

func TestRegistryAppliesProgramEntry(t *testing.T) {
	schema := coretest.NewSchema(ordersSchema())
	reg, prov := newRegistry(t, schema)

	p, err := reg.Program(context.Background(), "SALES", "getorders", []string{"p1", "status"}, core.Overrides{})
	require.NoError(t, err)

	def := p.Definition()
	assert.Equal(t, "dbo.spGetOrders", def.PhysicalName())
	assert.Equal(t, "reporting", def.Connection())
	assert.Equal(t, 90*time.Second, def.Timeout())
	assert.Equal(t, core.StateReady, def.State())
	params := def.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "param_one", params[0].Name)
	assert.Equal(t, []string{"sales/reporting"}, prov.Requests())
}

func TestRegistryBindsMappedParametersByCallerName(t *testing.T) {
	reg, prov := newRegistry(t, coretest.NewSchema(ordersSchema()))
	ctx := context.Background()

	p, values, err := core.Prepare(ctx, reg, "sales", "GetOrders", core.Named("p1", 7), core.Named("status", "open"))
	require.NoError(t, err)
	_, err = p.ExecuteNonQuery(ctx, values...)
	require.NoError(t, err)

	_, err = p.ExecuteNonQuery(ctx, core.Named("status", "closed"), core.Named("PARAM_ONE", "8"))
	require.NoError(t, err)

	calls := prov.conns["reporting"].Calls()
	require.Len(t, calls, 2)
	for i, want := range []int64{7, 8} {
		call := calls[i]
		assert.Equal(t, "dbo.spGetOrders", call.Program)
		require.Len(t, call.Parameters, 2)
		assert.Equal(t, "param_one", call.Parameters[0].Name())
		assert.Equal(t, "p1", call.Parameters[0].Definition.Alias)
		assert.Equal(t, want, call.Parameters[0].Value)
		assert.Equal(t, "status", call.Parameters[1].Name())
	}
	assert.Equal(t, 2, p.Cache().Len())
}

func TestRegistryCheckOrderFromEntry(t *testing.T) {
	reg, _ := newRegistry(t, coretest.NewSchema(ordersSchema()))

	_, err := reg.Program(context.Background(), "sales", "GetOrders", []string{"status", "p1"}, core.Overrides{})
	require.ErrorIs(t, err, core.ErrValidationMismatch)

	_, err = reg.Program(context.Background(), "sales", "GetOrders", []string{"status", "p1"}, core.Overrides{CheckOrder: ptr(false)})
	require.NoError(t, err)
}

func TestRegistryUnmappedProgramUsesFirstEnabledConnection(t *testing.T) {
	schema := coretest.NewSchema(coretest.Program("Ping"))
	reg, prov := newRegistry(t, schema)

	p, err := reg.Program(context.Background(), "sales", "Ping", nil, core.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "Ping", p.Definition().PhysicalName())
	assert.Equal(t, "east", p.Definition().Connection())
	assert.Equal(t, core.DefaultCommandTimeout, p.Definition().Timeout())
	assert.Equal(t, []string{"sales/east"}, prov.Requests())
}

func TestRegistryFailsBeforeOpeningConnections(t *testing.T) {
	tests := []struct {
		name     string
		database string
		program  string
		wantErr  error
	}{
		{"empty parameter mapping", "sales", "Broken", core.ErrInvalidParameterMapping},
		{"disabled connection", "sales", "OnWest", core.ErrUnknownOrDisabledConnection},
		{"disabled database", "archive", "Ping", core.ErrUnknownOrDisabledDatabase},
		{"unknown database", "nope", "Ping", core.ErrUnknownOrDisabledDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := coretest.NewSchema()
			reg, prov := newRegistry(t, schema)

			_, err := reg.Program(context.Background(), tt.database, tt.program, []string{"p1"}, core.Overrides{})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, prov.Requests())
			assert.Equal(t, 0, schema.Calls())
		})
	}
}

func TestPhysicalName(t *testing.T) {
	assert.Equal(t, "Orders", resolve.PhysicalName("Orders", nil))
	assert.Equal(t, "Orders", resolve.PhysicalName("Orders", &config.ProgramConfig{MapTo: "  "}))
	assert.Equal(t, "pkg.orders", resolve.PhysicalName("Orders", &config.ProgramConfig{MapTo: "pkg.orders"}))
}

func TestMapParameters(t *testing.T) {
	entry := &config.ProgramConfig{Parameters: []config.ParameterMapping{
		{Name: "@p1", MapTo: "param_one"},
		{Name: "p2", MapTo: ""},
	}}

	specs, err := resolve.MapParameters(entry, []string{"P1", "other"})
	require.NoError(t, err)
	assert.Equal(t, []core.ParameterSpec{{Name: "param_one", Alias: "P1"}, {Name: "other"}}, specs)

	_, err = resolve.MapParameters(entry, []string{"p2"})
	assert.ErrorIs(t, err, core.ErrInvalidParameterMapping)

	_, err = resolve.MapParameters(nil, []string{""})
	assert.ErrorIs(t, err, core.ErrInvalidParameterMapping)

	specs, err = resolve.MapParameters(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestSelectConnection(t *testing.T) {
	db := &config.DatabaseConfig{
		ID: "sales",
		Connections: []config.ConnectionConfig{
			{Name: "west", Enabled: ptr(false)},
			{Name: "east"},
			{Name: "north"},
		},
	}

	got, err := resolve.SelectConnection(db, nil)
	require.NoError(t, err)
	assert.Equal(t, "east", got)

	got, err = resolve.SelectConnection(db, &config.ProgramConfig{Connection: "NORTH"})
	require.NoError(t, err)
	assert.Equal(t, "north", got)

	_, err = resolve.SelectConnection(db, &config.ProgramConfig{Connection: "west"})
	assert.ErrorIs(t, err, core.ErrUnknownOrDisabledConnection)

	_, err = resolve.SelectConnection(db, &config.ProgramConfig{Connection: "south"})
	assert.ErrorIs(t, err, core.ErrUnknownOrDisabledConnection)

	ordered := &config.DatabaseConfig{ID: "sales", Connections: []config.ConnectionConfig{{Name: "east"}, {Name: "west"}}}
	for i := 0; i < 3; i++ {
		got, err = resolve.SelectConnection(ordered, &config.ProgramConfig{Connection: "west"})
		require.NoError(t, err)
		assert.Equal(t, "west", got)
	}

	_, err = resolve.SelectConnection(&config.DatabaseConfig{ID: "empty"}, nil)
	assert.ErrorIs(t, err, core.ErrUnknownOrDisabledConnection)
}

func TestRegistryCloseWithoutCloser(t *testing.T) {
	reg, _ := newRegistry(t, coretest.NewSchema())
	assert.NoError(t, reg.Close())

	res, err := reg.Database("Sales")
	require.NoError(t, err)
	assert.Equal(t, "sales", res.ID())
}
