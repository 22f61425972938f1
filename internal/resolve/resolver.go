package resolve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/core"
)

// Resolver resolves programs of one database.
type Resolver struct {
	db       *config.DatabaseConfig
	provider core.ConnectionProvider
	source   core.SchemaSource
	logger   *zap.Logger
}

func NewResolver(db *config.DatabaseConfig, provider core.ConnectionProvider, source core.SchemaSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		db:       db,
		provider: provider,
		source:   source,
		logger:   logger.With(zap.String("database", db.ID)),
	}
}

// ID returns the database id.
func (r *Resolver) ID() string { return r.db.ID }

// Program resolves name with the given parameter names. Mapping and
// connection errors are returned before any connection is opened; the
// resolved program is then validated against the live schema.
func (r *Resolver) Program(ctx context.Context, name string, params []string, ov core.Overrides) (*core.Program, error) {
	entry, _ := r.db.Program(name)

	physical := PhysicalName(name, entry)
	specs, err := MapParameters(entry, params)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", name, err)
	}
	connection, err := SelectConnection(r.db, entry)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", name, err)
	}
	opts := ResolveOptions(ov, entry)

	r.logger.Debug("resolving program",
		zap.String("program", name),
		zap.String("physical", physical),
		zap.String("connection", connection),
		zap.Stringer("mode", opts.Mode))

	set, err := r.provider.Connections(ctx, r.db.ID, connection)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", name, err)
	}
	return core.Create(ctx, set, r.source, core.Request{
		Name:         name,
		PhysicalName: physical,
		Parameters:   specs,
		Options:      opts,
	}, r.logger)
}

// PhysicalName applies the entry's name mapping.
func PhysicalName(name string, entry *config.ProgramConfig) string {
	if entry != nil && strings.TrimSpace(entry.MapTo) != "" {
		return entry.MapTo
	}
	return name
}

// MapParameters substitutes mapped parameter names. A mapping entry with an
// empty target fails with core.ErrInvalidParameterMapping; names without an
// entry pass through unchanged.
func MapParameters(entry *config.ProgramConfig, params []string) ([]core.ParameterSpec, error) {
	specs := make([]core.ParameterSpec, len(params))
	for i, p := range params {
		name, alias := p, ""
		if entry != nil {
			if m, ok := entry.Mapping(p); ok {
				if strings.TrimSpace(m.MapTo) == "" {
					return nil, fmt.Errorf("%w: parameter %q maps to an empty name", core.ErrInvalidParameterMapping, p)
				}
				name, alias = m.MapTo, p
			}
		}
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: parameter %d has no name", core.ErrInvalidParameterMapping, i+1)
		}
		specs[i] = core.ParameterSpec{Name: name, Alias: alias}
	}
	return specs, nil
}

// SelectConnection returns the entry's connection, which must exist and be
// enabled, or else the first enabled connection in declaration order.
func SelectConnection(db *config.DatabaseConfig, entry *config.ProgramConfig) (string, error) {
	if entry != nil && entry.Connection != "" {
		cn, ok := db.Connection(entry.Connection)
		if !ok || !cn.IsEnabled() {
			return "", fmt.Errorf("%w: %q", core.ErrUnknownOrDisabledConnection, entry.Connection)
		}
		return cn.Name, nil
	}
	for i := range db.Connections {
		if db.Connections[i].IsEnabled() {
			return db.Connections[i].Name, nil
		}
	}
	return "", fmt.Errorf("%w: database %q has no enabled connection", core.ErrUnknownOrDisabledConnection, db.ID)
}
