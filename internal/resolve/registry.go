package resolve

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/core"
)

// Registry addresses databases by id. It implements core.Resolver.
type Registry struct {
	provider  core.ConnectionProvider
	resolvers map[string]*Resolver
}

// NewRegistry builds one resolver per enabled database in cfg.
func NewRegistry(cfg *config.Config, provider core.ConnectionProvider, source core.SchemaSource, logger *zap.Logger) *Registry {
	r := &Registry{provider: provider, resolvers: map[string]*Resolver{}}
	for i := range cfg.Databases {
		db := &cfg.Databases[i]
		if !db.IsEnabled() {
			continue
		}
		r.resolvers[strings.ToLower(db.ID)] = NewResolver(db, provider, source, logger)
	}
	return r
}

// Database returns the resolver of an enabled database.
func (r *Registry) Database(id string) (*Resolver, error) {
	res, ok := r.resolvers[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownOrDisabledDatabase, id)
	}
	return res, nil
}

// Program resolves a program of databaseID.
func (r *Registry) Program(ctx context.Context, databaseID, name string, params []string, ov core.Overrides) (*core.Program, error) {
	res, err := r.Database(databaseID)
	if err != nil {
		return nil, err
	}
	return res.Program(ctx, name, params, ov)
}

// Close releases the connection provider when it holds open handles.
func (r *Registry) Close() error {
	if c, ok := r.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
