package dbprogram

import (
	"context"

	"go.uber.org/zap"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/conn"
	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/resolve"
	"github.com/ignaciocaff/dbprogram/internal/schema"
)

// Registry resolves programs by database id. Close releases its pools.
type Registry = resolve.Registry

// Resolver resolves the programs of one database.
type Resolver = resolve.Resolver

type options struct {
	logger *zap.Logger
	opener conn.OpenFunc
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used by every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOpener replaces sqlx.Open when opening endpoints.
func WithOpener(open conn.OpenFunc) Option {
	return func(o *options) { o.opener = open }
}

// Open loads the configuration file at path (dbprogram.yaml when empty) and
// DBPROGRAM_* environment overrides, and returns a registry over it.
// Connections are opened on first use.
func Open(path string, opts ...Option) (*Registry, error) {
	cfg, err := config.Load(path, nil)
	if err != nil {
		return nil, err
	}
	return newRegistry(cfg, opts), nil
}

// OpenYAML is Open for a configuration document held in memory.
func OpenYAML(data []byte, opts ...Option) (*Registry, error) {
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	return newRegistry(cfg, opts), nil
}

func newRegistry(cfg *config.Config, opts []Option) *Registry {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	poolOpts := []conn.PoolOption{conn.WithLogger(o.logger)}
	if o.opener != nil {
		poolOpts = append(poolOpts, conn.WithOpener(o.opener))
	}
	pool := conn.NewPool(cfg, poolOpts...)
	return resolve.NewRegistry(cfg, pool, schema.NewCatalog(o.logger), o.logger)
}

// Configure installs the resolver, application context and logger used by
// the synchronous helpers in package pkg. It panics when r or ctx is nil.
func Configure(r core.Resolver, ctx context.Context, logger *zap.Logger) {
	core.Configure(r, ctx, logger)
}
