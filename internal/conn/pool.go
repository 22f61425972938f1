package conn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/core"
)

// OpenFunc opens a database handle. sqlx.Open is used unless overridden.
type OpenFunc func(driverName, dsn string) (*sqlx.DB, error)

// Pool opens and caches the connection sets declared in a Config. Handles
// are opened lazily on first use and shared by every program of a database.
// It implements core.ConnectionProvider.
type Pool struct {
	cfg    *config.Config
	open   OpenFunc
	logger *zap.Logger

	mu   sync.Mutex
	sets map[string]*Set
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithOpener replaces sqlx.Open.
func WithOpener(open OpenFunc) PoolOption {
	return func(p *Pool) { p.open = open }
}

// WithLogger sets the pool's logger.
func WithLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPool(cfg *config.Config, opts ...PoolOption) *Pool {
	p := &Pool{
		cfg:    cfg,
		open:   sqlx.Open,
		logger: zap.NewNop(),
		sets:   map[string]*Set{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connections returns the set for databaseID/connection, opening its
// endpoints on first use. Unknown or disabled databases and connections
// fail with core.ErrUnknownOrDisabledDatabase and
// core.ErrUnknownOrDisabledConnection.
func (p *Pool) Connections(ctx context.Context, databaseID, connection string) (core.ConnectionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, ok := p.cfg.Database(databaseID)
	if !ok || !db.IsEnabled() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownOrDisabledDatabase, databaseID)
	}
	cn, ok := db.Connection(connection)
	if !ok || !cn.IsEnabled() {
		return nil, fmt.Errorf("%w: %q in database %q", core.ErrUnknownOrDisabledConnection, connection, databaseID)
	}

	key := strings.ToLower(db.ID) + "/" + strings.ToLower(cn.Name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.sets[key]; ok {
		return set, nil
	}
	set, err := p.openSet(cn)
	if err != nil {
		return nil, fmt.Errorf("database %q: %w", db.ID, err)
	}
	p.sets[key] = set
	return set, nil
}

func (p *Pool) openSet(cn *config.ConnectionConfig) (*Set, error) {
	set := &Set{name: cn.Name}
	for i, dsn := range cn.Endpoints {
		db, err := p.open(cn.Driver, dsn)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("connection %q: open endpoint %d: %w", cn.Name, i+1, err)
		}
		configurePool(db, cn)
		name := cn.Name
		if len(cn.Endpoints) > 1 {
			name = fmt.Sprintf("%s#%d", cn.Name, i+1)
		}
		ep, err := NewEndpoint(name, cn.Driver, db)
		if err != nil {
			_ = db.Close()
			_ = set.Close()
			return nil, fmt.Errorf("connection %q: %w", cn.Name, err)
		}
		set.endpoints = append(set.endpoints, ep)
	}
	p.logger.Debug("opened connection set",
		zap.String("connection", cn.Name),
		zap.String("driver", cn.Driver),
		zap.Int("endpoints", len(set.endpoints)))
	return set, nil
}

func configurePool(db *sqlx.DB, cn *config.ConnectionConfig) {
	if cn.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cn.MaxOpenConns)
	}
	if cn.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cn.MaxIdleConns)
	}
	if d := cn.Lifetime(); d > 0 {
		db.SetConnMaxLifetime(d)
	}
}

// Close closes every opened handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for key, set := range p.sets {
		if err := set.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.sets, key)
	}
	return errors.Join(errs...)
}

// Set is the endpoints of one connection. Pick rotates through them.
type Set struct {
	name      string
	endpoints []*Endpoint
	next      atomic.Uint64
}

// NewSet builds a set over already opened endpoints.
func NewSet(name string, endpoints ...*Endpoint) *Set {
	return &Set{name: name, endpoints: endpoints}
}

func (s *Set) Name() string { return s.name }

func (s *Set) Pick() (core.Conn, error) {
	if len(s.endpoints) == 0 {
		return nil, fmt.Errorf("connection %q: %w", s.name, core.ErrNoConnections)
	}
	i := s.next.Add(1) - 1
	return s.endpoints[i%uint64(len(s.endpoints))], nil
}

func (s *Set) All() []core.Conn {
	all := make([]core.Conn, len(s.endpoints))
	for i, ep := range s.endpoints {
		all[i] = ep
	}
	return all
}

// Endpoints returns the set's endpoints in declaration order.
func (s *Set) Endpoints() []*Endpoint { return s.endpoints }

func (s *Set) Close() error {
	var errs []error
	for _, ep := range s.endpoints {
		if err := ep.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
