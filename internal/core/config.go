package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Overrides are call-site option values. A nil field defers to the program's
// configuration entry and then to the default.
type Overrides struct {
	IgnoreValidationErrors *bool
	CheckOrder             *bool
	DefaultCommandTimeout  *time.Duration
	ConstraintMode         *ConstraintMode
}

// Resolver resolves configured programs by database id.
type Resolver interface {
	Program(ctx context.Context, databaseID, name string, params []string, ov Overrides) (*Program, error)
}

var (
	mu         sync.RWMutex
	resolver   Resolver
	appContext context.Context
	logger     = zap.NewNop()
)

// Configure installs the process-wide resolver, context and logger used by
// the synchronous helpers. A nil logger keeps the current one.
func Configure(r Resolver, ctx context.Context, l *zap.Logger) {
	if r == nil || ctx == nil {
		panic("dbprogram: resolver and context must be provided")
	}
	mu.Lock()
	defer mu.Unlock()
	resolver = r
	appContext = ctx
	if l != nil {
		logger = l
	}
}

func GetResolver() Resolver {
	mu.RLock()
	defer mu.RUnlock()
	return resolver
}

func GetContext() context.Context {
	mu.RLock()
	defer mu.RUnlock()
	if appContext == nil {
		return context.Background()
	}
	return appContext
}

func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
