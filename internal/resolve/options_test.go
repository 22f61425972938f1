package resolve_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/resolve"
)

func ptr[T any](v T) *T { return &v }

func TestResolveBoolOptions(t *testing.T) {
	tests := []struct {
		name     string
		explicit *bool
		entry    *config.ProgramConfig
		want     bool
	}{
		{"default", nil, nil, false},
		{"entry without value", nil, &config.ProgramConfig{}, false},
		{"entry", nil, &config.ProgramConfig{IgnoreValidationErrors: ptr(true), CheckOrder: ptr(true)}, true},
		{"explicit false wins", ptr(false), &config.ProgramConfig{IgnoreValidationErrors: ptr(true), CheckOrder: ptr(true)}, false},
		{"explicit true", ptr(true), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve.ResolveIgnoreValidationErrors(tt.explicit, tt.entry))
			assert.Equal(t, tt.want, resolve.ResolveCheckOrder(tt.explicit, tt.entry))
		})
	}
}

func TestResolveCommandTimeout(t *testing.T) {
	entry := &config.ProgramConfig{DefaultCommandTimeout: "45s"}

	assert.Equal(t, core.DefaultCommandTimeout, resolve.ResolveCommandTimeout(nil, nil))
	assert.Equal(t, 45*time.Second, resolve.ResolveCommandTimeout(nil, entry))
	assert.Equal(t, 2*time.Second, resolve.ResolveCommandTimeout(ptr(2*time.Second), entry))
	assert.Equal(t, 45*time.Second, resolve.ResolveCommandTimeout(ptr(time.Duration(0)), entry))
	assert.Equal(t, core.DefaultCommandTimeout, resolve.ResolveCommandTimeout(ptr(-time.Second), nil))
	assert.Equal(t, core.DefaultCommandTimeout, resolve.ResolveCommandTimeout(nil, &config.ProgramConfig{DefaultCommandTimeout: "-5s"}))
}

func TestResolveConstraintMode(t *testing.T) {
	entry := &config.ProgramConfig{ConstraintMode: "silent"}

	assert.Equal(t, core.ConstraintWarn, resolve.ResolveConstraintMode(nil, nil))
	assert.Equal(t, core.ConstraintSilent, resolve.ResolveConstraintMode(nil, entry))
	assert.Equal(t, core.ConstraintStrict, resolve.ResolveConstraintMode(ptr(core.ConstraintStrict), entry))
	assert.Equal(t, core.ConstraintWarn, resolve.ResolveConstraintMode(ptr(core.ConstraintWarn), entry))
}

func TestResolveOptionsResolvesIndependently(t *testing.T) {
	entry := &config.ProgramConfig{
		IgnoreValidationErrors: ptr(true),
		DefaultCommandTimeout:  "1m",
		ConstraintMode:         "strict",
	}
	got := resolve.ResolveOptions(core.Overrides{CheckOrder: ptr(true), ConstraintMode: ptr(core.ConstraintSilent)}, entry)
	assert.Equal(t, core.Options{
		IgnoreValidationErrors: true,
		CheckOrder:             true,
		Timeout:                time.Minute,
		Mode:                   core.ConstraintSilent,
	}, got)
}
