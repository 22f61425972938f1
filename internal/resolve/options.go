// Package resolve turns a database id, a logical program name and parameter
// names into a validated program, applying the program's configuration entry.
package resolve

import (
	"time"

	"github.com/ignaciocaff/dbprogram/internal/config"
	"github.com/ignaciocaff/dbprogram/internal/core"
)

// Each option resolves independently: an explicit override wins, then the
// program's configuration entry, then the default. entry may be nil.

func ResolveIgnoreValidationErrors(explicit *bool, entry *config.ProgramConfig) bool {
	if explicit != nil {
		return *explicit
	}
	if entry != nil && entry.IgnoreValidationErrors != nil {
		return *entry.IgnoreValidationErrors
	}
	return false
}

func ResolveCheckOrder(explicit *bool, entry *config.ProgramConfig) bool {
	if explicit != nil {
		return *explicit
	}
	if entry != nil && entry.CheckOrder != nil {
		return *entry.CheckOrder
	}
	return false
}

// ResolveCommandTimeout ignores non-positive values at every level.
func ResolveCommandTimeout(explicit *time.Duration, entry *config.ProgramConfig) time.Duration {
	if explicit != nil && *explicit > 0 {
		return *explicit
	}
	if entry != nil && entry.DefaultCommandTimeout != "" {
		if d, err := time.ParseDuration(entry.DefaultCommandTimeout); err == nil && d > 0 {
			return d
		}
	}
	return core.DefaultCommandTimeout
}

func ResolveConstraintMode(explicit *core.ConstraintMode, entry *config.ProgramConfig) core.ConstraintMode {
	if explicit != nil {
		return *explicit
	}
	if entry != nil && entry.ConstraintMode != "" {
		if m, err := core.ParseConstraintMode(entry.ConstraintMode); err == nil {
			return m
		}
	}
	return core.ConstraintWarn
}

// ResolveOptions applies every option rule for one program.
func ResolveOptions(ov core.Overrides, entry *config.ProgramConfig) core.Options {
	return core.Options{
		IgnoreValidationErrors: ResolveIgnoreValidationErrors(ov.IgnoreValidationErrors, entry),
		CheckOrder:             ResolveCheckOrder(ov.CheckOrder, entry),
		Timeout:                ResolveCommandTimeout(ov.DefaultCommandTimeout, entry),
		Mode:                   ResolveConstraintMode(ov.ConstraintMode, entry),
	}
}
