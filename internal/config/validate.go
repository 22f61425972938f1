package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignaciocaff/dbprogram/internal/core"
	"github.com/ignaciocaff/dbprogram/internal/dialect"
)

// Validate checks ids, drivers, names and option syntax. Parameter mappings
// with an empty target are not rejected here; they fail when a call uses them.
func (c *Config) Validate() error {
	var errs []error
	seenDB := map[string]bool{}
	for i := range c.Databases {
		db := &c.Databases[i]
		if strings.TrimSpace(db.ID) == "" {
			errs = append(errs, fmt.Errorf("databases[%d]: id is required", i))
			continue
		}
		key := strings.ToLower(db.ID)
		if seenDB[key] {
			errs = append(errs, fmt.Errorf("database %q: duplicate id", db.ID))
		}
		seenDB[key] = true
		errs = append(errs, db.validate()...)
	}
	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() []error {
	var errs []error
	seen := map[string]bool{}
	for i := range d.Connections {
		cn := &d.Connections[i]
		if strings.TrimSpace(cn.Name) == "" {
			errs = append(errs, fmt.Errorf("database %q: connections[%d]: name is required", d.ID, i))
			continue
		}
		key := strings.ToLower(cn.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("database %q: connection %q: duplicate name", d.ID, cn.Name))
		}
		seen[key] = true
		if _, err := dialect.ForDriver(cn.Driver); err != nil {
			errs = append(errs, fmt.Errorf("database %q: connection %q: %w\nHint: use one of %v", d.ID, cn.Name, err, dialect.Drivers()))
		}
		if len(cn.Endpoints) == 0 {
			errs = append(errs, fmt.Errorf("database %q: connection %q: at least one endpoint is required", d.ID, cn.Name))
		}
		if cn.ConnMaxLifetime != "" {
			if _, err := time.ParseDuration(cn.ConnMaxLifetime); err != nil {
				errs = append(errs, fmt.Errorf("database %q: connection %q: conn_max_lifetime: %w", d.ID, cn.Name, err))
			}
		}
	}
	seenProgram := map[string]bool{}
	for i := range d.Programs {
		p := &d.Programs[i]
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("database %q: programs[%d]: name is required", d.ID, i))
			continue
		}
		key := strings.ToLower(p.Name)
		if seenProgram[key] {
			errs = append(errs, fmt.Errorf("database %q: program %q: duplicate name", d.ID, p.Name))
		}
		seenProgram[key] = true
		if p.DefaultCommandTimeout != "" {
			if _, err := time.ParseDuration(p.DefaultCommandTimeout); err != nil {
				errs = append(errs, fmt.Errorf("database %q: program %q: default_command_timeout: %w", d.ID, p.Name, err))
			}
		}
		if p.ConstraintMode != "" {
			if _, err := core.ParseConstraintMode(p.ConstraintMode); err != nil {
				errs = append(errs, fmt.Errorf("database %q: program %q: %w", d.ID, p.Name, err))
			}
		}
	}
	return errs
}
