// Package config loads the database and program configuration that drives
// program resolution.
package config

import (
	"strings"
	"time"
)

// Config is the root configuration document.
type Config struct {
	LogLevel  string           `koanf:"log_level"`
	Databases []DatabaseConfig `koanf:"databases"`
}

// DatabaseConfig describes one logical database.
type DatabaseConfig struct {
	ID          string             `koanf:"id"`
	Enabled     *bool              `koanf:"enabled"`
	Connections []ConnectionConfig `koanf:"connections"`
	Programs    []ProgramConfig    `koanf:"programs"`
}

// ConnectionConfig is a named, load-balanced connection. Each endpoint is a
// DSN for the connection's driver.
type ConnectionConfig struct {
	Name            string   `koanf:"name"`
	Driver          string   `koanf:"driver"`
	Enabled         *bool    `koanf:"enabled"`
	Endpoints       []string `koanf:"endpoints"`
	MaxOpenConns    int      `koanf:"max_open_conns"`
	MaxIdleConns    int      `koanf:"max_idle_conns"`
	ConnMaxLifetime string   `koanf:"conn_max_lifetime"`
}

// ProgramConfig overrides how one logical program is resolved. Nil fields
// are unset and fall through to the defaults.
type ProgramConfig struct {
	Name                   string             `koanf:"name"`
	MapTo                  string             `koanf:"map_to"`
	Connection             string             `koanf:"connection"`
	Parameters             []ParameterMapping `koanf:"parameters"`
	IgnoreValidationErrors *bool              `koanf:"ignore_validation_errors"`
	CheckOrder             *bool              `koanf:"check_order"`
	DefaultCommandTimeout  string             `koanf:"default_command_timeout"`
	ConstraintMode         string             `koanf:"constraint_mode"`
}

// ParameterMapping renames one parameter. An empty MapTo is invalid.
type ParameterMapping struct {
	Name  string `koanf:"name"`
	MapTo string `koanf:"map_to"`
}

// IsEnabled reports whether the database is enabled; unset means enabled.
func (d *DatabaseConfig) IsEnabled() bool { return d.Enabled == nil || *d.Enabled }

// IsEnabled reports whether the connection is enabled; unset means enabled.
func (c *ConnectionConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// Lifetime parses ConnMaxLifetime, returning zero when unset or invalid.
func (c *ConnectionConfig) Lifetime() time.Duration {
	d, err := time.ParseDuration(c.ConnMaxLifetime)
	if err != nil {
		return 0
	}
	return d
}

// Database finds a database by id, case-insensitively.
func (c *Config) Database(id string) (*DatabaseConfig, bool) {
	for i := range c.Databases {
		if strings.EqualFold(c.Databases[i].ID, id) {
			return &c.Databases[i], true
		}
	}
	return nil, false
}

// Connection finds a connection by name, case-insensitively.
func (d *DatabaseConfig) Connection(name string) (*ConnectionConfig, bool) {
	for i := range d.Connections {
		if strings.EqualFold(d.Connections[i].Name, name) {
			return &d.Connections[i], true
		}
	}
	return nil, false
}

// Program finds a program entry by logical name, case-insensitively.
func (d *DatabaseConfig) Program(name string) (*ProgramConfig, bool) {
	for i := range d.Programs {
		if strings.EqualFold(d.Programs[i].Name, name) {
			return &d.Programs[i], true
		}
	}
	return nil, false
}

// Mapping finds the mapping entry for a parameter name. Leading @ or :
// prefixes are ignored.
func (p *ProgramConfig) Mapping(name string) (*ParameterMapping, bool) {
	key := strings.TrimLeft(name, "@:")
	for i := range p.Parameters {
		if strings.EqualFold(strings.TrimLeft(p.Parameters[i].Name, "@:"), key) {
			return &p.Parameters[i], true
		}
	}
	return nil, false
}
