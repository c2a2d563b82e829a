// Package config provides configuration structures and loading for gorewinder.
package config

import (
	"os"
	"time"
)

// Adapter names accepted by the adapter setting.
const (
	AdapterMySQL = "mysql"
	AdapterSQLX  = "sqlx"
	AdapterGorm  = "gorm"
)

// SupportedAdapters lists every adapter name the database layer can build.
var SupportedAdapters = []string{AdapterMySQL, AdapterSQLX, AdapterGorm}

// Config represents the complete application configuration.
type Config struct {
	Databases    []DatabaseConfig `yaml:"databases" mapstructure:"databases"`
	Adapter      string           `yaml:"adapter" mapstructure:"adapter"`
	ExceptTables []string         `yaml:"except_tables" mapstructure:"except_tables"`
	Tracking     TrackingConfig   `yaml:"tracking" mapstructure:"tracking"`
	Parallelism  int              `yaml:"parallelism" mapstructure:"parallelism"`
	Server       ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging      LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	TLS      string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
}

// TrackingConfig controls where tracker records are written.
type TrackingConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // defaults to os.TempDir()
}

// ServerConfig represents the HTTP control API settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// Default values applied to every database entry that leaves them unset.
const (
	DefaultPort = 3306
	DefaultTLS  = "preferred"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Adapter:     AdapterMySQL,
		Parallelism: 1,
		Server: ServerConfig{
			Addr:            "127.0.0.1:7357",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyDatabaseDefaults fills port and TLS on entries that left them empty.
// Defaults cannot live in DefaultConfig because the list is replaced on unmarshal.
func (c *Config) applyDatabaseDefaults() {
	for i := range c.Databases {
		if c.Databases[i].Port == 0 {
			c.Databases[i].Port = DefaultPort
		}
		if c.Databases[i].TLS == "" {
			c.Databases[i].TLS = DefaultTLS
		}
	}
}

// TrackingDir returns the configured record directory or the system temp dir.
func (c *Config) TrackingDir() string {
	if c.Tracking.Dir != "" {
		return c.Tracking.Dir
	}
	return os.TempDir()
}

// DatabaseNames returns the schema name of every configured database.
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for _, db := range c.Databases {
		names = append(names, db.Database)
	}
	return names
}
