package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if len(c.Databases) == 0 {
		errors = append(errors, ValidationError{
			Field:   "databases",
			Message: "at least one database must be defined",
		})
	}

	seen := make(map[string]int, len(c.Databases))
	for i := range c.Databases {
		prefix := fmt.Sprintf("databases[%d]", i)
		if err := c.validateDatabase(prefix, &c.Databases[i]); err != nil {
			errors = append(errors, err...)
		}

		key := fmt.Sprintf("%s:%d/%s", c.Databases[i].Host, c.Databases[i].Port, c.Databases[i].Database)
		if first, dup := seen[key]; dup {
			errors = append(errors, ValidationError{
				Field:   prefix,
				Message: fmt.Sprintf("duplicates databases[%d]", first),
			})
		} else {
			seen[key] = i
		}
	}

	if err := c.validateAdapter(); err != nil {
		errors = append(errors, err...)
	}

	for i, name := range c.ExceptTables {
		if name == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("except_tables[%d]", i),
				Message: "table name cannot be empty",
			})
		}
	}

	if c.Parallelism < 0 {
		errors = append(errors, ValidationError{
			Field:   "parallelism",
			Message: "parallelism cannot be negative",
		})
	}

	if c.Server.ShutdownTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown_timeout cannot be negative",
		})
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	return errors
}

func (c *Config) validateAdapter() ValidationErrors {
	if c.Adapter == "" {
		return nil
	}
	for _, name := range SupportedAdapters {
		if c.Adapter == name {
			return nil
		}
	}
	return ValidationErrors{{
		Field:   "adapter",
		Message: fmt.Sprintf("adapter must be one of %s", strings.Join(SupportedAdapters, ", ")),
	}}
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
