package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration for values the daemon cannot run
// with. It returns every problem found, not just the first.
func (c *CapstanConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs.Add("server.port", fmt.Sprintf("must be between 0 and 65535, got %d", c.Server.Port), c.Server.Port)
	}

	if c.Engine.Workers < 1 {
		errs.Add("engine.workers", fmt.Sprintf("must be at least 1, got %d", c.Engine.Workers), c.Engine.Workers)
	}
	if c.Engine.ResyncInterval <= 0 {
		errs.Add("engine.resyncInterval", "must be positive", c.Engine.ResyncInterval)
	}
	if c.Engine.SourcePollInterval <= 0 {
		errs.Add("engine.sourcePollInterval", "must be positive", c.Engine.SourcePollInterval)
	}
	if c.Engine.SyncTimeout <= 0 {
		errs.Add("engine.syncTimeout", "must be positive", c.Engine.SyncTimeout)
	}
	if c.Engine.Retry.Limit < 0 {
		errs.Add("engine.retry.limit", "must not be negative", c.Engine.Retry.Limit)
	}
	if c.Engine.Retry.BaseBackoff <= 0 {
		errs.Add("engine.retry.baseBackoff", "must be positive", c.Engine.Retry.BaseBackoff)
	}
	if c.Engine.Retry.MaxBackoff < c.Engine.Retry.BaseBackoff {
		errs.Add("engine.retry.maxBackoff", "must not be smaller than baseBackoff", c.Engine.Retry.MaxBackoff)
	}

	if c.Source.FetchTimeout <= 0 {
		errs.Add("source.fetchTimeout", "must be positive", c.Source.FetchTimeout)
	}

	if c.Health.Timeout <= 0 {
		errs.Add("health.timeout", "must be positive", c.Health.Timeout)
	}
	if c.Health.PollInterval <= 0 {
		errs.Add("health.pollInterval", "must be positive", c.Health.PollInterval)
	}

	if c.History.Limit < 1 {
		errs.Add("history.limit", fmt.Sprintf("must be at least 1, got %d", c.History.Limit), c.History.Limit)
	}

	switch c.Registry.Mode {
	case RegistryModeFilesystem, RegistryModeKubernetes:
	default:
		errs.Add("registry.mode", fmt.Sprintf("must be %q or %q, got %q",
			RegistryModeFilesystem, RegistryModeKubernetes, c.Registry.Mode), c.Registry.Mode)
	}
	if c.Registry.Debounce < 0 {
		errs.Add("registry.debounce", "must not be negative", c.Registry.Debounce)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs.Add("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level), c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs.Add("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format), c.Logging.Format)
	}

	return errs
}
