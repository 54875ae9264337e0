package config

import (
	"fmt"
	"strings"

	funk "github.com/thoas/go-funk"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "catchers[0].type")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// ValidCatcherTypes returns the list of valid catcher types
func ValidCatcherTypes() []string {
	return []string{TypeRegex, TypeLine, TypeText, TypeTable}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLog()...)
	errors = append(errors, c.validateFollow()...)
	errors = append(errors, c.validateCatchers()...)

	return errors
}

func (c *Config) validateLog() []ValidationError {
	var errors []ValidationError

	if c.Log.Level != "" && !funk.ContainsString(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Log.Format != "" && !funk.ContainsString(ValidLogFormats(), c.Log.Format) {
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Value:   c.Log.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateFollow() []ValidationError {
	var errors []ValidationError

	if c.Follow.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "follow.debounce_ms",
			Value:   c.Follow.DebounceMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateCatchers() []ValidationError {
	var errors []ValidationError

	for i, cc := range c.Catchers {
		field := fmt.Sprintf("catchers[%d]", i)

		if !funk.ContainsString(ValidCatcherTypes(), cc.Type) {
			errors = append(errors, ValidationError{
				Field:   field + ".type",
				Value:   cc.Type,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidCatcherTypes(), ", ")),
			})
		}
		if cc.Type == TypeRegex && cc.Start == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".start",
				Value:   cc.Start,
				Message: "regex catchers need a start pattern",
			})
		}
		if cc.Listen && cc.Muffle {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   cc.Name,
				Message: "listen and muffle are mutually exclusive",
			})
		}
		if cc.Expects < 0 {
			errors = append(errors, ValidationError{
				Field:   field + ".expects",
				Value:   cc.Expects,
				Message: "must be non-negative",
			})
		}
		if cc.Count < 0 {
			errors = append(errors, ValidationError{
				Field:   field + ".count",
				Value:   cc.Count,
				Message: "must be non-negative",
			})
		}
	}

	return errors
}
