package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	if len(ve.Suggestions) == 0 {
		return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
	}
	return fmt.Sprintf("validation error in %s: %s (%s)", ve.Field, ve.Message, strings.Join(ve.Suggestions, "; "))
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return err
	}
	if err := validatePantryConfig(&config.Pantry); err != nil {
		return err
	}
	if err := ValidateEntryOrder(config.Assets.EntryOrder); err != nil {
		return err
	}
	for i, helper := range config.Preview.Helpers {
		if strings.TrimSpace(helper) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("preview.helpers[%d]", i),
				Value:   helper,
				Message: "helper module path is empty",
			}
		}
	}
	if config.Development.Debounce < 0 {
		return &ValidationError{
			Field:   "development.debounce",
			Value:   config.Development.Debounce,
			Message: "debounce must not be negative",
		}
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 lets the kernel pick a port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Value:   config.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
		}
	}

	if strings.ContainsAny(config.Host, " \t\n;&|$`<>\"'\\") {
		return &ValidationError{
			Field:   "server.host",
			Value:   config.Host,
			Message: "host contains invalid characters",
		}
	}

	if config.MountPath == "" {
		config.MountPath = "/"
	}
	if !strings.HasPrefix(config.MountPath, "/") {
		return &ValidationError{
			Field:       "server.mount_path",
			Value:       config.MountPath,
			Message:     "mount path must start with /",
			Suggestions: []string{"use /" + config.MountPath},
		}
	}

	return nil
}

// validatePantryConfig validates the pantry section
func validatePantryConfig(config *PantryConfig) error {
	if config.Namespace == "" {
		return &ValidationError{
			Field:       "pantry.namespace",
			Message:     "namespace is a required parameter",
			Suggestions: []string{"pass --namespace <name>", "set pantry.namespace in .pantry.yml"},
		}
	}

	info, err := os.Stat(config.BaseDir)
	if err != nil || !info.IsDir() {
		return &ValidationError{
			Field:   "pantry.base_dir",
			Value:   config.BaseDir,
			Message: "base directory missing or not a directory",
		}
	}

	return nil
}

// ValidateEntryOrder checks that order names the default position exactly once.
func ValidateEntryOrder(order []string) error {
	count := 0
	for _, kind := range order {
		if kind == DefaultEntrySentinel {
			count++
		}
	}
	if count != 1 {
		return &ValidationError{
			Field:   "assets.entry_order",
			Value:   order,
			Message: fmt.Sprintf("entry order must specify the default position %q exactly once", DefaultEntrySentinel),
		}
	}
	return nil
}
