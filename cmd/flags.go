package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Pantry flags
	BaseDir   string `flag:"base-dir,d" desc:"Pantry root directory" default:"."`
	Namespace string `flag:"namespace,n" desc:"Pantry name used in partial references" default:""`

	// Output flags
	OutputFormat string `flag:"output,o" desc:"Output format (table|json|yaml)" default:"table"`
}

// pantryBindings maps pantry flags to configuration keys.
var pantryBindings = map[string]string{
	"base-dir":  "pantry.base_dir",
	"namespace": "pantry.namespace",
}

// OutputFormats lists the formats accepted by --output.
var OutputFormats = []string{"table", "json", "yaml"}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "pantry":
			addPantryFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addPantryFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.BaseDir, "base-dir", "d", ".", "Pantry root directory")
	cmd.Flags().StringVarP(&flags.Namespace, "namespace", "n", "", "Pantry name used in partial references")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table|json|yaml)")
	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormat(format, OutputFormats)
	})
}

// SetViperBindings binds flags to viper configuration keys. Bindings are made
// when a command runs, since commands share keys and viper keeps one flag per
// key.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("unknown flag --%s", flagName)
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormat checks format against the supported formats, suggesting the
// closest one by prefix.
func ValidateFormat(format string, supported []string) error {
	lower := strings.ToLower(format)
	for _, f := range supported {
		if lower == f {
			return nil
		}
	}
	for _, f := range supported {
		if lower != "" && strings.HasPrefix(f, lower) {
			return fmt.Errorf("invalid format %q, did you mean %q?", format, f)
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(supported, ", "))
}
