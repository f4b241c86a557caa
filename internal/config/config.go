// Package config provides configuration management for the pantry server
// using Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration file is .pantry.yml; every key can be overridden with a
// PANTRY_ prefixed environment variable (PANTRY_SERVER_PORT,
// PANTRY_PANTRY_NAMESPACE, ...) or the matching serve flag.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DefaultEntrySentinel marks the position of entry point kinds not named
// explicitly in an entry order.
const DefaultEntrySentinel = "*"

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Pantry      PantryConfig      `mapstructure:"pantry" yaml:"pantry"`
	Preview     PreviewConfig     `mapstructure:"preview" yaml:"preview"`
	Assets      AssetsConfig      `mapstructure:"assets" yaml:"assets"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// MountPath is the prefix the pantry routes are mounted under.
	MountPath string `mapstructure:"mount_path" yaml:"mount_path"`
}

type PantryConfig struct {
	Namespace string   `mapstructure:"namespace" yaml:"namespace"`
	BaseDir   string   `mapstructure:"base_dir" yaml:"base_dir"`
	Ignore    []string `mapstructure:"ignore" yaml:"ignore"`
}

type PreviewConfig struct {
	// DefaultTemplate is the preview template used by ingredients without
	// their own preview.hbs. Empty selects the built-in template.
	DefaultTemplate string `mapstructure:"default_template" yaml:"default_template"`
	// DefaultModel is a model file used by ingredients without a model entry.
	DefaultModel string                 `mapstructure:"default_model" yaml:"default_model"`
	BaseModel    map[string]interface{} `mapstructure:"base_model" yaml:"base_model"`
	// Helpers lists helper modules, merged left to right.
	Helpers []string `mapstructure:"helpers" yaml:"helpers"`
}

type AssetsConfig struct {
	EntryOrder []string `mapstructure:"entry_order" yaml:"entry_order"`
	GlobalName string   `mapstructure:"global_name" yaml:"global_name"`
	Minify     bool     `mapstructure:"minify" yaml:"minify"`
	Sourcemap  bool     `mapstructure:"sourcemap" yaml:"sourcemap"`
}

type DevelopmentConfig struct {
	HotReload bool          `mapstructure:"hot_reload" yaml:"hot_reload"`
	Debounce  time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mount_path", "/")
	v.SetDefault("pantry.base_dir", ".")
	v.SetDefault("assets.entry_order", []string{DefaultEntrySentinel, "javaScript", "previewScript"})
	v.SetDefault("assets.global_name", "ingredientExports")
	v.SetDefault("development.hot_reload", true)
	v.SetDefault("development.debounce", 300*time.Millisecond)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices bound from flags arrive as strings when set through the
	// environment; viper resolves them correctly only through GetStringSlice.
	if v.IsSet("preview.helpers") {
		config.Preview.Helpers = v.GetStringSlice("preview.helpers")
	}
	if v.IsSet("assets.entry_order") {
		config.Assets.EntryOrder = v.GetStringSlice("assets.entry_order")
	}
	if v.IsSet("pantry.ignore") {
		config.Pantry.Ignore = v.GetStringSlice("pantry.ignore")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
