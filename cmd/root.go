package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/pantry/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pantry",
	Short: "A development server for handlebars component pantries",
	Long: `Pantry serves a directory of handlebars components ("ingredients") during
development: live previews rendered against each ingredient's model, bundled
scripts and styles, and rendered documentation with embedded previews.

Quick Start:
  pantry serve -n kitchen         Serve the current directory as "kitchen"
  pantry list -n kitchen          List ingredients and their entry points
  pantry version                  Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pantry.yml, can also use PANTRY_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig selects the configuration file and enables PANTRY_ environment
// overrides. The file is, in order of preference, the --config flag,
// PANTRY_CONFIG_FILE, or .pantry.yml in the working directory. A missing file
// is not an error.
func initConfig() {
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PANTRY_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pantry")
	}

	// PANTRY_SERVER_PORT, PANTRY_PANTRY_NAMESPACE, PANTRY_DEVELOPMENT_HOT_RELOAD, ...
	viper.SetEnvPrefix("PANTRY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the logger selected by --log-level and --log-format.
func newLogger(cmd *cobra.Command) (logging.Logger, error) {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(viper.GetString("log-format"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
	}), nil
}
