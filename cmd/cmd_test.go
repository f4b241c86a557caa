package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/pantry/internal/testutils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// execute runs the root command with args in a clean working directory and
// returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	viper.Reset()
	t.Cleanup(viper.Reset)
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func samplePantry(t *testing.T) string {
	t.Helper()
	return testutils.CreateTempPantry(t, testutils.SamplePantry())
}

func TestList_Table(t *testing.T) {
	root := samplePantry(t)

	out, err := execute(t, "list", "-d", root, "-n", "kitchen")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "button")
	assert.Contains(t, out, "handlebars, javaScript, model, sass")
	assert.Contains(t, out, "forms/input")
	assert.NotContains(t, out, "node_modules")
}

func TestList_JSON(t *testing.T) {
	root := samplePantry(t)

	out, err := execute(t, "list", "-d", root, "-n", "kitchen", "-o", "json", "--with-deps", "--with-entries")
	require.NoError(t, err)

	var listings []ingredientListing
	require.NoError(t, json.Unmarshal([]byte(out), &listings))
	require.Len(t, listings, 3)

	assert.Equal(t, "button", listings[0].Name)
	assert.Equal(t, "index.scss", listings[0].Entries["sass"])
	assert.Empty(t, listings[0].Dependencies)

	assert.Equal(t, "card", listings[1].Name)
	assert.Equal(t, []string{"handlebars", "preview"}, listings[1].Kinds)
	assert.Equal(t, []string{"kitchen/button"}, listings[1].Dependencies)

	assert.Equal(t, "forms/input", listings[2].Name)
	assert.Equal(t, "forms/input", listings[2].Path)
}

func TestList_YAML(t *testing.T) {
	root := samplePantry(t)

	out, err := execute(t, "list", "-d", root, "-n", "kitchen", "-o", "yaml")
	require.NoError(t, err)

	var listings []ingredientListing
	require.NoError(t, yaml.Unmarshal([]byte(out), &listings))
	require.Len(t, listings, 3)
	assert.Equal(t, []string{"handlebars", "javaScript", "model", "sass"}, listings[0].Kinds)
	assert.Nil(t, listings[0].Entries)
}

func TestList_Empty(t *testing.T) {
	out, err := execute(t, "list", "-d", t.TempDir(), "-n", "kitchen")
	require.NoError(t, err)
	assert.Contains(t, out, "No ingredients found.")
}

func TestList_InvalidFormat(t *testing.T) {
	root := samplePantry(t)

	_, err := execute(t, "list", "-d", root, "-n", "kitchen", "-o", "js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "json"`)

	_, err = execute(t, "list", "-d", root, "-n", "kitchen", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of: table, json, yaml")
}

func TestList_MissingNamespace(t *testing.T) {
	_, err := execute(t, "list", "-d", samplePantry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace")
}

func TestList_ConfigFile(t *testing.T) {
	root := samplePantry(t)
	configPath := filepath.Join(t.TempDir(), "pantry.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("pantry:\n  namespace: kitchen\n  base_dir: "+root+"\n"), 0644))

	out, err := execute(t, "list", "--config", configPath, "-o", "json")
	require.NoError(t, err)

	var listings []ingredientListing
	require.NoError(t, json.Unmarshal([]byte(out), &listings))
	assert.Len(t, listings, 3)
}

func TestList_Environment(t *testing.T) {
	root := samplePantry(t)
	t.Setenv("PANTRY_PANTRY_NAMESPACE", "kitchen")

	out, err := execute(t, "list", "-d", root, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "button"`)
}

func TestServe_InvalidConfiguration(t *testing.T) {
	_, err := execute(t, "serve", "-d", samplePantry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")

	_, err = execute(t, "serve", "-d", filepath.Join(t.TempDir(), "missing"), "-n", "kitchen")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory")
}

func TestServe_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "serve", "-d", samplePantry(t), "-n", "kitchen", "-l", "loud")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pantry ")
	assert.Contains(t, out, "Go: ")

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "is_release")

	_, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("JSON", OutputFormats))
	assert.ErrorContains(t, ValidateFormat("ya", OutputFormats), `did you mean "yaml"`)
	assert.ErrorContains(t, ValidateFormat("", OutputFormats), "must be one of")
}
