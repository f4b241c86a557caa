// Package testutils provides pantry fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/pantry/internal/config"
	"github.com/stretchr/testify/require"
)

// Scaffold writes files, keyed by slash-separated path relative to root, and
// returns root.
func Scaffold(t *testing.T, root string, files map[string]string) string {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	return root
}

// CreateTempPantry creates a pantry in a temporary directory.
func CreateTempPantry(t *testing.T, files map[string]string) string {
	t.Helper()
	return Scaffold(t, t.TempDir(), files)
}

// SamplePantry returns the files of a small pantry exercising every entry
// point kind.
func SamplePantry() map[string]string {
	return map[string]string{
		"button/ingredient.md":      "# Button\n\n<div><preview modelpath=\"primary\" height=\"40\"></preview></div>\n",
		"button/index.hbs":          "<button class=\"btn\">{{label}}</button>",
		"button/model.json":         `{"label": "Click", "primary": {"label": "Go"}}`,
		"button/index.scss":         ".btn { color: red; }",
		"button/index.js":           "export const name = 'button';",
		"button/static/icon.svg":    "<svg></svg>",
		"card/ingredient.md":        "# Card\n",
		"card/index.hbs":            "<div class=\"card\">{{> kitchen/button}}</div>",
		"card/preview.hbs":          "<main>{{> ingredient}}</main>",
		"forms/input/ingredient.md": "# Input\n",
		"forms/input/index.less":    ".input { border: 0; }",
		"forms/input/preview.js":    "console.log('input');",
		"forms/input/index.js":      "export default 1;",

		"node_modules/x/ingredient.md": "# ignored\n",
	}
}

// CreateTestConfig creates a test configuration serving baseDir.
func CreateTestConfig(baseDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:      "127.0.0.1",
			Port:      0,
			MountPath: "/",
		},
		Pantry: config.PantryConfig{
			Namespace: "kitchen",
			BaseDir:   baseDir,
		},
		Assets: config.AssetsConfig{
			EntryOrder: []string{config.DefaultEntrySentinel, "javaScript", "previewScript"},
			GlobalName: "ingredientExports",
		},
		Development: config.DevelopmentConfig{
			HotReload: false,
			Debounce:  50 * time.Millisecond,
		},
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Condition not met within timeout: %s", message)
}
