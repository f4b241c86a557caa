package assets

import (
	"path/filepath"
	"testing"

	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func ingredient(dir string, files map[string]string) *pantry.Ingredient {
	ing := &pantry.Ingredient{Name: "x", Path: dir, EntryPoints: map[string]*pantry.EntryPoint{}}
	for kind, file := range files {
		ing.EntryPoints[kind] = &pantry.EntryPoint{Filename: file}
	}
	return ing
}

func TestSortKinds(t *testing.T) {
	tests := []struct {
		name  string
		kinds []string
		order []string
		want  []string
	}{
		{
			name:  "default order puts scripts last",
			kinds: []string{"handlebars", "javaScript", "previewScript", "sass"},
			order: DefaultEntryOrder(),
			want:  []string{"handlebars", "sass", "javaScript", "previewScript"},
		},
		{
			name:  "unlisted kinds keep their order at the marker",
			kinds: []string{"less", "model", "sass"},
			order: []string{"javaScript", DefaultEntryPosition},
			want:  []string{"less", "model", "sass"},
		},
		{
			name:  "listed kinds before the marker come first",
			kinds: []string{"javaScript", "less", "sass"},
			order: []string{"sass", DefaultEntryPosition, "javaScript"},
			want:  []string{"sass", "less", "javaScript"},
		},
		{
			name:  "empty",
			kinds: nil,
			order: DefaultEntryOrder(),
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortKinds(tt.kinds, tt.order)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SortKinds() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortKinds_DoesNotModifyInput(t *testing.T) {
	kinds := []string{"previewScript", "sass"}
	_ = SortKinds(kinds, DefaultEntryOrder())
	assert.Equal(t, []string{"previewScript", "sass"}, kinds)
}

func TestEntries(t *testing.T) {
	dir := filepath.FromSlash("/pantry/button")
	handlers := DefaultEntryHandlers(DefaultGlobalName)

	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name: "script is exposed without a preview script",
			files: map[string]string{
				pantry.KindHandlebars: "index.hbs",
				pantry.KindJavaScript: "index.js",
				pantry.KindModel:      "model.json",
				pantry.KindSass:       "index.scss",
			},
			want: []string{
				filepath.Join(dir, "index.scss"),
				"expose:ingredientExports!" + filepath.Join(dir, "index.js"),
			},
		},
		{
			name: "preview script replaces the exposed script",
			files: map[string]string{
				pantry.KindJavaScript:    "index.js",
				pantry.KindPreviewScript: "preview.js",
				pantry.KindLess:          "index.less",
			},
			want: []string{
				filepath.Join(dir, "index.less"),
				filepath.Join(dir, "preview.js"),
			},
		},
		{
			name: "templates only",
			files: map[string]string{
				pantry.KindHandlebars: "index.hbs",
				pantry.KindPreview:    "preview.hbs",
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Entries(ingredient(dir, tt.files), DefaultEntryOrder(), handlers, DefaultEntryHandler)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntries_CustomHandlers(t *testing.T) {
	ing := ingredient("/p/a", map[string]string{pantry.KindSass: "index.scss", pantry.KindJavaScript: "index.js"})
	handlers := DefaultEntryHandlers("lib")
	handlers[pantry.KindSass] = NoEntry

	fallbackCalls := 0
	fallback := func(ing *pantry.Ingredient, kind string) (string, bool) {
		fallbackCalls++
		return DefaultEntryHandler(ing, kind)
	}

	got := Entries(ing, DefaultEntryOrder(), handlers, fallback)
	assert.Equal(t, []string{Expose("lib", filepath.Join("/p/a", "index.js"))}, got)
	assert.Zero(t, fallbackCalls)
}

func TestDefaultEntryHandler_Missing(t *testing.T) {
	_, ok := DefaultEntryHandler(ingredient("/p/a", nil), pantry.KindSass)
	assert.False(t, ok)
}

func TestParseEntry(t *testing.T) {
	path, global := parseEntry("expose:lib!/p/a/index.js")
	assert.Equal(t, "/p/a/index.js", path)
	assert.Equal(t, "lib", global)

	path, global = parseEntry("/p/a/index.scss")
	assert.Equal(t, "/p/a/index.scss", path)
	assert.Empty(t, global)

	path, global = parseEntry("expose:broken")
	assert.Equal(t, "expose:broken", path)
	assert.Empty(t, global)
}

func TestEntryModule(t *testing.T) {
	got := entryModule([]string{"/p/a/index.scss", Expose("lib", "/p/a/index.js")})
	want := "import \"/p/a/index.scss\";\n" +
		"import * as __entry1 from \"/p/a/index.js\";\n" +
		"globalThis[\"lib\"] = __entry1;\n"
	assert.Equal(t, want, got)
}

func TestValidateEntryOrder(t *testing.T) {
	assert.NoError(t, validateEntryOrder(DefaultEntryOrder()))
	assert.NoError(t, validateEntryOrder([]string{DefaultEntryPosition}))
	assert.Error(t, validateEntryOrder(nil))
	assert.Error(t, validateEntryOrder([]string{"javaScript"}))
	assert.Error(t, validateEntryOrder([]string{DefaultEntryPosition, "sass", DefaultEntryPosition}))
}
