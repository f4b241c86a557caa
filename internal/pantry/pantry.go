// Package pantry discovers the ingredients of a pantry directory.
//
// A pantry is a directory tree. Every directory below the root that contains
// an ingredient.md file is an ingredient, named by its slash-separated path
// relative to the root. The files of an ingredient directory are classified
// into entry points by predicates; an ingredient has at most one file per
// entry point kind and any kind may be absent.
package pantry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry point kinds.
const (
	KindHandlebars    = "handlebars"
	KindJavaScript    = "javaScript"
	KindLess          = "less"
	KindModel         = "model"
	KindPreview       = "preview"
	KindPreviewScript = "previewScript"
	KindSass          = "sass"
)

// DocumentationFile marks a directory as an ingredient and holds its docs.
const DocumentationFile = "ingredient.md"

// StaticDir is the per-ingredient directory copied verbatim into its assets.
const StaticDir = "static"

// DefaultPredicates maps each entry point kind to the doublestar pattern its
// file name must match.
func DefaultPredicates() map[string]string {
	return map[string]string{
		KindHandlebars:    "index.hbs",
		KindJavaScript:    "index.js",
		KindLess:          "index.less",
		KindModel:         "model.{json,yaml,yml,toml,lua}",
		KindPreview:       "preview.hbs",
		KindPreviewScript: "preview.js",
		KindSass:          "index.scss",
	}
}

// DefaultIgnore lists directories never searched for ingredients.
func DefaultIgnore() []string {
	return []string{"**/node_modules", "**/.*"}
}

// EntryPoint is one classified file of an ingredient.
type EntryPoint struct {
	Filename string `json:"filename" yaml:"filename"`
}

// Ingredient is one component of a pantry.
type Ingredient struct {
	Name        string                 `json:"name" yaml:"name"`
	Path        string                 `json:"path" yaml:"path"`
	EntryPoints map[string]*EntryPoint `json:"entryPoints" yaml:"entryPoints"`
}

// Has reports whether the ingredient declares an entry point of kind.
func (i *Ingredient) Has(kind string) bool {
	return i.EntryPoints[kind] != nil
}

// EntryPath returns the absolute path of the entry point of kind, or "" when
// the ingredient does not declare one.
func (i *Ingredient) EntryPath(kind string) string {
	ep := i.EntryPoints[kind]
	if ep == nil {
		return ""
	}
	return filepath.Join(i.Path, ep.Filename)
}

// Kinds returns the declared entry point kinds in lexical order.
func (i *Ingredient) Kinds() []string {
	kinds := make([]string, 0, len(i.EntryPoints))
	for kind := range i.EntryPoints {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// DocumentationPath returns the absolute path of the ingredient's ingredient.md.
func (i *Ingredient) DocumentationPath() string {
	return filepath.Join(i.Path, DocumentationFile)
}

// StaticPath returns the absolute path of the ingredient's static directory.
func (i *Ingredient) StaticPath() string {
	return filepath.Join(i.Path, StaticDir)
}

// Pantry is a loaded catalog of ingredients.
type Pantry struct {
	Name        string                 `json:"name" yaml:"name"`
	Path        string                 `json:"path" yaml:"path"`
	Ingredients map[string]*Ingredient `json:"ingredients" yaml:"ingredients"`
}

// Get returns the named ingredient.
func (p *Pantry) Get(name string) (*Ingredient, bool) {
	ing, ok := p.Ingredients[name]
	return ing, ok
}

// Names returns the ingredient names in lexical order.
func (p *Pantry) Names() []string {
	names := make([]string, 0, len(p.Ingredients))
	for name := range p.Ingredients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures Load.
type Options struct {
	Name string
	Path string
	// Predicates overrides DefaultPredicates per kind. An empty pattern
	// disables the kind.
	Predicates map[string]string
	// Ignore lists doublestar patterns, relative to Path, of directories that
	// are not searched.
	Ignore []string
}

// Load walks opts.Path and returns the pantry found there.
func Load(ctx context.Context, opts Options) (*Pantry, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("pantry name is required")
	}
	root, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving pantry path %s: %w", opts.Path, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("loading pantry %s: %w", opts.Name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loading pantry %s: %s is not a directory", opts.Name, root)
	}

	predicates, err := mergePredicates(opts.Predicates)
	if err != nil {
		return nil, err
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore()
	}
	for _, pattern := range ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	p := &Pantry{
		Name:        opts.Name,
		Path:        root,
		Ingredients: make(map[string]*Ingredient),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() || path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range ignore {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return filepath.SkipDir
			}
		}

		ing, err := classify(rel, path, predicates)
		if err != nil {
			return err
		}
		if ing != nil {
			p.Ingredients[ing.Name] = ing
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading pantry %s: %w", opts.Name, err)
	}

	return p, nil
}

func mergePredicates(overrides map[string]string) (map[string]string, error) {
	predicates := DefaultPredicates()
	for kind, pattern := range overrides {
		if pattern == "" {
			delete(predicates, kind)
			continue
		}
		predicates[kind] = pattern
	}
	for kind, pattern := range predicates {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid predicate for %s: %q", kind, pattern)
		}
	}
	return predicates, nil
}

// classify returns the ingredient rooted at dir, or nil when dir has no
// ingredient.md.
func classify(name, dir string, predicates map[string]string) (*Ingredient, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	isIngredient := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() == DocumentationFile {
			isIngredient = true
		}
		files = append(files, entry.Name())
	}
	if !isIngredient {
		return nil, nil
	}
	sort.Strings(files)

	ing := &Ingredient{
		Name:        name,
		Path:        dir,
		EntryPoints: make(map[string]*EntryPoint),
	}
	for kind, pattern := range predicates {
		for _, file := range files {
			if matched, _ := doublestar.Match(pattern, file); matched {
				ing.EntryPoints[kind] = &EntryPoint{Filename: file}
				break
			}
		}
	}

	return ing, nil
}

// SplitPartialName splits a partial reference such as "kitchen/button/primary"
// into its pantry and ingredient names. Pantry names may contain slashes
// ("@acme/kitchen"), so the longest prefix accepted by isPantry wins.
func SplitPartialName(partial string, isPantry func(string) bool) (pantryName, ingredientName string, ok bool) {
	for idx := strings.LastIndex(partial, "/"); idx > 0; idx = strings.LastIndex(partial[:idx], "/") {
		if idx == len(partial)-1 {
			continue
		}
		if isPantry(partial[:idx]) {
			return partial[:idx], partial[idx+1:], true
		}
	}
	return "", "", false
}
