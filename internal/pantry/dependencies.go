package pantry

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// partialRef matches handlebars partial calls: {{> name}}, {{~> name}},
// {{#> name}} and quoted names.
var partialRef = regexp.MustCompile(`\{\{~?#?>\s*("[^"]+"|'[^']+'|[^\s}~()]+)`)

// PartialReferences returns the distinct partial names referenced by a
// handlebars template, in order of first appearance.
func PartialReferences(template string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range partialRef.FindAllStringSubmatch(template, -1) {
		name := strings.Trim(m[1], `"'`)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

type scanEntry struct {
	modTime time.Time
	size    int64
	source  string
	refs    []string
}

// Resolver resolves the transitive partial dependencies of handlebars
// templates against loaded pantries. Scans of dependency files are cached by
// path and invalidated when the file's size or modification time changes.
type Resolver struct {
	cache *lru.Cache[string, scanEntry]
}

// NewResolver creates a resolver whose scan cache holds up to size files.
func NewResolver(size int) (*Resolver, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, scanEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating partial cache: %w", err)
	}
	return &Resolver{cache: cache}, nil
}

// Dependency is one resolved partial.
type Dependency struct {
	Name   string
	Path   string
	Source string
}

// ResolveDependencies returns a map from partial name to the path of the
// handlebars file that defines it, for every partial reachable from template.
// Partial names are "<pantry>/<ingredient>". References to pantries not in
// pantries are left unresolved, since they may be inline or registered by the
// host; a reference to an unknown ingredient of a known pantry is an error.
func (r *Resolver) ResolveDependencies(ctx context.Context, template string, pantries map[string]*Pantry) (map[string]string, error) {
	deps, err := r.Resolve(ctx, template, pantries)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(deps))
	for _, dep := range deps {
		result[dep.Name] = dep.Path
	}
	return result, nil
}

// Resolve is ResolveDependencies returning the dependency sources as well, in
// discovery order.
func (r *Resolver) Resolve(ctx context.Context, template string, pantries map[string]*Pantry) ([]Dependency, error) {
	var deps []Dependency
	visited := make(map[string]bool)
	queue := PartialReferences(template)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		path, ok, err := lookupPartial(name, pantries)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		entry, err := r.scan(path)
		if err != nil {
			return nil, fmt.Errorf("reading partial %s: %w", name, err)
		}
		deps = append(deps, Dependency{Name: name, Path: path, Source: entry.source})
		queue = append(queue, entry.refs...)
	}

	return deps, nil
}

func lookupPartial(name string, pantries map[string]*Pantry) (string, bool, error) {
	pantryName, ingredientName, ok := SplitPartialName(name, func(n string) bool {
		_, known := pantries[n]
		return known
	})
	if !ok {
		return "", false, nil
	}
	p := pantries[pantryName]
	ing, ok := p.Get(ingredientName)
	if !ok {
		return "", false, fmt.Errorf("partial %s: no such ingredient %q in pantry %q", name, ingredientName, pantryName)
	}
	if !ing.Has(KindHandlebars) {
		return "", false, fmt.Errorf("partial %s: ingredient %q has no %s entry point", name, ingredientName, KindHandlebars)
	}
	return ing.EntryPath(KindHandlebars), true, nil
}

func (r *Resolver) scan(path string) (scanEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return scanEntry{}, err
	}
	if cached, ok := r.cache.Get(path); ok {
		if cached.size == info.Size() && cached.modTime.Equal(info.ModTime()) {
			return cached, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return scanEntry{}, err
	}
	source := string(data)
	entry := scanEntry{
		modTime: info.ModTime(),
		size:    info.Size(),
		source:  source,
		refs:    PartialReferences(source),
	}
	r.cache.Add(path, entry)
	return entry, nil
}
