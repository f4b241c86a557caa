package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/evanw/esbuild/pkg/api"
)

// entryNamespace is the esbuild namespace of the generated per-ingredient
// entry modules.
const entryNamespace = "ingredient-entry"

// bundleOptions is the part of Config the bundler needs.
type bundleOptions struct {
	entryOrder []string
	handlers   map[string]EntryHandler
	fallback   EntryHandler
	minify     bool
	sourcemap  bool
}

// bundle is the output of one successful build.
type bundle struct {
	outputs map[string][]byte
	inputs  map[string]struct{}
	meta    *Metafile
	builtAt time.Time
}

// bundler owns the esbuild context of one pantry and the latest outputs.
type bundler struct {
	pantry  *pantry.Pantry
	outdir  string
	entries map[string][]string
	ctx     api.BuildContext

	buildMu sync.Mutex
	mu      sync.RWMutex
	current *bundle
}

// newBundler prepares an incremental esbuild context for p. The context is
// not built until build is called.
func newBundler(p *pantry.Pantry, opts bundleOptions) (*bundler, error) {
	b := &bundler{
		pantry:  p,
		outdir:  p.Path,
		entries: make(map[string][]string),
	}

	var entryPoints []api.EntryPoint
	for _, name := range p.Names() {
		ing, _ := p.Get(name)
		entries := Entries(ing, opts.entryOrder, opts.handlers, opts.fallback)
		if len(entries) == 0 {
			continue
		}
		b.entries[name] = entries
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  entryNamespace + ":" + name,
			OutputPath: name + "/assets/index",
		})
	}

	buildOpts := api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       p.Path,
		Outdir:              b.outdir,
		PublicPath:          "/",
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		LogLevel:            api.LogLevelSilent,
		MinifyWhitespace:    opts.minify,
		MinifyIdentifiers:   opts.minify,
		MinifySyntax:        opts.minify,
		Loader: map[string]api.Loader{
			".less":  api.LoaderCSS,
			".png":   api.LoaderFile,
			".jpg":   api.LoaderFile,
			".svg":   api.LoaderFile,
			".woff":  api.LoaderFile,
			".woff2": api.LoaderFile,
		},
		Plugins: []api.Plugin{
			b.entryPlugin(),
			sassPlugin(p, opts.minify),
		},
	}
	if opts.sourcemap {
		buildOpts.Sourcemap = api.SourceMapInline
	}

	ctx, ctxErr := api.Context(buildOpts)
	if ctxErr != nil {
		return nil, fmt.Errorf("creating bundler context: %s", formatMessages(ctxErr.Errors))
	}
	b.ctx = ctx
	return b, nil
}

// entryPlugin generates one entry module per ingredient that imports its
// entries in order.
func (b *bundler) entryPlugin() api.Plugin {
	return api.Plugin{
		Name: entryNamespace,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					ing, ok := b.pantry.Get(args.Path)
					if !ok {
						return api.OnLoadResult{}, fmt.Errorf("no such ingredient %q", args.Path)
					}
					contents := entryModule(b.entries[args.Path])
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: ing.Path,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

// entryModule renders the JavaScript importing entries.
func entryModule(entries []string) string {
	var b strings.Builder
	for i, entry := range entries {
		path, global := parseEntry(entry)
		if global == "" {
			fmt.Fprintf(&b, "import %s;\n", strconv.Quote(path))
			continue
		}
		fmt.Fprintf(&b, "import * as __entry%d from %s;\n", i, strconv.Quote(path))
		fmt.Fprintf(&b, "globalThis[%s] = __entry%d;\n", strconv.Quote(global), i)
	}
	return b.String()
}

// build runs the bundler and, on success, swaps in the new outputs.
func (b *bundler) build() (*bundle, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	result := b.ctx.Rebuild()
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("bundling failed: %s", formatMessages(result.Errors))
	}

	meta, err := ParseMetafile(result.Metafile)
	if err != nil {
		return nil, fmt.Errorf("parsing metafile: %w", err)
	}

	next := &bundle{
		outputs: make(map[string][]byte, len(result.OutputFiles)),
		inputs:  make(map[string]struct{}, len(meta.Inputs)),
		meta:    meta,
		builtAt: time.Now(),
	}
	for _, file := range result.OutputFiles {
		rel, err := filepath.Rel(b.outdir, file.Path)
		if err != nil {
			return nil, err
		}
		next.outputs[filepath.ToSlash(rel)] = file.Contents
	}
	for input := range meta.Inputs {
		if strings.Contains(input, ":") && !filepath.IsAbs(input) {
			continue
		}
		next.inputs[filepath.Join(b.outdir, filepath.FromSlash(input))] = struct{}{}
	}

	b.mu.Lock()
	b.current = next
	b.mu.Unlock()

	return next, nil
}

// output returns the bundled file at rel.
func (b *bundler) output(rel string) ([]byte, time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return nil, time.Time{}, false
	}
	data, ok := b.current.outputs[rel]
	return data, b.current.builtAt, ok
}

// outputs lists the bundled file paths.
func (b *bundler) outputs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return nil
	}
	paths := make([]string, 0, len(b.current.outputs))
	for path := range b.current.outputs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// affects reports whether the file at path went into the last bundle.
func (b *bundler) affects(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return false
	}
	_, ok := b.current.inputs[abs]
	return ok
}

// static resolves rel to a file in an ingredient's static directory.
// Longer ingredient names are tried first so nested ingredients win.
func (b *bundler) static(rel string) (string, bool) {
	names := b.pantry.Names()
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		prefix := name + "/assets/" + pantry.StaticDir + "/"
		rest, ok := strings.CutPrefix(rel, prefix)
		if !ok {
			continue
		}
		ing, _ := b.pantry.Get(name)
		root := ing.StaticPath()
		file := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+rest)))
		if !strings.HasPrefix(file, root+string(filepath.Separator)) {
			return "", false
		}
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			return "", false
		}
		return file, true
	}
	return "", false
}

func (b *bundler) dispose() {
	b.ctx.Dispose()
}

// formatMessages joins esbuild messages into one line each.
func formatMessages(msgs []api.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		lines = append(lines, msg.Text)
	}
	return strings.Join(lines, "; ")
}
