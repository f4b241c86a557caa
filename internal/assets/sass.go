package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bep/golibsass/libsass"
	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/evanw/esbuild/pkg/api"
)

// sassPlugin compiles .scss files with libsass. An import of
// "<namespace>/<ingredient>" resolves to that ingredient's sass entry point.
func sassPlugin(p *pantry.Pantry, minify bool) api.Plugin {
	return api.Plugin{
		Name: "pantry-sass",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.scss$`}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				css, err := compileSass(p, args.Path, minify)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				return api.OnLoadResult{
					Contents:   &css,
					ResolveDir: filepath.Dir(args.Path),
					Loader:     api.LoaderCSS,
				}, nil
			})
		},
	}
}

// compileSass transpiles the sass file at path.
func compileSass(p *pantry.Pantry, path string, minify bool) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	style := "expanded"
	if minify {
		style = "compressed"
	}

	transpiler, err := libsass.New(libsass.Options{
		IncludePaths:   []string{filepath.Dir(path), p.Path},
		OutputStyle:    libsass.ParseOutputStyle(style),
		ImportResolver: importResolver(p),
	})
	if err != nil {
		return "", err
	}

	result, err := transpiler.Execute(string(src))
	if err != nil {
		return "", fmt.Errorf("compiling %s: %w", path, err)
	}
	return result.CSS, nil
}

// importResolver resolves pantry imports. Anything else is left to libsass.
func importResolver(p *pantry.Pantry) func(url, prev string) (string, string, bool) {
	return func(url, _ string) (string, string, bool) {
		_, name, ok := pantry.SplitPartialName(strings.Trim(url, `"'`), func(n string) bool { return n == p.Name })
		if !ok {
			return "", "", false
		}
		ing, ok := p.Get(name)
		if !ok || !ing.Has(pantry.KindSass) {
			return "", "", false
		}
		path := ing.EntryPath(pantry.KindSass)
		body, err := os.ReadFile(path)
		if err != nil {
			return "", "", false
		}
		return path, string(body), true
	}
}
