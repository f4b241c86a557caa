// Package assets bundles and serves the scripts, styles and static files of
// pantry ingredients.
//
// Every ingredient with at least one bundled entry point is built with esbuild
// into <ingredient>/assets/index.js and, when it has styles,
// <ingredient>/assets/index.css. Outputs are kept in memory and rebuilt on
// demand. Files under an ingredient's static directory are served at
// <ingredient>/assets/static/.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/logging"
	"github.com/conneroisu/pantry/internal/middleware"
	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/conneroisu/pantry/internal/readiness"
)

// Config configures an assets Middleware.
type Config struct {
	// Namespace is the pantry name; sass imports are "<Namespace>/<ingredient>".
	Namespace string
	// BaseDir is the pantry root directory.
	BaseDir string
	// EntryHandlers overrides the built-in handlers per entry point kind.
	EntryHandlers map[string]EntryHandler
	// DefaultEntryHandler handles kinds without a handler.
	DefaultEntryHandler EntryHandler
	// EntryOrder orders each ingredient's entries by kind and must contain
	// DefaultEntryPosition exactly once.
	EntryOrder []string
	// GlobalName is the global a javaScript entry's exports are assigned to
	// when the ingredient has no previewScript.
	GlobalName string
	Minify     bool
	Sourcemap  bool
	Predicates map[string]string
	Ignore     []string

	Logger       logging.Logger
	ErrorHandler errors.Handler
	// OnRebuild is called after every successful build.
	OnRebuild func()
}

// Middleware serves bundled ingredient assets.
type Middleware struct {
	gate         *readiness.Gate[*bundler]
	logger       logging.Logger
	errorHandler errors.Handler
	onRebuild    func()
}

// New validates cfg and starts loading the pantry and building its assets in
// the background. callback, if non-nil, is invoked once with the
// initialization error or nil.
func New(cfg *Config, callback func(error)) (*Middleware, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	order := cfg.EntryOrder
	if order == nil {
		order = DefaultEntryOrder()
	}
	globalName := cfg.GlobalName
	if globalName == "" {
		globalName = DefaultGlobalName
	}
	handlers := DefaultEntryHandlers(globalName)
	for kind, handler := range cfg.EntryHandlers {
		handlers[kind] = handler
	}
	fallback := cfg.DefaultEntryHandler
	if fallback == nil {
		fallback = DefaultEntryHandler
	}

	m := &Middleware{
		logger:       cfg.Logger,
		errorHandler: cfg.ErrorHandler,
		onRebuild:    cfg.OnRebuild,
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	m.logger = m.logger.WithComponent("assets")
	if m.errorHandler == nil {
		m.errorHandler = errors.PlainHandler
	}

	loadOpts := pantry.Options{
		Name:       cfg.Namespace,
		Path:       cfg.BaseDir,
		Predicates: cfg.Predicates,
		Ignore:     cfg.Ignore,
	}
	bundleOpts := bundleOptions{
		entryOrder: order,
		handlers:   handlers,
		fallback:   fallback,
		minify:     cfg.Minify,
		sourcemap:  cfg.Sourcemap,
	}

	m.gate = readiness.Start(func() (*bundler, error) {
		ctx := context.Background()
		p, err := pantry.Load(ctx, loadOpts)
		if err != nil {
			return nil, errors.NewInitializationError(errors.ErrCodePantryLoad, "loading pantry", err)
		}
		b, err := newBundler(p, bundleOpts)
		if err != nil {
			return nil, errors.NewInitializationError(errors.ErrCodeBundlerSetup, "setting up bundler", err)
		}
		if _, err := m.build(ctx, b); err != nil {
			b.dispose()
			return nil, errors.NewInitializationError(errors.ErrCodeBundlerSetup, "initial build", err)
		}
		return b, nil
	}, callback)

	return m, nil
}

func validate(cfg *Config) error {
	if cfg == nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "config is required")
	}
	if cfg.Namespace == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "config.Namespace is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	if cfg.BaseDir == "" || err != nil || !info.IsDir() {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "config.BaseDir is missing or not a directory").
			WithFile(cfg.BaseDir)
	}
	if cfg.EntryOrder != nil {
		if err := validateEntryOrder(cfg.EntryOrder); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
		}
	}
	return nil
}

// build runs one build and logs its outcome.
func (m *Middleware) build(ctx context.Context, b *bundler) (*bundle, error) {
	perf := logging.StartOperation(m.logger, "bundle")
	out, err := b.build()
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}
	perf.End(ctx)

	for _, size := range out.meta.Sizes() {
		m.logger.Debug(ctx, "Bundled asset", "path", size.Path, "bytes", size.Bytes)
	}
	m.logger.Info(ctx, "Assets built",
		"outputs", len(out.outputs),
		"inputs", len(out.inputs),
		"bytes", out.meta.TotalBytes(),
	)
	return out, nil
}

// Rebuild rebuilds the assets after initialization has settled. A failed
// rebuild keeps the previous outputs. OnRebuild runs after a successful one.
func (m *Middleware) Rebuild(ctx context.Context) error {
	b, err := m.gate.Wait(ctx)
	if err != nil {
		return err
	}
	if _, err := m.build(ctx, b); err != nil {
		m.logger.Warn(ctx, err, "Rebuild failed, serving previous assets")
		return err
	}
	if m.onRebuild != nil {
		m.onRebuild()
	}
	return nil
}

// Affects reports whether a change to the file at path changes the bundle.
// Style sources are always reported since sass imports are resolved outside
// of esbuild.
func (m *Middleware) Affects(path string) bool {
	if m.gate.State() != readiness.StateReady {
		return false
	}
	b, err := m.gate.Wait(context.Background())
	if err != nil {
		return false
	}
	if b.affects(path) {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scss", ".sass", ".less", ".css":
		rel, err := filepath.Rel(b.pantry.Path, path)
		return err == nil && !strings.HasPrefix(rel, "..")
	}
	return false
}

// Outputs lists the paths of the bundled files relative to the pantry root.
func (m *Middleware) Outputs(ctx context.Context) ([]string, error) {
	b, err := m.gate.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return b.outputs(), nil
}

// ServeHTTP serves a bundled file or a static file. The mount path recorded
// in the request context is stripped before lookup.
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel, ok := middleware.RelativePath(r)
	if !ok {
		m.errorHandler(w, r, errors.NewNotFoundError(errors.ErrCodeFileNotFound, fmt.Sprintf("%s is outside the pantry mount", r.URL.Path)))
		return
	}

	b, err := m.gate.Wait(r.Context())
	if err != nil {
		m.errorHandler(w, r, err)
		return
	}

	rel = strings.TrimPrefix(rel, "/")
	if data, builtAt, ok := b.output(rel); ok {
		http.ServeContent(w, r, rel, builtAt, bytes.NewReader(data))
		return
	}
	if file, ok := b.static(rel); ok {
		http.ServeFile(w, r, file)
		return
	}

	m.errorHandler(w, r, errors.NewNotFoundError(errors.ErrCodeFileNotFound, fmt.Sprintf("no such asset %q", rel)))
}

// Close releases the bundler once initialization has settled.
func (m *Middleware) Close() {
	<-m.gate.Done()
	if b, err := m.gate.Wait(context.Background()); err == nil {
		b.dispose()
	}
}

// State returns the initialization state.
func (m *Middleware) State() readiness.State {
	return m.gate.State()
}

// Pending returns the number of requests waiting for initialization.
func (m *Middleware) Pending() int {
	return m.gate.Pending()
}

// Done is closed once initialization has settled.
func (m *Middleware) Done() <-chan struct{} {
	return m.gate.Done()
}
