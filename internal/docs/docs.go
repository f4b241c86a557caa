// Package docs serves the rendered documentation of pantry ingredients.
//
// An ingredient's ingredient.md is rendered as GitHub flavored markdown with
// raw HTML passed through, and every embedded <preview> element becomes an
// iframe showing the ingredient's live preview.
package docs

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/logging"
	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/conneroisu/pantry/internal/readiness"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Config configures a documentation Middleware.
type Config struct {
	Name       string
	Path       string
	Predicates map[string]string
	Ignore     []string

	Logger       logging.Logger
	ErrorHandler errors.Handler
}

// Middleware renders ingredient documentation.
type Middleware struct {
	markdown     goldmark.Markdown
	gate         *readiness.Gate[*pantry.Pantry]
	logger       logging.Logger
	errorHandler errors.Handler
}

// New validates cfg and starts loading the pantry in the background.
// callback, if non-nil, is invoked once with the load error or nil.
func New(cfg *Config, callback func(error)) (*Middleware, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "config is required")
	}
	if cfg.Name == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "config.Name is required")
	}
	if cfg.Path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "config.Path is required")
	}

	m := &Middleware{
		markdown:     NewMarkdown(),
		logger:       cfg.Logger,
		errorHandler: cfg.ErrorHandler,
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	m.logger = m.logger.WithComponent("docs")
	if m.errorHandler == nil {
		m.errorHandler = errors.PlainHandler
	}

	opts := pantry.Options{
		Name:       cfg.Name,
		Path:       cfg.Path,
		Predicates: cfg.Predicates,
		Ignore:     cfg.Ignore,
	}
	m.gate = readiness.Start(func() (*pantry.Pantry, error) {
		p, err := pantry.Load(context.Background(), opts)
		if err != nil {
			return nil, errors.NewInitializationError(errors.ErrCodePantryLoad, "loading pantry", err)
		}
		return p, nil
	}, callback)

	return m, nil
}

// NewMarkdown returns the markdown converter used for documentation.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

// ServeHTTP renders the documentation of the ingredient named by the
// "ingredient" path value.
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out, err := m.Render(r.Context(), r.PathValue("ingredient"))
	if err != nil {
		m.errorHandler(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// Render returns the documentation HTML of the named ingredient.
func (m *Middleware) Render(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.NewNotFoundError(errors.ErrCodeMissingParam, "ingredient name must be defined")
	}

	p, err := m.gate.Wait(ctx)
	if err != nil {
		return "", err
	}

	ing, ok := p.Get(name)
	if !ok {
		return "", errors.NewNotFoundError(errors.ErrCodeIngredientNotFound, fmt.Sprintf("no such ingredient %q", name)).WithIngredient(name)
	}

	path := ing.DocumentationPath()
	source, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewRenderError(errors.ErrCodeFileNotFound, "reading documentation", err).
			WithIngredient(name).WithFile(path)
	}

	var buf bytes.Buffer
	if err := m.markdown.Convert(source, &buf); err != nil {
		return "", errors.NewRenderError(errors.ErrCodeDocumentationRender, "rendering markdown", err).
			WithIngredient(name).WithFile(path)
	}

	out, err := RewritePreviews(buf.String())
	if err != nil {
		return "", errors.NewRenderError(errors.ErrCodeDocumentationRender, "rewriting previews", err).
			WithIngredient(name).WithFile(path)
	}

	m.logger.Debug(ctx, "Rendered documentation", "ingredient", name, "bytes", len(out))
	return out, nil
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
