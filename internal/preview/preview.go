// Package preview serves rendered previews of pantry ingredients.
//
// A preview is the ingredient's handlebars template, together with every
// partial it transitively references, rendered against the ingredient's model
// and embedded in a preview template. Each request renders on its own
// template instance, so partial and helper registrations never leak between
// requests or between middleware instances.
package preview

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"reflect"

	"github.com/aymerick/raymond"
	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/logging"
	"github.com/conneroisu/pantry/internal/modelpath"
	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/conneroisu/pantry/internal/readiness"
)

// IngredientPartial is the partial name the ingredient's own template is
// registered under.
const IngredientPartial = "ingredient"

// ModelPathParam is the query parameter selecting a subtree of the model.
const ModelPathParam = "modelPath"

//go:embed default-preview.hbs
var defaultPreviewTemplate string

// DefaultTemplate returns the built-in preview template.
func DefaultTemplate() string {
	return defaultPreviewTemplate
}

// Config configures a preview Middleware.
type Config struct {
	// Name is the pantry name; partial references are "<Name>/<ingredient>".
	Name string
	// Path is the pantry root directory.
	Path string
	// DefaultModel is rendered for ingredients without a model entry point.
	DefaultModel map[string]interface{}
	// DefaultPreviewTemplatePath replaces the built-in preview template for
	// ingredients without a preview entry point.
	DefaultPreviewTemplatePath string
	// Helpers maps helper names to funcs returning a single value.
	Helpers map[string]interface{}
	// BasePreviewModel is merged over the top level of every render model.
	BasePreviewModel map[string]interface{}
	Predicates       map[string]string
	Ignore           []string

	Logger       logging.Logger
	ErrorHandler errors.Handler
}

// Middleware renders ingredient previews.
type Middleware struct {
	name             string
	defaultModel     map[string]interface{}
	templatePath     string
	helpers          map[string]interface{}
	basePreviewModel map[string]interface{}

	gate         *readiness.Gate[*pantry.Pantry]
	resolver     *pantry.Resolver
	logger       logging.Logger
	errorHandler errors.Handler
}

// New validates cfg and starts loading the pantry in the background. The
// returned middleware serves requests immediately; requests that arrive
// before the pantry is loaded wait for it. callback, if non-nil, is invoked
// once with the load error or nil.
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
	for name, helper := range cfg.Helpers {
		if err := validateHelper(name, helper); err != nil {
			return nil, err
		}
	}

	resolver, err := pantry.NewResolver(256)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "creating partial resolver")
	}

	m := &Middleware{
		name:             cfg.Name,
		defaultModel:     cfg.DefaultModel,
		templatePath:     cfg.DefaultPreviewTemplatePath,
		helpers:          make(map[string]interface{}, len(cfg.Helpers)),
		basePreviewModel: cfg.BasePreviewModel,
		resolver:         resolver,
		logger:           cfg.Logger,
		errorHandler:     cfg.ErrorHandler,
	}
	if m.defaultModel == nil {
		m.defaultModel = map[string]interface{}{}
	}
	for name, helper := range cfg.Helpers {
		m.helpers[name] = helper
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	m.logger = m.logger.WithComponent("preview")
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
		m.logger.Info(context.Background(), "Pantry loaded", "pantry", p.Name, "ingredients", len(p.Ingredients))
		return p, nil
	}, callback)

	return m, nil
}

func validateHelper(name string, helper interface{}) error {
	t := reflect.TypeOf(helper)
	if t == nil || t.Kind() != reflect.Func {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("helper %q must be a function", name))
	}
	if t.NumOut() != 1 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("helper %q must return exactly one value", name))
	}
	return nil
}

// ServeHTTP renders the preview of the ingredient named by the "ingredient"
// path value. Failures go to the configured error handler.
func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out, err := m.Render(r.Context(), r.PathValue("ingredient"), r.URL.Query().Get(ModelPathParam))
	if err != nil {
		m.errorHandler(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// Render renders the preview of the named ingredient. A non-empty modelPath
// selects a subtree of the ingredient's model.
func (m *Middleware) Render(ctx context.Context, name, modelPath string) (string, error) {
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

	perf := logging.StartOperation(m.logger, "render_preview")

	source, err := m.previewTemplate(ing)
	if err != nil {
		perf.EndWithError(ctx, err)
		return "", err
	}

	partials, err := m.partials(ctx, p, ing)
	if err != nil {
		perf.EndWithError(ctx, err)
		return "", err
	}

	model, err := m.model(ing, modelPath)
	if err != nil {
		perf.EndWithError(ctx, err)
		return "", err
	}

	tpl, err := raymond.Parse(source)
	if err != nil {
		err = errors.NewRenderError(errors.ErrCodeTemplateCompile, "compiling preview template", err).WithIngredient(name)
		perf.EndWithError(ctx, err)
		return "", err
	}
	if len(m.helpers) > 0 {
		tpl.RegisterHelpers(m.helpers)
	}
	tpl.RegisterPartials(partials)

	out, err := tpl.Exec(RenderModel(ing, model, m.basePreviewModel))
	if err != nil {
		err = errors.NewRenderError(errors.ErrCodeTemplateExec, "rendering preview", err).WithIngredient(name)
		perf.EndWithError(ctx, err)
		return "", err
	}

	perf.End(ctx)
	return out, nil
}

// RenderModel composes the context a preview template is rendered against.
func RenderModel(ing *pantry.Ingredient, model interface{}, base map[string]interface{}) map[string]interface{} {
	renderModel := map[string]interface{}{
		"ingredientName": ing.Name,
		"componentName":  ing.Name,
		"hasStyles":      ing.Has(pantry.KindSass) || ing.Has(pantry.KindLess),
		"hasScript":      ing.Has(pantry.KindJavaScript) || ing.Has(pantry.KindPreviewScript),
		"model":          model,
	}
	for k, v := range base {
		renderModel[k] = v
	}
	return renderModel
}

func (m *Middleware) previewTemplate(ing *pantry.Ingredient) (string, error) {
	path := m.templatePath
	if ing.Has(pantry.KindPreview) {
		path = ing.EntryPath(pantry.KindPreview)
	}
	if path == "" {
		return defaultPreviewTemplate, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewRenderError(errors.ErrCodeFileNotFound, "reading preview template", err).
			WithIngredient(ing.Name).WithFile(path)
	}
	return string(data), nil
}

// partials returns the ingredient template and everything it references,
// keyed by partial name.
func (m *Middleware) partials(ctx context.Context, p *pantry.Pantry, ing *pantry.Ingredient) (map[string]string, error) {
	if !ing.Has(pantry.KindHandlebars) {
		return map[string]string{IngredientPartial: ""}, nil
	}

	path := ing.EntryPath(pantry.KindHandlebars)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeFileNotFound, "reading ingredient template", err).
			WithIngredient(ing.Name).WithFile(path)
	}
	source := string(data)

	deps, err := m.resolver.Resolve(ctx, source, map[string]*pantry.Pantry{p.Name: p})
	if err != nil {
		return nil, errors.NewRenderError(errors.ErrCodeTemplateCompile, "resolving partial dependencies", err).
			WithIngredient(ing.Name)
	}

	partials := make(map[string]string, len(deps)+1)
	for _, dep := range deps {
		partials[dep.Name] = dep.Source
	}
	partials[IngredientPartial] = source
	return partials, nil
}

func (m *Middleware) model(ing *pantry.Ingredient, path string) (interface{}, error) {
	var model interface{} = m.defaultModel
	if ing.Has(pantry.KindModel) {
		loaded, err := LoadModel(ing.EntryPath(pantry.KindModel))
		if err != nil {
			return nil, errors.NewRenderError(errors.ErrCodeModelLoad, "loading model", err).
				WithIngredient(ing.Name).WithFile(ing.EntryPath(pantry.KindModel))
		}
		model = loaded
	}

	if path != "" {
		selected, ok := modelpath.Get(model, path)
		if !ok {
			m.logger.Debug(context.Background(), "Model path not found", "ingredient", ing.Name, "modelPath", path)
			return emptyModel(), nil
		}
		model = selected
	}
	if model == nil {
		return emptyModel(), nil
	}
	return model, nil
}

// emptyModel is the context an ingredient renders against when it has no
// model. It must be non-nil: a nil partial context falls back to the
// enclosing preview context.
func emptyModel() map[string]interface{} {
	return map[string]interface{}{}
}

// Pantry waits for the pantry to load and returns it.
func (m *Middleware) Pantry(ctx context.Context) (*pantry.Pantry, error) {
	return m.gate.Wait(ctx)
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
