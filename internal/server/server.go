// Package server composes the pantry middlewares into one HTTP server.
//
// The preview, documentation and assets middlewares share a pantry
// configuration and an error handler. They are routed under the configured
// mount path together with the index page, the live reload socket and a
// health endpoint. With hot reload enabled a file watcher rebuilds assets and
// tells open preview pages to reload.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/pantry/internal/assets"
	"github.com/conneroisu/pantry/internal/config"
	"github.com/conneroisu/pantry/internal/docs"
	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/helpers"
	"github.com/conneroisu/pantry/internal/livereload"
	"github.com/conneroisu/pantry/internal/logging"
	"github.com/conneroisu/pantry/internal/middleware"
	"github.com/conneroisu/pantry/internal/preview"
	"github.com/conneroisu/pantry/internal/router"
	"github.com/conneroisu/pantry/internal/ui"
	"github.com/conneroisu/pantry/internal/watcher"
	"golang.org/x/sync/errgroup"
)

const (
	// LiveReloadPath is the websocket endpoint, relative to the mount path.
	LiveReloadPath = "/__livereload"
	// HealthPath reports the readiness of the middlewares.
	HealthPath = "/healthz"
	// LiveReloadModelKey is the render model key holding the live reload URL
	// path.
	LiveReloadModelKey = "liveReloadPath"
)

// Route patterns, matched against the path relative to the mount point.
const (
	AssetsPattern  = `^/(?P<ingredient>.+)/assets/.+$`
	PreviewPattern = `^/(?P<ingredient>.+)/preview$`
	DocsPattern    = `^/(?P<ingredient>.+)/docs$`
)

// Server serves a pantry.
type Server struct {
	cfg    *config.Config
	logger logging.Logger

	helpers *helpers.Set
	preview *preview.Middleware
	docs    *docs.Middleware
	assets  *assets.Middleware
	hub     *livereload.Hub
	handler http.Handler

	serverMutex sync.RWMutex
	httpServer  *http.Server
	listener    net.Listener
	watcher     *watcher.FileWatcher

	closed       bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds the server and starts initializing its middlewares. callback,
// if non-nil, is invoked once all three middlewares have settled, with the
// first initialization error or nil.
func New(cfg *config.Config, logger logging.Logger, callback func(error)) (*Server, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "config is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{cfg: cfg, logger: logger.WithComponent("server")}
	errorHandler := errors.OverlayHandler(logger)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "resolving working directory")
	}
	s.helpers, err = helpers.Load(cfg.Preview.Helpers, cwd)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid, "loading helpers")
	}
	for _, name := range s.helpers.Names() {
		s.logger.Debug(context.Background(), "Helper loaded", "helper", name, "source", s.helpers.Source(name))
	}

	var defaultModel map[string]interface{}
	if cfg.Preview.DefaultModel != "" {
		defaultModel, err = preview.LoadDefaultModel(cfg.Preview.DefaultModel)
		if err != nil {
			s.helpers.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeModelLoad, "loading default model").
				WithFile(cfg.Preview.DefaultModel)
		}
	}

	mount := strings.TrimRight(cfg.Server.MountPath, "/")
	baseModel := make(map[string]interface{}, len(cfg.Preview.BaseModel)+1)
	for k, v := range cfg.Preview.BaseModel {
		baseModel[k] = v
	}
	if cfg.Development.HotReload {
		baseModel[LiveReloadModelKey] = mount + LiveReloadPath
	}

	s.hub = livereload.NewHub(logger)

	previewDone, previewSettled := settle()
	docsDone, docsSettled := settle()
	assetsDone, assetsSettled := settle()

	s.preview, err = preview.New(&preview.Config{
		Name:                       cfg.Pantry.Namespace,
		Path:                       cfg.Pantry.BaseDir,
		DefaultModel:               defaultModel,
		DefaultPreviewTemplatePath: cfg.Preview.DefaultTemplate,
		Helpers:                    s.helpers.Funcs(),
		BasePreviewModel:           baseModel,
		Ignore:                     cfg.Pantry.Ignore,
		Logger:                     logger,
		ErrorHandler:               errorHandler,
	}, previewDone)
	if err != nil {
		s.abort()
		return nil, err
	}

	s.docs, err = docs.New(&docs.Config{
		Name:         cfg.Pantry.Namespace,
		Path:         cfg.Pantry.BaseDir,
		Ignore:       cfg.Pantry.Ignore,
		Logger:       logger,
		ErrorHandler: errorHandler,
	}, docsDone)
	if err != nil {
		s.abort()
		return nil, err
	}

	s.assets, err = assets.New(&assets.Config{
		Namespace:    cfg.Pantry.Namespace,
		BaseDir:      cfg.Pantry.BaseDir,
		EntryOrder:   cfg.Assets.EntryOrder,
		GlobalName:   cfg.Assets.GlobalName,
		Minify:       cfg.Assets.Minify,
		Sourcemap:    cfg.Assets.Sourcemap,
		Ignore:       cfg.Pantry.Ignore,
		Logger:       logger,
		ErrorHandler: errorHandler,
		OnRebuild:    func() { s.hub.Reload() },
	}, assetsDone)
	if err != nil {
		s.abort()
		return nil, err
	}

	go func() {
		var g errgroup.Group
		g.Go(previewSettled)
		g.Go(docsSettled)
		g.Go(assetsSettled)
		err := g.Wait()
		if err != nil {
			s.logger.Error(context.Background(), err, "Pantry failed to initialize")
		} else {
			s.logger.Info(context.Background(), "Pantry ready", "pantry", cfg.Pantry.Namespace)
		}
		if callback != nil {
			callback(err)
		}
	}()

	r := router.New(mount, errorHandler)
	r.Handle("livereload", router.Exact(LiveReloadPath), s.hub)
	r.HandleFunc("healthz", router.Exact(HealthPath), s.handleHealth)
	r.Handle("assets", AssetsPattern, s.assets)
	r.Handle("preview", PreviewPattern, s.preview)
	r.Handle("docs", DocsPattern, s.docs)
	r.Handle("index", router.Exact("/"), &ui.Handler{
		Name:         cfg.Pantry.Namespace,
		Load:         s.preview.Pantry,
		Markdown:     docs.NewMarkdown(),
		ErrorHandler: errorHandler,
	})
	for _, route := range r.Routes() {
		s.logger.Debug(context.Background(), "Route registered", "route", route.Name, "pattern", route.Pattern.String())
	}

	chain := middleware.NewChain(
		middleware.Logging(logger),
		middleware.Recover(errorHandler),
		middleware.SecurityHeaders(middleware.DefaultHeaderConfig()),
	)
	s.handler = chain.Apply(r)

	return s, nil
}

// settle returns a middleware callback and a func waiting for it.
func settle() (func(error), func() error) {
	ch := make(chan error, 1)
	return func(err error) { ch <- err }, func() error { return <-ch }
}

// abort releases what New acquired before failing.
func (s *Server) abort() {
	_ = s.hub.Shutdown(context.Background())
	s.helpers.Close()
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listening address, or nil before Start has bound it.
func (s *Server) Addr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves HTTP until Shutdown is called or ctx is done. With hot reload
// enabled it also watches the pantry for changes.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Development.HotReload {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "Hot reload disabled, file watcher failed to start")
		}
	}

	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprint(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.serverMutex.Lock()
	if s.closed {
		s.serverMutex.Unlock()
		_ = ln.Close()
		return http.ErrServerClosed
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Serving pantry",
		"pantry", s.cfg.Pantry.Namespace,
		"dir", s.cfg.Pantry.BaseDir,
		"url", fmt.Sprintf("http://%s%s", ln.Addr(), s.cfg.Server.MountPath),
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.Lock()
		s.closed = true
		fw := s.watcher
		server := s.httpServer
		s.serverMutex.Unlock()

		if fw != nil {
			if err := fw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Failed to stop file watcher")
			}
		}
		_ = s.hub.Shutdown(ctx)
		if server != nil {
			s.shutdownErr = server.Shutdown(ctx)
		}
		s.assets.Close()
		s.helpers.Close()
	})
	return s.shutdownErr
}
