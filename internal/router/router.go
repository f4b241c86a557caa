// Package router dispatches pantry requests by regular expressions matched
// against the path relative to the mount point.
//
// Named groups in a route's pattern become request path values, so a route
// such as `^/(?P<ingredient>.+)/docs$` exposes r.PathValue("ingredient"). The
// request URL is left untouched.
package router

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/middleware"
)

// Route is one registered pattern.
type Route struct {
	Name    string
	Pattern *regexp.Regexp
	Handler http.Handler
}

// Router matches routes in registration order; the first match wins.
type Router struct {
	mount        string
	routes       []Route
	errorHandler errors.Handler
}

// New creates a router serving under mount. Unmatched requests and requests
// outside mount are reported to errorHandler as not found.
func New(mount string, errorHandler errors.Handler) *Router {
	if errorHandler == nil {
		errorHandler = errors.PlainHandler
	}
	return &Router{mount: mount, errorHandler: errorHandler}
}

// Handle registers handler for pattern. It panics if pattern does not
// compile, like http.ServeMux does for malformed patterns.
func (r *Router) Handle(name, pattern string, handler http.Handler) {
	if handler == nil {
		panic(fmt.Sprintf("router: nil handler for route %s", name))
	}
	r.routes = append(r.routes, Route{
		Name:    name,
		Pattern: regexp.MustCompile(pattern),
		Handler: handler,
	})
}

// HandleFunc registers a handler function for pattern.
func (r *Router) HandleFunc(name, pattern string, handler http.HandlerFunc) {
	r.Handle(name, pattern, handler)
}

// Exact returns the pattern matching exactly path.
func Exact(path string) string {
	return "^" + regexp.QuoteMeta(path) + "$"
}

// Routes returns the registered routes.
func (r *Router) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Match returns the route matching the mount-relative path rel together with
// its named captures.
func (r *Router) Match(rel string) (*Route, map[string]string, bool) {
	for i := range r.routes {
		route := &r.routes[i]
		m := route.Pattern.FindStringSubmatch(rel)
		if m == nil {
			continue
		}
		values := make(map[string]string)
		for j, name := range route.Pattern.SubexpNames() {
			if name != "" && j < len(m) {
				values[name] = m[j]
			}
		}
		return route, values, true
	}
	return nil, nil, false
}

// ServeHTTP records the mount path in the request context and dispatches.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = req.WithContext(middleware.WithMountPath(req.Context(), r.mount))

	rel, ok := middleware.RelativePath(req)
	if !ok {
		r.errorHandler(w, req, errors.NewNotFoundError(errors.ErrCodeFileNotFound, fmt.Sprintf("%s is outside %s", req.URL.Path, r.mount)))
		return
	}

	route, values, ok := r.Match(rel)
	if !ok {
		r.errorHandler(w, req, errors.NewNotFoundError(errors.ErrCodeFileNotFound, fmt.Sprintf("no route for %s", rel)))
		return
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	for name, value := range values {
		req.SetPathValue(name, value)
	}
	route.Handler.ServeHTTP(w, req)
}
