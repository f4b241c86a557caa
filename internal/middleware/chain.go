// Package middleware provides the HTTP middleware stack shared by the pantry
// routes: request logging, panic recovery, security headers and mount path
// handling.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/logging"
)

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// Chain manages the HTTP middleware stack.
//
// Middlewares run in the order they were added: the first added is the
// outermost wrapper, so a request flows through them first to last and the
// response flows back last to first.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain holding middlewares.
func NewChain(middlewares ...Middleware) *Chain {
	chain := &Chain{middlewares: make([]Middleware, 0, len(middlewares))}
	for _, m := range middlewares {
		chain.Add(m)
	}
	return chain
}

// Add appends a middleware to the chain
func (c *Chain) Add(middleware Middleware) {
	if middleware == nil {
		panic("middleware: Add called with nil middleware")
	}
	c.middlewares = append(c.middlewares, middleware)
}

// Len returns the number of middlewares in the chain
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Apply wraps handler with every middleware in the chain.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("middleware: Apply called with nil handler")
	}

	wrapped := handler
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		wrapped = c.middlewares[i](wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("middleware: middleware at index %d returned nil handler", i))
		}
	}
	return wrapped
}

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrade needs.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logging logs every request with its status and duration.
func Logging(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug(r.Context(), "HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// Recover turns a panicking handler into an internal error passed to
// handleError.
func Recover(handleError errors.Handler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					handleError(w, r, errors.NewInternalError(errors.ErrCodeInternalError, "handler panicked", fmt.Errorf("%v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
