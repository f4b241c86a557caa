package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(name string, order *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name+":in")
			next.ServeHTTP(w, r)
			*order = append(*order, name+":out")
		})
	}
}

func TestChain_ApplyOrder(t *testing.T) {
	var order []string
	chain := NewChain(tag("a", &order), tag("b", &order))
	chain.Add(tag("c", &order))
	assert.Equal(t, 3, chain.Len())

	h := chain.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a:in", "b:in", "c:in", "handler", "c:out", "b:out", "a:out"}, order)
}

func TestChain_Panics(t *testing.T) {
	assert.Panics(t, func() { NewChain().Add(nil) })
	assert.Panics(t, func() { NewChain().Apply(nil) })

	broken := func(http.Handler) http.Handler { return nil }
	assert.Panics(t, func() { NewChain(broken).Apply(http.NotFoundHandler()) })
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf})

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kettle", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	out := buf.String()
	assert.Contains(t, out, `"path":"/kettle"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
}

func TestLogging_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf})

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRecover(t *testing.T) {
	var handled error
	h := Recover(func(w http.ResponseWriter, r *http.Request, err error) {
		handled = err
		errors.PlainHandler(w, r, err)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Error(t, handled)
	assert.Contains(t, handled.Error(), "boom")
}
