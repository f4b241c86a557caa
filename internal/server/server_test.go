package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/pantry/internal/config"
	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/livereload"
	"github.com/conneroisu/pantry/internal/logging"
	"github.com/conneroisu/pantry/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	done := make(chan error, 1)
	s, err := New(cfg, nil, func(err error) { done <- err })
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("server did not settle")
	}
	return s
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNew_NilConfig(t *testing.T) {
	s, err := New(nil, nil, nil)
	assert.Nil(t, s)
	assert.True(t, errors.IsConfigError(err))
}

func TestNew_MissingHelper(t *testing.T) {
	cfg := testutils.CreateTestConfig(testutils.CreateTempPantry(t, testutils.SamplePantry()))
	cfg.Preview.Helpers = []string{filepath.Join(t.TempDir(), "missing.lua")}

	s, err := New(cfg, nil, nil)
	assert.Nil(t, s)
	assert.True(t, errors.IsConfigError(err))
}

func TestNew_BadDefaultModel(t *testing.T) {
	root := testutils.CreateTempPantry(t, testutils.SamplePantry())
	cfg := testutils.CreateTestConfig(root)
	cfg.Preview.DefaultModel = filepath.Join(root, "button", "index.js")

	s, err := New(cfg, nil, nil)
	assert.Nil(t, s)
	assert.True(t, errors.IsConfigError(err))
}

func TestNew_CallbackReportsFailure(t *testing.T) {
	cfg := testutils.CreateTestConfig(testutils.CreateTempPantry(t, testutils.SamplePantry()))
	cfg.Pantry.Ignore = []string{"["}

	done := make(chan error, 1)
	s, err := New(cfg, nil, func(err error) { done <- err })
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	select {
	case err := <-done:
		assert.True(t, errors.IsInitializationError(err))
	case <-time.After(30 * time.Second):
		t.Fatal("callback not invoked")
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, _ := get(t, srv, "/button/preview")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body := get(t, srv, HealthPath)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var health Health
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "failed", health.Status)
	assert.Equal(t, "failed", health.Middlewares["preview"])
	assert.Empty(t, health.Assets)
}

func TestRoutes(t *testing.T) {
	s := newServer(t, testutils.CreateTestConfig(testutils.CreateTempPantry(t, testutils.SamplePantry())))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	t.Run("preview", func(t *testing.T) {
		resp, body := get(t, srv, "/button/preview")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `<button class="btn">Click</button>`)
		assert.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	})

	t.Run("preview model path", func(t *testing.T) {
		resp, body := get(t, srv, "/button/preview?modelPath=primary")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `<button class="btn">Go</button>`)
	})

	t.Run("nested ingredient", func(t *testing.T) {
		resp, _ := get(t, srv, "/forms/input/docs")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("docs", func(t *testing.T) {
		resp, body := get(t, srv, "/button/docs")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `<iframe height="40" src="./preview?modelPath=primary"></iframe>`)
	})

	t.Run("assets", func(t *testing.T) {
		resp, body := get(t, srv, "/button/assets/index.css")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "color")

		resp, body = get(t, srv, "/button/assets/static/icon.svg")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "<svg></svg>", body)
	})

	t.Run("index", func(t *testing.T) {
		resp, body := get(t, srv, "/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `/button/preview`)
		assert.Contains(t, body, `/forms/input/docs`)
	})

	t.Run("unknown ingredient", func(t *testing.T) {
		resp, _ := get(t, srv, "/nope/preview")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, _ := get(t, srv, "/button/elsewhere")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/button/preview", "text/plain", strings.NewReader(""))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("health", func(t *testing.T) {
		resp, body := get(t, srv, HealthPath)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var health Health
		require.NoError(t, json.Unmarshal([]byte(body), &health))
		assert.Equal(t, "ready", health.Status)
		assert.Equal(t, "kitchen", health.Pantry)
		assert.Equal(t, map[string]string{"preview": "ready", "docs": "ready", "assets": "ready"}, health.Middlewares)
		assert.Equal(t, map[string]int{"preview": 0, "docs": 0, "assets": 0}, health.Waiting)
		assert.Contains(t, health.Assets, "button/assets/index.js")
		assert.Empty(t, health.Helpers)
	})
}

func TestMountPath(t *testing.T) {
	cfg := testutils.CreateTestConfig(testutils.CreateTempPantry(t, testutils.SamplePantry()))
	cfg.Server.MountPath = "/pantry"
	s := newServer(t, cfg)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, _ := get(t, srv, "/pantry/button/preview")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := get(t, srv, "/pantry/button/assets/index.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "button")

	resp, body = get(t, srv, "/pantry/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `/pantry/button/docs`)

	resp, _ = get(t, srv, "/button/preview")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHelpers(t *testing.T) {
	root := testutils.CreateTempPantry(t, map[string]string{
		"badge/ingredient.md": "# Badge\n",
		"badge/index.hbs":     `<span>{{shout label}}</span>`,
		"badge/model.json":    `{"label": "new"}`,
		"helpers/text.lua":    `return { shout = function(s) return string.upper(s) .. "!" end }`,
	})
	cfg := testutils.CreateTestConfig(root)
	cfg.Preview.Helpers = []string{filepath.Join(root, "helpers", "text.lua")}
	s := newServer(t, cfg)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, body := get(t, srv, "/badge/preview")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<span>NEW!</span>")

	_, body = get(t, srv, HealthPath)
	var health Health
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, map[string]string{"shout": filepath.Join(root, "helpers", "text.lua")}, health.Helpers)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNew_LogsRoutesAndHelpers(t *testing.T) {
	root := testutils.CreateTempPantry(t, map[string]string{
		"badge/ingredient.md": "# Badge\n",
		"helpers/text.lua":    `return { shout = function(s) return string.upper(s) end }`,
	})
	cfg := testutils.CreateTestConfig(root)
	cfg.Preview.Helpers = []string{filepath.Join(root, "helpers", "text.lua")}

	out := &lockedBuffer{}
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: out})
	s, err := New(cfg, logger, nil)
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	var helperLogged bool
	routes := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var entry map[string]interface{}
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}
		switch entry["msg"] {
		case "Route registered":
			routes[fmt.Sprint(entry["route"])] = true
		case "Helper loaded":
			helperLogged = entry["helper"] == "shout" && entry["source"] == filepath.Join(root, "helpers", "text.lua")
		}
	}
	assert.True(t, helperLogged)
	assert.Equal(t, map[string]bool{"livereload": true, "healthz": true, "assets": true, "preview": true, "docs": true, "index": true}, routes)
}

func TestBaseModel(t *testing.T) {
	root := testutils.CreateTempPantry(t, map[string]string{
		"badge/ingredient.md": "# Badge\n",
		"badge/index.hbs":     `<span>{{label}}</span>`,
		"badge/model.json":    `{"label": "new"}`,
		"badge/preview.hbs":   `<p>{{site}}</p><i>{{liveReloadPath}}</i>{{> ingredient model}}`,
	})
	cfg := testutils.CreateTestConfig(root)
	cfg.Server.MountPath = "/ui"
	cfg.Preview.BaseModel = map[string]interface{}{"site": "demo"}
	cfg.Development.HotReload = true
	s := newServer(t, cfg)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	_, body := get(t, srv, "/ui/badge/preview")
	assert.Contains(t, body, "<p>demo</p>")
	assert.Contains(t, body, "<i>/ui/__livereload</i>")
	assert.Contains(t, body, "<span>new</span>")

	_, hasKey := cfg.Preview.BaseModel[LiveReloadModelKey]
	assert.False(t, hasKey)
}

func TestStartShutdown(t *testing.T) {
	cfg := testutils.CreateTestConfig(testutils.CreateTempPantry(t, testutils.SamplePantry()))
	s := newServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()

	testutils.WaitForCondition(t, func() bool { return s.Addr() != nil }, 5*time.Second, "server listening")

	resp, err := http.Get(fmt.Sprintf("http://%s/button/preview", s.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestHotReload(t *testing.T) {
	root := testutils.CreateTempPantry(t, testutils.SamplePantry())
	cfg := testutils.CreateTestConfig(root)
	cfg.Development.HotReload = true
	s := newServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	testutils.WaitForCondition(t, func() bool { return s.Addr() != nil }, 5*time.Second, "server listening")

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, fmt.Sprintf("ws://%s%s", s.Addr(), LiveReloadPath), nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	testutils.WaitForCondition(t, func() bool { return s.hub.Clients() == 1 }, 5*time.Second, "client registered")

	require.NoError(t, os.WriteFile(filepath.Join(root, "button", "index.scss"), []byte(".btn { color: blue; }"), 0644))

	readCtx, readCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer readCancel()
	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)

	var msg livereload.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, livereload.TypeReload, msg.Type)

	css, err := s.assets.Outputs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, css, "button/assets/index.css")

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	_, body := get(t, srv, "/button/assets/index.css")
	assert.Contains(t, body, "blue")
}
