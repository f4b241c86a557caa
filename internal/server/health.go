package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/conneroisu/pantry/internal/readiness"
	"github.com/conneroisu/pantry/internal/version"
)

// Health is the body of the health endpoint.
type Health struct {
	Status      string            `json:"status"`
	Pantry      string            `json:"pantry"`
	Version     string            `json:"version"`
	Middlewares map[string]string `json:"middlewares"`
	Waiting     map[string]int    `json:"waiting"`
	Helpers     map[string]string `json:"helpers,omitempty"`
	Assets      []string          `json:"assets,omitempty"`
	Clients     int               `json:"clients"`
}

// Health reports the readiness of the middlewares. Status is "ready" once all
// are ready, "failed" if any failed, else "initializing". Waiting counts the
// requests each middleware holds until it settles.
func (s *Server) Health(ctx context.Context) Health {
	states := map[string]readiness.State{
		"preview": s.preview.State(),
		"docs":    s.docs.State(),
		"assets":  s.assets.State(),
	}

	h := Health{
		Status:      "ready",
		Pantry:      s.cfg.Pantry.Namespace,
		Version:     version.GetBuildInfo().Short(),
		Middlewares: make(map[string]string, len(states)),
		Waiting: map[string]int{
			"preview": s.preview.Pending(),
			"docs":    s.docs.Pending(),
			"assets":  s.assets.Pending(),
		},
		Clients: s.hub.Clients(),
	}
	if names := s.helpers.Names(); len(names) > 0 {
		h.Helpers = make(map[string]string, len(names))
		for _, name := range names {
			h.Helpers[name] = s.helpers.Source(name)
		}
	}
	if states["assets"] == readiness.StateReady {
		if outputs, err := s.assets.Outputs(ctx); err == nil {
			h.Assets = outputs
		}
	}
	for name, state := range states {
		h.Middlewares[name] = state.String()
		switch {
		case state == readiness.StateFailed:
			h.Status = "failed"
		case state != readiness.StateReady && h.Status != "failed":
			h.Status = "initializing"
		}
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.Health(r.Context())

	status := http.StatusOK
	if health.Status != "ready" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}
