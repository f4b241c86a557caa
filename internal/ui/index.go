// Package ui renders the pantry index page listing every ingredient with
// links to its documentation and preview.
package ui

//go:generate templ generate

import (
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/conneroisu/pantry/internal/errors"
	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/yuin/goldmark"
)

// Handler serves the index page. load returns the pantry once it is ready.
type Handler struct {
	Name         string
	Load         func(ctx context.Context) (*pantry.Pantry, error)
	Markdown     goldmark.Markdown
	ErrorHandler errors.Handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, err := h.Load(r.Context())
	if err != nil {
		h.ErrorHandler(w, r, err)
		return
	}
	templ.Handler(Index(h.Name, Entries(p, h.Markdown))).ServeHTTP(w, r)
}
