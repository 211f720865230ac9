package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/yamui/internal/control"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *control.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/info", h.Info)

	// State.
	r.Get("/state", h.ListState)
	r.Get("/state/{key}", h.GetState)
	r.Put("/state/{key}", h.PutState)

	// Navigation.
	r.Get("/nav", h.GetNav)
	r.Post("/nav/{op}", h.Navigate)
	r.Get("/screens", h.ListScreens)

	// Widgets.
	r.Get("/tree", h.Tree)
	r.Post("/widgets/{id}/events/{event}", h.DispatchEvent)

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{name}", h.GetDocument)
	r.Put("/documents/{name}", h.PutDocument)
	r.Post("/documents/{name}/load", h.LoadDocument)
	r.Post("/check", h.Check)

	// Natives and trace.
	r.Get("/natives", h.ListNatives)
	r.Post("/natives/{name}", h.CallNative)
	r.Get("/trace", h.Trace)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
