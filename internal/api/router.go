package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/serendip/internal/cycle"
	"github.com/starford/serendip/internal/randomnote"
)

// Deps are the components the API exposes.
type Deps struct {
	Service  *randomnote.Service
	Cycle    *cycle.Scheduler
	Settings randomnote.SettingsStore
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Use(AuthMiddleware(authEnabled, token))

	// Selection.
	r.Post("/random", h.Random)
	r.Get("/query", h.Query)
	r.Get("/blocks/{id}/content", h.BlockContent)

	// Repeating trigger.
	r.Get("/cycle", h.CycleStatus)
	r.Post("/cycle/toggle", h.ToggleCycle)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings/mode", h.SetMode)

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
