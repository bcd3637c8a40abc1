package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/query"
)

// Handler holds API route handlers.
type Handler struct {
	d Deps
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

// Random handles POST /api/random.
//
//	@Summary		Open a random note using the stored settings
//	@Tags			random
//	@Produce		json
//	@Success		200		{object}	RandomResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/random [post]
func (h *Handler) Random(w http.ResponseWriter, r *http.Request) {
	res, err := h.d.Service.Trigger(r.Context())
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Query handles GET /api/query.
//
//	@Summary		Show the query the stored settings would run
//	@Tags			random
//	@Produce		json
//	@Success		200		{object}	QueryResponse
//	@Security		BearerAuth
//	@Router			/query [get]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	mode, q, err := h.d.Service.CurrentQuery(r.Context())
	resp := QueryResponse{}
	switch {
	case errors.Is(err, apperr.ErrConfiguration):
		resp.Warning = err.Error()
	case err != nil:
		slog.Error("build query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	resp.Mode = mode.Name()
	if q != nil {
		resp.Lang = string(q.Lang)
		resp.Query = q.Text
	}
	if ns, ok := mode.(query.NamespaceMode); ok {
		resp.Namespace = ns.Namespace
	}
	writeJSON(w, http.StatusOK, resp)
}

// BlockContent handles GET /api/blocks/{id}/content.
//
//	@Summary		Resolve a block's embedded references into text
//	@Tags			blocks
//	@Produce		json
//	@Param			id		path		string	true	"Block uuid or entity id"
//	@Success		200		{object}	BlockContentResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id}/content [get]
func (h *Handler) BlockContent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	content, err := h.d.Service.Resolver().Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("resolve block failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, BlockContentResponse{ID: id, Content: content})
}

// CycleStatus handles GET /api/cycle.
//
//	@Summary		Report whether the repeating trigger is running
//	@Tags			cycle
//	@Produce		json
//	@Success		200		{object}	CycleResponse
//	@Security		BearerAuth
//	@Router			/cycle [get]
func (h *Handler) CycleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cycleResponse(string(h.d.Cycle.State())))
}

// ToggleCycle handles POST /api/cycle/toggle.
//
//	@Summary		Start or stop the repeating trigger
//	@Tags			cycle
//	@Produce		json
//	@Success		200		{object}	CycleResponse
//	@Security		BearerAuth
//	@Router			/cycle/toggle [post]
func (h *Handler) ToggleCycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cycleResponse(string(h.d.Cycle.Toggle())))
}

func (h *Handler) cycleResponse(state string) CycleResponse {
	return CycleResponse{State: state, PeriodMS: h.d.Cycle.Period().Milliseconds()}
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get the stored selection settings
//	@Tags			settings
//	@Produce		json
//	@Success		200		{object}	SettingsResponse
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.d.Settings.Load(r.Context())
	if err != nil {
		slog.Error("load settings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SetMode handles PUT /api/settings/mode.
//
//	@Summary		Change the random mode, optionally opening a note right away
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetModeRequest	true	"New mode"
//	@Success		200		{object}	SetModeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/mode [put]
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if !decodeJSON(w, r, &req, 1<<16) {
		return
	}
	if req.Mode == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("mode is required"))
		return
	}

	cfg, res, err := h.d.Service.SetMode(r.Context(), req.Mode, req.Go)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidMode):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		case errors.Is(err, apperr.ErrEmptyResult) && res != nil:
			// The mode is stored; the run just found nothing.
		default:
			writeRunError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, SetModeResponse{Settings: cfg, Result: res})
}

// writeRunError maps pipeline errors to statuses.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrEmptyResult):
		writeJSON(w, http.StatusNotFound, errorBody("no candidates"))
	case errors.Is(err, apperr.ErrExecution):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error("random note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
