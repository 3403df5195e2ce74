// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/giggle-hq/giggle/internal/model"
	"github.com/giggle-hq/giggle/internal/permission"
	"github.com/giggle-hq/giggle/internal/realtime"
	"github.com/giggle-hq/giggle/internal/repository"
	"github.com/giggle-hq/giggle/internal/service"
	"github.com/go-chi/chi/v5"
)

// GigHandler holds all HTTP handlers for the gig booking API.
type GigHandler struct {
	svc *service.BookingService
	reg *realtime.Registry
}

// NewGigHandler constructs a GigHandler.
func NewGigHandler(svc *service.BookingService, reg *realtime.Registry) *GigHandler {
	return &GigHandler{svc: svc, reg: reg}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// serviceError maps domain errors to HTTP statuses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, permission.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrUnknownGent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func actorFromQuery(r *http.Request) (model.ActorRole, string, bool) {
	role := model.ActorRole(r.URL.Query().Get("actor_role"))
	return role, r.URL.Query().Get("actor_gent_id"), role.Valid()
}

// ─── Gents ────────────────────────────────────────────────────────────────────

// ListGents handles GET /gents
// Returns all gents ordered by display name.
func (h *GigHandler) ListGents(w http.ResponseWriter, r *http.Request) {
	gents, err := h.svc.ListGents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list gents")
		return
	}
	if gents == nil {
		gents = []model.Gent{}
	}
	writeJSON(w, http.StatusOK, gents)
}

// ─── Gigs ─────────────────────────────────────────────────────────────────────

// ListGigs handles GET /gigs
// Without a gent_id query parameter this is the manager view (all gigs);
// with one it is that gent's view.
func (h *GigHandler) ListGigs(w http.ResponseWriter, r *http.Request) {
	gigs, err := h.svc.ListGigs(r.Context(), r.URL.Query().Get("gent_id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "gent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list gigs")
		return
	}
	if gigs == nil {
		gigs = []model.Gig{}
	}
	writeJSON(w, http.StatusOK, gigs)
}

// CreateGig handles POST /gigs
func (h *GigHandler) CreateGig(w http.ResponseWriter, r *http.Request) {
	var req model.CreateGigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	gig, err := h.svc.CreateGig(r.Context(), req)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gig)
}

// GetGig handles GET /gigs/{id}
func (h *GigHandler) GetGig(w http.ResponseWriter, r *http.Request) {
	gig, err := h.svc.GetGig(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "gig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get gig")
		return
	}
	writeJSON(w, http.StatusOK, gig)
}

// UpdateGig handles PUT /gigs/{id}
// Partial update; a gent_ids field replaces the whole roster and keeps the
// availability ledger in sync.
func (h *GigHandler) UpdateGig(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateGigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	gig, err := h.svc.UpdateGig(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gig)
}

// DeleteGig handles DELETE /gigs/{id}?actor_role=manager
func (h *GigHandler) DeleteGig(w http.ResponseWriter, r *http.Request) {
	role, _, ok := actorFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "actor_role must be manager or gent")
		return
	}
	if err := h.svc.DeleteGig(r.Context(), chi.URLParam(r, "id"), role); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Availability ─────────────────────────────────────────────────────────────

// GetAvailability handles GET /gigs/{id}/availability
// Returns one entry per known gent, ordered by display name; gents without
// a recorded reply read as no_reply.
func (h *GigHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.GetAvailability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "gig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get availability")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SetAvailability handles PUT /gigs/{id}/availability?actor_role=&actor_gent_id=
// Records a gent's status and reconciles the gig's roster with it.
func (h *GigHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	role, actorGentID, ok := actorFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "actor_role must be manager or gent")
		return
	}
	var req model.SetAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	entry, err := h.svc.SetAvailability(r.Context(), chi.URLParam(r, "id"), req, role, actorGentID)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ─── Realtime ─────────────────────────────────────────────────────────────────

// Connect handles GET /ws?gent_id=
// Upgrades to a websocket registered under the gent's identity; the client
// then receives gigs_changed events until it disconnects.
func (h *GigHandler) Connect(w http.ResponseWriter, r *http.Request) {
	gentID := r.URL.Query().Get("gent_id")
	if gentID == "" {
		writeError(w, http.StatusBadRequest, "gent_id is required")
		return
	}
	if _, err := h.svc.GetGent(r.Context(), gentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "gent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open connection")
		return
	}
	realtime.ServeWS(h.reg, gentID, w, r)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
