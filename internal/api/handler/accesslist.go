package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/hub-acl-manager/internal/service"
)

// AccessListHandler handles the generated and live access lists of a hub.
type AccessListHandler struct {
	service *service.AccessListService
}

// NewAccessListHandler creates a new AccessListHandler.
func NewAccessListHandler(svc *service.AccessListService) *AccessListHandler {
	return &AccessListHandler{service: svc}
}

// GetLive returns the access list the hub currently runs.
func (h *AccessListHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.FetchLive(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

// Preview returns the access list a sync would push and its diff against
// the live one, without pushing.
func (h *AccessListHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.Preview(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, preview)
}

// LiveDevices returns the device addresses found in the live access list.
func (h *AccessListHandler) LiveDevices(w http.ResponseWriter, r *http.Request) {
	ips, err := h.service.LiveDeviceIPs(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"devices": ips})
}

// Sync pushes the generated access list to the hub now.
func (h *AccessListHandler) Sync(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Sync(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ListVersions lists the pushed access list versions of a hub.
func (h *AccessListHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)

	versions, err := h.service.ListVersions(r.Context(), chi.URLParam(r, "hub"), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

// Rollback pushes a previous access list version again.
func (h *AccessListHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondValidationError(w, "id", id, "id is required")
		return
	}

	resp, err := h.service.Rollback(r.Context(), chi.URLParam(r, "hub"), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
