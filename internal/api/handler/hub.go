package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/service"
	"github.com/bcnelson/hub-acl-manager/internal/storage"
	"github.com/bcnelson/hub-acl-manager/internal/validation"
)

// HubHandler handles hub profile endpoints.
type HubHandler struct {
	store   storage.Storage
	service *service.AccessListService
}

// NewHubHandler creates a new HubHandler.
func NewHubHandler(store storage.Storage, svc *service.AccessListService) *HubHandler {
	return &HubHandler{store: store, service: svc}
}

// Create creates a new hub profile.
func (h *HubHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateHubRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	now := time.Now()
	hub := &domain.Hub{
		ID:          generateID(),
		Name:        req.Name,
		Mode:        req.Mode,
		Gateway:     req.Gateway,
		GatewayMask: req.GatewayMask,
		Network:     req.Network,
		NetworkMask: req.NetworkMask,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if hub.Mode == "" {
		hub.Mode = domain.ModeDevicesOnly
	}

	if errs := validation.ValidateHub(hub); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	if err := h.store.CreateHub(r.Context(), hub); err != nil {
		handleError(w, err)
		return
	}

	SetHubETag(w, hub)
	respondMutation(w, http.StatusCreated, hub, hub.Name, h.service)
}

// List lists all hub profiles.
func (h *HubHandler) List(w http.ResponseWriter, r *http.Request) {
	hubs, err := h.store.ListHubs(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, hubs)
}

// Get gets a hub profile by name.
func (h *HubHandler) Get(w http.ResponseWriter, r *http.Request) {
	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	SetHubETag(w, hub)
	respondJSON(w, http.StatusOK, hub)
}

// Update updates a hub profile. The name cannot change.
func (h *HubHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateHubRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	if !CheckHubIfMatch(r, hub) {
		RespondHubPreconditionFailed(w, hub)
		return
	}

	if req.Mode != nil {
		hub.Mode = *req.Mode
	}
	if req.Gateway != nil {
		hub.Gateway = *req.Gateway
	}
	if req.GatewayMask != nil {
		hub.GatewayMask = *req.GatewayMask
	}
	if req.Network != nil {
		hub.Network = *req.Network
	}
	if req.NetworkMask != nil {
		hub.NetworkMask = *req.NetworkMask
	}

	if errs := validation.ValidateHub(hub); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	hub.UpdatedAt = time.Now()
	if err := h.store.UpdateHub(r.Context(), hub); err != nil {
		handleError(w, err)
		return
	}

	SetHubETag(w, hub)
	respondMutation(w, http.StatusOK, hub, hub.Name, h.service)
}

// Delete deletes a hub profile and its devices. The hub's live access list
// is left as it is.
func (h *HubHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.store.DeleteHub(r.Context(), hub.ID); err != nil {
		handleError(w, err)
		return
	}
	h.service.CancelSync(hub.Name)

	w.WriteHeader(http.StatusNoContent)
}
