package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/hub-acl-manager/internal/accesslist"
	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/service"
	"github.com/bcnelson/hub-acl-manager/internal/storage"
	"github.com/bcnelson/hub-acl-manager/internal/validation"
)

// DeviceHandler handles the device list of a hub.
type DeviceHandler struct {
	store   storage.Storage
	service *service.AccessListService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(store storage.Storage, svc *service.AccessListService) *DeviceHandler {
	return &DeviceHandler{store: store, service: svc}
}

// List lists the devices of a hub.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	devices, err := h.store.ListDevices(r.Context(), hub.ID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, devices)
}

// Create registers a device on a hub.
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if errs := validation.ValidateDevice(req.Name, req.Address); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	existing, err := h.store.ListDevices(r.Context(), hub.ID)
	if err != nil {
		handleError(w, err)
		return
	}
	ip, _ := accesslist.ParseIPv4(req.Address)
	for _, d := range existing {
		if other, err := accesslist.ParseIPv4(d.Address); err == nil && other == ip {
			respondValidationError(w, "address", req.Address, "address already used by device "+d.Name)
			return
		}
	}

	now := time.Now()
	device := &domain.HubDevice{
		ID:        generateID(),
		HubID:     hub.ID,
		Name:      req.Name,
		Address:   ip.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateDevice(r.Context(), device); err != nil {
		handleError(w, err)
		return
	}

	respondMutation(w, http.StatusCreated, device, hub.Name, h.service)
}

// Replace replaces the whole device list of a hub in one transaction.
func (h *DeviceHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req domain.ReplaceDevicesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body")
		return
	}

	if errs := validation.ValidateDeviceList(req.Devices); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	devices, err := h.replaceDevices(r, hub, req.Devices)
	if err != nil {
		handleError(w, err)
		return
	}

	respondMutation(w, http.StatusOK, devices, hub.Name, h.service)
}

func (h *DeviceHandler) replaceDevices(r *http.Request, hub *domain.Hub, reqs []domain.CreateDeviceRequest) (devices []*domain.HubDevice, err error) {
	ctx := r.Context()
	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err := tx.DeleteAllDevicesForHub(ctx, hub.ID); err != nil {
		return nil, err
	}

	now := time.Now()
	devices = make([]*domain.HubDevice, 0, len(reqs))
	for _, d := range reqs {
		ip, err := accesslist.ParseIPv4(d.Address)
		if err != nil {
			return nil, err
		}
		device := &domain.HubDevice{
			ID:        generateID(),
			HubID:     hub.ID,
			Name:      d.Name,
			Address:   ip.String(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateDevice(ctx, device); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return devices, nil
}

// Delete removes a device from a hub.
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hub, err := h.store.GetHubByName(r.Context(), chi.URLParam(r, "hub"))
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.store.DeleteDevice(r.Context(), hub.ID, chi.URLParam(r, "name")); err != nil {
		handleError(w, err)
		return
	}

	h.service.TriggerSync(hub.Name)
	w.WriteHeader(http.StatusNoContent)
}
