package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/validation"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondStandardError writes a StandardErrorResponse.
func respondStandardError(w http.ResponseWriter, status int, code, message, field string, details map[string]any) {
	respondJSON(w, status, &domain.StandardErrorResponse{
		Error: domain.StandardError{
			Code:    code,
			Message: message,
			Field:   field,
			Details: details,
		},
	})
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondStandardError(w, status, code, message, "", nil)
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.ErrCodeResourceNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, domain.ErrCodeResourceAlreadyExists, "already exists")
	case errors.Is(err, domain.ErrGatewayRuleNotFound):
		respondError(w, http.StatusConflict, domain.ErrCodeGatewayRuleNotFound, err.Error())
	case errors.Is(err, domain.ErrGatewayRuleAmbiguous):
		respondError(w, http.StatusConflict, domain.ErrCodeGatewayRuleAmbiguous, err.Error())
	case errors.Is(err, domain.ErrMalformedRuleSet):
		respondError(w, http.StatusUnprocessableEntity, domain.ErrCodeMalformedRuleSet, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidMask):
		respondError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error())
	default:
		log.Error("request failed", "err", err)
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "internal server error")
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

// generateID generates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// respondValidationError writes a JSON validation error response.
func respondValidationError(w http.ResponseWriter, field, value, message string) {
	respondStandardError(w, http.StatusBadRequest, domain.ErrCodeValidationError, message, field,
		map[string]any{"value": value})
}

// respondValidationErrors writes a JSON response for multiple validation errors.
func respondValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	if len(errs) == 1 {
		respondValidationError(w, errs[0].Field, errs[0].Value, errs[0].Message)
		return
	}
	respondStandardError(w, http.StatusBadRequest, domain.ErrCodeValidationError, errs.Error(), "",
		map[string]any{"errors": errs})
}

// pagination reads limit and offset query parameters.
func pagination(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// syncTrigger schedules an access list sync after a change.
type syncTrigger interface {
	TriggerSync(hubName string)
}

// respondMutation schedules a sync of the changed hub and writes the response.
func respondMutation(w http.ResponseWriter, status int, data any, hubName string, syncer syncTrigger) {
	syncer.TriggerSync(hubName)
	respondJSON(w, status, data)
}
