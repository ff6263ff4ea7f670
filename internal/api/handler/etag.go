package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// GenerateETag generates an ETag for a resource based on its ID and updated_at timestamp.
// Format: "<resource_type>-<id>-<updated_at_unix_nano>"
func GenerateETag(resourceType, id string, updatedAt time.Time) string {
	return fmt.Sprintf(`"%s-%s-%d"`, resourceType, id, updatedAt.UnixNano())
}

// SetETagHeader sets the ETag header on the response.
func SetETagHeader(w http.ResponseWriter, resourceType, id string, updatedAt time.Time) {
	w.Header().Set("ETag", GenerateETag(resourceType, id, updatedAt))
}

// CheckIfMatch reports whether the If-Match header, when present, matches
// the current ETag of the resource.
func CheckIfMatch(r *http.Request, resourceType, id string, updatedAt time.Time) bool {
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		return true
	}
	return ifMatch == GenerateETag(resourceType, id, updatedAt)
}

// RespondPreconditionFailed writes a 412 Precondition Failed response.
func RespondPreconditionFailed(w http.ResponseWriter, resourceType, id string, updatedAt time.Time) {
	respondStandardError(w, http.StatusPreconditionFailed, domain.ErrCodePreconditionFailed,
		"resource has been modified", "", map[string]any{
			"currentETag": GenerateETag(resourceType, id, updatedAt),
		})
}

// Hub ETag helpers
func SetHubETag(w http.ResponseWriter, hub *domain.Hub) {
	SetETagHeader(w, "hub", hub.ID, hub.UpdatedAt)
}

func CheckHubIfMatch(r *http.Request, hub *domain.Hub) bool {
	return CheckIfMatch(r, "hub", hub.ID, hub.UpdatedAt)
}

func RespondHubPreconditionFailed(w http.ResponseWriter, hub *domain.Hub) {
	RespondPreconditionFailed(w, "hub", hub.ID, hub.UpdatedAt)
}
