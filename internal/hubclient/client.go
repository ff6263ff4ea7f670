package hubclient

import (
	"context"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// AccessListClient defines the interface for reading and writing the access
// list a hub is currently enforcing. Implementations only store what the hub
// stores: rule categories are not persisted, the note is.
type AccessListClient interface {
	FetchAccessList(ctx context.Context, hubName string) ([]domain.AccessRule, error)
	SetAccessList(ctx context.Context, hubName string, rules []domain.AccessRule) error
}
