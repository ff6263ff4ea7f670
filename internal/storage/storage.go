package storage

import (
	"context"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Hubs
	CreateHub(ctx context.Context, hub *domain.Hub) error
	GetHub(ctx context.Context, id string) (*domain.Hub, error)
	GetHubByName(ctx context.Context, name string) (*domain.Hub, error)
	ListHubs(ctx context.Context) ([]*domain.Hub, error)
	UpdateHub(ctx context.Context, hub *domain.Hub) error
	DeleteHub(ctx context.Context, id string) error

	// Devices
	CreateDevice(ctx context.Context, device *domain.HubDevice) error
	GetDevice(ctx context.Context, hubID, name string) (*domain.HubDevice, error)
	ListDevices(ctx context.Context, hubID string) ([]*domain.HubDevice, error)
	DeleteDevice(ctx context.Context, hubID, name string) error
	DeleteAllDevicesForHub(ctx context.Context, hubID string) error

	// Access list versions
	CreateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error
	GetAccessListVersion(ctx context.Context, id string) (*domain.AccessListVersion, error)
	GetLatestAccessListVersion(ctx context.Context, hubName string) (*domain.AccessListVersion, error)
	ListAccessListVersions(ctx context.Context, hubName string, limit, offset int) ([]*domain.AccessListVersion, error)
	UpdateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
