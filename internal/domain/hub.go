package domain

import "time"

// Access policy modes for a hub.
const (
	// ModeNetworkOnly lets one declared network reach the outside through the NAT gateway.
	ModeNetworkOnly = "network-only"
	// ModeDevicesOnly lets only the hub's registered devices reach the NAT gateway.
	ModeDevicesOnly = "devices-only"
)

// Hub is the access policy profile of one virtual hub.
// Addresses are kept as dotted-quad strings, the builder parses them on use.
type Hub struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Mode        string    `json:"mode" db:"mode"`
	Gateway     string    `json:"gateway" db:"gateway"`
	GatewayMask string    `json:"gatewayMask" db:"gateway_mask"`
	Network     string    `json:"network,omitempty" db:"network"` // network-only mode
	NetworkMask string    `json:"networkMask,omitempty" db:"network_mask"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// CreateHubRequest is the request body for creating a hub profile.
type CreateHubRequest struct {
	Name        string `json:"name"`
	Mode        string `json:"mode"`
	Gateway     string `json:"gateway"`
	GatewayMask string `json:"gatewayMask"`
	Network     string `json:"network,omitempty"`
	NetworkMask string `json:"networkMask,omitempty"`
}

// UpdateHubRequest is the request body for updating a hub profile.
type UpdateHubRequest struct {
	Mode        *string `json:"mode,omitempty"`
	Gateway     *string `json:"gateway,omitempty"`
	GatewayMask *string `json:"gatewayMask,omitempty"`
	Network     *string `json:"network,omitempty"`
	NetworkMask *string `json:"networkMask,omitempty"`
}

// HubDevice is a device registered on a hub. Device names are unique per hub.
type HubDevice struct {
	ID        string    `json:"id" db:"id"`
	HubID     string    `json:"hubId" db:"hub_id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CreateDeviceRequest is the request body for registering a device.
type CreateDeviceRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ReplaceDevicesRequest replaces the whole device list of a hub.
type ReplaceDevicesRequest struct {
	Devices []CreateDeviceRequest `json:"devices"`
}
