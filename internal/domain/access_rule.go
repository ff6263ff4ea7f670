package domain

import (
	"fmt"
	"net/netip"
)

// RuleCategory identifies what an access rule is for. Lookups match on the
// category instead of parsing the note.
type RuleCategory int

const (
	CategoryUnknown RuleCategory = iota
	CategoryDHCP
	CategoryCatchAll
	CategoryGatewayFromDevice
	CategoryGatewayToDevice
	CategoryNetworkFromNetwork
	CategoryNetworkToNetwork
	CategoryDeviceFrom
	CategoryDeviceTo
)

var categoryNames = map[RuleCategory]string{
	CategoryUnknown:            "unknown",
	CategoryDHCP:               "dhcp",
	CategoryCatchAll:           "catch-all",
	CategoryGatewayFromDevice:  "gateway-from-device",
	CategoryGatewayToDevice:    "gateway-to-device",
	CategoryNetworkFromNetwork: "network-from-network",
	CategoryNetworkToNetwork:   "network-to-network",
	CategoryDeviceFrom:         "device-from",
	CategoryDeviceTo:           "device-to",
}

// String returns the category name used in JSON and logs.
func (c RuleCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c RuleCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *RuleCategory) UnmarshalText(text []byte) error {
	for cat, name := range categoryNames {
		if name == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown rule category %q", text)
}

// IsDevice reports whether the category marks a per-device rule.
func (c RuleCategory) IsDevice() bool {
	return c == CategoryDeviceFrom || c == CategoryDeviceTo
}

// Mirror returns the category of the opposite half of a symmetric pair.
// Categories that are not part of a pair return CategoryUnknown.
func (c RuleCategory) Mirror() RuleCategory {
	switch c {
	case CategoryGatewayFromDevice:
		return CategoryGatewayToDevice
	case CategoryGatewayToDevice:
		return CategoryGatewayFromDevice
	case CategoryNetworkFromNetwork:
		return CategoryNetworkToNetwork
	case CategoryNetworkToNetwork:
		return CategoryNetworkFromNetwork
	case CategoryDeviceFrom:
		return CategoryDeviceTo
	case CategoryDeviceTo:
		return CategoryDeviceFrom
	}
	return CategoryUnknown
}

// AccessRule is one entry of a hub access list.
// Zero addresses and masks mean "any". Protocol 0 means any protocol and
// port 0 means the port range is unset.
type AccessRule struct {
	Active        bool         `json:"active"`
	Priority      uint32       `json:"priority"`
	SrcAddress    netip.Addr   `json:"srcAddress,omitzero"`
	SrcMask       netip.Addr   `json:"srcMask,omitzero"`
	DestAddress   netip.Addr   `json:"destAddress,omitzero"`
	DestMask      netip.Addr   `json:"destMask,omitzero"`
	Protocol      uint8        `json:"protocol,omitempty"`
	DestPortStart uint16       `json:"destPortStart,omitempty"`
	DestPortEnd   uint16       `json:"destPortEnd,omitempty"`
	Discard       bool         `json:"discard"`
	Note          string       `json:"note"`
	Category      RuleCategory `json:"category"`
}

// Action returns "deny" for discarding rules and "allow" otherwise.
func (r AccessRule) Action() string {
	if r.Discard {
		return "deny"
	}
	return "allow"
}

// AccessDevice is a single device to be allow-listed on a hub.
type AccessDevice struct {
	Name string     `json:"name"`
	IP   netip.Addr `json:"ip"`
}
