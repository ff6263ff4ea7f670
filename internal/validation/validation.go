// Package validation checks hub profiles and device lists before they are
// stored or turned into access rules.
package validation

import (
	"fmt"
	"strings"

	"github.com/bcnelson/hub-acl-manager/internal/accesslist"
	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

const (
	maxHubNameLength    = 64
	maxDeviceNameLength = 64
)

// isAlpha returns true if the byte is an ASCII letter.
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// isAlphaNum returns true if the byte is an ASCII letter or digit.
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isNum(b)
}

// validateIdentifier checks names that end up in URLs and rule notes:
// they start with a letter or digit and contain letters, digits, '-', '_' or '.'.
func validateIdentifier(value, entityType string, maxLen int) error {
	if value == "" {
		return fmt.Errorf("%s name must not be empty", entityType)
	}
	if len(value) > maxLen {
		return fmt.Errorf("%s name must be at most %d characters", entityType, maxLen)
	}
	if !isAlphaNum(value[0]) {
		return fmt.Errorf("%s name must start with a letter or digit", entityType)
	}
	for _, b := range []byte(value) {
		if !isAlphaNum(b) && b != '-' && b != '_' && b != '.' {
			return fmt.Errorf("%s names can only contain letters, numbers, '-', '_' or '.'", entityType)
		}
	}
	return nil
}

// ValidateHubName validates a virtual hub name.
func ValidateHubName(name string) error {
	return validateIdentifier(name, "hub", maxHubNameLength)
}

// ValidateDeviceName validates a device name. The name becomes part of the
// rule notes, so it may not end with the gateway rule name.
func ValidateDeviceName(name string) error {
	if err := validateIdentifier(name, "device", maxDeviceNameLength); err != nil {
		return err
	}
	if strings.HasSuffix(name, accesslist.GatewayName) {
		return fmt.Errorf("device names must not end with %q", accesslist.GatewayName)
	}
	return nil
}

// ValidateIPv4Address validates a dotted-quad IPv4 address.
func ValidateIPv4Address(addr string) error {
	if addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	if _, err := accesslist.ParseIPv4(addr); err != nil {
		return fmt.Errorf("must be a valid IPv4 address")
	}
	return nil
}

// ValidateSubnetMask validates a dotted-quad subnet mask with contiguous ones.
func ValidateSubnetMask(mask string) error {
	if mask == "" {
		return fmt.Errorf("mask must not be empty")
	}
	addr, err := accesslist.ParseIPv4(mask)
	if err != nil {
		return fmt.Errorf("must be a valid IPv4 subnet mask")
	}
	if _, err := accesslist.MaskBits(addr); err != nil {
		return fmt.Errorf("subnet mask bits must be contiguous")
	}
	return nil
}

// ValidateMode validates a hub access policy mode.
func ValidateMode(mode string) error {
	switch mode {
	case domain.ModeNetworkOnly, domain.ModeDevicesOnly:
		return nil
	}
	return fmt.Errorf("mode must be %q or %q", domain.ModeNetworkOnly, domain.ModeDevicesOnly)
}

// ValidateHub validates a complete hub profile. The network fields are only
// required in network-only mode.
func ValidateHub(hub *domain.Hub) ValidationErrors {
	var errs ValidationErrors

	if err := ValidateHubName(hub.Name); err != nil {
		errs.Add("name", hub.Name, err.Error())
	}
	if err := ValidateMode(hub.Mode); err != nil {
		errs.Add("mode", hub.Mode, err.Error())
	}
	if err := ValidateIPv4Address(hub.Gateway); err != nil {
		errs.Add("gateway", hub.Gateway, err.Error())
	}
	if err := ValidateSubnetMask(hub.GatewayMask); err != nil {
		errs.Add("gatewayMask", hub.GatewayMask, err.Error())
	}

	if hub.Mode == domain.ModeNetworkOnly {
		if err := ValidateIPv4Address(hub.Network); err != nil {
			errs.Add("network", hub.Network, err.Error())
		}
		if err := ValidateSubnetMask(hub.NetworkMask); err != nil {
			errs.Add("networkMask", hub.NetworkMask, err.Error())
		}
	}

	return errs
}

// ValidateDevice validates a single device registration.
func ValidateDevice(name, address string) ValidationErrors {
	var errs ValidationErrors
	if err := ValidateDeviceName(name); err != nil {
		errs.Add("name", name, err.Error())
	}
	if err := ValidateIPv4Address(address); err != nil {
		errs.Add("address", address, err.Error())
	}
	return errs
}

// ValidateDeviceList validates a full device list: each device, plus unique
// names and addresses across the list.
func ValidateDeviceList(devices []domain.CreateDeviceRequest) ValidationErrors {
	var errs ValidationErrors
	names := make(map[string]bool, len(devices))
	addresses := make(map[string]bool, len(devices))

	for i, d := range devices {
		for _, e := range ValidateDevice(d.Name, d.Address) {
			errs.Add(fmt.Sprintf("devices[%d].%s", i, e.Field), e.Value, e.Message)
		}
		if names[d.Name] {
			errs.Add(fmt.Sprintf("devices[%d].name", i), d.Name, "duplicate device name")
		}
		names[d.Name] = true

		if ip, err := accesslist.ParseIPv4(d.Address); err == nil {
			key := ip.String()
			if addresses[key] {
				errs.Add(fmt.Sprintf("devices[%d].address", i), d.Address, "duplicate device address")
			}
			addresses[key] = true
		}
	}

	return errs
}
