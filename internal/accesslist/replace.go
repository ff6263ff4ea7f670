package accesslist

import (
	"fmt"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// ReplaceDevices returns a copy of rules in which the device rules are
// replaced by allow rules for the given devices. Every other rule is kept in
// its original order; the new device pairs are appended.
//
// The device network is taken from the gateway rule: its source address is the
// gateway and its destination mask the gateway's subnet mask. The call fails
// when the gateway rule is missing or ambiguous, and when a rule in the device
// priority bands cannot be classified.
func ReplaceDevices(rules []domain.AccessRule, devices ...domain.AccessDevice) ([]domain.AccessRule, error) {
	lookup := FindGatewayRule(rules)
	if err := lookup.Err(); err != nil {
		return nil, fmt.Errorf("replacing devices: %w (%d matches)", err, lookup.Matches)
	}
	if err := checkDeviceBands(rules); err != nil {
		return nil, err
	}
	if err := ValidateDevices(devices); err != nil {
		return nil, err
	}

	gateway := lookup.Rule
	deviceRules, err := allowDevices(gateway.SrcAddress, gateway.DestMask, devices)
	if err != nil {
		return nil, err
	}

	result := make([]domain.AccessRule, 0, len(rules)+len(deviceRules))
	for _, r := range rules {
		if !KindOf(r).IsDevice() {
			result = append(result, r)
		}
	}
	return append(result, deviceRules...), nil
}

// checkDeviceBands rejects rule sets holding anything but device rules at the
// device priorities. Such a rule would survive a replacement and shadow the
// new device rules.
func checkDeviceBands(rules []domain.AccessRule) error {
	for i, r := range rules {
		if r.Priority != AllowDevicesPriority && r.Priority != DenyDevicesPriority {
			continue
		}
		if !KindOf(r).IsDevice() {
			return fmt.Errorf("%w: rule %d at priority %d is not a device rule (note %q)",
				domain.ErrMalformedRuleSet, i, r.Priority, r.Note)
		}
	}
	return nil
}
