package accesslist

import (
	"net/netip"
	"strings"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// KindOf returns the category of a rule. Rules read back from a hub carry no
// category, for those it is inferred from the note with Classify.
func KindOf(rule domain.AccessRule) domain.RuleCategory {
	if rule.Category != domain.CategoryUnknown {
		return rule.Category
	}
	return Classify(rule)
}

// Classify infers the category of a rule from its note and shape.
// Rules that do not look like anything this package generates are CategoryUnknown.
func Classify(rule domain.AccessRule) domain.RuleCategory {
	note := rule.Note
	switch {
	case strings.HasPrefix(note, noteFromDevice):
		name := strings.TrimPrefix(note, noteFromDevice)
		if name == GatewayName {
			return domain.CategoryGatewayFromDevice
		}
		if name != "" && isHost(rule.SrcAddress, rule.SrcMask) {
			return domain.CategoryDeviceFrom
		}
	case strings.HasPrefix(note, noteToDevice):
		name := strings.TrimPrefix(note, noteToDevice)
		if name == GatewayName {
			return domain.CategoryGatewayToDevice
		}
		if name != "" && isHost(rule.DestAddress, rule.DestMask) {
			return domain.CategoryDeviceTo
		}
	case strings.HasPrefix(note, noteFromNetwork) && len(note) > len(noteFromNetwork):
		return domain.CategoryNetworkFromNetwork
	case strings.HasPrefix(note, noteToNetwork) && len(note) > len(noteToNetwork):
		return domain.CategoryNetworkToNetwork
	case isDhcp(rule):
		return domain.CategoryDHCP
	case isCatchAll(rule):
		return domain.CategoryCatchAll
	}
	return domain.CategoryUnknown
}

func isHost(addr, mask netip.Addr) bool {
	return addr.Is4() && mask == broadcast
}

func isDhcp(rule domain.AccessRule) bool {
	return rule.Protocol == protocolUDP &&
		rule.DestPortStart == dhcpPortStart &&
		rule.DestPortEnd == dhcpPortEnd &&
		rule.DestAddress == broadcast
}

func isCatchAll(rule domain.AccessRule) bool {
	return !rule.SrcAddress.IsValid() && !rule.DestAddress.IsValid() &&
		rule.Protocol == 0 && rule.DestPortStart == 0 && rule.DestPortEnd == 0
}

// FilterDevicesOnly returns the per-device rules of a rule set, excluding
// DHCP, gateway, network and catch-all rules.
func FilterDevicesOnly(rules []domain.AccessRule) []domain.AccessRule {
	var result []domain.AccessRule
	for _, r := range rules {
		if KindOf(r).IsDevice() {
			result = append(result, r)
		}
	}
	return result
}

// GetDevicesOnlyIPs recovers the addresses of the devices listed in a rule set.
// Only the device-as-source half of each pair is read so every device is
// reported once. Rules whose note cannot be classified are skipped.
func GetDevicesOnlyIPs(rules []domain.AccessRule) []netip.Addr {
	var ips []netip.Addr
	for _, r := range FilterDevicesOnly(rules) {
		if KindOf(r) == domain.CategoryDeviceFrom {
			ips = append(ips, r.SrcAddress)
		}
	}
	return ips
}

// LookupStatus is the outcome of FindGatewayRule.
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupAmbiguous
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not found"
	case LookupAmbiguous:
		return "ambiguous"
	}
	return "unknown"
}

// GatewayLookup is the result of locating the NAT gateway rule.
// Rule is only meaningful when Status is LookupFound.
type GatewayLookup struct {
	Status  LookupStatus
	Rule    domain.AccessRule
	Matches int
}

// Err returns nil when exactly one gateway rule was found and
// domain.ErrGatewayRuleNotFound or domain.ErrGatewayRuleAmbiguous otherwise.
func (l GatewayLookup) Err() error {
	switch l.Status {
	case LookupFound:
		return nil
	case LookupNotFound:
		return domain.ErrGatewayRuleNotFound
	default:
		return domain.ErrGatewayRuleAmbiguous
	}
}

// FindGatewayRule locates the single gateway rule whose source is the NAT
// gateway. Zero or several matches are reported through the status, never
// resolved by picking one.
func FindGatewayRule(rules []domain.AccessRule) GatewayLookup {
	var lookup GatewayLookup
	for _, r := range rules {
		if KindOf(r) != domain.CategoryGatewayFromDevice {
			continue
		}
		lookup.Matches++
		if lookup.Matches == 1 {
			lookup.Rule = r
		}
	}

	switch lookup.Matches {
	case 0:
		lookup.Status = LookupNotFound
	case 1:
		lookup.Status = LookupFound
	default:
		lookup.Status = LookupAmbiguous
		lookup.Rule = domain.AccessRule{}
	}
	return lookup
}
