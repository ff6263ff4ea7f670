package accesslist

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// AllowNetworkOnly builds the rule set that lets a single network reach the
// outside through the NAT gateway and denies everything else.
func AllowNetworkOnly(network, networkMask, natGateway, natGatewayMask netip.Addr) ([]domain.AccessRule, error) {
	rules := baseRules()

	gateway, err := gatewayRules(natGateway, natGatewayMask)
	if err != nil {
		return nil, err
	}
	rules = append(rules, gateway...)

	nat, err := AccessToNetwork(NetworkNatPriority, NetworkName, network, networkMask, natGateway, natGatewayMask)
	if err != nil {
		return nil, err
	}
	return append(rules, nat...), nil
}

// AllowNetworkOnlyString is AllowNetworkOnly with a textual network and mask.
func AllowNetworkOnlyString(network, networkMask string, natGateway, natGatewayMask netip.Addr) ([]domain.AccessRule, error) {
	netAddr, err := ParseIPv4(network)
	if err != nil {
		return nil, err
	}
	mask, err := ParseIPv4(networkMask)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMask, networkMask)
	}
	return AllowNetworkOnly(netAddr, mask, natGateway, natGatewayMask)
}

// AllowDevicesOnly builds the rule set that lets only the given devices reach
// the NAT gateway. All device rules share the allow-band priority.
// An empty device list yields the gateway-only rule set.
func AllowDevicesOnly(natGateway, natGatewayMask netip.Addr, devices ...domain.AccessDevice) ([]domain.AccessRule, error) {
	if err := ValidateDevices(devices); err != nil {
		return nil, err
	}

	rules := baseRules()

	gateway, err := gatewayRules(natGateway, natGatewayMask)
	if err != nil {
		return nil, err
	}
	rules = append(rules, gateway...)

	deviceRules, err := allowDevices(natGateway, natGatewayMask, devices)
	if err != nil {
		return nil, err
	}
	return append(rules, deviceRules...), nil
}

// ValidateDevices checks a device list before rules are generated for it.
// Names must be set and must not collide with the gateway rule name, and
// addresses must be unique IPv4 addresses.
func ValidateDevices(devices []domain.AccessDevice) error {
	seen := make(map[netip.Addr]string, len(devices))
	for i, d := range devices {
		if d.Name == "" {
			return fmt.Errorf("%w: device %d has no name", domain.ErrInvalidInput, i)
		}
		if strings.HasSuffix(d.Name, GatewayName) {
			return fmt.Errorf("%w: device name %q is reserved", domain.ErrInvalidInput, d.Name)
		}
		ip, err := requireIPv4("device "+d.Name, d.IP)
		if err != nil {
			return err
		}
		if other, ok := seen[ip]; ok {
			return fmt.Errorf("%w: devices %q and %q share address %s", domain.ErrInvalidInput, other, d.Name, ip)
		}
		seen[ip] = d.Name
	}
	return nil
}

// baseRules returns the DHCP allow rule and the deny catch-all.
func baseRules() []domain.AccessRule {
	return []domain.AccessRule{
		Dhcp(DhcpPriority),
		CatchAll(CatchAllPriority, WithDeny()),
	}
}

// gatewayRules returns the gateway self pair: the gateway is both the device
// and the network endpoint.
func gatewayRules(natGateway, natGatewayMask netip.Addr) ([]domain.AccessRule, error) {
	return accessToDevice(GatewayNatPriority, GatewayName, natGateway, natGateway, natGatewayMask, false,
		domain.CategoryGatewayFromDevice, domain.CategoryGatewayToDevice)
}

func allowDevices(network, networkMask netip.Addr, devices []domain.AccessDevice) ([]domain.AccessRule, error) {
	rules := make([]domain.AccessRule, 0, 2*len(devices))
	for _, d := range devices {
		pair, err := AccessToDevice(AllowDevicesPriority, d.Name, d.IP, network, networkMask)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", d.Name, err)
		}
		rules = append(rules, pair...)
	}
	return rules, nil
}
