// Package accesslist builds and maintains ordered hub access lists.
//
// Every function is a pure transformation: inputs are never modified and
// a new slice is returned. Generated rule sets use fixed priority bands:
//
//	DHCP 1000 < gateway NAT 2000 < network NAT 3000 < devices 4000/5000 < catch-all 10000
//
// Device, gateway and network rules are always emitted as symmetric pairs.
package accesslist

import (
	"fmt"
	"net/netip"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// Priority bands.
const (
	DhcpPriority         uint32 = 1000
	GatewayNatPriority   uint32 = 2000
	NetworkNatPriority   uint32 = 3000
	DenyDevicesPriority  uint32 = 4000
	AllowDevicesPriority uint32 = 5000
	CatchAllPriority     uint32 = 10000
)

// Names given to the NAT rule pairs. They end up in the rule notes.
const (
	GatewayName = "NatGateway"
	NetworkName = "NAT-Network"
)

const (
	noteFromDevice  = "AccessFromDevice-"
	noteToDevice    = "AccessToDevice-"
	noteFromNetwork = "AccessFromNetwork-"
	noteToNetwork   = "AccessToNetwork-"

	defaultDhcpName     = "DHCP"
	defaultCatchAllName = "Catch ALL"

	protocolUDP   uint8  = 17
	dhcpPortStart uint16 = 67
	dhcpPortEnd   uint16 = 68
)

type ruleOptions struct {
	name string
	deny bool
}

// RuleOption customizes a generated rule.
type RuleOption func(*ruleOptions)

// WithName overrides the note of a single-rule template. Pair templates take
// their name as an argument and ignore it.
func WithName(name string) RuleOption {
	return func(o *ruleOptions) { o.name = name }
}

// WithDeny makes the generated rules discard matching traffic.
func WithDeny() RuleOption {
	return func(o *ruleOptions) { o.deny = true }
}

func applyOptions(defaultName string, opts []RuleOption) ruleOptions {
	o := ruleOptions{name: defaultName}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dhcp returns a rule matching DHCP broadcasts (UDP 67-68 to 255.255.255.255).
func Dhcp(priority uint32, opts ...RuleOption) domain.AccessRule {
	o := applyOptions(defaultDhcpName, opts)
	return domain.AccessRule{
		Active:        true,
		Priority:      priority,
		DestAddress:   broadcast,
		DestMask:      broadcast,
		Protocol:      protocolUDP,
		DestPortStart: dhcpPortStart,
		DestPortEnd:   dhcpPortEnd,
		Discard:       o.deny,
		Note:          o.name,
		Category:      domain.CategoryDHCP,
	}
}

// CatchAll returns a rule without any constraint. It matches everything.
func CatchAll(priority uint32, opts ...RuleOption) domain.AccessRule {
	o := applyOptions(defaultCatchAllName, opts)
	return domain.AccessRule{
		Active:   true,
		Priority: priority,
		Discard:  o.deny,
		Note:     o.name,
		Category: domain.CategoryCatchAll,
	}
}

// AccessToDevice returns the two rules connecting a single device with a network.
// The network side is normalized to its base address using networkMask.
func AccessToDevice(priority uint32, name string, device, network, networkMask netip.Addr, opts ...RuleOption) ([]domain.AccessRule, error) {
	o := applyOptions(name, opts)
	return accessToDevice(priority, name, device, network, networkMask, o.deny,
		domain.CategoryDeviceFrom, domain.CategoryDeviceTo)
}

func accessToDevice(priority uint32, name string, device, network, networkMask netip.Addr, deny bool, fromCat, toCat domain.RuleCategory) ([]domain.AccessRule, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: rule name must not be empty", domain.ErrInvalidInput)
	}
	device, err := requireIPv4("device", device)
	if err != nil {
		return nil, err
	}
	netAddr, err := NetworkAddress(network, networkMask)
	if err != nil {
		return nil, err
	}
	networkMask = networkMask.Unmap()

	return []domain.AccessRule{
		{
			Active:      true,
			Priority:    priority,
			SrcAddress:  device,
			SrcMask:     broadcast,
			DestAddress: netAddr,
			DestMask:    networkMask,
			Discard:     deny,
			Note:        noteFromDevice + name,
			Category:    fromCat,
		},
		{
			Active:      true,
			Priority:    priority,
			SrcAddress:  netAddr,
			SrcMask:     networkMask,
			DestAddress: device,
			DestMask:    broadcast,
			Discard:     deny,
			Note:        noteToDevice + name,
			Category:    toCat,
		},
	}, nil
}

// AccessToNetwork returns the two rules connecting two networks. Both sides
// are normalized to their base address.
func AccessToNetwork(priority uint32, name string, network, networkMask, otherNetwork, otherNetworkMask netip.Addr, opts ...RuleOption) ([]domain.AccessRule, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: rule name must not be empty", domain.ErrInvalidInput)
	}
	o := applyOptions(name, opts)

	netAddr, err := NetworkAddress(network, networkMask)
	if err != nil {
		return nil, err
	}
	otherAddr, err := NetworkAddress(otherNetwork, otherNetworkMask)
	if err != nil {
		return nil, err
	}
	networkMask = networkMask.Unmap()
	otherNetworkMask = otherNetworkMask.Unmap()

	return []domain.AccessRule{
		{
			Active:      true,
			Priority:    priority,
			SrcAddress:  netAddr,
			SrcMask:     networkMask,
			DestAddress: otherAddr,
			DestMask:    otherNetworkMask,
			Discard:     o.deny,
			Note:        noteFromNetwork + name,
			Category:    domain.CategoryNetworkFromNetwork,
		},
		{
			Active:      true,
			Priority:    priority,
			SrcAddress:  otherAddr,
			SrcMask:     otherNetworkMask,
			DestAddress: netAddr,
			DestMask:    networkMask,
			Discard:     o.deny,
			Note:        noteToNetwork + name,
			Category:    domain.CategoryNetworkToNetwork,
		},
	}, nil
}
