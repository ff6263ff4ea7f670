package accesslist

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"
	"strings"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// broadcast is 255.255.255.255, used both as the limited broadcast address
// and as the host mask of a single device.
var broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// ParseIPv4 parses a dotted-quad IPv4 address. IPv4-mapped IPv6 addresses are unmapped.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, s)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not IPv4", domain.ErrInvalidAddress, s)
	}
	return addr, nil
}

// MaskBits returns the prefix length of a contiguous IPv4 subnet mask.
func MaskBits(mask netip.Addr) (int, error) {
	mask = mask.Unmap()
	if !mask.Is4() {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidMask, mask)
	}
	b := mask.As4()
	v := binary.BigEndian.Uint32(b[:])
	ones := bits.LeadingZeros32(^v)
	if v<<ones != 0 {
		return 0, fmt.Errorf("%w: %v is not contiguous", domain.ErrInvalidMask, mask)
	}
	return ones, nil
}

// NetworkAddress returns the base address of the network containing addr.
// For 10.0.0.5 and 255.255.255.0 it returns 10.0.0.0.
func NetworkAddress(addr, mask netip.Addr) (netip.Addr, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %v", domain.ErrInvalidAddress, addr)
	}
	n, err := MaskBits(mask)
	if err != nil {
		return netip.Addr{}, err
	}
	return netip.PrefixFrom(addr, n).Masked().Addr(), nil
}

func requireIPv4(field string, addr netip.Addr) (netip.Addr, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s %v", domain.ErrInvalidAddress, field, addr)
	}
	return addr, nil
}
