package accesslist

import (
	"cmp"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

// Validate checks a rule set that did not necessarily come from this package:
// it must hold exactly one gateway rule, no unrecognized rule in the device
// bands, and every paired rule must have its mirror. All problems are joined.
func Validate(rules []domain.AccessRule) error {
	var errs []error

	if err := FindGatewayRule(rules).Err(); err != nil {
		errs = append(errs, err)
	}
	if err := checkDeviceBands(rules); err != nil {
		errs = append(errs, err)
	}

	for i, r := range rules {
		mirror := KindOf(r).Mirror()
		if mirror == domain.CategoryUnknown {
			continue
		}
		if !slices.ContainsFunc(rules, func(o domain.AccessRule) bool {
			return KindOf(o) == mirror && isMirror(r, o)
		}) {
			errs = append(errs, fmt.Errorf("%w: rule %d (%s) has no mirror rule",
				domain.ErrMalformedRuleSet, i, r.Note))
		}
	}

	return errors.Join(errs...)
}

func isMirror(a, b domain.AccessRule) bool {
	return a.Priority == b.Priority &&
		a.Discard == b.Discard &&
		a.SrcAddress == b.DestAddress && a.SrcMask == b.DestMask &&
		a.DestAddress == b.SrcAddress && a.DestMask == b.SrcMask
}

// Sort returns a copy of rules ordered by priority. Rules sharing a priority
// keep their relative order.
func Sort(rules []domain.AccessRule) []domain.AccessRule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b domain.AccessRule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return sorted
}

// Render formats a rule set one rule per line in priority order.
func Render(rules []domain.AccessRule) string {
	var b strings.Builder
	for _, r := range Sort(rules) {
		b.WriteString(FormatRule(r))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatRule formats a single rule, e.g.
//
//	5000 allow src=192.168.30.50/32 dst=192.168.30.0/24 proto=any "AccessFromDevice-laptop"
func FormatRule(r domain.AccessRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s src=%s dst=%s proto=", r.Priority, r.Action(),
		formatEndpoint(r.SrcAddress, r.SrcMask), formatEndpoint(r.DestAddress, r.DestMask))
	if r.Protocol == 0 {
		b.WriteString("any")
	} else {
		fmt.Fprintf(&b, "%d", r.Protocol)
	}
	if r.DestPortStart != 0 || r.DestPortEnd != 0 {
		fmt.Fprintf(&b, " ports=%d-%d", r.DestPortStart, r.DestPortEnd)
	}
	if !r.Active {
		b.WriteString(" inactive")
	}
	fmt.Fprintf(&b, " %q", r.Note)
	return b.String()
}

func formatEndpoint(addr, mask netip.Addr) string {
	if !addr.IsValid() {
		return "any"
	}
	if n, err := MaskBits(mask); err == nil {
		return fmt.Sprintf("%s/%d", addr, n)
	}
	return addr.String()
}
