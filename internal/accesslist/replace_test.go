package accesslist

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

func nonDeviceRules(rules []domain.AccessRule) []domain.AccessRule {
	var out []domain.AccessRule
	for _, r := range rules {
		if !KindOf(r).IsDevice() {
			out = append(out, r)
		}
	}
	return out
}

func TestReplaceDevices_PreservesNonDeviceRules(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask,
		domain.AccessDevice{Name: "laptop", IP: mustAddr("192.168.30.50")},
		domain.AccessDevice{Name: "printer", IP: mustAddr("192.168.30.60")})
	require.NoError(t, err)
	snapshot := append([]domain.AccessRule(nil), original...)

	newDevices := []domain.AccessDevice{
		{Name: "phone", IP: mustAddr("192.168.30.70")},
		{Name: "tablet", IP: mustAddr("192.168.30.71")},
		{Name: "tv", IP: mustAddr("192.168.30.72")},
	}
	replaced, err := ReplaceDevices(original, newDevices...)
	require.NoError(t, err)

	assert.Equal(t, snapshot, original, "input must not be modified")
	assert.Equal(t, nonDeviceRules(original), replaced[:4])
	assert.Len(t, replaced, 4+2*len(newDevices))

	assert.ElementsMatch(t,
		[]netip.Addr{mustAddr("192.168.30.70"), mustAddr("192.168.30.71"), mustAddr("192.168.30.72")},
		GetDevicesOnlyIPs(replaced))

	expected, err := AllowDevicesOnly(testGateway, testMask, newDevices...)
	require.NoError(t, err)
	assert.Equal(t, FilterDevicesOnly(expected), FilterDevicesOnly(replaced))
	assert.NoError(t, Validate(replaced))
}

func TestReplaceDevices_FromHubReadBack(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask,
		domain.AccessDevice{Name: "laptop", IP: mustAddr("192.168.30.50")})
	require.NoError(t, err)
	live := stripCategories(original)

	replaced, err := ReplaceDevices(live, domain.AccessDevice{Name: "phone", IP: mustAddr("192.168.30.70")})
	require.NoError(t, err)

	require.Len(t, replaced, 6)
	assert.Equal(t, live[:4], replaced[:4])
	assert.Equal(t, []netip.Addr{mustAddr("192.168.30.70")}, GetDevicesOnlyIPs(replaced))
	assert.Equal(t, mustAddr("192.168.30.0"), replaced[4].DestAddress)
	assert.Equal(t, testMask, replaced[4].DestMask)
}

func TestReplaceDevices_Empty(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask,
		domain.AccessDevice{Name: "laptop", IP: mustAddr("192.168.30.50")})
	require.NoError(t, err)

	replaced, err := ReplaceDevices(original)
	require.NoError(t, err)
	assert.Equal(t, original[:4], replaced)
}

func TestReplaceDevices_RemovesDenyBand(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask)
	require.NoError(t, err)
	denied, err := AccessToDevice(DenyDevicesPriority, "tv", mustAddr("192.168.30.99"), testGateway, testMask, WithDeny())
	require.NoError(t, err)

	replaced, err := ReplaceDevices(append(original, denied...),
		domain.AccessDevice{Name: "phone", IP: mustAddr("192.168.30.70")})
	require.NoError(t, err)

	for _, r := range FilterDevicesOnly(replaced) {
		assert.Equal(t, AllowDevicesPriority, r.Priority)
		assert.False(t, strings.HasSuffix(r.Note, "-tv"))
	}
}

func TestReplaceDevices_NetworkOnlySet(t *testing.T) {
	original, err := AllowNetworkOnly(mustAddr("10.8.0.0"), mustAddr("255.255.255.0"), testGateway, testMask)
	require.NoError(t, err)

	replaced, err := ReplaceDevices(original, domain.AccessDevice{Name: "phone", IP: mustAddr("192.168.30.70")})
	require.NoError(t, err)
	assert.Equal(t, original, replaced[:6])
	assert.Len(t, replaced, 8)
}

func TestReplaceDevices_GatewayErrors(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask,
		domain.AccessDevice{Name: "laptop", IP: mustAddr("192.168.30.50")})
	require.NoError(t, err)

	var withoutGateway []domain.AccessRule
	for _, r := range original {
		if r.Category != domain.CategoryGatewayFromDevice {
			withoutGateway = append(withoutGateway, r)
		}
	}
	duplicated := append(append([]domain.AccessRule(nil), original...), original[2])

	tests := []struct {
		name    string
		rules   []domain.AccessRule
		wantErr error
	}{
		{"empty rule set", nil, domain.ErrGatewayRuleNotFound},
		{"no gateway rule", withoutGateway, domain.ErrGatewayRuleNotFound},
		{"two gateway rules", duplicated, domain.ErrGatewayRuleAmbiguous},
		{"two gateway rules read back", stripCategories(duplicated), domain.ErrGatewayRuleAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replaced, err := ReplaceDevices(tt.rules, domain.AccessDevice{Name: "phone", IP: mustAddr("192.168.30.70")})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, replaced)
		})
	}
}

func TestReplaceDevices_MalformedDeviceBand(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask)
	require.NoError(t, err)
	original = append(original, domain.AccessRule{Active: true, Priority: AllowDevicesPriority, Note: "hand written"})

	replaced, err := ReplaceDevices(original, domain.AccessDevice{Name: "phone", IP: mustAddr("192.168.30.70")})
	assert.ErrorIs(t, err, domain.ErrMalformedRuleSet)
	assert.Nil(t, replaced)
}

func TestReplaceDevices_InvalidDevice(t *testing.T) {
	original, err := AllowDevicesOnly(testGateway, testMask)
	require.NoError(t, err)

	_, err = ReplaceDevices(original, domain.AccessDevice{Name: "phone"})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestValidate(t *testing.T) {
	rules, err := AllowDevicesOnly(testGateway, testMask,
		domain.AccessDevice{Name: "laptop", IP: mustAddr("192.168.30.50")})
	require.NoError(t, err)
	assert.NoError(t, Validate(stripCategories(rules)))

	// drop the AccessToDevice half of the laptop pair
	broken := append([]domain.AccessRule(nil), rules[:5]...)
	err = Validate(broken)
	assert.ErrorIs(t, err, domain.ErrMalformedRuleSet)

	err = Validate(rules[:2])
	assert.ErrorIs(t, err, domain.ErrGatewayRuleNotFound)

	mismatched := append([]domain.AccessRule(nil), rules...)
	mismatched[5].Discard = true
	assert.ErrorIs(t, Validate(mismatched), domain.ErrMalformedRuleSet)
}

func TestRender(t *testing.T) {
	rules, err := AllowDevicesOnly(testGateway, testMask,
		domain.AccessDevice{Name: "laptop", IP: mustAddr("192.168.30.50")})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(Render(rules), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, `1000 allow src=any dst=255.255.255.255/32 proto=17 ports=67-68 "DHCP"`, lines[0])
	assert.Equal(t, `2000 allow src=192.168.30.1/32 dst=192.168.30.0/24 proto=any "AccessFromDevice-NatGateway"`, lines[1])
	assert.Equal(t, `5000 allow src=192.168.30.50/32 dst=192.168.30.0/24 proto=any "AccessFromDevice-laptop"`, lines[3])
	assert.Equal(t, `10000 deny src=any dst=any proto=any "Catch ALL"`, lines[5])
}
