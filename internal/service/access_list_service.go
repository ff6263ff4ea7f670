package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/singleflight"

	"github.com/bcnelson/hub-acl-manager/internal/accesslist"
	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/hubclient"
	"github.com/bcnelson/hub-acl-manager/internal/metrics"
	"github.com/bcnelson/hub-acl-manager/internal/storage"
)

// AccessListService generates hub access lists from stored profiles and
// pushes them to the hubs.
type AccessListService struct {
	store    storage.Storage
	client   hubclient.AccessListClient
	metrics  *metrics.Registry
	debounce time.Duration
	autoSync bool

	mu       sync.Mutex
	timers   map[string]*time.Timer
	hubLocks map[string]*sync.Mutex

	fetches singleflight.Group
}

// NewAccessListService creates a new AccessListService.
func NewAccessListService(store storage.Storage, client hubclient.AccessListClient, debounce time.Duration, autoSync bool) *AccessListService {
	return &AccessListService{
		store:    store,
		client:   client,
		metrics:  metrics.Get(),
		debounce: debounce,
		autoSync: autoSync,
		timers:   make(map[string]*time.Timer),
		hubLocks: make(map[string]*sync.Mutex),
	}
}

// TriggerSync schedules a debounced sync of one hub.
// Multiple triggers within the debounce period result in a single sync.
func (s *AccessListService) TriggerSync(hubName string) {
	if !s.autoSync {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[hubName]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if s.timers[hubName] == timer {
			delete(s.timers, hubName)
		}
		s.mu.Unlock()

		if _, err := s.syncHub(context.Background(), hubName); err != nil {
			log.Error("auto-sync failed", "hub", hubName, "err", err)
		}
	})
	s.timers[hubName] = timer
}

// CancelSync drops a pending debounced sync of hubName, if any.
func (s *AccessListService) CancelSync(hubName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[hubName]; ok {
		timer.Stop()
		delete(s.timers, hubName)
	}
}

// hubLock returns the mutex that serializes writes to one hub.
func (s *AccessListService) hubLock(hubName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.hubLocks[hubName]
	if !ok {
		lock = &sync.Mutex{}
		s.hubLocks[hubName] = lock
	}
	return lock
}

// FetchLive returns the access list the hub currently enforces.
// Concurrent calls for the same hub share one read.
func (s *AccessListService) FetchLive(ctx context.Context, hubName string) ([]domain.AccessRule, error) {
	if _, err := s.store.GetHubByName(ctx, hubName); err != nil {
		return nil, err
	}

	// The shared read outlives any single caller giving up.
	ch := s.fetches.DoChan(hubName, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), hubName)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.AccessRule)), nil
	}
}

func (s *AccessListService) fetch(ctx context.Context, hubName string) ([]domain.AccessRule, error) {
	rules, err := s.client.FetchAccessList(ctx, hubName)
	s.metrics.RecordHubFetch(hubName, err)
	if err != nil {
		return nil, fmt.Errorf("fetching access list of hub %s: %w", hubName, err)
	}
	return rules, nil
}

// LiveDeviceIPs returns the device addresses allow-listed on the hub right now.
func (s *AccessListService) LiveDeviceIPs(ctx context.Context, hubName string) ([]netip.Addr, error) {
	live, err := s.FetchLive(ctx, hubName)
	if err != nil {
		return nil, err
	}
	ips := accesslist.GetDevicesOnlyIPs(live)
	if ips == nil {
		ips = []netip.Addr{}
	}
	return ips, nil
}

// BuildAccessList generates the full access list for a hub profile from
// scratch, ignoring whatever the hub currently runs.
func (s *AccessListService) BuildAccessList(ctx context.Context, hubName string) ([]domain.AccessRule, error) {
	hub, err := s.store.GetHubByName(ctx, hubName)
	if err != nil {
		return nil, err
	}
	devices, err := s.hubDevices(ctx, hub)
	if err != nil {
		return nil, err
	}
	return s.provision(hub, devices)
}

// Preview compares the access list a sync would push with the live one.
func (s *AccessListService) Preview(ctx context.Context, hubName string) (*domain.AccessListPreview, error) {
	hub, err := s.store.GetHubByName(ctx, hubName)
	if err != nil {
		return nil, err
	}
	live, err := s.FetchLive(ctx, hubName)
	if err != nil {
		return nil, err
	}
	generated, err := s.desired(ctx, hub, live)
	if err != nil {
		return nil, err
	}

	liveText := accesslist.Render(live)
	generatedText := accesslist.Render(generated)
	preview := &domain.AccessListPreview{
		HubName:   hubName,
		Generated: generated,
		Live:      live,
		InSync:    liveText == generatedText,
	}
	if !preview.InSync {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(liveText),
			B:        difflib.SplitLines(generatedText),
			FromFile: "live",
			ToFile:   "generated",
			Context:  3,
		}
		preview.Diff, _ = difflib.GetUnifiedDiffString(diff)
	}
	return preview, nil
}

// Sync pushes the generated access list of one hub immediately.
func (s *AccessListService) Sync(ctx context.Context, hubName string) (*domain.SyncResponse, error) {
	s.CancelSync(hubName)
	return s.syncHub(ctx, hubName)
}

// syncHub runs fetch, compute and push for one hub while holding its lock.
func (s *AccessListService) syncHub(ctx context.Context, hubName string) (*domain.SyncResponse, error) {
	lock := s.hubLock(hubName)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	hub, err := s.store.GetHubByName(ctx, hubName)
	if err != nil {
		return nil, err
	}

	var rules []domain.AccessRule
	if hub.Mode == domain.ModeDevicesOnly {
		live, err := s.fetch(ctx, hubName)
		if err != nil {
			return nil, err
		}
		rules, err = s.desired(ctx, hub, live)
		if err != nil {
			if errors.Is(err, domain.ErrGatewayRuleAmbiguous) || errors.Is(err, domain.ErrMalformedRuleSet) {
				resp, recErr := s.recordFailure(ctx, hubName, nil, err)
				if recErr != nil {
					return nil, recErr
				}
				s.metrics.RecordSync(hubName, domain.PushStatusFailed, time.Since(start).Seconds())
				return resp, err
			}
			return nil, err
		}
	} else {
		rules, err = s.desired(ctx, hub, nil)
		if err != nil {
			return nil, err
		}
	}

	resp, err := s.push(ctx, hubName, rules)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSync(hubName, resp.Status, time.Since(start).Seconds())
	return resp, nil
}

// desired computes the access list a sync would write. For devices-only hubs
// the device rules of the live list are replaced and everything else the hub
// runs is kept; a hub without our gateway rule, or with a gateway rule for a
// different gateway, is provisioned from scratch.
func (s *AccessListService) desired(ctx context.Context, hub *domain.Hub, live []domain.AccessRule) ([]domain.AccessRule, error) {
	devices, err := s.hubDevices(ctx, hub)
	if err != nil {
		return nil, err
	}
	if hub.Mode != domain.ModeDevicesOnly {
		return s.provision(hub, devices)
	}

	lookup := accesslist.FindGatewayRule(live)
	s.metrics.RecordGatewayLookup(hub.Name, lookup.Status.String())

	switch lookup.Status {
	case accesslist.LookupNotFound:
		log.Info("no gateway rule on hub, provisioning access list", "hub", hub.Name, "live_rules", len(live))
		return s.provision(hub, devices)
	case accesslist.LookupFound:
		gateway, mask, err := hubGateway(hub)
		if err != nil {
			return nil, err
		}
		if lookup.Rule.SrcAddress != gateway || lookup.Rule.DestMask != mask {
			log.Info("gateway changed, provisioning access list", "hub", hub.Name,
				"live_gateway", lookup.Rule.SrcAddress, "gateway", gateway)
			return s.provision(hub, devices)
		}
	}

	rules, err := accesslist.ReplaceDevices(live, devices...)
	if err != nil {
		return nil, fmt.Errorf("hub %s: %w", hub.Name, err)
	}
	s.metrics.RecordRuleSet(hub.Name, hub.Mode, len(rules))
	return rules, nil
}

// provision builds a hub's access list from its profile alone.
func (s *AccessListService) provision(hub *domain.Hub, devices []domain.AccessDevice) ([]domain.AccessRule, error) {
	gateway, mask, err := hubGateway(hub)
	if err != nil {
		return nil, err
	}

	var rules []domain.AccessRule
	switch hub.Mode {
	case domain.ModeNetworkOnly:
		rules, err = accesslist.AllowNetworkOnlyString(hub.Network, hub.NetworkMask, gateway, mask)
	case domain.ModeDevicesOnly:
		rules, err = accesslist.AllowDevicesOnly(gateway, mask, devices...)
	default:
		return nil, fmt.Errorf("%w: hub %s has unknown mode %q", domain.ErrInvalidInput, hub.Name, hub.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("hub %s: %w", hub.Name, err)
	}

	s.metrics.RecordRuleSet(hub.Name, hub.Mode, len(rules))
	return rules, nil
}

func hubGateway(hub *domain.Hub) (netip.Addr, netip.Addr, error) {
	gateway, err := accesslist.ParseIPv4(hub.Gateway)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("hub %s gateway: %w", hub.Name, err)
	}
	mask, err := accesslist.ParseIPv4(hub.GatewayMask)
	if err != nil {
		return netip.Addr{}, netip.Addr{}, fmt.Errorf("hub %s gateway mask: %w", hub.Name, domain.ErrInvalidMask)
	}
	return gateway, mask, nil
}

// hubDevices loads the stored devices of a hub as builder input.
func (s *AccessListService) hubDevices(ctx context.Context, hub *domain.Hub) ([]domain.AccessDevice, error) {
	stored, err := s.store.ListDevices(ctx, hub.ID)
	if err != nil {
		return nil, err
	}
	devices := make([]domain.AccessDevice, 0, len(stored))
	for _, d := range stored {
		ip, err := accesslist.ParseIPv4(d.Address)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.Name, err)
		}
		devices = append(devices, domain.AccessDevice{Name: d.Name, IP: ip})
	}
	return devices, nil
}

// Rollback pushes the rules of a previous version again, recorded as a new version.
func (s *AccessListService) Rollback(ctx context.Context, hubName, versionID string) (*domain.SyncResponse, error) {
	version, err := s.store.GetAccessListVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if version.HubName != hubName {
		return nil, domain.ErrNotFound
	}

	var rules []domain.AccessRule
	if err := json.Unmarshal([]byte(version.RenderedRules), &rules); err != nil {
		return nil, fmt.Errorf("decoding version %d of hub %s: %w", version.VersionNumber, hubName, err)
	}
	if len(rules) == 0 && version.PushStatus == domain.PushStatusFailed {
		return nil, fmt.Errorf("%w: version %d was never generated", domain.ErrInvalidInput, version.VersionNumber)
	}

	s.CancelSync(hubName)
	lock := s.hubLock(hubName)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	resp, err := s.push(ctx, hubName, rules)
	if err != nil {
		return nil, err
	}
	log.Info("rolled back access list", "hub", hubName, "from_version", version.VersionNumber,
		"version", resp.VersionNumber, "status", resp.Status)
	s.metrics.RecordSync(hubName, resp.Status, time.Since(start).Seconds())
	return resp, nil
}

// ListVersions returns the version history of a hub, newest first.
func (s *AccessListService) ListVersions(ctx context.Context, hubName string, limit, offset int) ([]*domain.AccessListVersion, error) {
	if _, err := s.store.GetHubByName(ctx, hubName); err != nil {
		return nil, err
	}
	return s.store.ListAccessListVersions(ctx, hubName, limit, offset)
}

// push records a pending version, writes the rules to the hub and records
// the outcome. A failed write is reported in the response, not as an error.
func (s *AccessListService) push(ctx context.Context, hubName string, rules []domain.AccessRule) (*domain.SyncResponse, error) {
	version, err := s.newVersion(ctx, hubName, rules)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	version.PushedAt = &now
	if err := s.client.SetAccessList(ctx, hubName, rules); err != nil {
		version.PushStatus = domain.PushStatusFailed
		version.PushError = err.Error()
		if uerr := s.store.UpdateAccessListVersion(ctx, version); uerr != nil {
			log.Warn("failed to update version record", "hub", hubName, "version", version.VersionNumber, "err", uerr)
		}
		log.Error("access list push failed", "hub", hubName, "version", version.VersionNumber, "err", err)

		return &domain.SyncResponse{
			HubName:       hubName,
			VersionID:     version.ID,
			VersionNumber: version.VersionNumber,
			Status:        domain.PushStatusFailed,
			Error:         fmt.Errorf("%w: %v", domain.ErrSyncFailed, err).Error(),
		}, nil
	}

	version.PushStatus = domain.PushStatusSuccess
	if err := s.store.UpdateAccessListVersion(ctx, version); err != nil {
		log.Warn("failed to update version record", "hub", hubName, "version", version.VersionNumber, "err", err)
	}
	log.Info("access list pushed", "hub", hubName, "version", version.VersionNumber, "rules", len(rules))

	return &domain.SyncResponse{
		HubName:       hubName,
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		Status:        domain.PushStatusSuccess,
	}, nil
}

// recordFailure stores a failed version for a sync that never reached the hub.
func (s *AccessListService) recordFailure(ctx context.Context, hubName string, rules []domain.AccessRule, cause error) (*domain.SyncResponse, error) {
	version, err := s.newVersion(ctx, hubName, rules)
	if err != nil {
		return nil, err
	}
	version.PushStatus = domain.PushStatusFailed
	version.PushError = cause.Error()
	if err := s.store.UpdateAccessListVersion(ctx, version); err != nil {
		return nil, err
	}
	log.Error("sync aborted", "hub", hubName, "version", version.VersionNumber, "err", cause)

	return &domain.SyncResponse{
		HubName:       hubName,
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		Status:        domain.PushStatusFailed,
		Error:         cause.Error(),
	}, nil
}

// newVersion stores a pending version record holding rules.
func (s *AccessListService) newVersion(ctx context.Context, hubName string, rules []domain.AccessRule) (*domain.AccessListVersion, error) {
	if rules == nil {
		rules = []domain.AccessRule{}
	}
	rendered, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}

	nextVersion := 1
	latest, err := s.store.GetLatestAccessListVersion(ctx, hubName)
	if err == nil {
		nextVersion = latest.VersionNumber + 1
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	version := &domain.AccessListVersion{
		ID:            uuid.New().String(),
		HubName:       hubName,
		VersionNumber: nextVersion,
		RenderedRules: string(rendered),
		RuleCount:     len(rules),
		PushStatus:    domain.PushStatusPending,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateAccessListVersion(ctx, version); err != nil {
		return nil, err
	}
	return version, nil
}
