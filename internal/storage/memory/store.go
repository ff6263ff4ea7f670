package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	hubs     map[string]*domain.Hub               // key: id
	devices  map[string]*domain.HubDevice         // key: hubID:name
	versions map[string]*domain.AccessListVersion // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		hubs:     make(map[string]*domain.Hub),
		devices:  make(map[string]*domain.HubDevice),
		versions: make(map[string]*domain.AccessListVersion),
	}
}

// Ensure Store implements storage.Storage.
var _ storage.Storage = (*Store)(nil)

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{Store: s}, nil
}

// Tx is a no-op transaction for the in-memory store. Writes are applied
// immediately and Rollback does not undo them.
type Tx struct {
	*Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

func deviceKey(hubID, name string) string {
	return hubID + ":" + name
}

// ============================================
// Hubs
// ============================================

func (s *Store) CreateHub(ctx context.Context, hub *domain.Hub) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hubs[hub.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, h := range s.hubs {
		if h.Name == hub.Name {
			return domain.ErrAlreadyExists
		}
	}
	cp := *hub
	s.hubs[hub.ID] = &cp
	return nil
}

func (s *Store) GetHub(ctx context.Context, id string) (*domain.Hub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hub, exists := s.hubs[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *hub
	return &cp, nil
}

func (s *Store) GetHubByName(ctx context.Context, name string) (*domain.Hub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hubs {
		if h.Name == name {
			cp := *h
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListHubs(ctx context.Context) ([]*domain.Hub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.Hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		cp := *h
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) UpdateHub(ctx context.Context, hub *domain.Hub) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hubs[hub.ID]; !exists {
		return domain.ErrNotFound
	}
	cp := *hub
	s.hubs[hub.ID] = &cp
	return nil
}

func (s *Store) DeleteHub(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.hubs[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.hubs, id)
	for key, d := range s.devices {
		if d.HubID == id {
			delete(s.devices, key)
		}
	}
	return nil
}

// ============================================
// Devices
// ============================================

func (s *Store) CreateDevice(ctx context.Context, device *domain.HubDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviceKey(device.HubID, device.Name)
	if _, exists := s.devices[key]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *device
	s.devices[key] = &cp
	return nil
}

func (s *Store) GetDevice(ctx context.Context, hubID, name string) (*domain.HubDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	device, exists := s.devices[deviceKey(hubID, name)]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *device
	return &cp, nil
}

func (s *Store) ListDevices(ctx context.Context, hubID string) ([]*domain.HubDevice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*domain.HubDevice, 0)
	for _, d := range s.devices {
		if d.HubID == hubID {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) DeleteDevice(ctx context.Context, hubID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviceKey(hubID, name)
	if _, exists := s.devices[key]; !exists {
		return domain.ErrNotFound
	}
	delete(s.devices, key)
	return nil
}

func (s *Store) DeleteAllDevicesForHub(ctx context.Context, hubID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, d := range s.devices {
		if d.HubID == hubID {
			delete(s.devices, key)
		}
	}
	return nil
}

// ============================================
// Access list versions
// ============================================

func (s *Store) CreateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.versions[version.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, v := range s.versions {
		if v.HubName == version.HubName && v.VersionNumber == version.VersionNumber {
			return domain.ErrAlreadyExists
		}
	}
	cp := *version
	s.versions[version.ID] = &cp
	return nil
}

func (s *Store) GetAccessListVersion(ctx context.Context, id string) (*domain.AccessListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, exists := s.versions[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *version
	return &cp, nil
}

func (s *Store) GetLatestAccessListVersion(ctx context.Context, hubName string) (*domain.AccessListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.AccessListVersion
	for _, v := range s.versions {
		if v.HubName != hubName {
			continue
		}
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			latest = v
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) ListAccessListVersions(ctx context.Context, hubName string, limit, offset int) ([]*domain.AccessListVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := make([]*domain.AccessListVersion, 0)
	for _, v := range s.versions {
		if v.HubName == hubName {
			cp := *v
			versions = append(versions, &cp)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	if offset >= len(versions) {
		return []*domain.AccessListVersion{}, nil
	}
	end := offset + limit
	if end > len(versions) {
		end = len(versions)
	}
	return versions[offset:end], nil
}

func (s *Store) UpdateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.versions[version.ID]; !exists {
		return domain.ErrNotFound
	}
	cp := *version
	s.versions[version.ID] = &cp
	return nil
}
