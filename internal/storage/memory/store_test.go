package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
)

func TestHubsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := New()

	hub := &domain.Hub{ID: "h1", Name: "VPN", Mode: domain.ModeDevicesOnly}
	require.NoError(t, store.CreateHub(ctx, hub))
	assert.ErrorIs(t, store.CreateHub(ctx, &domain.Hub{ID: "h2", Name: "VPN"}), domain.ErrAlreadyExists)

	hub.Name = "changed"
	got, err := store.GetHub(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "VPN", got.Name)

	got.Name = "changed"
	again, err := store.GetHubByName(ctx, "VPN")
	require.NoError(t, err)
	assert.Equal(t, "VPN", again.Name)
}

func TestDeleteHubRemovesDevices(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.CreateHub(ctx, &domain.Hub{ID: "h1", Name: "VPN"}))
	require.NoError(t, store.CreateHub(ctx, &domain.Hub{ID: "h2", Name: "LAB"}))
	require.NoError(t, store.CreateDevice(ctx, &domain.HubDevice{ID: "d1", HubID: "h1", Name: "laptop", Address: "192.168.30.50"}))
	require.NoError(t, store.CreateDevice(ctx, &domain.HubDevice{ID: "d2", HubID: "h2", Name: "laptop", Address: "10.0.0.5"}))
	assert.ErrorIs(t, store.CreateDevice(ctx, &domain.HubDevice{ID: "d3", HubID: "h1", Name: "laptop"}), domain.ErrAlreadyExists)

	require.NoError(t, store.DeleteHub(ctx, "h1"))
	assert.ErrorIs(t, store.DeleteHub(ctx, "h1"), domain.ErrNotFound)

	devices, err := store.ListDevices(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, devices)

	devices, err = store.ListDevices(ctx, "h2")
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestListAccessListVersionsPaging(t *testing.T) {
	ctx := context.Background()
	store := New()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.CreateAccessListVersion(ctx, &domain.AccessListVersion{
			ID: fmt.Sprintf("v%d", i), HubName: "VPN", VersionNumber: i,
		}))
	}
	require.NoError(t, store.CreateAccessListVersion(ctx, &domain.AccessListVersion{ID: "other", HubName: "LAB", VersionNumber: 1}))
	assert.ErrorIs(t, store.CreateAccessListVersion(ctx, &domain.AccessListVersion{ID: "dup", HubName: "VPN", VersionNumber: 5}), domain.ErrAlreadyExists)

	latest, err := store.GetLatestAccessListVersion(ctx, "VPN")
	require.NoError(t, err)
	assert.Equal(t, 5, latest.VersionNumber)

	page, err := store.ListAccessListVersions(ctx, "VPN", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 4, page[0].VersionNumber)
	assert.Equal(t, 3, page[1].VersionNumber)

	page, err = store.ListAccessListVersions(ctx, "VPN", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	assert.ErrorIs(t, store.UpdateAccessListVersion(ctx, &domain.AccessListVersion{ID: "missing"}), domain.ErrNotFound)
}

func TestNestedTransaction(t *testing.T) {
	store := New()
	tx, err := store.BeginTx(context.Background())
	require.NoError(t, err)
	_, err = tx.BeginTx(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NoError(t, tx.Commit())
}
