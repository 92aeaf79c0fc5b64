package statestore

import (
	"os"
	"testing"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	dir, err := os.MkdirTemp("", "statestore-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	bolt, err := NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"bolt": bolt,
		"mem":  NewMemStore(),
	}
}

func TestStore_LeaseRoundTrip(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			lease := &coretypes.Lease{
				LeaseID:            "lease-1",
				ResourceID:         "cam-1",
				Kind:               coretypes.KindStream,
				HolderID:           "worker-a",
				ExpiresAtEpochSecs: 1000,
				Version:            1,
			}
			require.NoError(t, store.PutLease(lease))

			got, err := store.GetLease("lease-1")
			require.NoError(t, err)
			assert.Equal(t, lease.ResourceID, got.ResourceID)

			byRes, err := store.GetLeaseByResource(coretypes.KindStream, "cam-1")
			require.NoError(t, err)
			assert.Equal(t, "lease-1", byRes.LeaseID)

			leases, err := store.ListLeases(coretypes.KindStream)
			require.NoError(t, err)
			assert.Len(t, leases, 1)

			leases, err = store.ListLeases(coretypes.KindRecording)
			require.NoError(t, err)
			assert.Len(t, leases, 0)

			require.NoError(t, store.DeleteLease("lease-1"))
			_, err = store.GetLease("lease-1")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.GetLeaseByResource(coretypes.KindStream, "cam-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ResourceRoundTrip(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			holder := "worker-a"
			inst := &coretypes.ResourceInstance{
				ResourceID:   "cam-1",
				Kind:         coretypes.KindStream,
				State:        coretypes.StateRunning,
				HolderNodeID: &holder,
			}
			require.NoError(t, store.PutResource(inst))

			got, err := store.GetResource(coretypes.KindStream, "cam-1")
			require.NoError(t, err)
			assert.Equal(t, coretypes.StateRunning, got.State)

			byHolder, err := store.ListResourcesByHolder("worker-a")
			require.NoError(t, err)
			assert.Len(t, byHolder, 1)

			all, err := store.ListResources("")
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, store.DeleteResource(coretypes.KindStream, "cam-1"))
			_, err = store.GetResource(coretypes.KindStream, "cam-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
