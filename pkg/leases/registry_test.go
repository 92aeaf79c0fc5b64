package leases

import (
	"sync"
	"testing"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	store := statestore.NewMemStore()
	t.Cleanup(func() { store.Close() })
	return NewRegistry(store, nil)
}

func TestAcquire_GrantedWhenFree(t *testing.T) {
	r := newTestRegistry(t)
	l, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "worker-a", l.HolderID)
	assert.Equal(t, uint64(1), l.Version)
}

func TestAcquire_DeniedWhenHeldByOther(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)

	_, err = r.Acquire(coretypes.KindStream, "cam-1", "worker-b", 30*time.Second)
	require.Error(t, err)
	assert.Equal(t, coreerr.Conflict, coreerr.CodeOf(err))
}

func TestAcquire_SameHolderExtends(t *testing.T) {
	r := newTestRegistry(t)
	first, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)

	second, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, first.LeaseID, second.LeaseID)
	assert.Greater(t, second.Version, first.Version)
	assert.Greater(t, second.ExpiresAtEpochSecs, first.ExpiresAtEpochSecs)
}

func TestAcquire_ExpiredLeaseIsReclaimed(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", -time.Second)
	require.NoError(t, err)

	l, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-b", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "worker-b", l.HolderID)
}

func TestAcquire_CapacityEnforced(t *testing.T) {
	r := newTestRegistry(t)
	r.maxLeases = map[coretypes.ResourceKind]int{coretypes.KindStream: 1}

	_, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)

	_, err = r.Acquire(coretypes.KindStream, "cam-2", "worker-a", 30*time.Second)
	require.Error(t, err)
	assert.Equal(t, coreerr.Capacity, coreerr.CodeOf(err))
}

func TestRenew_BumpsVersionAndExtends(t *testing.T) {
	r := newTestRegistry(t)
	l, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)

	renewed, err := r.Renew(l.LeaseID, 60*time.Second)
	require.NoError(t, err)
	assert.Equal(t, l.HolderID, renewed.HolderID)
	assert.Greater(t, renewed.Version, l.Version)
}

func TestRenew_ExpiredIsTerminal(t *testing.T) {
	r := newTestRegistry(t)
	l, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", -time.Second)
	require.NoError(t, err)

	_, err = r.Renew(l.LeaseID, 30*time.Second)
	require.Error(t, err)
	assert.Equal(t, coreerr.Expired, coreerr.CodeOf(err))
}

func TestRenew_UnknownLease(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Renew("nonexistent", 30*time.Second)
	require.Error(t, err)
	assert.Equal(t, coreerr.NotFound, coreerr.CodeOf(err))
}

func TestRelease_FreesResourceForNewHolder(t *testing.T) {
	r := newTestRegistry(t)
	l, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, r.Release(l.LeaseID))

	l2, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-b", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "worker-b", l2.HolderID)
}

func TestRelease_UnknownLeaseIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	assert.NoError(t, r.Release("nonexistent"))
}

func TestList_FiltersByKindAndHolder(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", 30*time.Second)
	require.NoError(t, err)
	_, err = r.Acquire(coretypes.KindRecording, "rec-1", "worker-b", 30*time.Second)
	require.NoError(t, err)

	streams := r.List(coretypes.KindStream, nil)
	assert.Len(t, streams, 1)

	holder := "worker-b"
	byHolder := r.List("", &holder)
	assert.Len(t, byHolder, 1)
	assert.Equal(t, "rec-1", byHolder[0].ResourceID)
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Acquire(coretypes.KindStream, "cam-1", "worker-a", -time.Second)
	require.NoError(t, err)

	n := r.sweep()
	assert.Equal(t, 1, n)
	assert.Len(t, r.List("", nil), 0)
}

// TestAcquire_ConcurrentWithSweepDoesNotDeadlock guards against the
// registry-wide mu and per-entry mu being taken in opposite orders: sweep
// always locks mu then each entry's mu, so Acquire must never hold an
// entry's mu while waiting on mu.
func TestAcquire_ConcurrentWithSweepDoesNotDeadlock(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			resourceID := "cam-" + string(rune('a'+i%26))
			_, _ = r.Acquire(coretypes.KindStream, resourceID, "worker-a", 30*time.Second)
		}(i)
		go func() {
			defer wg.Done()
			r.sweep()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire/sweep deadlocked")
	}
}
