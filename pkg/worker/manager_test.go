package worker

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(fc *fakeCoordinator, maxConcurrent int) *baseManager {
	factory := func(dataDir string, kind coretypes.ResourceKind) pipeline.SideEffect { return newFakeSideEffect() }
	return newBaseManager(coretypes.KindStream, "node-a", maxConcurrent, 10*time.Second, fc, "", factory)
}

func TestBaseManager_StartRejectsOverCapacity(t *testing.T) {
	fc := newFakeCoordinator()
	m := newTestManager(fc, 1)

	require.NoError(t, m.Start("res-1", []byte(`{}`)))
	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, 10*time.Millisecond)

	err := m.Start("res-2", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, coreerr.Capacity, coreerr.CodeOf(err))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, "res-1"))
}

func TestBaseManager_StartRejectsDuplicateResourceID(t *testing.T) {
	fc := newFakeCoordinator()
	m := newTestManager(fc, 5)

	require.NoError(t, m.Start("res-1", []byte(`{}`)))
	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, 10*time.Millisecond)

	err := m.Start("res-1", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, coreerr.Conflict, coreerr.CodeOf(err))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, "res-1"))
}

func TestBaseManager_StopUnknownResourceIsNoOp(t *testing.T) {
	fc := newFakeCoordinator()
	m := newTestManager(fc, 5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Stop(ctx, "nonexistent"))
}

func TestBaseManager_StartPropagatesAcquireError(t *testing.T) {
	fc := newFakeCoordinator()
	fc.acquireErr = coreerr.Conflictf("already leased")
	m := newTestManager(fc, 5)

	err := m.Start("res-1", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, 0, m.Count())
}
