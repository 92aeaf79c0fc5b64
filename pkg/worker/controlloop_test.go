package worker

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlLoop_StopDrainsAndReleasesLease(t *testing.T) {
	fc := newFakeCoordinator()
	lease, err := fc.AcquireLease(coretypes.KindStream, "res-1", "node-a", 10*time.Second)
	require.NoError(t, err)

	se := newFakeSideEffect()
	cl := newControlLoop(coretypes.KindStream, "res-1", "node-a", lease.LeaseID, 10*time.Second, se, fc)

	done := make(chan struct{})
	go func() {
		cl.run(context.Background(), []byte(`{}`))
		close(done)
	}()

	require.Eventually(t, func() bool { return se.launched }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, cl.stop(ctx))

	<-done
	assert.True(t, se.stopCalled)

	inst := fc.lastResource(coretypes.KindStream, "res-1")
	require.NotNil(t, inst)
	assert.Equal(t, coretypes.StateStopped, inst.State)
	assert.Nil(t, inst.HolderNodeID)
	assert.Nil(t, inst.LeaseID)

	fc.mu.Lock()
	_, stillLeased := fc.leases[lease.LeaseID]
	fc.mu.Unlock()
	assert.False(t, stillLeased)
}

func TestControlLoop_StopPassesThroughStoppingBeforeStopped(t *testing.T) {
	fc := newFakeCoordinator()
	lease, err := fc.AcquireLease(coretypes.KindStream, "res-1", "node-a", 10*time.Second)
	require.NoError(t, err)

	se := newFakeSideEffect()
	cl := newControlLoop(coretypes.KindStream, "res-1", "node-a", lease.LeaseID, 10*time.Second, se, fc)

	done := make(chan struct{})
	go func() {
		cl.run(context.Background(), []byte(`{}`))
		close(done)
	}()

	require.Eventually(t, func() bool { return se.launched }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, cl.stop(ctx))
	<-done

	fc.mu.Lock()
	states := make([]coretypes.ResourceState, 0, len(fc.upsertHistory))
	for _, inst := range fc.upsertHistory {
		states = append(states, inst.State)
	}
	fc.mu.Unlock()

	require.Contains(t, states, coretypes.StateStopping)
	assert.Equal(t, coretypes.StateStopped, states[len(states)-1])
}

func TestControlLoop_SideEffectExitMarksError(t *testing.T) {
	fc := newFakeCoordinator()
	lease, err := fc.AcquireLease(coretypes.KindRecording, "res-2", "node-a", 10*time.Second)
	require.NoError(t, err)

	se := newFakeSideEffect()
	cl := newControlLoop(coretypes.KindRecording, "res-2", "node-a", lease.LeaseID, 10*time.Second, se, fc)

	done := make(chan struct{})
	go func() {
		cl.run(context.Background(), []byte(`{}`))
		close(done)
	}()

	require.Eventually(t, func() bool { return se.launched }, time.Second, 10*time.Millisecond)
	se.exitCh <- nil

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("control loop did not exit after side effect exit")
	}

	inst := fc.lastResource(coretypes.KindRecording, "res-2")
	require.NotNil(t, inst)
	assert.Equal(t, coretypes.StateError, inst.State)
}

func TestControlLoop_LaunchErrorMarksErrorImmediately(t *testing.T) {
	fc := newFakeCoordinator()
	lease, err := fc.AcquireLease(coretypes.KindAiTask, "res-3", "node-a", 10*time.Second)
	require.NoError(t, err)

	se := newFakeSideEffect()
	se.launchErr = assert.AnError
	cl := newControlLoop(coretypes.KindAiTask, "res-3", "node-a", lease.LeaseID, 10*time.Second, se, fc)

	done := make(chan struct{})
	go func() {
		cl.run(context.Background(), []byte(`{}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("control loop did not exit after launch error")
	}

	inst := fc.lastResource(coretypes.KindAiTask, "res-3")
	require.NotNil(t, inst)
	assert.Equal(t, coretypes.StateError, inst.State)
	require.NotNil(t, inst.LastError)
}
