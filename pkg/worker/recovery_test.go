package worker

import (
	"testing"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverOnStartup_MarksStartingAndRunningAsError(t *testing.T) {
	fc := newFakeCoordinator()
	leaseA := "lease-a"
	leaseB := "lease-b"
	fc.leases[leaseA] = coretypes.Lease{LeaseID: leaseA}
	fc.leases[leaseB] = coretypes.Lease{LeaseID: leaseB}

	fc.byHolder = []*coretypes.ResourceInstance{
		{ResourceID: "res-1", Kind: coretypes.KindStream, State: coretypes.StateStarting, LeaseID: &leaseA},
		{ResourceID: "res-2", Kind: coretypes.KindRecording, State: coretypes.StateRunning, LeaseID: &leaseB},
		{ResourceID: "res-3", Kind: coretypes.KindAiTask, State: coretypes.StateStopped},
	}

	w := &Worker{nodeID: "node-a", client: fc}
	require.NoError(t, w.RecoverOnStartup())

	inst1 := fc.lastResource(coretypes.KindStream, "res-1")
	require.NotNil(t, inst1)
	assert.Equal(t, coretypes.StateError, inst1.State)
	require.NotNil(t, inst1.LastError)
	assert.Equal(t, "worker restart", *inst1.LastError)

	inst2 := fc.lastResource(coretypes.KindRecording, "res-2")
	require.NotNil(t, inst2)
	assert.Equal(t, coretypes.StateError, inst2.State)

	assert.Nil(t, fc.lastResource(coretypes.KindAiTask, "res-3"))

	fc.mu.Lock()
	_, leaseAAlive := fc.leases[leaseA]
	_, leaseBAlive := fc.leases[leaseB]
	fc.mu.Unlock()
	assert.False(t, leaseAAlive)
	assert.False(t, leaseBAlive)
}

func TestRecoverOnStartup_NoOrphansIsNoOp(t *testing.T) {
	fc := newFakeCoordinator()
	w := &Worker{nodeID: "node-a", client: fc}
	require.NoError(t, w.RecoverOnStartup())
	assert.Equal(t, 0, fc.upsertCalls)
}
