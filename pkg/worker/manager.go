package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/pipeline"
	"golang.org/x/sync/singleflight"
)

// Default lease TTLs per kind. The control loop renews at TTL/2, so these
// also set the renewal cadence.
const (
	streamLeaseTTL    = 30 * time.Second
	recordingLeaseTTL = 30 * time.Second
	aiTaskLeaseTTL    = 30 * time.Second
)

// baseManager is the bounded map + per-resource control loop shared by
// StreamManager, RecordingManager, and AiTaskManager. Each kind gets its
// own baseManager so capacity is enforced independently per kind.
type baseManager struct {
	kind          coretypes.ResourceKind
	nodeID        string
	maxConcurrent int
	leaseTTL      time.Duration
	client        coordinatorAPI
	dataDir       string
	factory       pipeline.Factory

	mu     sync.Mutex
	active map[string]*controlLoop

	// starting collapses concurrent Start calls for the same resourceID
	// into one lease-acquire-and-launch, closing the race where two
	// callers both pass the capacity/duplicate check before either has
	// inserted into active.
	starting singleflight.Group
}

func newBaseManager(kind coretypes.ResourceKind, nodeID string, maxConcurrent int, leaseTTL time.Duration, client coordinatorAPI, dataDir string, factory pipeline.Factory) *baseManager {
	return &baseManager{
		kind:          kind,
		nodeID:        nodeID,
		maxConcurrent: maxConcurrent,
		leaseTTL:      leaseTTL,
		client:        client,
		dataDir:       dataDir,
		factory:       factory,
		active:        make(map[string]*controlLoop),
	}
}

func (m *baseManager) newSideEffect() pipeline.SideEffect {
	return m.factory(m.dataDir, m.kind)
}

// Start acquires a lease for resourceID and launches its control loop.
// Capacity is checked before the lease is acquired, so a rejected Start
// leaves no lease or resource row behind.
func (m *baseManager) Start(resourceID string, configJSON []byte) error {
	_, err, _ := m.starting.Do(resourceID, func() (any, error) {
		m.mu.Lock()
		if _, exists := m.active[resourceID]; exists {
			m.mu.Unlock()
			return nil, coreerr.Conflictf("%s %s is already running on this worker", m.kind, resourceID)
		}
		if len(m.active) >= m.maxConcurrent {
			m.mu.Unlock()
			return nil, coreerr.Capacityf("worker at capacity for kind %s (%d/%d)", m.kind, len(m.active), m.maxConcurrent)
		}
		m.mu.Unlock()

		lease, err := m.client.AcquireLease(m.kind, resourceID, m.nodeID, m.leaseTTL)
		if err != nil {
			return nil, err
		}

		cl := newControlLoop(m.kind, resourceID, m.nodeID, lease.LeaseID, m.leaseTTL, m.newSideEffect(), m.client)

		m.mu.Lock()
		m.active[resourceID] = cl
		m.mu.Unlock()

		go func() {
			cl.run(context.Background(), configJSON)
			m.mu.Lock()
			delete(m.active, resourceID)
			m.mu.Unlock()
		}()
		return nil, nil
	})
	return err
}

// Stop signals resourceID's control loop to drain and tear down. A
// resourceID not currently active on this worker is a no-op success,
// matching idempotent-delete semantics used across the core.
func (m *baseManager) Stop(ctx context.Context, resourceID string) error {
	m.mu.Lock()
	cl, ok := m.active[resourceID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return cl.stop(ctx)
}

// Count reports the number of resources this manager currently runs.
func (m *baseManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// StreamManager runs KindStream resources.
type StreamManager struct{ *baseManager }

// NewStreamManager constructs a StreamManager writing pipeline output
// under dataDir.
func NewStreamManager(nodeID, dataDir string, client coordinatorAPI, maxConcurrent int) *StreamManager {
	factory := func(dataDir string, kind coretypes.ResourceKind) pipeline.SideEffect { return pipeline.NewStream(dataDir) }
	return &StreamManager{newBaseManager(coretypes.KindStream, nodeID, maxConcurrent, streamLeaseTTL, client, dataDir, factory)}
}

// RecordingManager runs KindRecording resources.
type RecordingManager struct{ *baseManager }

// NewRecordingManager constructs a RecordingManager writing captures
// under dataDir.
func NewRecordingManager(nodeID, dataDir string, client coordinatorAPI, maxConcurrent int) *RecordingManager {
	factory := func(dataDir string, kind coretypes.ResourceKind) pipeline.SideEffect { return pipeline.NewRecording(dataDir) }
	return &RecordingManager{newBaseManager(coretypes.KindRecording, nodeID, maxConcurrent, recordingLeaseTTL, client, dataDir, factory)}
}

// AiTaskManager runs KindAiTask resources, selecting a Plugin from
// registry per task.
type AiTaskManager struct{ *baseManager }

// NewAiTaskManager constructs an AiTaskManager backed by registry.
func NewAiTaskManager(nodeID string, registry *pipeline.PluginRegistry, client coordinatorAPI, maxConcurrent int) *AiTaskManager {
	factory := func(dataDir string, kind coretypes.ResourceKind) pipeline.SideEffect { return pipeline.NewAiTask(registry) }
	return &AiTaskManager{newBaseManager(coretypes.KindAiTask, nodeID, maxConcurrent, aiTaskLeaseTTL, client, "", factory)}
}
