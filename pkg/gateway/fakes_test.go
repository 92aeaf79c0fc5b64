package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/google/uuid"
)

// fakeCoordinator is an in-memory stand-in for CoordinatorClient, letting
// Gateway and handler tests run without an HTTP server or a real
// coordinator process.
type fakeCoordinator struct {
	mu sync.Mutex

	leases    map[string]coretypes.Lease
	resources map[string]*coretypes.ResourceInstance

	acquireErr error
	getErr     error
	listErr    error

	acquireCalls int
	releaseCalls int
	upsertCalls  int
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{
		leases:    make(map[string]coretypes.Lease),
		resources: make(map[string]*coretypes.ResourceInstance),
	}
}

func (f *fakeCoordinator) AcquireLease(kind coretypes.ResourceKind, resourceID, holderID string, ttl time.Duration) (coretypes.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireCalls++
	if f.acquireErr != nil {
		return coretypes.Lease{}, f.acquireErr
	}
	lease := coretypes.Lease{
		LeaseID:            uuid.New().String(),
		ResourceID:         resourceID,
		Kind:               kind,
		HolderID:           holderID,
		ExpiresAtEpochSecs: time.Now().Add(ttl).Unix(),
		Version:            1,
	}
	f.leases[lease.LeaseID] = lease
	return lease, nil
}

func (f *fakeCoordinator) ReleaseLease(leaseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	delete(f.leases, leaseID)
	return nil
}

func (f *fakeCoordinator) UpsertResource(inst *coretypes.ResourceInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.resources[inst.Key()] = inst
	return nil
}

func (f *fakeCoordinator) GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	inst, ok := f.resources[coretypes.ResourceKey(kind, resourceID)]
	if !ok {
		return nil, coreerr.NotFoundf("resource %s/%s not found", kind, resourceID)
	}
	return inst, nil
}

func (f *fakeCoordinator) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*coretypes.ResourceInstance
	for _, inst := range f.resources {
		if inst.Kind == kind {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeCoordinator) putResource(inst *coretypes.ResourceInstance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[inst.Key()] = inst
}

// fakeWorkerClient is a WorkerClient stand-in whose Start/Stop behavior
// tests can drive directly.
type fakeWorkerClient struct {
	mu sync.Mutex

	startErr error
	stopErr  error

	startCalls int
	stopCalls  int
	lastConfig []byte
}

func (f *fakeWorkerClient) Start(ctx context.Context, kind coretypes.ResourceKind, resourceID string, configJSON []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.lastConfig = configJSON
	return f.startErr
}

func (f *fakeWorkerClient) Stop(ctx context.Context, kind coretypes.ResourceKind, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeWorkerClient) Load(ctx context.Context) (map[coretypes.ResourceKind]int, error) {
	return nil, nil
}
