package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/google/uuid"
)

// fakeCoordinator is an in-memory stand-in for CoordinatorClient, letting
// control loop and manager tests run without an HTTP server or a real
// coordinator process.
type fakeCoordinator struct {
	mu sync.Mutex

	leases    map[string]coretypes.Lease
	resources map[string]*coretypes.ResourceInstance

	acquireErr error
	renewErr   error
	byHolder   []*coretypes.ResourceInstance

	acquireCalls  int
	renewCalls    int
	releaseCalls  int
	upsertCalls   int
	upsertHistory []*coretypes.ResourceInstance
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

func (f *fakeCoordinator) RenewLease(leaseID string, ttl time.Duration) (coretypes.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewCalls++
	if f.renewErr != nil {
		return coretypes.Lease{}, f.renewErr
	}
	lease, ok := f.leases[leaseID]
	if !ok {
		return coretypes.Lease{}, coreerr.NotFoundf("lease %s not found", leaseID)
	}
	lease.ExpiresAtEpochSecs = time.Now().Add(ttl).Unix()
	lease.Version++
	f.leases[leaseID] = lease
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
	f.upsertHistory = append(f.upsertHistory, inst)
	f.resources[inst.Key()] = inst
	return nil
}

func (f *fakeCoordinator) ListResourcesByHolder(nodeID string) ([]*coretypes.ResourceInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byHolder, nil
}

func (f *fakeCoordinator) lastResource(kind coretypes.ResourceKind, resourceID string) *coretypes.ResourceInstance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resources[coretypes.ResourceKey(kind, resourceID)]
}

// fakeSideEffect is a pipeline.SideEffect stand-in whose exit and stop
// behavior tests can drive directly.
type fakeSideEffect struct {
	mu         sync.Mutex
	launchErr  error
	launched   bool
	exitCh     chan error
	stopCalled bool
	extensions []byte
}

func newFakeSideEffect() *fakeSideEffect {
	return &fakeSideEffect{exitCh: make(chan error, 1)}
}

func (f *fakeSideEffect) Launch(ctx context.Context, resourceID string, config []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launched = true
	return nil
}

func (f *fakeSideEffect) Wait(ctx context.Context) error {
	select {
	case err := <-f.exitCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSideEffect) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopCalled = true
	f.mu.Unlock()
	select {
	case f.exitCh <- nil:
	default:
	}
	return nil
}

func (f *fakeSideEffect) Extensions() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extensions
}
