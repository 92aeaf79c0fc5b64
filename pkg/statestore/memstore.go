package statestore

import (
	"sync"

	"github.com/cuemby/vms/pkg/coretypes"
)

// MemStore is an in-memory Store used by tests and by single-process
// integration harnesses that don't need bbolt's durability.
type MemStore struct {
	mu        sync.RWMutex
	leases    map[string]*coretypes.Lease
	byResKey  map[string]string // resource key -> lease_id
	resources map[string]*coretypes.ResourceInstance
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		leases:    make(map[string]*coretypes.Lease),
		byResKey:  make(map[string]string),
		resources: make(map[string]*coretypes.ResourceInstance),
	}
}

func (m *MemStore) PutLease(lease *coretypes.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *lease
	m.leases[lease.LeaseID] = &cp
	m.byResKey[coretypes.ResourceKey(lease.Kind, lease.ResourceID)] = lease.LeaseID
	return nil
}

func (m *MemStore) GetLease(leaseID string) (*coretypes.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leases[leaseID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemStore) GetLeaseByResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	leaseID, ok := m.byResKey[coretypes.ResourceKey(kind, resourceID)]
	if !ok {
		return nil, ErrNotFound
	}
	l, ok := m.leases[leaseID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MemStore) ListLeases(kind coretypes.ResourceKind) ([]*coretypes.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*coretypes.Lease
	for _, l := range m.leases {
		if kind == "" || l.Kind == kind {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) DeleteLease(leaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[leaseID]
	if !ok {
		return nil
	}
	delete(m.byResKey, coretypes.ResourceKey(l.Kind, l.ResourceID))
	delete(m.leases, leaseID)
	return nil
}

func (m *MemStore) PutResource(inst *coretypes.ResourceInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inst
	m.resources[inst.Key()] = &cp
	return nil
}

func (m *MemStore) GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.resources[coretypes.ResourceKey(kind, resourceID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *MemStore) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*coretypes.ResourceInstance
	for _, inst := range m.resources {
		if kind == "" || inst.Kind == kind {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) ListResourcesByHolder(nodeID string) ([]*coretypes.ResourceInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*coretypes.ResourceInstance
	for _, inst := range m.resources {
		if inst.HolderNodeID != nil && *inst.HolderNodeID == nodeID {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) DeleteResource(kind coretypes.ResourceKind, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resources, coretypes.ResourceKey(kind, resourceID))
	return nil
}

func (m *MemStore) Close() error { return nil }
