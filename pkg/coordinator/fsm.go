package coordinator

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/leases"
	"github.com/cuemby/vms/pkg/statestore"
	"github.com/hashicorp/raft"
)

// CoordinatorFSM implements the Raft finite state machine backing the
// lease registry and resource instance table. Every replica applies the
// same committed log in order, so every replica's Registry and Store
// converge without the Registry itself being Raft-replicated.
type CoordinatorFSM struct {
	mu       sync.RWMutex
	store    statestore.Store
	registry *leases.Registry
}

// NewCoordinatorFSM creates an FSM bound to store and registry. The
// registry must already be backed by the same store.
func NewCoordinatorFSM(store statestore.Store, registry *leases.Registry) *CoordinatorFSM {
	return &CoordinatorFSM{store: store, registry: registry}
}

// Command represents a state change operation in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	OpAcquireLease   = "acquire_lease"
	OpRenewLease     = "renew_lease"
	OpReleaseLease   = "release_lease"
	OpUpsertResource = "upsert_resource"
	OpDeleteResource = "delete_resource"
)

// AcquireLeaseCmd is the payload for OpAcquireLease.
type AcquireLeaseCmd struct {
	Kind       coretypes.ResourceKind `json:"kind"`
	ResourceID string                 `json:"resource_id"`
	HolderID   string                 `json:"holder_id"`
	TTLSeconds int64                  `json:"ttl_seconds"`
}

// RenewLeaseCmd is the payload for OpRenewLease.
type RenewLeaseCmd struct {
	LeaseID    string `json:"lease_id"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// ReleaseLeaseCmd is the payload for OpReleaseLease.
type ReleaseLeaseCmd struct {
	LeaseID string `json:"lease_id"`
}

// DeleteResourceCmd is the payload for OpDeleteResource, issued by the
// Reaper once a kind's retention window has elapsed for a terminal row.
type DeleteResourceCmd struct {
	Kind       coretypes.ResourceKind `json:"kind"`
	ResourceID string                 `json:"resource_id"`
}

// ApplyResult is the value returned from Apply through the raft future's
// Response(), wrapping either a lease or an error.
type ApplyResult struct {
	Lease *coretypes.Lease
	Err   error
}

// Apply applies one committed Raft log entry to the FSM.
func (f *CoordinatorFSM) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return ApplyResult{Err: fmt.Errorf("unmarshal command: %w", err)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpAcquireLease:
		var c AcquireLeaseCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return ApplyResult{Err: err}
		}
		lease, err := f.registry.Acquire(c.Kind, c.ResourceID, c.HolderID, time.Duration(c.TTLSeconds)*time.Second)
		if err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Lease: &lease}

	case OpRenewLease:
		var c RenewLeaseCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return ApplyResult{Err: err}
		}
		lease, err := f.registry.Renew(c.LeaseID, time.Duration(c.TTLSeconds)*time.Second)
		if err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Lease: &lease}

	case OpReleaseLease:
		var c ReleaseLeaseCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Err: f.registry.Release(c.LeaseID)}

	case OpUpsertResource:
		var inst coretypes.ResourceInstance
		if err := json.Unmarshal(cmd.Data, &inst); err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Err: f.store.PutResource(&inst)}

	case OpDeleteResource:
		var c DeleteResourceCmd
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Err: f.store.DeleteResource(c.Kind, c.ResourceID)}

	default:
		return ApplyResult{Err: fmt.Errorf("unknown command: %s", cmd.Op)}
	}
}

// Snapshot captures the full lease table and resource instance set.
func (f *CoordinatorFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	leaseList := f.registry.List("", nil)
	resources, err := f.store.ListResources("")
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	return &fsmSnapshot{Leases: leaseList, Resources: resources}, nil
}

// Restore replaces FSM state from a previously captured snapshot.
func (f *CoordinatorFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, l := range snap.Leases {
		lease := l
		if err := f.store.PutLease(&lease); err != nil {
			return fmt.Errorf("restore lease %s: %w", lease.LeaseID, err)
		}
	}
	for _, r := range snap.Resources {
		inst := r
		if err := f.store.PutResource(inst); err != nil {
			return fmt.Errorf("restore resource %s: %w", inst.ResourceID, err)
		}
	}
	return f.registry.LoadFromStore()
}

type fsmSnapshot struct {
	Leases    []coretypes.Lease             `json:"leases"`
	Resources []*coretypes.ResourceInstance `json:"resources"`
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}
