// Package statestore persists the durable record of every lease and every
// resource instance: the data a coordinator replica needs to survive a
// restart and the data a reaper sweep needs to find orphans.
package statestore

import (
	"errors"

	"github.com/cuemby/vms/pkg/coretypes"
)

// ErrNotFound is returned by Get* methods when no record exists for the key.
var ErrNotFound = errors.New("statestore: not found")

// Store is the persistence interface the coordinator's FSM, the gateway's
// read path, and the reaper all depend on. Rather than three parallel
// per-kind stores (stream/recording/ai_task), it is one generic interface
// keyed by (kind, resource_id), so only one lease or instance can ever
// exist for a given key.
type Store interface {
	// PutLease upserts a lease record.
	PutLease(lease *coretypes.Lease) error
	// GetLease returns the lease with the given lease_id.
	GetLease(leaseID string) (*coretypes.Lease, error)
	// GetLeaseByResource returns the stored lease for a (kind, resource_id),
	// if any; the store does not check whether it has expired.
	GetLeaseByResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.Lease, error)
	// ListLeases returns every lease of the given kind, or all kinds if kind is "".
	ListLeases(kind coretypes.ResourceKind) ([]*coretypes.Lease, error)
	// DeleteLease removes a lease record.
	DeleteLease(leaseID string) error

	// PutResource upserts a resource instance.
	PutResource(inst *coretypes.ResourceInstance) error
	// GetResource returns the resource instance for (kind, resource_id).
	GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error)
	// ListResources returns every instance of the given kind, or all kinds if kind is "".
	ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error)
	// ListResourcesByHolder returns every instance currently held by nodeID.
	ListResourcesByHolder(nodeID string) ([]*coretypes.ResourceInstance, error)
	// DeleteResource removes a resource instance.
	DeleteResource(kind coretypes.ResourceKind, resourceID string) error

	// Close releases any resources held by the store.
	Close() error
}
