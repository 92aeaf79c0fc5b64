// Package leases implements the in-memory Lease Registry: the single
// authoritative table of who holds exclusive ownership over which
// (kind, resource_id), hosted on whichever coordinator replica is the
// current Raft leader.
package leases

import (
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
	"github.com/cuemby/vms/pkg/statestore"
	"github.com/google/uuid"
)

// DefaultMaxLeases are the per-kind capacity caps applied in Acquire,
// matching the scale a single coordinator leader is expected to track.
var DefaultMaxLeases = map[coretypes.ResourceKind]int{
	coretypes.KindStream:    1000,
	coretypes.KindRecording: 500,
	coretypes.KindAiTask:    200,
}

const defaultSweepInterval = time.Second

type entry struct {
	mu    sync.Mutex
	lease coretypes.Lease
}

// Registry is the authoritative lease table. It is not itself
// Raft-replicated; the coordinator's FSM calls Registry.Acquire/Renew/
// Release from inside Apply, so every replica's Registry converges by
// replaying the same committed log.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry // resource key -> entry
	byLeaseID  map[string]string // lease_id -> resource key
	maxLeases  map[coretypes.ResourceKind]int
	store      statestore.Store
	versionCtr uint64
	versionMu  sync.Mutex
	stopCh     chan struct{}
	wg         sync.WaitGroup
	sweepEvery time.Duration
}

// NewRegistry constructs a Registry backed by store for durability across
// restarts. Pass nil maxLeases to use DefaultMaxLeases.
func NewRegistry(store statestore.Store, maxLeases map[coretypes.ResourceKind]int) *Registry {
	if maxLeases == nil {
		maxLeases = DefaultMaxLeases
	}
	return &Registry{
		entries:    make(map[string]*entry),
		byLeaseID:  make(map[string]string),
		maxLeases:  maxLeases,
		store:      store,
		stopCh:     make(chan struct{}),
		sweepEvery: defaultSweepInterval,
	}
}

// Start begins the background sweeper goroutine that purges expired
// in-memory entries. It never touches the state store directly — an
// expired lease simply stops blocking new Acquire calls; the durable row
// is cleaned up later by the reaper.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.sweepEvery)
		defer ticker.Stop()
		sweepLog := log.WithComponent("leases.sweeper")
		for {
			select {
			case <-ticker.C:
				n := r.sweep()
				if n > 0 {
					sweepLog.Debug().Int("reclaimed", n).Msg("swept expired leases")
				}
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the sweeper.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Registry) sweep() int {
	now := time.Now()
	r.mu.Lock()
	var expired []string
	for key, e := range r.entries {
		e.mu.Lock()
		dead := e.lease.Expired(now)
		e.mu.Unlock()
		if dead {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		if e, ok := r.entries[key]; ok {
			delete(r.byLeaseID, e.lease.LeaseID)
			delete(r.entries, key)
			metrics.LeaseExpiresTotal.WithLabelValues(string(e.lease.Kind)).Inc()
		}
	}
	r.mu.Unlock()
	return len(expired)
}

func (r *Registry) nextVersion() uint64 {
	r.versionMu.Lock()
	defer r.versionMu.Unlock()
	r.versionCtr++
	return r.versionCtr
}

// Acquire grants a new lease for (kind, resourceID) to holderID, or extends
// the existing lease if holderID already holds it (an idempotent
// re-acquire). Returns coreerr.Conflict if a different holder has a live
// lease, and coreerr.Capacity if the kind's cap is already full.
func (r *Registry) Acquire(kind coretypes.ResourceKind, resourceID, holderID string, ttl time.Duration) (coretypes.Lease, error) {
	if !kind.Valid() {
		return coretypes.Lease{}, coreerr.Validationf("unknown resource kind %q", kind)
	}
	key := coretypes.ResourceKey(kind, resourceID)

	r.mu.Lock()
	e, exists := r.entries[key]
	if !exists {
		if r.countKindLocked(kind) >= r.maxLeases[kind] {
			r.mu.Unlock()
			return coretypes.Lease{}, coreerr.Capacityf("lease capacity reached for kind %s", kind)
		}
		e = &entry{}
		r.entries[key] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	now := time.Now()
	if exists && !e.lease.Expired(now) {
		if e.lease.HolderID != holderID {
			holder := e.lease.HolderID
			e.mu.Unlock()
			metrics.LeaseAcquiresTotal.WithLabelValues(string(kind), "denied").Inc()
			return coretypes.Lease{}, coreerr.Conflictf("resource %s already leased by %s", resourceID, holder)
		}
		// Same holder re-acquiring: treat as an extend.
		e.lease.ExpiresAtEpochSecs = now.Add(ttl).Unix()
		e.lease.Version = r.nextVersion()
		lease := e.lease
		e.mu.Unlock()

		if err := r.persist(lease); err != nil {
			return coretypes.Lease{}, err
		}
		metrics.LeaseAcquiresTotal.WithLabelValues(string(kind), "granted").Inc()
		return lease, nil
	}

	oldLeaseID := e.lease.LeaseID
	e.lease = coretypes.Lease{
		LeaseID:            uuid.New().String(),
		ResourceID:         resourceID,
		Kind:               kind,
		HolderID:           holderID,
		ExpiresAtEpochSecs: now.Add(ttl).Unix(),
		Version:            r.nextVersion(),
	}
	lease := e.lease
	e.mu.Unlock()

	if err := r.persist(lease); err != nil {
		return coretypes.Lease{}, err
	}

	// byLeaseID bookkeeping is registry-wide, not per-entry, so it takes
	// r.mu on its own rather than nesting it inside the e.mu critical
	// section above — e.mu → r.mu would invert sweep's r.mu → e.mu order
	// and deadlock against the always-running sweeper.
	r.mu.Lock()
	if oldLeaseID != "" {
		delete(r.byLeaseID, oldLeaseID)
	}
	r.byLeaseID[lease.LeaseID] = key
	r.mu.Unlock()

	metrics.LeaseAcquiresTotal.WithLabelValues(string(kind), "granted").Inc()
	metrics.LeasesActive.WithLabelValues(string(kind)).Inc()
	return lease, nil
}

func (r *Registry) countKindLocked(kind coretypes.ResourceKind) int {
	n := 0
	for _, e := range r.entries {
		e.mu.Lock()
		if e.lease.Kind == kind {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Renew extends a held lease's TTL, bumping its version. Returns
// coreerr.Expired if the lease has already died but its entry is still in
// the table, and coreerr.NotFound once the sweeper or a newer Acquire of
// the same resource has removed it — either way renewal of a dead lease
// is terminal, the caller must re-Acquire.
func (r *Registry) Renew(leaseID string, ttl time.Duration) (coretypes.Lease, error) {
	r.mu.RLock()
	key, ok := r.byLeaseID[leaseID]
	r.mu.RUnlock()
	if !ok {
		return coretypes.Lease{}, coreerr.NotFoundf("lease %s not found", leaseID)
	}

	r.mu.RLock()
	e := r.entries[key]
	r.mu.RUnlock()
	if e == nil {
		return coretypes.Lease{}, coreerr.NotFoundf("lease %s not found", leaseID)
	}

	e.mu.Lock()
	if e.lease.Expired(time.Now()) {
		kind := e.lease.Kind
		e.mu.Unlock()
		metrics.LeaseRenewsTotal.WithLabelValues(string(kind), "expired").Inc()
		return coretypes.Lease{}, coreerr.Expiredf("lease %s expired", leaseID)
	}

	e.lease.ExpiresAtEpochSecs = time.Now().Add(ttl).Unix()
	e.lease.Version = r.nextVersion()
	lease := e.lease
	e.mu.Unlock()

	if err := r.persist(lease); err != nil {
		return coretypes.Lease{}, err
	}
	metrics.LeaseRenewsTotal.WithLabelValues(string(lease.Kind), "renewed").Inc()
	return lease, nil
}

// Release gives up a held lease immediately. Releasing an unknown or
// already-expired lease is a no-op success, matching idempotent-delete
// semantics used across the core.
func (r *Registry) Release(leaseID string) error {
	r.mu.Lock()
	key, ok := r.byLeaseID[leaseID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	e := r.entries[key]
	delete(r.byLeaseID, leaseID)
	delete(r.entries, key)
	r.mu.Unlock()

	if e == nil {
		return nil
	}
	e.mu.Lock()
	kind := e.lease.Kind
	e.mu.Unlock()

	if err := r.store.DeleteLease(leaseID); err != nil {
		return coreerr.Unavailablef(err, "delete lease %s from state store", leaseID)
	}
	metrics.LeasesActive.WithLabelValues(string(kind)).Dec()
	return nil
}

// Get returns the current lease by lease_id.
func (r *Registry) Get(leaseID string) (coretypes.Lease, error) {
	r.mu.RLock()
	key, ok := r.byLeaseID[leaseID]
	r.mu.RUnlock()
	if !ok {
		return coretypes.Lease{}, coreerr.NotFoundf("lease %s not found", leaseID)
	}
	r.mu.RLock()
	e := r.entries[key]
	r.mu.RUnlock()
	if e == nil {
		return coretypes.Lease{}, coreerr.NotFoundf("lease %s not found", leaseID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lease, nil
}

// List returns leases, optionally filtered by kind ("" for all) and
// holderID (nil for all), sorted is not guaranteed.
func (r *Registry) List(kind coretypes.ResourceKind, holderID *string) []coretypes.Lease {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []coretypes.Lease
	for _, e := range r.entries {
		e.mu.Lock()
		l := e.lease
		e.mu.Unlock()
		if kind != "" && l.Kind != kind {
			continue
		}
		if holderID != nil && l.HolderID != *holderID {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (r *Registry) persist(l coretypes.Lease) error {
	if err := r.store.PutLease(&l); err != nil {
		return coreerr.Unavailablef(err, "persist lease %s", l.LeaseID)
	}
	return nil
}

// LoadFromStore repopulates the in-memory table from the state store, used
// when a replica becomes leader and must rebuild its view of live leases
// from the last Raft snapshot/log.
func (r *Registry) LoadFromStore() error {
	leases, err := r.store.ListLeases("")
	if err != nil {
		return coreerr.Unavailablef(err, "load leases from state store")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range leases {
		key := coretypes.ResourceKey(l.Kind, l.ResourceID)
		r.entries[key] = &entry{lease: *l}
		r.byLeaseID[l.LeaseID] = key
		if l.Version > r.versionCtr {
			r.versionCtr = l.Version
		}
	}
	return nil
}
