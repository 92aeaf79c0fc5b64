// Package reaper runs the periodic sweep that correlates resource
// instance rows against the live lease registry and deletes orphans, on
// a ticker + run/sweep + stop-channel loop.
package reaper

import (
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/events"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// coordinatorAPI is the subset of the coordinator's surface the Reaper
// depends on, narrowed to an interface so tests can substitute a fake
// without standing up Raft.
type coordinatorAPI interface {
	IsLeader() bool
	ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error)
	GetLease(leaseID string) (coretypes.Lease, error)
	DeleteResource(kind coretypes.ResourceKind, resourceID string) error
	UpsertResource(inst *coretypes.ResourceInstance) error
}

// Reaper periodically deletes resource instance rows whose lease is gone
// and whose state has sat terminal past its kind's retention window.
// It runs on every replica but only acts while IsLeader reports true, so
// a demoted leader's in-flight ticker idles harmlessly rather than
// needing an explicit stop/restart dance across an election.
type Reaper struct {
	coordinator coordinatorAPI
	broker      *events.Broker
	cfg         Config
	stopCh      chan struct{}
}

// New constructs a Reaper bound to coordinator and broker. cfg is
// defaulted field-by-field via cfg.withDefaults.
func New(coordinator coordinatorAPI, broker *events.Broker, cfg Config) *Reaper {
	return &Reaper{
		coordinator: coordinator,
		broker:      broker,
		cfg:         cfg.withDefaults(),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (r *Reaper) Start() {
	go r.run()
}

// Stop stops the sweep loop.
func (r *Reaper) Stop() {
	close(r.stopCh)
}

func (r *Reaper) run() {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.coordinator.IsLeader() {
				continue
			}
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// sweep runs one reaping cycle across every resource kind, one goroutine
// per kind since each kind's rows are disjoint and DeleteResource calls
// never interleave across kinds.
func (r *Reaper) sweep() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReaperDuration)
	metrics.ReaperSweepsTotal.Inc()

	reaperLog := log.WithComponent("reaper")
	var g errgroup.Group
	for _, kind := range coretypes.Kinds() {
		kind := kind
		g.Go(func() error {
			n, err := r.sweepKind(kind)
			if err != nil {
				reaperLog.Error().Err(err).Str("kind", string(kind)).Msg("sweep failed")
				return nil
			}
			if n > 0 {
				metrics.ReaperReclaimedTotal.WithLabelValues(string(kind)).Add(float64(n))
				reaperLog.Info().Str("kind", string(kind)).Int("reclaimed", n).Msg("reaped orphaned resources")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// sweepKind reaps every deletable orphan of one kind and errors out every
// orphaned Starting/Running row of that kind — no live instance should
// outlive its lease by more than the grace window — returning the count
// of rows actually deleted.
func (r *Reaper) sweepKind(kind coretypes.ResourceKind) (int, error) {
	orphans, err := r.listOrphans(kind)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, inst := range orphans {
		switch {
		case r.deletable(kind, inst):
			if err := r.coordinator.DeleteResource(kind, inst.ResourceID); err != nil {
				rlog := log.WithComponent("reaper")
				rlog.Warn().Err(err).Str("resource_id", inst.ResourceID).Msg("failed to delete orphaned resource")
				continue
			}
			if r.broker != nil {
				r.broker.Publish(&events.Event{
					Type:    events.EventResourceReaped,
					Message: "reaped orphaned " + string(kind) + " " + inst.ResourceID,
					Metadata: map[string]string{
						"kind":        string(kind),
						"resource_id": inst.ResourceID,
					},
				})
			}
			reclaimed++
		case inst.State == coretypes.StateStarting || inst.State == coretypes.StateRunning:
			r.errorOrphan(kind, inst)
		}
	}
	return reclaimed, nil
}

// errorOrphan marks a Starting/Running row with no live lease past the
// grace window as Error, clearing its holder and lease so the Reaper's
// next pass can eventually delete it once it sits Error past retention.
// A worker restarting and finding the same row is not relied on here:
// that path (worker.RecoverOnStartup) only runs if a replacement worker
// actually comes back, and a permanently dead node never would.
func (r *Reaper) errorOrphan(kind coretypes.ResourceKind, inst *coretypes.ResourceInstance) {
	if !coretypes.ValidTransition(inst.State, coretypes.StateError) {
		rlog := log.WithComponent("reaper")
		rlog.Error().Str("resource_id", inst.ResourceID).
			Str("from", string(inst.State)).Msg("refusing illegal transition to error")
		return
	}
	lastError := "orphaned: lease gone past grace period"
	inst.State = coretypes.StateError
	inst.LastError = &lastError
	inst.HolderNodeID = nil
	inst.LeaseID = nil
	inst.UpdatedAt = time.Now()
	inst.StoppedAt = inst.UpdatedAt

	if err := r.coordinator.UpsertResource(inst); err != nil {
		rlog := log.WithComponent("reaper")
		rlog.Warn().Err(err).Str("resource_id", inst.ResourceID).Msg("failed to error orphaned instance")
		return
	}
	if r.broker != nil {
		r.broker.Publish(&events.Event{
			Type:    events.EventResourceStateChanged,
			Message: "errored orphaned " + string(kind) + " " + inst.ResourceID,
			Metadata: map[string]string{
				"kind":        string(kind),
				"resource_id": inst.ResourceID,
				"state":       string(coretypes.StateError),
			},
		})
	}
	rlog := log.WithComponent("reaper")
	rlog.Info().Str("resource_id", inst.ResourceID).Str("kind", string(kind)).Msg("marked orphaned live instance as errored")
}

// listOrphans returns every instance of kind whose lease_id has no
// matching active lease in the live registry and whose updated_at is
// older than the kind's grace period — the grace window exists to
// survive a brief leader election during which no live lease exists,
// per the invariant that a lease being momentarily unreachable must
// never be mistaken for a dead holder.
func (r *Reaper) listOrphans(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	insts, err := r.coordinator.ListResources(kind)
	if err != nil {
		return nil, err
	}

	grace := time.Duration(r.cfg.GraceSecs[kind]) * time.Second
	now := time.Now()

	var orphans []*coretypes.ResourceInstance
	for _, inst := range insts {
		if now.Sub(inst.UpdatedAt) < grace {
			continue
		}
		if r.hasLiveLease(inst.LeaseID) {
			continue
		}
		orphans = append(orphans, inst)
	}
	return orphans, nil
}

// hasLiveLease reports whether leaseID still names an active lease in
// the registry. listOrphans calls it once per row, after the grace
// filter; the lease is not looked up again before the row is deleted or
// marked Error.
func (r *Reaper) hasLiveLease(leaseID *string) bool {
	if leaseID == nil {
		return false
	}
	lease, err := r.coordinator.GetLease(*leaseID)
	if err != nil {
		return false
	}
	return !lease.Expired(time.Now())
}

// deletable reports whether an orphan may actually be deleted: only a
// terminal (Stopped/Error) row past its kind's retention window is
// removed. A Starting/Running orphan is never deleted here — sweepKind
// instead routes it through errorOrphan — and a Stopping orphan is left
// for its own control loop to finish draining.
func (r *Reaper) deletable(kind coretypes.ResourceKind, inst *coretypes.ResourceInstance) bool {
	if inst.State != coretypes.StateStopped && inst.State != coretypes.StateError {
		return false
	}
	retention := r.cfg.RetentionSecs[kind]
	return time.Since(inst.UpdatedAt) >= retention
}
