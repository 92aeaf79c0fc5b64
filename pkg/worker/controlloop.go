package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/pipeline"
)

// coordinatorAPI is the subset of CoordinatorClient the control loop and
// managers depend on, narrowed to an interface so tests can substitute a
// fake without spinning up an HTTP server.
type coordinatorAPI interface {
	AcquireLease(kind coretypes.ResourceKind, resourceID, holderID string, ttl time.Duration) (coretypes.Lease, error)
	RenewLease(leaseID string, ttl time.Duration) (coretypes.Lease, error)
	ReleaseLease(leaseID string) error
	UpsertResource(inst *coretypes.ResourceInstance) error
	ListResourcesByHolder(nodeID string) ([]*coretypes.ResourceInstance, error)
}

const (
	renewMaxRetries    = 3
	renewBackoffBase   = 500 * time.Millisecond
	defaultDrainWindow = 10 * time.Second
)

// controlLoop owns one live resource instance end to end: it launches the
// side effect, renews the instance's lease at TTL/2 with bounded backoff,
// and tears the instance down on expiry, side-effect exit, or an explicit
// stop signal. Grounded on the original's stream supervise_loop, applied
// here to lease renewal instead of process restart.
type controlLoop struct {
	resourceID  string
	kind        coretypes.ResourceKind
	nodeID      string
	leaseID     string
	ttl         time.Duration
	drainWindow time.Duration
	state       coretypes.ResourceState

	sideEffect pipeline.SideEffect
	client     coordinatorAPI

	stopCh chan struct{}
	doneCh chan struct{}
}

func newControlLoop(kind coretypes.ResourceKind, resourceID, nodeID, leaseID string, ttl time.Duration, sideEffect pipeline.SideEffect, client coordinatorAPI) *controlLoop {
	return &controlLoop{
		resourceID:  resourceID,
		kind:        kind,
		nodeID:      nodeID,
		leaseID:     leaseID,
		ttl:         ttl,
		drainWindow: defaultDrainWindow,
		sideEffect:  sideEffect,
		client:      client,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// run drives the resource from Starting through to a terminal state. It
// returns only after the instance has reached Stopped or Error and the
// lease has been released, and closes doneCh so baseManager can reap the
// entry from its active map.
func (cl *controlLoop) run(ctx context.Context, configJSON []byte) {
	defer close(cl.doneCh)
	rlog := log.WithResourceID(string(cl.kind), cl.resourceID)

	now := time.Now()
	if cl.transition(coretypes.StateStarting) {
		if err := cl.client.UpsertResource(&coretypes.ResourceInstance{
			ResourceID:   cl.resourceID,
			Kind:         cl.kind,
			Config:       configJSON,
			State:        coretypes.StateStarting,
			HolderNodeID: &cl.nodeID,
			LeaseID:      &cl.leaseID,
			StartedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			rlog.Error().Err(err).Msg("failed to record starting state")
		}
	}

	if err := cl.sideEffect.Launch(ctx, cl.resourceID, configJSON); err != nil {
		rlog.Error().Err(err).Msg("side effect failed to launch")
		cl.teardown(coretypes.StateError, err.Error())
		return
	}

	if err := cl.markRunning(configJSON); err != nil {
		rlog.Error().Err(err).Msg("failed to record running state")
	}

	exitCh := make(chan error, 1)
	go func() { exitCh <- cl.sideEffect.Wait(ctx) }()

	renewTicker := time.NewTicker(cl.ttl / 2)
	defer renewTicker.Stop()

	for {
		select {
		case <-renewTicker.C:
			if err := cl.renewWithBackoff(); err != nil {
				rlog.Warn().Err(err).Msg("lease renewal exhausted retries, tearing down")
				cl.sideEffect.Stop(ctx)
				cl.teardown(coretypes.StateError, err.Error())
				return
			}

		case err := <-exitCh:
			msg := "side effect exited"
			if err != nil {
				msg = err.Error()
			}
			rlog.Warn().Err(err).Msg("side effect exited on its own")
			cl.teardown(coretypes.StateError, msg)
			return

		case <-cl.stopCh:
			drainCtx, cancel := context.WithTimeout(context.Background(), cl.drainWindow)
			cl.markStopping()
			if err := cl.sideEffect.Stop(drainCtx); err != nil {
				rlog.Warn().Err(err).Msg("side effect stop returned an error")
			}
			cancel()
			cl.teardown(coretypes.StateStopped, "")
			return
		}
	}
}

// transition reports whether moving from cl.state to to is a legal edge,
// logging and refusing the move otherwise. On success it advances cl.state
// so the next call is checked against the new state.
func (cl *controlLoop) transition(to coretypes.ResourceState) bool {
	if !coretypes.ValidTransition(cl.state, to) {
		rlog := log.WithResourceID(string(cl.kind), cl.resourceID)
		rlog.Error().
			Str("from", string(cl.state)).Str("to", string(to)).
			Msg("refusing illegal state transition")
		return false
	}
	cl.state = to
	return true
}

func (cl *controlLoop) markRunning(configJSON []byte) error {
	if !cl.transition(coretypes.StateRunning) {
		return nil
	}
	now := time.Now()
	return cl.client.UpsertResource(&coretypes.ResourceInstance{
		ResourceID:   cl.resourceID,
		Kind:         cl.kind,
		Config:       configJSON,
		State:        coretypes.StateRunning,
		HolderNodeID: &cl.nodeID,
		LeaseID:      &cl.leaseID,
		Extensions:   cl.sideEffect.Extensions(),
		UpdatedAt:    now,
	})
}

// markStopping records the drain-in-progress row required before a Running
// instance may reach Stopped; the holder and lease are kept through this
// state since the lease is only released once teardown completes.
func (cl *controlLoop) markStopping() {
	if !cl.transition(coretypes.StateStopping) {
		return
	}
	now := time.Now()
	if err := cl.client.UpsertResource(&coretypes.ResourceInstance{
		ResourceID:   cl.resourceID,
		Kind:         cl.kind,
		State:        coretypes.StateStopping,
		HolderNodeID: &cl.nodeID,
		LeaseID:      &cl.leaseID,
		Extensions:   cl.sideEffect.Extensions(),
		UpdatedAt:    now,
	}); err != nil {
		rlog := log.WithResourceID(string(cl.kind), cl.resourceID)
		rlog.Error().Err(err).Msg("failed to record stopping state")
	}
}

// renewWithBackoff retries lease renewal up to renewMaxRetries times with
// jittered exponential backoff, returning immediately (no retry) on
// coreerr.Expired or coreerr.NotFound since those are terminal for the
// lease.
func (cl *controlLoop) renewWithBackoff() error {
	backoff := renewBackoffBase
	var lastErr error
	for attempt := 0; attempt <= renewMaxRetries; attempt++ {
		_, err := cl.client.RenewLease(cl.leaseID, cl.ttl)
		if err == nil {
			return nil
		}
		lastErr = err
		code := coreerr.CodeOf(err)
		if code == coreerr.Expired || code == coreerr.NotFound {
			return err
		}
		if attempt == renewMaxRetries {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		time.Sleep(backoff + jitter)
		backoff *= 2
	}
	return lastErr
}

// teardown writes the terminal row and releases the lease. Stopped clears
// holder_node_id/lease_id since no one owns the resource anymore; Error
// keeps them as the last-known holder for diagnosis.
func (cl *controlLoop) teardown(state coretypes.ResourceState, lastError string) {
	cl.transition(state)
	now := time.Now()
	inst := &coretypes.ResourceInstance{
		ResourceID: cl.resourceID,
		Kind:       cl.kind,
		State:      state,
		Extensions: cl.sideEffect.Extensions(),
		UpdatedAt:  now,
		StoppedAt:  now,
	}
	if state == coretypes.StateError {
		inst.HolderNodeID = &cl.nodeID
		inst.LeaseID = &cl.leaseID
	}
	if lastError != "" {
		inst.LastError = &lastError
	}
	if err := cl.client.UpsertResource(inst); err != nil {
		rlog := log.WithResourceID(string(cl.kind), cl.resourceID)
		rlog.Error().Err(err).Msg("failed to record terminal state")
	}
	if err := cl.client.ReleaseLease(cl.leaseID); err != nil {
		rlog := log.WithResourceID(string(cl.kind), cl.resourceID)
		rlog.Error().Err(err).Msg("failed to release lease")
	}
}

// stop signals the control loop to drain and tear down, then blocks until
// it has finished (or ctx is done).
func (cl *controlLoop) stop(ctx context.Context) error {
	select {
	case <-cl.doneCh:
		return nil
	default:
	}
	close(cl.stopCh)
	select {
	case <-cl.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
