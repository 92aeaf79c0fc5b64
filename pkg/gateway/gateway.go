package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/pipeline"
)

// Config holds the configuration needed to construct a Gateway.
type Config struct {
	CoordinatorAddr string
	Workers         []WorkerEndpoint
	DefaultLeaseTTL time.Duration
	DrainTimeout    time.Duration
}

// Gateway is a stateless orchestration facade: it holds no resource
// state of its own beyond the coordinator's and workers', and can be
// restarted at any point without losing anything the coordinator
// doesn't already know.
type Gateway struct {
	coordinator  coordinatorAPI
	workers      *WorkerPool
	leaseTTL     time.Duration
	drainTimeout time.Duration
}

const defaultDrainTimeout = 10 * time.Second

// New constructs a Gateway from cfg.
func New(cfg *Config) *Gateway {
	ttl := cfg.DefaultLeaseTTL
	if ttl == 0 {
		ttl = defaultLeaseTTLSecs * time.Second
	}
	drain := cfg.DrainTimeout
	if drain == 0 {
		drain = defaultDrainTimeout
	}
	return &Gateway{
		coordinator:  NewCoordinatorClient(cfg.CoordinatorAddr),
		workers:      NewWorkerPool(cfg.Workers),
		leaseTTL:     ttl,
		drainTimeout: drain,
	}
}

// StartStream validates and starts a stream resource: acquire a lease,
// upsert the row as Starting, dispatch to a worker, and on worker
// failure release the lease and mark the row Error.
func (g *Gateway) StartStream(ctx context.Context, req StreamStartRequest) (StartResponse, error) {
	if err := ValidateResourceID(req.ID); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateSourceURI(req.SourceURI); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateName(req.Codec, "codec"); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateName(req.Container, "container"); err != nil {
		return StartResponse{}, err
	}

	configJSON, err := json.Marshal(pipelineStreamConfig{
		SourceURI: req.SourceURI,
		Codec:     req.Codec,
		Container: req.Container,
	})
	if err != nil {
		return StartResponse{}, err
	}

	ttl := g.ttlFor(req.TTLSecs)
	return g.start(ctx, coretypes.KindStream, req.ID, configJSON, ttl)
}

// StartRecording validates and starts a recording resource.
func (g *Gateway) StartRecording(ctx context.Context, req RecordingStartRequest) (StartResponse, error) {
	if err := ValidateResourceID(req.ID); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateSourceURI(req.SourceURI); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateName(req.Codec, "codec"); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateName(req.Container, "container"); err != nil {
		return StartResponse{}, err
	}

	configJSON, err := json.Marshal(pipelineRecordingConfig{
		SourceURI: req.SourceURI,
		Codec:     req.Codec,
		Container: req.Container,
	})
	if err != nil {
		return StartResponse{}, err
	}

	ttl := g.ttlFor(req.TTLSecs)
	return g.start(ctx, coretypes.KindRecording, req.ID, configJSON, ttl)
}

// StartAiTask validates and starts an AI task resource.
func (g *Gateway) StartAiTask(ctx context.Context, req AiTaskStartRequest) (StartResponse, error) {
	if err := ValidateResourceID(req.ID); err != nil {
		return StartResponse{}, err
	}
	if err := ValidateResourceID(req.SourceID); err != nil {
		return StartResponse{}, err
	}
	if err := ValidatePluginID(req.PluginID); err != nil {
		return StartResponse{}, err
	}
	sourceKind := coretypes.ResourceKind(req.SourceKind)
	if !sourceKind.Valid() {
		return StartResponse{}, coreerr.Validationf("source_kind %q is not a recognised resource kind", req.SourceKind)
	}
	if !pipeline.NewDefaultPluginRegistry().Has(req.PluginID) {
		return StartResponse{}, coreerr.Validationf("plugin id %q is not a registered plugin", req.PluginID)
	}

	configJSON, err := json.Marshal(pipelineAiTaskConfig{
		SourceKind:   req.SourceKind,
		SourceID:     req.SourceID,
		PluginID:     req.PluginID,
		PluginConfig: req.PluginConfig,
	})
	if err != nil {
		return StartResponse{}, err
	}

	ttl := g.ttlFor(req.TTLSecs)
	return g.start(ctx, coretypes.KindAiTask, req.ID, configJSON, ttl)
}

func (g *Gateway) ttlFor(requested int64) time.Duration {
	if requested <= 0 {
		return g.leaseTTL
	}
	return time.Duration(requested) * time.Second
}

// start implements the shared acquire/upsert/dispatch path for all three
// kinds. An already-active instance is treated as an idempotent success
// rather than a conflict, matching routes.rs's existing.state.is_active()
// short-circuit.
func (g *Gateway) start(ctx context.Context, kind coretypes.ResourceKind, resourceID string, configJSON []byte, ttl time.Duration) (StartResponse, error) {
	gwlog := log.WithComponent("gateway").With().Str("resource_id", resourceID).Str("kind", string(kind)).Logger()

	if existing, err := g.coordinator.GetResource(kind, resourceID); err == nil && existing.IsLive() {
		leaseID := ""
		if existing.LeaseID != nil {
			leaseID = *existing.LeaseID
		}
		return StartResponse{Accepted: false, LeaseID: leaseID, Message: "resource already active"}, nil
	}

	endpoint, err := g.workers.Next()
	if err != nil {
		return StartResponse{}, err
	}

	lease, err := g.coordinator.AcquireLease(kind, resourceID, endpoint.NodeID, ttl)
	if err != nil {
		return StartResponse{}, err
	}

	now := time.Now()
	inst := &coretypes.ResourceInstance{
		ResourceID:   resourceID,
		Kind:         kind,
		Config:       json.RawMessage(configJSON),
		State:        coretypes.StateStarting,
		HolderNodeID: &endpoint.NodeID,
		LeaseID:      &lease.LeaseID,
		StartedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.coordinator.UpsertResource(inst); err != nil {
		_ = g.coordinator.ReleaseLease(lease.LeaseID)
		return StartResponse{}, err
	}

	if err := endpoint.Client.Start(ctx, kind, resourceID, configJSON); err != nil {
		_ = g.coordinator.ReleaseLease(lease.LeaseID)
		lastErr := err.Error()
		inst.State = coretypes.StateError
		inst.LastError = &lastErr
		inst.UpdatedAt = time.Now()
		if upsertErr := g.coordinator.UpsertResource(inst); upsertErr != nil {
			gwlog.Error().Err(upsertErr).Msg("failed to mark resource as errored after worker dispatch failure")
		}
		return StartResponse{}, err
	}

	gwlog.Info().Str("lease_id", lease.LeaseID).Str("worker", endpoint.NodeID).Msg("resource start accepted")
	return StartResponse{Accepted: true, LeaseID: lease.LeaseID}, nil
}

// StopStream, StopRecording, and StopAiTask all share the generic stop
// path; kind only matters for the worker dispatch URL and instance lookup.
func (g *Gateway) StopStream(ctx context.Context, id string) (StopResponse, error) {
	return g.stop(ctx, coretypes.KindStream, id)
}

func (g *Gateway) StopRecording(ctx context.Context, id string) (StopResponse, error) {
	return g.stop(ctx, coretypes.KindRecording, id)
}

func (g *Gateway) StopAiTask(ctx context.Context, id string) (StopResponse, error) {
	return g.stop(ctx, coretypes.KindAiTask, id)
}

// stop is idempotent: a no-op on a missing or already-Stopped
// resource, otherwise it records Stopping, dispatches a bounded-timeout
// drain to the worker, releases the lease, and finally marks the row
// Stopped with holder_node_id/lease_id cleared.
func (g *Gateway) stop(ctx context.Context, kind coretypes.ResourceKind, resourceID string) (StopResponse, error) {
	if err := ValidateResourceID(resourceID); err != nil {
		return StopResponse{}, err
	}

	inst, err := g.coordinator.GetResource(kind, resourceID)
	if err != nil {
		if coreerr.CodeOf(err) == coreerr.NotFound {
			return StopResponse{Stopped: true, Message: "resource had no active instance"}, nil
		}
		return StopResponse{}, err
	}
	if inst.State == coretypes.StateStopped {
		return StopResponse{Stopped: true}, nil
	}

	gwlog := log.WithComponent("gateway").With().Str("resource_id", resourceID).Str("kind", string(kind)).Logger()

	if coretypes.ValidTransition(inst.State, coretypes.StateStopping) {
		stopping := *inst
		stopping.State = coretypes.StateStopping
		stopping.UpdatedAt = time.Now()
		if err := g.coordinator.UpsertResource(&stopping); err != nil {
			gwlog.Warn().Err(err).Msg("failed to record stopping state")
		} else {
			inst.State = coretypes.StateStopping
		}
	} else {
		gwlog.Error().Str("from", string(inst.State)).Msg("refusing illegal transition to stopping")
	}

	if inst.HolderNodeID != nil {
		endpoint, err := g.workers.ByNodeID(*inst.HolderNodeID)
		if err == nil {
			drainCtx, cancel := context.WithTimeout(ctx, g.drainTimeout)
			stopErr := endpoint.Client.Stop(drainCtx, kind, resourceID)
			cancel()
			if stopErr != nil {
				gwlog.Warn().Err(stopErr).Msg("worker stop dispatch failed, releasing lease anyway")
			}
		}
	}

	if inst.LeaseID != nil {
		if err := g.coordinator.ReleaseLease(*inst.LeaseID); err != nil {
			gwlog.Warn().Err(err).Msg("failed to release lease on stop")
		}
	}

	now := time.Now()
	if coretypes.ValidTransition(inst.State, coretypes.StateStopped) {
		inst.State = coretypes.StateStopped
	} else {
		gwlog.Warn().Str("from", string(inst.State)).Msg("resource already in a terminal state, clearing lease without changing state")
	}
	inst.HolderNodeID = nil
	inst.LeaseID = nil
	inst.StoppedAt = now
	inst.UpdatedAt = now
	if err := g.coordinator.UpsertResource(inst); err != nil {
		return StopResponse{}, err
	}

	return StopResponse{Stopped: true}, nil
}

// GetResource reads a single instance by kind and ID.
func (g *Gateway) GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error) {
	return g.coordinator.GetResource(kind, resourceID)
}

// ListResources reads every instance of kind.
func (g *Gateway) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	return g.coordinator.ListResources(kind)
}

// Bootstrap runs once at gateway startup: it confirms every resource row
// still held by a known-live worker is left alone (the worker itself
// restores or errors it per its own RecoverOnStartup), and logs anything
// held by a worker no longer in the pool so an operator can investigate.
// It drops and restarts nothing on its own.
func (g *Gateway) Bootstrap(ctx context.Context) error {
	liveNodes := make(map[string]bool)
	for _, id := range g.workers.NodeIDs() {
		liveNodes[id] = true
	}

	gwlog := log.WithComponent("gateway")
	for _, kind := range coretypes.Kinds() {
		insts, err := g.coordinator.ListResources(kind)
		if err != nil {
			return err
		}
		for _, inst := range insts {
			if !inst.IsLive() {
				continue
			}
			if inst.HolderNodeID == nil || !liveNodes[*inst.HolderNodeID] {
				holder := "<none>"
				if inst.HolderNodeID != nil {
					holder = *inst.HolderNodeID
				}
				gwlog.Warn().Str("resource_id", inst.ResourceID).Str("kind", string(kind)).Str("holder", holder).Msg("live resource held by unknown worker at bootstrap")
			}
		}
	}
	return nil
}
