package worker

import (
	"context"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/pipeline"
)

// Config holds the configuration needed to construct a Worker.
type Config struct {
	NodeID          string
	DataDir         string
	CoordinatorAddr string

	MaxConcurrentStreams    int
	MaxConcurrentRecordings int
	MaxConcurrentAiTasks    int

	// PluginRegistry defaults to pipeline.NewDefaultPluginRegistry if nil.
	PluginRegistry *pipeline.PluginRegistry
}

// Worker is one node's runtime for all three resource kinds, dispatching
// to a kind-specific manager that owns the bounded map and control loops.
type Worker struct {
	nodeID string
	client coordinatorAPI

	streams    *StreamManager
	recordings *RecordingManager
	aiTasks    *AiTaskManager
}

// New constructs a Worker from cfg. Call RecoverOnStartup before serving
// traffic so orphaned instances from a previous crash are cleaned up.
func New(cfg *Config) *Worker {
	registry := cfg.PluginRegistry
	if registry == nil {
		registry = pipeline.NewDefaultPluginRegistry()
	}
	client := NewCoordinatorClient(cfg.CoordinatorAddr)

	return &Worker{
		nodeID:     cfg.NodeID,
		client:     client,
		streams:    NewStreamManager(cfg.NodeID, cfg.DataDir, client, cfg.MaxConcurrentStreams),
		recordings: NewRecordingManager(cfg.NodeID, cfg.DataDir, client, cfg.MaxConcurrentRecordings),
		aiTasks:    NewAiTaskManager(cfg.NodeID, registry, client, cfg.MaxConcurrentAiTasks),
	}
}

// Dispatch starts a resource of kind on this worker.
func (w *Worker) Dispatch(kind coretypes.ResourceKind, resourceID string, configJSON []byte) error {
	switch kind {
	case coretypes.KindStream:
		return w.streams.Start(resourceID, configJSON)
	case coretypes.KindRecording:
		return w.recordings.Start(resourceID, configJSON)
	case coretypes.KindAiTask:
		return w.aiTasks.Start(resourceID, configJSON)
	default:
		return coreerr.Validationf("unknown resource kind %q", kind)
	}
}

// Withdraw stops a resource of kind on this worker. A resourceID this
// worker isn't running is a no-op success.
func (w *Worker) Withdraw(ctx context.Context, kind coretypes.ResourceKind, resourceID string) error {
	switch kind {
	case coretypes.KindStream:
		return w.streams.Stop(ctx, resourceID)
	case coretypes.KindRecording:
		return w.recordings.Stop(ctx, resourceID)
	case coretypes.KindAiTask:
		return w.aiTasks.Stop(ctx, resourceID)
	default:
		return coreerr.Validationf("unknown resource kind %q", kind)
	}
}

// Load reports the current resource count per kind, served by
// LoadHandler.
func (w *Worker) Load() map[coretypes.ResourceKind]int {
	return map[coretypes.ResourceKind]int{
		coretypes.KindStream:    w.streams.Count(),
		coretypes.KindRecording: w.recordings.Count(),
		coretypes.KindAiTask:    w.aiTasks.Count(),
	}
}

