// Package coretypes defines the core data structures shared by the lease
// registry, state store, coordinator, gateway, and worker runtime.
package coretypes

import (
	"encoding/json"
	"time"
)

// ResourceKind is one of the three resource types the core recognises.
type ResourceKind string

const (
	KindStream    ResourceKind = "stream"
	KindRecording ResourceKind = "recording"
	KindAiTask    ResourceKind = "ai_task"
)

// Kinds returns the closed set of resource kinds, in a stable order.
func Kinds() []ResourceKind {
	return []ResourceKind{KindStream, KindRecording, KindAiTask}
}

func (k ResourceKind) Valid() bool {
	switch k {
	case KindStream, KindRecording, KindAiTask:
		return true
	default:
		return false
	}
}

// Lease is the unit of exclusive ownership over a (kind, resource_id) pair.
type Lease struct {
	LeaseID            string       `json:"lease_id"`
	ResourceID         string       `json:"resource_id"`
	Kind               ResourceKind `json:"kind"`
	HolderID           string       `json:"holder_id"`
	ExpiresAtEpochSecs int64        `json:"expires_at_epoch_secs"`
	Version            uint64       `json:"version"`
}

// Expired reports whether the lease is dead as of now.
func (l Lease) Expired(now time.Time) bool {
	return l.ExpiresAtEpochSecs <= now.Unix()
}

// ResourceKey identifies a lease/resource pair independent of lease_id.
func ResourceKey(kind ResourceKind, resourceID string) string {
	return string(kind) + "/" + resourceID
}

// ResourceState is a node in the shared worker state machine.
type ResourceState string

const (
	StatePending  ResourceState = "pending"
	StateStarting ResourceState = "starting"
	StateRunning  ResourceState = "running"
	StateStopping ResourceState = "stopping"
	StateStopped  ResourceState = "stopped"
	StateError    ResourceState = "error"
)

// ValidTransition reports whether the state machine in the worker runtime
// design permits moving from `from` to `to`. The zero value of `from`
// ("") is a synonym for a brand new instance starting out.
func ValidTransition(from, to ResourceState) bool {
	if from == "" {
		from = StatePending
	}
	allowed := map[ResourceState][]ResourceState{
		StatePending:  {StateStarting, StateError},
		StateStarting: {StateRunning, StateError},
		StateRunning:  {StateStopping, StateError},
		StateStopping: {StateStopped, StateError},
		StateStopped:  {},
		StateError:    {},
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ResourceInstance is the durable record for one (kind, resource_id),
// independent of whether any worker currently owns it.
type ResourceInstance struct {
	ResourceID string       `json:"resource_id"`
	Kind       ResourceKind `json:"kind"`

	// Config is the kind-specific, opaque-to-the-core configuration supplied
	// at start time (source URI, output format, retention, plugin config...).
	Config json.RawMessage `json:"config,omitempty"`

	State        ResourceState `json:"state"`
	HolderNodeID *string       `json:"holder_node_id,omitempty"`
	LeaseID      *string       `json:"lease_id,omitempty"`
	LastError    *string       `json:"last_error,omitempty"`

	// Extensions holds kind-specific progress/metadata: codec, resolution,
	// file size, frames processed, detection counters, etc.
	Extensions json.RawMessage `json:"extensions,omitempty"`

	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the (kind, resource_id) identity used as a map/bucket key.
func (r ResourceInstance) Key() string {
	return ResourceKey(r.Kind, r.ResourceID)
}

// IsLive reports whether the instance is in a state that requires an
// active lease: Starting, Running, or Stopping.
func (r ResourceInstance) IsLive() bool {
	switch r.State {
	case StateStarting, StateRunning, StateStopping:
		return true
	default:
		return false
	}
}

// StreamExtensions is the Extensions payload for a Stream instance.
type StreamExtensions struct {
	Codec        string `json:"codec,omitempty"`
	Container    string `json:"container,omitempty"`
	RestartCount int    `json:"restart_count,omitempty"`
	OutputDir    string `json:"output_dir,omitempty"`
}

// RecordingExtensions is the Extensions payload for a Recording instance,
// populated by the completion probe once the capture stops.
type RecordingExtensions struct {
	DurationSecs  float64 `json:"duration_secs,omitempty"`
	Resolution    string  `json:"resolution,omitempty"`
	Codec         string  `json:"codec,omitempty"`
	FileSizeBytes int64   `json:"file_size_bytes,omitempty"`
	FPS           float64 `json:"fps,omitempty"`
	OutputPath    string  `json:"output_path,omitempty"`
}

// AiTaskExtensions is the Extensions payload for an AiTask instance.
type AiTaskExtensions struct {
	PluginID        string `json:"plugin_id,omitempty"`
	FramesProcessed uint64 `json:"frames_processed,omitempty"`
	DetectionsTotal uint64 `json:"detections_total,omitempty"`
}

// NodeInfo identifies a worker or coordinator replica for bootstrap and
// placement purposes. It intentionally carries far less than a full
// scheduler's node model: this core does not do resource-aware placement.
type NodeInfo struct {
	ID       string            `json:"id"`
	Address  string            `json:"address"`
	Kinds    []ResourceKind    `json:"kinds"`
	Labels   map[string]string `json:"labels,omitempty"`
	LastSeen time.Time         `json:"last_seen"`
}
