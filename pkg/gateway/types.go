package gateway

import "encoding/json"

// Request/response DTOs for the gateway's public HTTP surface, generalised
// across the three resource kinds. Field names double as the wire contract
// with pkg/pipeline's per-kind Config structs; this package defines its own
// copies rather than importing pkg/pipeline, keeping the wire schema's
// admin-gateway and stream-node crates both depend on a shared "common"
// crate instead of on each other.
const defaultLeaseTTLSecs = 30

// StreamStartRequest is the body of POST /streams.
type StreamStartRequest struct {
	ID        string `json:"id"`
	SourceURI string `json:"source_uri"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
	TTLSecs   int64  `json:"ttl_secs,omitempty"`
}

// RecordingStartRequest is the body of POST /recordings.
type RecordingStartRequest struct {
	ID        string `json:"id"`
	SourceURI string `json:"source_uri"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
	TTLSecs   int64  `json:"ttl_secs,omitempty"`
}

// AiTaskStartRequest is the body of POST /ai/tasks.
type AiTaskStartRequest struct {
	ID           string          `json:"id"`
	SourceKind   string          `json:"source_kind"`
	SourceID     string          `json:"source_id"`
	PluginID     string          `json:"plugin_id"`
	PluginConfig json.RawMessage `json:"plugin_config,omitempty"`
	TTLSecs      int64           `json:"ttl_secs,omitempty"`
}

// StartResponse is the response body for every POST start endpoint.
type StartResponse struct {
	Accepted bool   `json:"accepted"`
	LeaseID  string `json:"lease_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StopResponse is the response body for every DELETE stop endpoint.
type StopResponse struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}

// pipelineStreamConfig and friends are the JSON shape handed to the
// worker as the resource's opaque Config, matching pkg/pipeline's
// StreamConfig/RecordingConfig/AiTaskConfig field tags exactly.
type pipelineStreamConfig struct {
	SourceURI string `json:"source_uri"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
}

type pipelineRecordingConfig struct {
	SourceURI string `json:"source_uri"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
}

type pipelineAiTaskConfig struct {
	SourceKind   string          `json:"source_kind"`
	SourceID     string          `json:"source_id"`
	PluginID     string          `json:"plugin_id"`
	PluginConfig json.RawMessage `json:"plugin_config,omitempty"`
}
