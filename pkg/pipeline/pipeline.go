// Package pipeline implements the per-kind side effects a worker's
// control loop supervises: a transcoding pipeline for streams, a capture
// process for recordings, and a plugin-driven frame consumer for AI
// tasks. All three satisfy SideEffect so the control loop in pkg/worker
// can drive them identically.
package pipeline

import (
	"context"

	"github.com/cuemby/vms/pkg/coretypes"
)

// SideEffect is the worker-visible handle to a running pipeline,
// capture process, or AI task consumer. Launch starts the side effect in
// the background; Wait blocks until it exits (cleanly or not), returning
// the reason; Stop requests a cooperative shutdown.
type SideEffect interface {
	// Launch starts the side effect for resourceID. It returns once the
	// effect has been started (process spawned or plugin initialised),
	// without waiting for output, or an error if it could not be started
	// at all.
	Launch(ctx context.Context, resourceID string, config []byte) error

	// Wait blocks until the side effect exits, returning the error its
	// exit produced (ctx.Err() if ctx ends first); any non-nil return
	// value is treated by the caller as an abnormal exit warranting
	// Error/restart handling.
	Wait(ctx context.Context) error

	// Stop requests the side effect drain and exit within the given
	// context's deadline, then force-terminates if it has not.
	Stop(ctx context.Context) error

	// Extensions returns the current kind-specific progress/metadata
	// payload to merge into the resource instance's Extensions field.
	Extensions() []byte
}

// Factory constructs a new, unstarted SideEffect for kind, rooted under
// dataDir. Each call returns an independent instance — one per resource.
type Factory func(dataDir string, kind coretypes.ResourceKind) SideEffect
