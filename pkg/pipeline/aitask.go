package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
)

// Frame is one decoded video frame handed to a Plugin for inference.
// PixelData is left opaque (raw or encoded, per plugin contract); this
// core does no decoding of its own.
type Frame struct {
	SequenceNum uint64
	CapturedAt  time.Time
	PixelData   []byte
}

// Detection is one plugin inference result for a single Frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Plugin is the narrow capability set an AI task detector must
// implement: initialise once, process frames repeatedly, shut down once.
type Plugin interface {
	Initialise(config json.RawMessage) error
	Process(frame Frame) ([]Detection, error)
	Shutdown() error
}

// PluginFactory constructs a fresh, uninitialised Plugin instance.
type PluginFactory func() Plugin

// PluginRegistry is a process-wide table of available plugins keyed by
// identifier, consulted by the gateway at acquire time so an invalid
// plugin ID fails validation before a lease is ever taken.
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]PluginFactory
}

// NewPluginRegistry constructs an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{plugins: make(map[string]PluginFactory)}
}

// Register adds factory under id, overwriting any existing registration.
func (r *PluginRegistry) Register(id string, factory PluginFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[id] = factory
}

// Has reports whether id is a known plugin.
func (r *PluginRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[id]
	return ok
}

// New constructs a fresh Plugin instance for id.
func (r *PluginRegistry) New(id string) (Plugin, error) {
	r.mu.RLock()
	factory, ok := r.plugins[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q", id)
	}
	return factory(), nil
}

// NewDefaultPluginRegistry returns a registry pre-populated with the
// worked-example plugins (mock, motion).
func NewDefaultPluginRegistry() *PluginRegistry {
	reg := NewPluginRegistry()
	reg.Register("mock", func() Plugin { return &MockDetector{} })
	reg.Register("motion", func() Plugin { return &MotionDetector{} })
	return reg
}

// AiTaskConfig is the JSON-decoded body of a resource instance's Config
// for an AI task.
type AiTaskConfig struct {
	SourceKind coretypes.ResourceKind `json:"source_kind"`
	SourceID   string                 `json:"source_id"`
	PluginID   string                 `json:"plugin_id"`
	// PluginConfig is passed through verbatim to Plugin.Initialise.
	PluginConfig json.RawMessage `json:"plugin_config,omitempty"`
}

// AiTask is the SideEffect for KindAiTask: a frame consumer feeding a
// registry-selected Plugin, counting frames and detections into
// coretypes.AiTaskExtensions.
type AiTask struct {
	registry *PluginRegistry

	mu              sync.Mutex
	plugin          Plugin
	pluginID        string
	framesProcessed uint64
	detectionsTotal uint64

	exitCh chan error
	stopCh chan struct{}
}

// NewAiTask constructs an AiTask side effect backed by registry.
func NewAiTask(registry *PluginRegistry) *AiTask {
	return &AiTask{registry: registry, stopCh: make(chan struct{})}
}

func (a *AiTask) Launch(ctx context.Context, resourceID string, configJSON []byte) error {
	var cfg AiTaskConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return fmt.Errorf("decode ai task config: %w", err)
	}

	plugin, err := a.registry.New(cfg.PluginID)
	if err != nil {
		return err
	}
	if err := plugin.Initialise(cfg.PluginConfig); err != nil {
		return fmt.Errorf("initialise plugin %s: %w", cfg.PluginID, err)
	}

	a.mu.Lock()
	a.plugin = plugin
	a.pluginID = cfg.PluginID
	a.mu.Unlock()

	a.exitCh = make(chan error, 1)
	go a.consumeLoop()
	return nil
}

// consumeLoop stands in for the real frame source (a stream or
// recording's decoded output); it synthesizes frames on a fixed cadence
// so the control loop and metrics have something to drive against
// without depending on a live video pipeline being wired up.
func (a *AiTask) consumeLoop() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var seq uint64

	for {
		select {
		case <-a.stopCh:
			a.exitCh <- nil
			return
		case <-ticker.C:
			seq++
			a.mu.Lock()
			plugin := a.plugin
			a.mu.Unlock()

			detections, err := plugin.Process(Frame{SequenceNum: seq, CapturedAt: time.Now()})
			if err != nil {
				a.exitCh <- fmt.Errorf("plugin process: %w", err)
				return
			}

			a.mu.Lock()
			a.framesProcessed++
			a.detectionsTotal += uint64(len(detections))
			a.mu.Unlock()
		}
	}
}

func (a *AiTask) Wait(ctx context.Context) error {
	select {
	case err := <-a.exitCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AiTask) Stop(ctx context.Context) error {
	close(a.stopCh)
	select {
	case <-a.exitCh:
	case <-ctx.Done():
	}
	a.mu.Lock()
	plugin := a.plugin
	a.mu.Unlock()
	if plugin != nil {
		return plugin.Shutdown()
	}
	return nil
}

func (a *AiTask) Extensions() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	ext := coretypes.AiTaskExtensions{
		PluginID:        a.pluginID,
		FramesProcessed: a.framesProcessed,
		DetectionsTotal: a.detectionsTotal,
	}
	data, _ := json.Marshal(ext)
	return data
}
