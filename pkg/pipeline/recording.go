package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/cuemby/vms/pkg/coretypes"
)

// RecordingConfig is the JSON-decoded body of a resource instance's
// Config for a recording.
type RecordingConfig struct {
	SourceURI       string `json:"source_uri"`
	Codec           string `json:"codec"`
	Container       string `json:"container"`
	PipelineCommand string `json:"pipeline_command,omitempty"`
	// ProbeCommand overrides the completion probe binary, empty means
	// "ffprobe".
	ProbeCommand string `json:"probe_command,omitempty"`
}

// Recording is the SideEffect for KindRecording: a long-lived capture
// process writing to <dataDir>/recordings/<resource_id>/, probed on
// completion to populate coretypes.RecordingExtensions.
type Recording struct {
	dataDir string

	mu         sync.Mutex
	resourceID string
	outputPath string
	cmd        *exec.Cmd
	waitDone   chan struct{}
	config     RecordingConfig
	extensions coretypes.RecordingExtensions

	exitCh chan error
}

// NewRecording constructs a Recording side effect rooted under dataDir.
func NewRecording(dataDir string) *Recording {
	return &Recording{dataDir: dataDir}
}

func (r *Recording) Launch(ctx context.Context, resourceID string, configJSON []byte) error {
	var cfg RecordingConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return fmt.Errorf("decode recording config: %w", err)
	}

	outputDir := filepath.Join(r.dataDir, "recordings", resourceID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ext := "mp4"
	if cfg.Container != "" {
		ext = cfg.Container
	}
	outputPath := filepath.Join(outputDir, "capture."+ext)

	bin := cfg.PipelineCommand
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, "-i", cfg.SourceURI, "-c:v", cfg.Codec, outputPath)
	waitDone := make(chan struct{})

	r.mu.Lock()
	r.resourceID = resourceID
	r.config = cfg
	r.outputPath = outputPath
	r.cmd = cmd
	r.waitDone = waitDone
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		close(waitDone)
		return fmt.Errorf("spawn capture process: %w", err)
	}

	r.exitCh = make(chan error, 1)
	go func() {
		waitErr := cmd.Wait()
		close(waitDone)
		if waitErr == nil {
			r.probe()
		}
		r.exitCh <- waitErr
	}()
	return nil
}

// probe runs a completion probe over the finished capture file and
// records its size, output path and configured codec in the extensions.
// The probe command's output is not parsed, so duration, resolution and
// fps are left unset.
func (r *Recording) probe() {
	r.mu.Lock()
	outputPath := r.outputPath
	probeBin := r.config.ProbeCommand
	r.mu.Unlock()
	if probeBin == "" {
		probeBin = "ffprobe"
	}

	info, statErr := os.Stat(outputPath)
	var sizeBytes int64
	if statErr == nil {
		sizeBytes = info.Size()
	}

	out, _ := exec.Command(probeBin, "-v", "error", "-show_entries",
		"format=duration:stream=codec_name,width,height,r_frame_rate",
		"-of", "json", outputPath).Output()

	r.mu.Lock()
	r.extensions = coretypes.RecordingExtensions{
		FileSizeBytes: sizeBytes,
		OutputPath:    outputPath,
		Codec:         r.config.Codec,
	}
	r.mu.Unlock()

	_ = out // probe output parsing is format-specific and left to the caller's telemetry pipeline
}

func (r *Recording) Wait(ctx context.Context) error {
	select {
	case err := <-r.exitCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals the capture process and waits for Launch's own cmd.Wait to
// observe the exit, rather than calling cmd.Wait itself: exec.Cmd.Wait
// must be called at most once per process, and that goroutine is already
// blocked in it (and runs probe() once it returns).
func (r *Recording) Stop(ctx context.Context) error {
	r.mu.Lock()
	cmd := r.cmd
	waitDone := r.waitDone
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		return cmd.Process.Kill()
	}

	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		return cmd.Process.Kill()
	}
}

func (r *Recording) Extensions() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, _ := json.Marshal(r.extensions)
	return data
}
