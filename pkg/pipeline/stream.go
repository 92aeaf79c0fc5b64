package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/log"
)

// StreamConfig is the JSON-decoded body of a resource instance's Config
// for a stream.
type StreamConfig struct {
	SourceURI string `json:"source_uri"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
	// PipelineCommand overrides the external transcoder binary, so tests
	// can substitute a fake. Empty means "ffmpeg".
	PipelineCommand string `json:"pipeline_command,omitempty"`
}

const (
	streamMaxRestarts     = 5
	streamBackoffStart    = 2 * time.Second
	streamBackoffMax      = 60 * time.Second
	streamStableRunWindow = 60 * time.Second
)

// Stream is the SideEffect for KindStream: a supervised external
// transcoding process writing a segmented HLS-shaped tree to
// <dataDir>/streams/<resource_id>/.
type Stream struct {
	dataDir string

	mu           sync.Mutex
	resourceID   string
	outputDir    string
	cmd          *exec.Cmd
	waitDone     chan struct{}
	config       StreamConfig
	restartCount int

	exitCh chan error
	stopCh chan struct{}
}

// NewStream constructs a Stream side effect rooted under dataDir.
func NewStream(dataDir string) *Stream {
	return &Stream{dataDir: dataDir, stopCh: make(chan struct{})}
}

func (s *Stream) Launch(ctx context.Context, resourceID string, configJSON []byte) error {
	var cfg StreamConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return fmt.Errorf("decode stream config: %w", err)
	}

	s.mu.Lock()
	s.resourceID = resourceID
	s.config = cfg
	s.outputDir = filepath.Join(s.dataDir, "streams", resourceID)
	s.mu.Unlock()

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	s.exitCh = make(chan error, 1)
	go s.superviseLoop()
	return nil
}

func (s *Stream) command() *exec.Cmd {
	bin := s.config.PipelineCommand
	if bin == "" {
		bin = "ffmpeg"
	}
	playlist := filepath.Join(s.outputDir, "index.m3u8")
	segment := filepath.Join(s.outputDir, "segment_%05d.ts")
	args := []string{
		"-i", s.config.SourceURI,
		"-c:v", s.config.Codec,
		"-f", "hls",
		"-hls_segment_filename", segment,
		playlist,
	}
	return exec.Command(bin, args...)
}

// superviseLoop launches the transcoder and restarts it on abnormal exit
// up to streamMaxRestarts times with exponential backoff, resetting the
// counter after a sustained Running interval.
func (s *Stream) superviseLoop() {
	s.mu.Lock()
	resourceID := s.resourceID
	s.mu.Unlock()

	streamLog := log.WithResourceID(string(coretypes.KindStream), resourceID)
	backoff := streamBackoffStart

	for {
		cmd := s.command()
		startedAt := time.Now()
		waitDone := make(chan struct{})

		s.mu.Lock()
		s.cmd = cmd
		s.waitDone = waitDone
		s.mu.Unlock()

		if err := cmd.Start(); err != nil {
			close(waitDone)
			s.exitCh <- fmt.Errorf("spawn pipeline: %w", err)
			return
		}

		waitErr := cmd.Wait()
		close(waitDone)

		select {
		case <-s.stopCh:
			s.exitCh <- nil
			return
		default:
		}

		if time.Since(startedAt) >= streamStableRunWindow {
			s.mu.Lock()
			s.restartCount = 0
			s.mu.Unlock()
			backoff = streamBackoffStart
		}

		s.mu.Lock()
		s.restartCount++
		attempt := s.restartCount
		s.mu.Unlock()

		if attempt > streamMaxRestarts {
			s.exitCh <- fmt.Errorf("pipeline exited %d times, giving up: %w", attempt, waitErr)
			return
		}

		streamLog.Warn().Err(waitErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("pipeline exited abnormally, restarting")
		time.Sleep(backoff)
		backoff *= 2
		if backoff > streamBackoffMax {
			backoff = streamBackoffMax
		}
	}
}

func (s *Stream) Wait(ctx context.Context) error {
	select {
	case err := <-s.exitCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop signals the transcoder and waits for superviseLoop's own cmd.Wait
// to observe the exit, rather than calling cmd.Wait itself: exec.Cmd.Wait
// must be called at most once per process, and superviseLoop is already
// blocked in it. waitDone is a close-once signal separate from exitCh so
// Stop doesn't race Wait's caller for the single buffered exitCh value.
func (s *Stream) Stop(ctx context.Context) error {
	close(s.stopCh)

	s.mu.Lock()
	cmd := s.cmd
	waitDone := s.waitDone
	s.mu.Unlock()

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

func (s *Stream) Extensions() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := coretypes.StreamExtensions{
		Codec:        s.config.Codec,
		Container:    s.config.Container,
		RestartCount: s.restartCount,
		OutputDir:    s.outputDir,
	}
	data, _ := json.Marshal(ext)
	return data
}
