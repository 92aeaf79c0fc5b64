package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStream_LaunchThenStop(t *testing.T) {
	dir := t.TempDir()
	s := NewStream(dir)

	cfg := StreamConfig{
		SourceURI:       "rtsp://camera.local/stream",
		Codec:           "h264",
		Container:       "hls",
		PipelineCommand: "true",
	}
	cfgJSON, err := json.Marshal(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Launch(context.Background(), "res-1", cfgJSON))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStream_ExtensionsReflectConfig(t *testing.T) {
	dir := t.TempDir()
	s := NewStream(dir)

	cfg := StreamConfig{Codec: "h264", Container: "hls", PipelineCommand: "true"}
	cfgJSON, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Launch(context.Background(), "res-2", cfgJSON))

	var ext map[string]interface{}
	require.NoError(t, json.Unmarshal(s.Extensions(), &ext))
	require.Equal(t, "h264", ext["codec"])
	require.Equal(t, "hls", ext["container"])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.Stop(ctx)
}

func TestStream_LaunchRejectsBadConfig(t *testing.T) {
	s := NewStream(t.TempDir())
	err := s.Launch(context.Background(), "res-3", []byte("not json"))
	require.Error(t, err)
}
