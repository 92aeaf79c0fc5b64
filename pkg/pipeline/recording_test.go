package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecording_LaunchAndWaitCompletes(t *testing.T) {
	dir := t.TempDir()
	r := NewRecording(dir)

	cfg := RecordingConfig{
		SourceURI:       "rtsp://camera.local/stream",
		Codec:           "h264",
		Container:       "mp4",
		PipelineCommand: "true",
		ProbeCommand:    "true",
	}
	cfgJSON, err := json.Marshal(cfg)
	require.NoError(t, err)

	require.NoError(t, r.Launch(context.Background(), "res-1", cfgJSON))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))

	var ext map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Extensions(), &ext))
	require.Equal(t, "h264", ext["codec"])
	require.NotEmpty(t, ext["output_path"])
}

func TestRecording_LaunchRejectsBadConfig(t *testing.T) {
	r := NewRecording(t.TempDir())
	err := r.Launch(context.Background(), "res-2", []byte("not json"))
	require.Error(t, err)
}
