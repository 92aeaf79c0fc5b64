package worker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestWorker assembles a Worker directly from fakeCoordinator-backed
// managers, the same construction fakeSideEffect factory manager_test.go
// uses, so DispatchHandler/WithdrawHandler/LoadHandler can be exercised
// over real HTTP without a pipeline.SideEffect touching the filesystem
// or an external process.
func newTestWorker(fc *fakeCoordinator) *Worker {
	fakeFactory := func(dataDir string, kind coretypes.ResourceKind) pipeline.SideEffect { return newFakeSideEffect() }
	return &Worker{
		nodeID:     "node-a",
		client:     fc,
		streams:    &StreamManager{newBaseManager(coretypes.KindStream, "node-a", 2, 10*time.Second, fc, "", fakeFactory)},
		recordings: &RecordingManager{newBaseManager(coretypes.KindRecording, "node-a", 2, 10*time.Second, fc, "", fakeFactory)},
		aiTasks:    &AiTaskManager{newBaseManager(coretypes.KindAiTask, "node-a", 2, 10*time.Second, fc, "", fakeFactory)},
	}
}

func TestDispatchHandlerStartsResource(t *testing.T) {
	fc := newFakeCoordinator()
	w := newTestWorker(fc)
	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/internal/resources/stream/cam-1", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return w.streams.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestDispatchHandlerUnknownKindIsBadRequest(t *testing.T) {
	fc := newFakeCoordinator()
	w := newTestWorker(fc)
	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/internal/resources/bogus/cam-1", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWithdrawHandlerStopsResource(t *testing.T) {
	fc := newFakeCoordinator()
	w := newTestWorker(fc)
	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	require.NoError(t, w.Dispatch(coretypes.KindRecording, "rec-1", []byte(`{}`)))
	require.Eventually(t, func() bool { return w.recordings.Count() == 1 }, time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/internal/resources/recording/rec-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return w.recordings.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWithdrawHandlerUnknownResourceIsNoOp(t *testing.T) {
	fc := newFakeCoordinator()
	w := newTestWorker(fc)
	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/internal/resources/stream/does-not-exist", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoadHandlerReportsPerKindCounts(t *testing.T) {
	fc := newFakeCoordinator()
	w := newTestWorker(fc)
	mux := http.NewServeMux()
	w.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	require.NoError(t, w.Dispatch(coretypes.KindAiTask, "task-1", []byte(`{}`)))
	require.Eventually(t, func() bool { return w.aiTasks.Count() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/internal/load")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var load map[coretypes.ResourceKind]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&load))
	assert.Equal(t, 1, load[coretypes.KindAiTask])
	assert.Equal(t, 0, load[coretypes.KindStream])
}
