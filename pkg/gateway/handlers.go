package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
)

// RegisterRoutes wires every HTTP handler the gateway exposes onto mux.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /streams", g.handleStart(coretypes.KindStream))
	mux.HandleFunc("DELETE /streams/{id}", g.handleStop(coretypes.KindStream))
	mux.HandleFunc("GET /streams", g.handleList(coretypes.KindStream))
	mux.HandleFunc("GET /streams/{id}", g.handleGet(coretypes.KindStream))

	mux.HandleFunc("POST /recordings", g.handleStart(coretypes.KindRecording))
	mux.HandleFunc("DELETE /recordings/{id}", g.handleStop(coretypes.KindRecording))
	mux.HandleFunc("GET /recordings", g.handleList(coretypes.KindRecording))
	mux.HandleFunc("GET /recordings/{id}", g.handleGet(coretypes.KindRecording))

	mux.HandleFunc("POST /ai/tasks", g.handleStart(coretypes.KindAiTask))
	mux.HandleFunc("DELETE /ai/tasks/{id}", g.handleStop(coretypes.KindAiTask))
	mux.HandleFunc("GET /ai/tasks", g.handleList(coretypes.KindAiTask))
	mux.HandleFunc("GET /ai/tasks/{id}", g.handleGet(coretypes.KindAiTask))

	mux.HandleFunc("GET /healthz", g.handleHealthz)
	mux.HandleFunc("GET /readyz", g.handleReadyz)
}

func (g *Gateway) handleStart(kind coretypes.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp StartResponse
		var err error

		switch kind {
		case coretypes.KindStream:
			var req StreamStartRequest
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				writeErr(w, coreerr.Validationf("invalid request body: %v", decodeErr))
				return
			}
			resp, err = g.StartStream(r.Context(), req)
		case coretypes.KindRecording:
			var req RecordingStartRequest
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				writeErr(w, coreerr.Validationf("invalid request body: %v", decodeErr))
				return
			}
			resp, err = g.StartRecording(r.Context(), req)
		case coretypes.KindAiTask:
			var req AiTaskStartRequest
			if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
				writeErr(w, coreerr.Validationf("invalid request body: %v", decodeErr))
				return
			}
			resp, err = g.StartAiTask(r.Context(), req)
		}

		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (g *Gateway) handleStop(kind coretypes.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var resp StopResponse
		var err error
		switch kind {
		case coretypes.KindStream:
			resp, err = g.StopStream(r.Context(), id)
		case coretypes.KindRecording:
			resp, err = g.StopRecording(r.Context(), id)
		case coretypes.KindAiTask:
			resp, err = g.StopAiTask(r.Context(), id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (g *Gateway) handleGet(kind coretypes.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inst, err := g.GetResource(kind, r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func (g *Gateway) handleList(kind coretypes.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		insts, err := g.ListResources(kind)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, insts)
	}
}

// handleHealthz is a liveness check: if the process can run this handler
// at all, it is alive.
func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz fails if the coordinator is unreachable. The gateway
// itself holds no state store connection, so coordinator reachability
// (which fronts the store) stands in for both.
func (g *Gateway) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := g.coordinator.ListResources(coretypes.KindStream); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, coreerr.HTTPStatus(coreerr.CodeOf(err)), map[string]string{"error": err.Error()})
}
