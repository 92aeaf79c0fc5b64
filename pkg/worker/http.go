package worker

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
)

// DispatchHandler serves POST /internal/resources/{kind}/{id}: the
// gateway's WorkerClient calls this to assign a resource to this worker.
// The request body is the resource's opaque Config, passed straight
// through to the matching pipeline.SideEffect.
func (w *Worker) DispatchHandler(rw http.ResponseWriter, r *http.Request) {
	kind := coretypes.ResourceKind(r.PathValue("kind"))
	resourceID := r.PathValue("id")

	configJSON, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, "read request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := w.Dispatch(kind, resourceID, configJSON); err != nil {
		http.Error(rw, err.Error(), coreerr.HTTPStatus(coreerr.CodeOf(err)))
		return
	}
	rw.WriteHeader(http.StatusAccepted)
}

// WithdrawHandler serves DELETE /internal/resources/{kind}/{id}.
func (w *Worker) WithdrawHandler(rw http.ResponseWriter, r *http.Request) {
	kind := coretypes.ResourceKind(r.PathValue("kind"))
	resourceID := r.PathValue("id")

	if err := w.Withdraw(r.Context(), kind, resourceID); err != nil {
		http.Error(rw, err.Error(), coreerr.HTTPStatus(coreerr.CodeOf(err)))
		return
	}
	rw.WriteHeader(http.StatusOK)
}

// LoadHandler serves GET /internal/load, reporting this worker's
// per-kind resource counts. The gateway's WorkerPool selects workers
// round-robin and does not consult it.
func (w *Worker) LoadHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(w.Load())
}

// RegisterRoutes wires every HTTP handler this worker exposes onto mux.
func (w *Worker) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/resources/{kind}/{id}", w.DispatchHandler)
	mux.HandleFunc("DELETE /internal/resources/{kind}/{id}", w.WithdrawHandler)
	mux.HandleFunc("GET /internal/load", w.LoadHandler)
}
