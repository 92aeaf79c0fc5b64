package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
)

// ApplyHandler serves /internal/apply: a follower forwards a write here
// when it receives a command while not holding leadership. Only the
// leader accepts the request; followers reply with the current leader's
// address so the caller can retry directly.
func (c *Coordinator) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	if !c.IsLeader() {
		http.Error(w, "not the leader, leader is "+c.LeaderAddr(), http.StatusServiceUnavailable)
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid command", http.StatusBadRequest)
		return
	}

	result, err := c.apply(cmd)
	wire := wireApplyResult{Lease: result.Lease}
	if err != nil {
		wire.ErrMsg = coreerr.MessageOf(err)
		wire.ErrCode = string(coreerr.CodeOf(err))
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(coreerr.HTTPStatus(coreerr.CodeOf(err)))
	}
	json.NewEncoder(w).Encode(wire)
}

// JoinHandler serves /internal/join: an existing voter calls AddVoter on
// behalf of the joining node after validating its token.
func (c *Coordinator) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid join request", http.StatusBadRequest)
		return
	}

	if _, err := c.ValidateJoinToken(req.Token); err != nil {
		http.Error(w, "invalid join token: "+err.Error(), http.StatusUnauthorized)
		return
	}

	if err := c.AddVoter(req.NodeID, req.RaftAddr); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ClusterStatusHandler serves GET /cluster/status.
func (c *Coordinator) ClusterStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := c.GetClusterStatus()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// LeaseHandler serves GET /v1/leases/{id}, read directly from the local
// FSM-backed registry without leader forwarding.
func (c *Coordinator) LeaseHandler(w http.ResponseWriter, r *http.Request) {
	leaseID := r.PathValue("id")
	lease, err := c.GetLease(leaseID)
	writeJSON(w, lease, err)
}

// ResourceHandler serves GET /v1/resources/{kind}/{id}.
func (c *Coordinator) ResourceHandler(w http.ResponseWriter, r *http.Request) {
	kind := coretypes.ResourceKind(r.PathValue("kind"))
	inst, err := c.GetResource(kind, r.PathValue("id"))
	writeJSON(w, inst, err)
}

// ResourcesByHolderHandler serves GET /v1/resources/by-holder/{nodeID},
// used by a worker on startup to find its own previously-held instances.
func (c *Coordinator) ResourcesByHolderHandler(w http.ResponseWriter, r *http.Request) {
	insts, err := c.ListResourcesByHolder(r.PathValue("nodeID"))
	writeJSON(w, insts, err)
}

// ResourcesListHandler serves GET /v1/resources/{kind}, listing every
// instance of that kind regardless of holder.
func (c *Coordinator) ResourcesListHandler(w http.ResponseWriter, r *http.Request) {
	kind := coretypes.ResourceKind(r.PathValue("kind"))
	insts, err := c.ListResources(kind)
	writeJSON(w, insts, err)
}

// RegisterRoutes wires every HTTP handler the coordinator exposes onto mux.
func (c *Coordinator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /internal/apply", c.ApplyHandler)
	mux.HandleFunc("POST /internal/join", c.JoinHandler)
	mux.HandleFunc("GET /cluster/status", c.ClusterStatusHandler)
	mux.HandleFunc("GET /v1/leases/{id}", c.LeaseHandler)
	mux.HandleFunc("GET /v1/resources/by-holder/{nodeID}", c.ResourcesByHolderHandler)
	mux.HandleFunc("GET /v1/resources/{kind}/{id}", c.ResourceHandler)
	mux.HandleFunc("GET /v1/resources/{kind}", c.ResourcesListHandler)
}

func writeJSON(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		http.Error(w, err.Error(), coreerr.HTTPStatus(coreerr.CodeOf(err)))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
