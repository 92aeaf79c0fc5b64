// Package coordinator wraps hashicorp/raft into the cluster's control
// plane: the CoordinatorFSM applying committed lease and resource
// commands, membership operations (Bootstrap/Join/AddVoter/RemoveServer),
// and forwarding of non-leader writes to the current leader.
package coordinator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
	"github.com/cuemby/vms/pkg/events"
	"github.com/cuemby/vms/pkg/leases"
	"github.com/cuemby/vms/pkg/log"
	"github.com/cuemby/vms/pkg/metrics"
	"github.com/cuemby/vms/pkg/statestore"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Coordinator is one replica of the cluster's control plane.
type Coordinator struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft         *raft.Raft
	fsm          *CoordinatorFSM
	store        statestore.Store
	registry     *leases.Registry
	tokenManager *TokenManager
	eventBroker  *events.Broker

	httpClient *http.Client
}

// Config holds configuration for creating a Coordinator.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// New creates a Coordinator instance. Callers must call Bootstrap or Join
// before the coordinator participates in a Raft cluster, and Start to
// begin the lease registry's background sweeper.
func New(cfg *Config) (*Coordinator, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := statestore.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create state store: %w", err)
	}

	registry := leases.NewRegistry(store, nil)
	if err := registry.LoadFromStore(); err != nil {
		return nil, fmt.Errorf("load lease registry: %w", err)
	}

	fsm := NewCoordinatorFSM(store, registry)
	tokenManager := NewTokenManager()
	eventBroker := events.NewBroker()
	eventBroker.Start()

	return &Coordinator{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		fsm:          fsm,
		store:        store,
		registry:     registry,
		tokenManager: tokenManager,
		eventBroker:  eventBroker,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Start begins the lease registry's background sweeper. Call after
// Bootstrap or Join.
func (c *Coordinator) Start() {
	c.registry.Start()
}

func (c *Coordinator) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(c.nodeID)

	// Tuned for LAN/edge deployments rather than Raft's WAN-conservative
	// defaults, to keep leader failover under the cluster's target window.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", c.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(c.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(c.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create raft log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(config, c.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a new single-node Raft cluster.
func (c *Coordinator) Bootstrap() error {
	r, transport, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(c.nodeID), Address: transport.LocalAddr()}},
	}
	if err := c.raft.BootstrapCluster(configuration).Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	clog := log.WithComponent("coordinator")
	clog.Info().Str("node_id", c.nodeID).Msg("bootstrapped cluster")
	return nil
}

// Join starts Raft on this node and asks an existing leader to add it as
// a voter, carrying the given join token for authentication.
func (c *Coordinator) Join(leaderHTTPAddr, token string) error {
	r, _, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	body, err := json.Marshal(joinRequest{NodeID: c.nodeID, RaftAddr: c.bindAddr, Token: token})
	if err != nil {
		return fmt.Errorf("marshal join request: %w", err)
	}
	resp, err := c.httpClient.Post(fmt.Sprintf("http://%s/internal/join", leaderHTTPAddr), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contact leader: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leader rejected join: status %d", resp.StatusCode)
	}
	clog := log.WithComponent("coordinator")
	clog.Info().Str("leader", leaderHTTPAddr).Msg("joined cluster")
	return nil
}

type joinRequest struct {
	NodeID   string `json:"node_id"`
	RaftAddr string `json:"raft_addr"`
	Token    string `json:"token"`
}

// AddVoter adds a new coordinator replica to the Raft cluster. Only the
// leader may call this successfully.
func (c *Coordinator) AddVoter(nodeID, raftAddr string) error {
	if c.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !c.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", c.LeaderAddr())
	}
	future := c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(raftAddr), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("add voter: %w", err)
	}
	return nil
}

// RemoveServer removes a replica from the Raft cluster.
func (c *Coordinator) RemoveServer(nodeID string) error {
	if c.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !c.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	if err := c.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error(); err != nil {
		return fmt.Errorf("remove server: %w", err)
	}
	return nil
}

// IsLeader reports whether this replica currently holds Raft leadership.
func (c *Coordinator) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// LastLogIndex returns the index of the last log entry, for metrics.
func (c *Coordinator) LastLogIndex() uint64 {
	if c.raft == nil {
		return 0
	}
	return c.raft.LastIndex()
}

// AppliedIndex returns the index of the last log entry applied to the
// FSM, for metrics.
func (c *Coordinator) AppliedIndex() uint64 {
	if c.raft == nil {
		return 0
	}
	return c.raft.AppliedIndex()
}

// LeaderAddr returns the Raft bind address of the current leader, or "".
func (c *Coordinator) LeaderAddr() string {
	if c.raft == nil {
		return ""
	}
	return string(c.raft.Leader())
}

// ClusterStatus is the payload returned by the /cluster/status endpoint.
type ClusterStatus struct {
	Role     string   `json:"role"`
	Term     uint64   `json:"term"`
	LeaderID string   `json:"leader_id"`
	Peers    []string `json:"peers"`
}

// GetClusterStatus reports this replica's Raft role, term, leader and
// peer set.
func (c *Coordinator) GetClusterStatus() (ClusterStatus, error) {
	if c.raft == nil {
		return ClusterStatus{Role: "uninitialized"}, nil
	}
	future := c.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return ClusterStatus{}, fmt.Errorf("get configuration: %w", err)
	}
	var peers []string
	for _, s := range future.Configuration().Servers {
		peers = append(peers, string(s.ID))
	}
	return ClusterStatus{
		Role:     c.raft.State().String(),
		Term:     currentTerm(c.raft),
		LeaderID: string(c.raft.Leader()),
		Peers:    peers,
	}, nil
}

func currentTerm(r *raft.Raft) uint64 {
	stats := r.Stats()
	var term uint64
	if s, ok := stats["term"]; ok {
		fmt.Sscanf(s, "%d", &term)
	}
	return term
}

// GetEventBroker returns the coordinator's event broker.
func (c *Coordinator) GetEventBroker() *events.Broker { return c.eventBroker }

// apply submits cmd to the Raft log if this replica is the leader, or
// forwards it over HTTP to the current leader's /internal/apply endpoint
// otherwise.
func (c *Coordinator) apply(cmd Command) (ApplyResult, error) {
	if c.raft == nil {
		return ApplyResult{}, fmt.Errorf("raft not initialized")
	}
	if !c.IsLeader() {
		return c.forward(cmd)
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("marshal command: %w", err)
	}
	future := c.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return ApplyResult{}, fmt.Errorf("apply command: %w", err)
	}
	result, ok := future.Response().(ApplyResult)
	if !ok {
		return ApplyResult{}, fmt.Errorf("unexpected apply response type")
	}
	return result, result.Err
}

func (c *Coordinator) forward(cmd Command) (ApplyResult, error) {
	leaderAddr := c.LeaderAddr()
	if leaderAddr == "" {
		return ApplyResult{}, fmt.Errorf("no known leader")
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("marshal forwarded command: %w", err)
	}
	resp, err := c.httpClient.Post(fmt.Sprintf("http://%s/internal/apply", leaderAddr), "application/json", bytes.NewReader(body))
	if err != nil {
		return ApplyResult{}, fmt.Errorf("forward to leader %s: %w", leaderAddr, err)
	}
	defer resp.Body.Close()

	var wire wireApplyResult
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return ApplyResult{}, fmt.Errorf("decode forwarded response: %w", err)
	}
	result := ApplyResult{Lease: wire.Lease}
	if wire.ErrMsg != "" {
		result.Err = coreerr.FromWire(coreerr.Code(wire.ErrCode), wire.ErrMsg)
	}
	return result, result.Err
}

// wireApplyResult is ApplyResult's JSON-serializable shape, used between
// coordinator.go's HTTP forwarding client and the /internal/apply handler
// since Go's error interface does not marshal on its own. ErrCode carries
// coreerr.Code across the wire so a caller's CodeOf(err) still works after
// the error has been forwarded between replicas or to an external client.
type wireApplyResult struct {
	Lease   *coretypes.Lease `json:"lease,omitempty"`
	ErrMsg  string           `json:"error,omitempty"`
	ErrCode string           `json:"error_code,omitempty"`
}

// AcquireLease proposes acquisition of kind/resourceID for holderID.
func (c *Coordinator) AcquireLease(kind coretypes.ResourceKind, resourceID, holderID string, ttl time.Duration) (coretypes.Lease, error) {
	data, err := json.Marshal(AcquireLeaseCmd{Kind: kind, ResourceID: resourceID, HolderID: holderID, TTLSeconds: int64(ttl.Seconds())})
	if err != nil {
		return coretypes.Lease{}, err
	}
	result, err := c.apply(Command{Op: OpAcquireLease, Data: data})
	if err != nil {
		return coretypes.Lease{}, err
	}
	metrics.LeaseAcquiresTotal.WithLabelValues(string(kind), "granted").Inc()
	c.publishLeaseEvent(events.EventLeaseAcquired, *result.Lease)
	return *result.Lease, nil
}

// RenewLease proposes extending leaseID's TTL.
func (c *Coordinator) RenewLease(leaseID string, ttl time.Duration) (coretypes.Lease, error) {
	data, err := json.Marshal(RenewLeaseCmd{LeaseID: leaseID, TTLSeconds: int64(ttl.Seconds())})
	if err != nil {
		return coretypes.Lease{}, err
	}
	result, err := c.apply(Command{Op: OpRenewLease, Data: data})
	if err != nil {
		return coretypes.Lease{}, err
	}
	c.publishLeaseEvent(events.EventLeaseRenewed, *result.Lease)
	return *result.Lease, nil
}

// ReleaseLease proposes releasing leaseID.
func (c *Coordinator) ReleaseLease(leaseID string) error {
	data, err := json.Marshal(ReleaseLeaseCmd{LeaseID: leaseID})
	if err != nil {
		return err
	}
	_, err = c.apply(Command{Op: OpReleaseLease, Data: data})
	if err == nil {
		c.eventBroker.Publish(&events.Event{
			Type:     events.EventLeaseReleased,
			Message:  "lease " + leaseID + " released",
			Metadata: map[string]string{"lease_id": leaseID},
		})
	}
	return err
}

// publishLeaseEvent publishes a lease lifecycle event carrying the
// lease's identifying fields, used by AcquireLease/RenewLease so a
// subscriber (e.g. a future audit log or dashboard) can follow lease
// state without polling.
func (c *Coordinator) publishLeaseEvent(eventType events.EventType, lease coretypes.Lease) {
	c.eventBroker.Publish(&events.Event{
		Type:    eventType,
		Message: string(eventType) + " " + lease.LeaseID,
		Metadata: map[string]string{
			"lease_id":    lease.LeaseID,
			"resource_id": lease.ResourceID,
			"kind":        string(lease.Kind),
			"holder_id":   lease.HolderID,
		},
	})
}

// UpsertResource proposes persisting inst's current state.
func (c *Coordinator) UpsertResource(inst *coretypes.ResourceInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	_, err = c.apply(Command{Op: OpUpsertResource, Data: data})
	return err
}

// DeleteResource proposes removing a terminal resource row outright, used
// by the Reaper once a kind's retention window has elapsed.
func (c *Coordinator) DeleteResource(kind coretypes.ResourceKind, resourceID string) error {
	data, err := json.Marshal(DeleteResourceCmd{Kind: kind, ResourceID: resourceID})
	if err != nil {
		return err
	}
	_, err = c.apply(Command{Op: OpDeleteResource, Data: data})
	return err
}

// GetLease reads a lease by ID from the local, FSM-backed registry.
func (c *Coordinator) GetLease(leaseID string) (coretypes.Lease, error) {
	return c.registry.Get(leaseID)
}

// ListLeases reads leases from the local registry, optionally filtered.
func (c *Coordinator) ListLeases(kind coretypes.ResourceKind, holderID *string) []coretypes.Lease {
	return c.registry.List(kind, holderID)
}

// GetResource reads a resource instance from the local state store.
func (c *Coordinator) GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error) {
	return c.store.GetResource(kind, resourceID)
}

// ListResources reads resource instances from the local state store.
func (c *Coordinator) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	return c.store.ListResources(kind)
}

// ListResourcesByHolder reads resource instances held by nodeID.
func (c *Coordinator) ListResourcesByHolder(nodeID string) ([]*coretypes.ResourceInstance, error) {
	return c.store.ListResourcesByHolder(nodeID)
}

// GenerateJoinToken issues a new join token. Only the leader may do so.
func (c *Coordinator) GenerateJoinToken(role string) (*JoinToken, error) {
	if !c.IsLeader() {
		return nil, fmt.Errorf("not the leader, tokens can only be generated by the leader")
	}
	return c.tokenManager.GenerateToken(role, 24*time.Hour)
}

// ValidateJoinToken validates a join token and returns its role.
func (c *Coordinator) ValidateJoinToken(token string) (string, error) {
	return c.tokenManager.ValidateToken(token)
}

// Shutdown gracefully shuts down the coordinator.
func (c *Coordinator) Shutdown() error {
	c.registry.Stop()
	if c.eventBroker != nil {
		c.eventBroker.Stop()
	}
	if c.raft != nil {
		if err := c.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
