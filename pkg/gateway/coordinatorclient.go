package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/vms/pkg/coordinator"
	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
)

// coordinatorAPI is the subset of the coordinator's HTTP surface the
// gateway depends on, narrowed to an interface so handler and Gateway
// tests can substitute an in-memory fake.
type coordinatorAPI interface {
	AcquireLease(kind coretypes.ResourceKind, resourceID, holderID string, ttl time.Duration) (coretypes.Lease, error)
	ReleaseLease(leaseID string) error
	UpsertResource(inst *coretypes.ResourceInstance) error
	GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error)
	ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error)
}

// CoordinatorClient talks to a coordinator replica's public HTTP surface
// over the wire. Unlike pkg/worker's CoordinatorClient, writes here only
// ever reach the acquire/release/upsert ops; the gateway never renews a
// lease itself.
type CoordinatorClient struct {
	addr       string
	httpClient *http.Client
}

// NewCoordinatorClient constructs a client against a coordinator replica
// reachable at addr (host:port, no scheme).
func NewCoordinatorClient(addr string) *CoordinatorClient {
	return &CoordinatorClient{
		addr: addr,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type wireResult struct {
	Lease   *coretypes.Lease `json:"lease,omitempty"`
	Error   string           `json:"error,omitempty"`
	ErrCode string           `json:"error_code,omitempty"`
}

func (c *CoordinatorClient) applyCmd(op string, payload interface{}) (coretypes.Lease, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return coretypes.Lease{}, fmt.Errorf("marshal %s payload: %w", op, err)
	}
	body, err := json.Marshal(coordinator.Command{Op: op, Data: data})
	if err != nil {
		return coretypes.Lease{}, fmt.Errorf("marshal command: %w", err)
	}

	resp, err := c.httpClient.Post(fmt.Sprintf("http://%s/internal/apply", c.addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return coretypes.Lease{}, coreerr.Unavailablef(err, "contact coordinator at %s", c.addr)
	}
	defer resp.Body.Close()

	var wire wireResult
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return coretypes.Lease{}, coreerr.Unavailablef(err, "decode coordinator response")
	}
	if wire.Error != "" {
		return coretypes.Lease{}, coreerr.FromWire(coreerr.Code(wire.ErrCode), wire.Error)
	}
	if wire.Lease != nil {
		return *wire.Lease, nil
	}
	return coretypes.Lease{}, nil
}

// AcquireLease proposes acquisition of kind/resourceID for holderID.
func (c *CoordinatorClient) AcquireLease(kind coretypes.ResourceKind, resourceID, holderID string, ttl time.Duration) (coretypes.Lease, error) {
	return c.applyCmd(coordinator.OpAcquireLease, coordinator.AcquireLeaseCmd{
		Kind: kind, ResourceID: resourceID, HolderID: holderID, TTLSeconds: int64(ttl.Seconds()),
	})
}

// ReleaseLease proposes releasing leaseID. Idempotent on the server side.
func (c *CoordinatorClient) ReleaseLease(leaseID string) error {
	_, err := c.applyCmd(coordinator.OpReleaseLease, coordinator.ReleaseLeaseCmd{LeaseID: leaseID})
	return err
}

// UpsertResource proposes persisting inst's current state.
func (c *CoordinatorClient) UpsertResource(inst *coretypes.ResourceInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal resource instance: %w", err)
	}
	body, err := json.Marshal(coordinator.Command{Op: coordinator.OpUpsertResource, Data: data})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	resp, err := c.httpClient.Post(fmt.Sprintf("http://%s/internal/apply", c.addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return coreerr.Unavailablef(err, "contact coordinator at %s", c.addr)
	}
	defer resp.Body.Close()

	var wire wireResult
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return coreerr.Unavailablef(err, "decode coordinator response")
	}
	if wire.Error != "" {
		return coreerr.FromWire(coreerr.Code(wire.ErrCode), wire.Error)
	}
	return nil
}

// GetResource fetches the current row for kind/resourceID.
func (c *CoordinatorClient) GetResource(kind coretypes.ResourceKind, resourceID string) (*coretypes.ResourceInstance, error) {
	resp, err := c.httpClient.Get(fmt.Sprintf("http://%s/v1/resources/%s/%s", c.addr, kind, resourceID))
	if err != nil {
		return nil, coreerr.Unavailablef(err, "contact coordinator at %s", c.addr)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, coreerr.NotFoundf("resource %s/%s not found", kind, resourceID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}
	var inst coretypes.ResourceInstance
	if err := json.NewDecoder(resp.Body).Decode(&inst); err != nil {
		return nil, coreerr.Unavailablef(err, "decode resource instance")
	}
	return &inst, nil
}

// ListResources fetches every instance of kind, regardless of holder.
func (c *CoordinatorClient) ListResources(kind coretypes.ResourceKind) ([]*coretypes.ResourceInstance, error) {
	resp, err := c.httpClient.Get(fmt.Sprintf("http://%s/v1/resources/%s", c.addr, kind))
	if err != nil {
		return nil, coreerr.Unavailablef(err, "contact coordinator at %s", c.addr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}
	var insts []*coretypes.ResourceInstance
	if err := json.NewDecoder(resp.Body).Decode(&insts); err != nil {
		return nil, coreerr.Unavailablef(err, "decode resource instances")
	}
	return insts, nil
}
