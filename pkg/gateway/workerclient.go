package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cuemby/vms/pkg/coreerr"
	"github.com/cuemby/vms/pkg/coretypes"
)

// WorkerClient is the gateway's dispatch interface onto a single worker
// node, targeting pkg/worker/http.go's generic kind-parameterized routes.
type WorkerClient interface {
	Start(ctx context.Context, kind coretypes.ResourceKind, resourceID string, configJSON []byte) error
	Stop(ctx context.Context, kind coretypes.ResourceKind, resourceID string) error
	Load(ctx context.Context) (map[coretypes.ResourceKind]int, error)
}

// HTTPWorkerClient is the production WorkerClient, talking to one worker's
// dispatch/withdraw/load endpoints.
type HTTPWorkerClient struct {
	addr       string
	httpClient *http.Client
}

// NewHTTPWorkerClient constructs a client against the worker reachable at
// addr (host:port, no scheme).
func NewHTTPWorkerClient(addr string) *HTTPWorkerClient {
	return &HTTPWorkerClient{
		addr:       addr,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *HTTPWorkerClient) Start(ctx context.Context, kind coretypes.ResourceKind, resourceID string, configJSON []byte) error {
	url := fmt.Sprintf("http://%s/internal/resources/%s/%s", w.addr, kind, resourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(configJSON))
	if err != nil {
		return fmt.Errorf("build worker start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return coreerr.Unavailablef(err, "contact worker at %s", w.addr)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errorFromWorkerStatus(resp)
	}
	return nil
}

func (w *HTTPWorkerClient) Stop(ctx context.Context, kind coretypes.ResourceKind, resourceID string) error {
	url := fmt.Sprintf("http://%s/internal/resources/%s/%s", w.addr, kind, resourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build worker stop request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return coreerr.Unavailablef(err, "contact worker at %s", w.addr)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errorFromWorkerStatus(resp)
	}
	return nil
}

func (w *HTTPWorkerClient) Load(ctx context.Context) (map[coretypes.ResourceKind]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/internal/load", w.addr), nil)
	if err != nil {
		return nil, fmt.Errorf("build worker load request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, coreerr.Unavailablef(err, "contact worker at %s", w.addr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromWorkerStatus(resp)
	}
	var load map[coretypes.ResourceKind]int
	if err := json.NewDecoder(resp.Body).Decode(&load); err != nil {
		return nil, coreerr.Unavailablef(err, "decode worker load response")
	}
	return load, nil
}

func errorFromWorkerStatus(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("worker returned status %d: %s", resp.StatusCode, body)
}

// WorkerEndpoint names one worker node: its coordinator-visible node ID
// (used as holder_id when acquiring leases on its behalf) and its
// dispatch address.
type WorkerEndpoint struct {
	NodeID string
	Client WorkerClient
}

// WorkerPool is a round-robin selection of worker endpoints; placement
// optimization beyond round-robin is out of scope. All workers in the
// pool are assumed to support all three resource kinds, matching
// pkg/worker.Worker's fixed manager set.
type WorkerPool struct {
	endpoints []WorkerEndpoint
	next      atomic.Uint64
}

// NewWorkerPool constructs a pool over the given endpoints. An empty pool
// is valid but Next always returns coreerr.Unavailable.
func NewWorkerPool(endpoints []WorkerEndpoint) *WorkerPool {
	return &WorkerPool{endpoints: endpoints}
}

// Next selects the next worker endpoint in round-robin order.
func (p *WorkerPool) Next() (WorkerEndpoint, error) {
	if len(p.endpoints) == 0 {
		return WorkerEndpoint{}, coreerr.Unavailablef(nil, "no worker endpoints registered")
	}
	idx := p.next.Add(1) - 1
	return p.endpoints[idx%uint64(len(p.endpoints))], nil
}

// ByNodeID finds the endpoint for a specific worker, used when stopping a
// resource that a specific node already holds.
func (p *WorkerPool) ByNodeID(nodeID string) (WorkerEndpoint, error) {
	for _, ep := range p.endpoints {
		if ep.NodeID == nodeID {
			return ep, nil
		}
	}
	return WorkerEndpoint{}, coreerr.NotFoundf("worker node %s not registered in pool", nodeID)
}

// NodeIDs returns the node ID of every endpoint currently in the pool,
// used by Gateway.Bootstrap to determine the known-live holder set.
func (p *WorkerPool) NodeIDs() []string {
	ids := make([]string, len(p.endpoints))
	for i, ep := range p.endpoints {
		ids[i] = ep.NodeID
	}
	return ids
}
