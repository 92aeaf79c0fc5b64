package main

import (
	"fmt"
	"strings"

	"github.com/cuemby/vms/pkg/gateway"
)

// workerAddr pairs a worker's coordinator-visible node ID with its
// dispatch address, the raw form VMS_WORKERS is parsed into before
// fanning out into both the gateway's WorkerPool and the health prober.
type workerAddr struct {
	NodeID string
	Addr   string
}

// parseWorkerAddrs parses VMS_WORKERS, a comma-separated list of
// node_id=host:port pairs.
func parseWorkerAddrs(spec string) ([]workerAddr, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var addrs []workerAddr
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		nodeID, addr, ok := strings.Cut(entry, "=")
		if !ok || nodeID == "" || addr == "" {
			return nil, fmt.Errorf("invalid worker entry %q, expected node_id=host:port", entry)
		}
		addrs = append(addrs, workerAddr{NodeID: nodeID, Addr: addr})
	}
	return addrs, nil
}

// parseWorkers parses VMS_WORKERS into the worker pool gateway.New expects.
func parseWorkers(spec string) ([]gateway.WorkerEndpoint, error) {
	addrs, err := parseWorkerAddrs(spec)
	if err != nil {
		return nil, err
	}
	var endpoints []gateway.WorkerEndpoint
	for _, a := range addrs {
		endpoints = append(endpoints, gateway.WorkerEndpoint{
			NodeID: a.NodeID,
			Client: gateway.NewHTTPWorkerClient(a.Addr),
		})
	}
	return endpoints, nil
}
