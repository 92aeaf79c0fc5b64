package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// peerSpec names one coordinator replica in a static cluster config file.
type peerSpec struct {
	NodeID   string `yaml:"node_id"`
	RaftAddr string `yaml:"raft_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

type peersFile struct {
	Peers []peerSpec `yaml:"peers"`
}

// loadPeersFile reads a YAML file listing every known coordinator replica,
// used at startup by a joining node to find a reachable peer's HTTP
// address to call Join against.
func loadPeersFile(path string) ([]peerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read peers file: %w", err)
	}
	var pf peersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse peers file: %w", err)
	}
	return pf.Peers, nil
}
