package main

import (
	"fmt"

	"github.com/cuemby/vms/pkg/coordinator"
	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect the coordinator's Raft cluster",
}

var clusterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Raft role, term, leader, and peer set of one replica",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status coordinator.ClusterStatus
		if err := newClient(coordinatorAddr).do("GET", "/cluster/status", nil, &status); err != nil {
			return err
		}
		fmt.Printf("role=%s term=%d leader=%s\n", status.Role, status.Term, status.LeaderID)
		for _, peer := range status.Peers {
			fmt.Printf("  peer: %s\n", peer)
		}
		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterStatusCmd)
}
