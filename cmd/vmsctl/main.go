// Command vmsctl is an operator CLI for the gateway's HTTP API: starting,
// stopping, and inspecting streams, recordings, and AI tasks, plus
// reading cluster status directly from a coordinator replica.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	gatewayAddr     string
	coordinatorAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmsctl",
	Short: "Operate a VMS coordination cluster",
	Long: `vmsctl is a thin client over the gateway's HTTP API: it starts
and stops streams, recordings, and AI tasks, lists and inspects running
resources, and reads cluster status from a coordinator replica. It holds
no state of its own.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayAddr, "gateway", envOr("VMS_GATEWAY_ADDR", "http://127.0.0.1:8080"), "gateway base URL")
	rootCmd.PersistentFlags().StringVar(&coordinatorAddr, "coordinator", envOr("VMS_COORDINATOR_HTTP_ADDR", "http://127.0.0.1:8081"), "coordinator base URL")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(recordingCmd)
	rootCmd.AddCommand(aiTaskCmd)
	rootCmd.AddCommand(clusterCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
