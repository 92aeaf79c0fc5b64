package main

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/vms/pkg/gateway"
	"github.com/spf13/cobra"
)

var aiTaskCmd = resourceCommands("ai-task", "/ai/tasks", runAiTaskStart, func(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "task ID (required)")
	cmd.Flags().String("source-kind", "stream", "kind of the source resource (stream|recording)")
	cmd.Flags().String("source-id", "", "ID of the source resource (required)")
	cmd.Flags().String("plugin-id", "", "plugin ID (required)")
	cmd.Flags().String("plugin-config", "{}", "plugin config, as a JSON object")
	cmd.Flags().Int64("ttl-secs", 0, "lease TTL in seconds (0 uses the gateway default)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("source-id")
	_ = cmd.MarkFlagRequired("plugin-id")
})

func runAiTaskStart(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	sourceKind, _ := cmd.Flags().GetString("source-kind")
	sourceID, _ := cmd.Flags().GetString("source-id")
	pluginID, _ := cmd.Flags().GetString("plugin-id")
	pluginConfig, _ := cmd.Flags().GetString("plugin-config")
	ttl, _ := cmd.Flags().GetInt64("ttl-secs")

	if !json.Valid([]byte(pluginConfig)) {
		return fmt.Errorf("--plugin-config must be valid JSON")
	}

	var resp gateway.StartResponse
	req := gateway.AiTaskStartRequest{
		ID:           id,
		SourceKind:   sourceKind,
		SourceID:     sourceID,
		PluginID:     pluginID,
		PluginConfig: json.RawMessage(pluginConfig),
		TTLSecs:      ttl,
	}
	if err := newClient(gatewayAddr).do("POST", "/ai/tasks", req, &resp); err != nil {
		return err
	}
	fmt.Printf("accepted=%v lease_id=%s %s\n", resp.Accepted, resp.LeaseID, resp.Message)
	return nil
}
