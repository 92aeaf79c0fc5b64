package main

import (
	"fmt"

	"github.com/cuemby/vms/pkg/gateway"
	"github.com/spf13/cobra"
)

var recordingCmd = resourceCommands("recording", "/recordings", runRecordingStart, func(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "recording ID (required)")
	cmd.Flags().String("source-uri", "", "source URI, e.g. rtsp://... (required)")
	cmd.Flags().String("codec", "h264", "codec")
	cmd.Flags().String("container", "mp4", "container format")
	cmd.Flags().Int64("ttl-secs", 0, "lease TTL in seconds (0 uses the gateway default)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("source-uri")
})

func runRecordingStart(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	sourceURI, _ := cmd.Flags().GetString("source-uri")
	codec, _ := cmd.Flags().GetString("codec")
	container, _ := cmd.Flags().GetString("container")
	ttl, _ := cmd.Flags().GetInt64("ttl-secs")

	var resp gateway.StartResponse
	req := gateway.RecordingStartRequest{ID: id, SourceURI: sourceURI, Codec: codec, Container: container, TTLSecs: ttl}
	if err := newClient(gatewayAddr).do("POST", "/recordings", req, &resp); err != nil {
		return err
	}
	fmt.Printf("accepted=%v lease_id=%s %s\n", resp.Accepted, resp.LeaseID, resp.Message)
	return nil
}
