package main

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/vms/pkg/gateway"
	"github.com/spf13/cobra"
)

// resourceCommands builds the start/stop/list/get command group shared by
// streams, recordings, and AI tasks: the three kinds differ only in their
// route prefix and start request shape, so each kind's file supplies a
// startFn closing over its own flags.
func resourceCommands(use, prefix string, startFn func(cmd *cobra.Command, args []string) error, startFlags func(cmd *cobra.Command)) *cobra.Command {
	group := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage %s resources", use),
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: fmt.Sprintf("Start a %s", use),
		RunE:  startFn,
	}
	startFlags(startCmd)

	stopCmd := &cobra.Command{
		Use:   "stop <id>",
		Short: fmt.Sprintf("Stop a %s", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp gateway.StopResponse
			if err := newClient(gatewayAddr).do("DELETE", fmt.Sprintf("%s/%s", prefix, args[0]), nil, &resp); err != nil {
				return err
			}
			fmt.Printf("stopped=%v %s\n", resp.Stopped, resp.Message)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s resources", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			var insts []json.RawMessage
			if err := newClient(gatewayAddr).do("GET", prefix, nil, &insts); err != nil {
				return err
			}
			for _, inst := range insts {
				fmt.Println(string(inst))
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Get one %s by ID", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var inst json.RawMessage
			if err := newClient(gatewayAddr).do("GET", fmt.Sprintf("%s/%s", prefix, args[0]), nil, &inst); err != nil {
				return err
			}
			fmt.Println(string(inst))
			return nil
		},
	}

	group.AddCommand(startCmd, stopCmd, listCmd, getCmd)
	return group
}
