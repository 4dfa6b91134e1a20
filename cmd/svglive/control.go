package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.klb.dev/svglive/internal/ipc"
	"go.klb.dev/svglive/internal/message"
)

func newListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Resume clipboard monitoring in the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sendControl(cmd, message.TypeListen)
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Pause clipboard monitoring in the running daemon",
		Long: `Stops reacting to clipboard changes. A conversion already running still
finishes and lands on the clipboard. The daemon keeps running; use
"svglive listen" to resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sendControl(cmd, message.TypeStop)
		},
	}
}

func sendControl(cmd *cobra.Command, t message.Type) error {
	resp, err := ipc.Request(&message.Message{Type: t, Source: "cli"})
	if err != nil {
		return err
	}
	if resp.Type != message.TypeAck {
		return fmt.Errorf("unexpected response %s", resp.Type)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "svglive: %s\n", resp.State)
	return nil
}
