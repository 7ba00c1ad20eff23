package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/bioble/pkg/headset"
)

// configBoardCmd sends a raw configuration command to the headset
var configBoardCmd = &cobra.Command{
	Use:   "config-board <command>",
	Short: "Send a board configuration command",
	Long: `Open a session and write a configuration command using the model's command
encoding. Byte-encoded models receive one write per character.

By default the command goes to the send characteristic; --disconnect-char
targets the disconnect characteristic instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigBoard,
}

var configBoardDisconnect bool

func init() {
	configBoardCmd.Flags().BoolVar(&configBoardDisconnect, "disconnect-char", false, "Write to the disconnect characteristic")
}

func runConfigBoard(cmd *cobra.Command, args []string) error {
	command := args[0]
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	sess, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	client, err := sess.newClient()
	if err != nil {
		return err
	}

	target := headset.TargetSend
	if configBoardDisconnect {
		target = headset.TargetDisconnect
	}

	return client.Run(cmd.Context(), sess.cfg.Address, func(ctx context.Context, c *headset.Client) error {
		err := c.ConfigBoard(ctx, command, target)
		printStatus(cmd.OutOrStdout(), fmt.Sprintf("config-board %q (%s)", command, target), err)
		return err
	})
}
