//go:build windows

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// attachCmd is not supported on Windows: the daemon's sessions are
// PTY-backed and the interactive client relies on unix terminal modes.
var attachCmd = &cobra.Command{
	Use:   "attach <session-id>",
	Short: "Attach this terminal to a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("attach is not supported on windows")
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
