package root

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level hci-sched command.
var RootCmd = &cobra.Command{
	Use:           "hci-sched",
	Short:         "HCI scan scheduler CLI",
	Long:          "Command line interface for the HCI scan scheduler API: manage daily scan schedules and scan runs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetRoot returns the RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
