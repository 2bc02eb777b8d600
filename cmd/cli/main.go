package main

import (
	"fmt"
	"os"

	"github.com/crucial707/hci-scheduler/cmd/cli/root"
	"github.com/crucial707/hci-scheduler/cmd/cli/scan"
	"github.com/crucial707/hci-scheduler/cmd/cli/schedules"
)

func main() {
	rootCmd := root.GetRoot()
	schedules.InitSchedules(rootCmd)
	scan.InitScan(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
