package scan

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/crucial707/hci-scheduler/cmd/cli/client"
	"github.com/crucial707/hci-scheduler/cmd/cli/output"
	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/spf13/cobra"
)

const latest = "latest"

type statusResponse struct {
	models.StatusSnapshot
	Daemon string `json:"daemon,omitempty"`
}

type logsResponse struct {
	RunID  string           `json:"run_id"`
	Status models.RunStatus `json:"status"`
	Lines  []string         `json:"lines"`
}

func InitScan(rootCmd *cobra.Command) {
	// ----- Run now -----
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Start an on-demand scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				RunID  string           `json:"run_id"`
				Status models.RunStatus `json:"status"`
			}
			if err := client.Do(http.MethodPost, "/v1/runs", nil, &resp); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scan %s started (%s)\n", resp.RunID, resp.Status)
			return nil
		},
	}
	scanCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	// ----- Status -----
	statusCmd := &cobra.Command{
		Use:   "scan-status",
		Short: "Show scheduler status, or one run with --id",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			id, _ := cmd.Flags().GetString("id")

			if id != "" {
				var run models.ScanRun
				if err := client.Do(http.MethodGet, "/v1/runs/"+url.PathEscape(id), nil, &run); err != nil {
					return err
				}
				if jsonOut {
					return output.PrintJSON(cmd.OutOrStdout(), run)
				}
				output.RenderTable(cmd.OutOrStdout(), runHeaders, [][]interface{}{runRow(run)})
				return nil
			}

			var st statusResponse
			if err := client.Do(http.MethodGet, "/v1/status", nil, &st); err != nil {
				return err
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd, st)
			return nil
		},
	}
	statusCmd.Flags().StringP("id", "i", "", "Run ID (or \"latest\")")
	statusCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	// ----- History -----
	runsCmd := &cobra.Command{
		Use:   "scan-runs",
		Short: "List scan run history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			var resp struct {
				Items []models.ScanRun `json:"items"`
				Total int              `json:"total"`
			}
			path := fmt.Sprintf("/v1/runs?limit=%d", limit)
			if err := client.Do(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), resp.Items)
			}
			if len(resp.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scan runs.")
				return nil
			}
			rows := make([][]interface{}, 0, len(resp.Items))
			for _, r := range resp.Items {
				rows = append(rows, runRow(r))
			}
			output.RenderTable(cmd.OutOrStdout(), runHeaders, rows)
			fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d runs\n", len(resp.Items), resp.Total)
			return nil
		},
	}
	runsCmd.Flags().IntP("limit", "l", 20, "Maximum runs to show (1-100)")
	runsCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	// ----- Logs -----
	logsCmd := &cobra.Command{
		Use:   "scan-logs",
		Short: "Print the log lines of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			var resp logsResponse
			if err := client.Do(http.MethodGet, "/v1/runs/"+url.PathEscape(id)+"/logs", nil, &resp); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s)\n", resp.RunID, resp.Status)
			for _, line := range resp.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	logsCmd.Flags().StringP("id", "i", latest, "Run ID")
	logsCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	// ----- Cancel -----
	cancelCmd := &cobra.Command{
		Use:   "scan-cancel",
		Short: "Cancel a running scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			var run models.ScanRun
			if err := client.Do(http.MethodPost, "/v1/runs/"+url.PathEscape(id)+"/cancel", nil, &run); err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scan %s %s\n", run.ID, run.Status)
			return nil
		},
	}
	cancelCmd.Flags().StringP("id", "i", latest, "Run ID")
	cancelCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	rootCmd.AddCommand(scanCmd, statusCmd, runsCmd, logsCmd, cancelCmd)
}

var runHeaders = []string{"ID", "Trigger", "Date", "Status", "Started", "Finished"}

func runRow(r models.ScanRun) []interface{} {
	trigger := "on-demand"
	if r.ScheduleID != nil {
		trigger = *r.ScheduleID
	}
	return []interface{}{r.ID, trigger, r.TriggerDate, r.Status, formatTime(r.StartedAt), formatTime(r.FinishedAt)}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func printStatus(cmd *cobra.Command, st statusResponse) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "State:  %s\n", st.State)
	if st.Daemon != "" {
		fmt.Fprintf(w, "Daemon: %s\n", st.Daemon)
	}
	if st.Degraded {
		fmt.Fprintln(w, "Warning: status is degraded, the store could not be read")
	}
	if st.Current != nil {
		fmt.Fprintf(w, "Current run: %s (started %s)\n", st.Current.ID, formatTime(st.Current.StartedAt))
	}
	if st.Latest != nil {
		fmt.Fprintf(w, "Latest run:  %s %s\n", st.Latest.ID, st.Latest.Status)
	}
	if st.NextDue != nil {
		name := st.NextDue.Name
		if name == "" {
			name = st.NextDue.ScheduleID
		}
		fmt.Fprintf(w, "Next due:    %s at %s\n", name, st.NextDue.At.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Next due:    no schedules")
	}
}
