package schedules

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/crucial707/hci-scheduler/cmd/cli/client"
	"github.com/crucial707/hci-scheduler/cmd/cli/output"
	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/timeofday"
	"github.com/spf13/cobra"
)

// now is swapped in tests.
var now = time.Now

func InitSchedules(rootCmd *cobra.Command) {
	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage daily scan schedules",
	}

	// ----- List -----
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Items []models.Schedule `json:"items"`
			}
			if err := client.Do(http.MethodGet, "/v1/schedules", nil, &resp); err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), resp.Items)
			}
			if len(resp.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedules.")
				return nil
			}

			rows := make([][]interface{}, 0, len(resp.Items))
			for _, s := range resp.Items {
				rows = append(rows, []interface{}{
					s.ID,
					s.Name,
					timeofday.Format(s.Hour, s.Minute),
					timeofday.Format(s.LocalHour, s.LocalMinute),
					s.OffsetMinutes,
				})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Name", "UTC", "Local", "Offset"}, rows)
			return nil
		},
	}
	listCmd.Flags().BoolP("json", "j", false, "Output as JSON")

	// ----- Create -----
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schedule at a local time of day",
		RunE: func(cmd *cobra.Command, args []string) error {
			hour, _ := cmd.Flags().GetInt("hour")
			minute, _ := cmd.Flags().GetInt("minute")
			name, _ := cmd.Flags().GetString("name")

			offset := timeofday.OffsetMinutes(now())
			if cmd.Flags().Changed("offset") {
				offset, _ = cmd.Flags().GetInt("offset")
			}
			if err := timeofday.Validate(hour, minute); err != nil {
				return err
			}

			body := map[string]any{
				"name":           name,
				"hour":           hour,
				"minute":         minute,
				"offset_minutes": offset,
			}
			var created models.Schedule
			if err := client.Do(http.MethodPost, "/v1/schedules", body, &created); err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s created: daily at %s UTC (%s local)\n",
				created.ID,
				timeofday.Format(created.Hour, created.Minute),
				timeofday.Format(created.LocalHour, created.LocalMinute),
			)
			return nil
		},
	}
	createCmd.Flags().Int("hour", 0, "Local hour (0-23)")
	createCmd.Flags().Int("minute", 0, "Local minute (0-59)")
	createCmd.Flags().StringP("name", "n", "", "Schedule name")
	createCmd.Flags().Int("offset", 0, "Minutes to add to local time to get UTC (default: this machine's zone)")
	createCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	createCmd.MarkFlagRequired("hour")
	createCmd.MarkFlagRequired("minute")

	// ----- Delete -----
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			if err := client.Do(http.MethodDelete, "/v1/schedules/"+url.PathEscape(id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s deleted\n", id)
			return nil
		},
	}
	deleteCmd.Flags().StringP("id", "i", "", "Schedule ID")
	deleteCmd.MarkFlagRequired("id")

	schedulesCmd.AddCommand(listCmd, createCmd, deleteCmd)
	rootCmd.AddCommand(schedulesCmd)
}
