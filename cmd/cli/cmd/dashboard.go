package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show the combined operator overview",
	Long:  `Show per-service usage, quota, latency, and open alerts in one view.`,
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	reqURL := fmt.Sprintf("%s/api/v1/dashboard", serverURL)

	resp, err := http.Get(reqURL)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(body))
	}

	var result Dashboard
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	printDashboard(result)
	return nil
}

func printDashboard(d Dashboard) {
	fmt.Println("Dashboard")
	fmt.Println("=========")
	fmt.Println()
	fmt.Printf("Window: %s to %s\n\n", d.WindowStart, d.WindowEnd)

	if len(d.Services) == 0 {
		fmt.Println("No services registered.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tCALLS\tERR RATE\tERRORS\tP95 MS\tDAILY QUOTA\tALERTS")
	for _, overview := range d.Services {
		daily := "-"
		for _, st := range overview.Quota {
			if st.PeriodType == "daily" && st.Limit > 0 {
				daily = fmt.Sprintf("%d/%d", st.Used, st.Limit)
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%d\t%d\t%s\t%d\n",
			overview.Service.Name,
			overview.Usage.TotalCalls,
			overview.Usage.ErrorRate*100,
			overview.ErrorCount,
			overview.Latency.P95Ms,
			daily,
			overview.OpenAlerts)
	}
	w.Flush()

	if len(d.OpenAlerts) > 0 {
		fmt.Println("\nOpen Alerts:")
		aw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, alert := range d.OpenAlerts {
			fmt.Fprintf(aw, "  %s\t%s\t%s\t%s\n",
				alert.ServiceName, alert.Type, alert.Severity, truncate(alert.Message, 60))
		}
		aw.Flush()
	} else {
		fmt.Println("\nNo open alerts.")
	}
}
