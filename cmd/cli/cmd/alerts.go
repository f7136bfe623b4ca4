package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	alertsService    string
	alertsResolvedBy string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List active alerts",
	Long:  `List alerts that are currently open, across all services or for one service.`,
	RunE:  runAlerts,
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an active alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsResolve,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsResolveCmd)

	alertsCmd.Flags().StringVarP(&alertsService, "service", "s", "", "Filter by service name")
	alertsResolveCmd.Flags().StringVar(&alertsResolvedBy, "by", "", "Operator label recorded on the alert (required)")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if alertsService != "" {
		params.Set("service", alertsService)
	}

	reqURL := fmt.Sprintf("%s/api/v1/alerts", serverURL)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	resp, err := http.Get(reqURL)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(body))
	}

	var result struct {
		Alerts []Alert `json:"alerts"`
		Count  int     `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if len(result.Alerts) == 0 {
		fmt.Println("No active alerts.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tTYPE\tSEVERITY\tOPENED\tMESSAGE")
	for _, alert := range result.Alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID, alert.ServiceName, alert.Type, alert.Severity,
			alert.OpenedAt, truncate(alert.Message, 50))
	}
	w.Flush()

	fmt.Printf("\n%d active alert(s)\n", result.Count)
	return nil
}

func runAlertsResolve(cmd *cobra.Command, args []string) error {
	if alertsResolvedBy == "" {
		return fmt.Errorf("--by is required")
	}

	alertID := args[0]
	payload, err := json.Marshal(map[string]string{"resolved_by": alertsResolvedBy})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/v1/alerts/%s/resolve", serverURL, url.PathEscape(alertID))

	resp, err := http.Post(reqURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(body))
	}

	fmt.Printf("Alert %s resolved by %s\n", alertID, alertsResolvedBy)
	return nil
}
