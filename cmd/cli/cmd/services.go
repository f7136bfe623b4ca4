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

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List governed services",
	Long:  `List the third-party services registered with the governor and their limits.`,
	RunE:  runServices,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	reqURL := fmt.Sprintf("%s/api/v1/services", serverURL)

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
		Services []Service `json:"services"`
		Count    int       `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if len(result.Services) == 0 {
		fmt.Println("No services registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY NAME\tENABLED\tDAILY\tWEEKLY\tMONTHLY\tRATE/S")
	for _, svc := range result.Services {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\t%s\n",
			svc.Name,
			svc.DisplayName,
			svc.Enabled,
			formatLimit(svc.DailyLimit),
			formatLimit(svc.WeeklyLimit),
			formatLimit(svc.MonthlyLimit),
			formatRate(svc.RatePerSec))
	}
	w.Flush()

	fmt.Printf("\n%d service(s)\n", result.Count)
	return nil
}

func formatLimit(limit int) string {
	if limit <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", limit)
}

func formatRate(rate float64) string {
	if rate <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", rate)
}
