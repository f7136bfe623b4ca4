package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	quotaService string
	quotaPeriod  string
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Check remaining quota",
	Long:  `Check remaining call quota for a service across billing periods.`,
	RunE:  runQuota,
}

var quotaAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Check remaining quota for every enabled service",
	RunE:  runQuotaAll,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaAllCmd)

	quotaCmd.Flags().StringVarP(&quotaService, "service", "s", "", "Service name (required)")
	quotaCmd.Flags().StringVarP(&quotaPeriod, "period", "p", "", "Period filter (daily, weekly, monthly)")
}

func runQuota(cmd *cobra.Command, args []string) error {
	if quotaService == "" {
		return fmt.Errorf("--service is required")
	}

	params := url.Values{}
	params.Set("service", quotaService)
	if quotaPeriod != "" {
		params.Set("period", quotaPeriod)
	}

	reqURL := fmt.Sprintf("%s/api/v1/quota?%s", serverURL, params.Encode())

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
		Service string        `json:"service"`
		Quota   []QuotaStatus `json:"quota"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Printf("Quota for %s\n\n", result.Service)
	printQuotaTable(result.Quota)
	return nil
}

func runQuotaAll(cmd *cobra.Command, args []string) error {
	reqURL := fmt.Sprintf("%s/api/v1/quota/all", serverURL)

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
		Quota map[string][]QuotaStatus `json:"quota"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	names := make([]string, 0, len(result.Quota))
	for name := range result.Quota {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("Quota for %s\n\n", name)
		printQuotaTable(result.Quota[name])
		fmt.Println()
	}
	return nil
}

func printQuotaTable(statuses []QuotaStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tKEY\tUSED\tLIMIT\tREMAINING\tUTILIZATION")
	for _, st := range statuses {
		remaining := fmt.Sprintf("%d", st.Remaining)
		limit := formatLimit(st.Limit)
		if st.Limit <= 0 {
			remaining = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%.0f%%\n",
			st.PeriodType, st.PeriodKey, st.Used, limit, remaining, st.Utilization*100)
	}
	w.Flush()
}
