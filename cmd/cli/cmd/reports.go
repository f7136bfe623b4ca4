package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	reportsService string
	reportsPeriod  string
	reportsLimit   int

	generatePeriod string
	generateAt     string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Browse stored usage reports",
	Long:  `Browse periodic usage reports, newest first.`,
	RunE:  runReports,
}

var reportsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate reports on demand",
	Long:  `Generate reports for a period immediately instead of waiting for the scheduler.`,
	RunE:  runReportsGenerate,
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsGenerateCmd)

	reportsCmd.Flags().StringVarP(&reportsService, "service", "s", "", "Service name (empty = cross-service rollups)")
	reportsCmd.Flags().StringVarP(&reportsPeriod, "period", "p", "", "Period filter (daily, weekly, monthly)")
	reportsCmd.Flags().IntVarP(&reportsLimit, "limit", "n", 0, "Maximum reports to return (default 20)")

	reportsGenerateCmd.Flags().StringVarP(&generatePeriod, "period", "p", "weekly", "Period type (daily, weekly, monthly)")
	reportsGenerateCmd.Flags().StringVar(&generateAt, "at", "", "Instant inside the target period (YYYY-MM-DD, empty = previous period)")
}

func runReports(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if reportsService != "" {
		params.Set("service", reportsService)
	}
	if reportsPeriod != "" {
		params.Set("period", reportsPeriod)
	}
	if reportsLimit > 0 {
		params.Set("limit", strconv.Itoa(reportsLimit))
	}

	reqURL := fmt.Sprintf("%s/api/v1/reports", serverURL)
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
		Reports []PeriodReport `json:"reports"`
		Count   int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if len(result.Reports) == 0 {
		fmt.Println("No reports stored.")
		return nil
	}

	printReportsTable(result.Reports)
	fmt.Printf("\n%d report(s)\n", result.Count)
	return nil
}

func runReportsGenerate(cmd *cobra.Command, args []string) error {
	body := map[string]string{"period_type": generatePeriod}
	if generateAt != "" {
		body["at"] = generateAt
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/v1/reports/generate", serverURL)

	resp, err := http.Post(reqURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(respBody))
	}

	var result struct {
		Reports []PeriodReport `json:"reports"`
		Count   int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Printf("Generated %d report(s)\n\n", result.Count)
	printReportsTable(result.Reports)
	return nil
}

func printReportsTable(reports []PeriodReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tPERIOD\tSTART\tCALLS\tERR RATE\tP95 MS\tQUOTA USED")
	for _, rep := range reports {
		name := rep.ServiceName
		if name == "" {
			name = "(all)"
		}
		quota := fmt.Sprintf("%d", rep.QuotaUsed)
		if rep.QuotaLimit > 0 {
			quota = fmt.Sprintf("%d/%d", rep.QuotaUsed, rep.QuotaLimit)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f%%\t%d\t%s\n",
			name, rep.PeriodType, rep.PeriodStart, rep.TotalCalls,
			rep.ErrorRate*100, rep.P95Ms, quota)
	}
	w.Flush()
}
