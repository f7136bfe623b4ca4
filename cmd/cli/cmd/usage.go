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
	usageService string
	usageFrom    string
	usageTo      string
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View call volume and error rates",
	Long:  `View aggregated call volume, outcomes, and per-endpoint breakdowns for a time window.`,
	RunE:  runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVarP(&usageService, "service", "s", "", "Filter by service name")
	usageCmd.Flags().StringVar(&usageFrom, "from", "", "Window start (YYYY-MM-DD or RFC3339)")
	usageCmd.Flags().StringVar(&usageTo, "to", "", "Window end (YYYY-MM-DD or RFC3339)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if usageService != "" {
		params.Set("service", usageService)
	}
	if usageFrom != "" {
		params.Set("from", usageFrom)
	}
	if usageTo != "" {
		params.Set("to", usageTo)
	}

	reqURL := fmt.Sprintf("%s/api/v1/usage", serverURL)
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

	var result UsageStats
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	printUsage(result)
	return nil
}

func printUsage(usage UsageStats) {
	fmt.Println("Usage")
	fmt.Println("=====")
	fmt.Println()

	if usage.ServiceName != "" {
		fmt.Printf("Service:       %s\n", usage.ServiceName)
	}
	fmt.Printf("Total Calls:   %d\n", usage.TotalCalls)
	fmt.Printf("Success:       %d\n", usage.SuccessCount)
	fmt.Printf("Failures:      %d\n", usage.FailureCount)
	fmt.Printf("Fallbacks:     %d\n", usage.FallbackCount)
	fmt.Printf("Error Rate:    %.1f%%\n", usage.ErrorRate*100)

	if usage.PeriodStart != "" && usage.PeriodEnd != "" {
		fmt.Printf("Window:        %s to %s\n", usage.PeriodStart, usage.PeriodEnd)
	}

	if len(usage.ByEndpoint) > 0 {
		endpoints := make([]string, 0, len(usage.ByEndpoint))
		for ep := range usage.ByEndpoint {
			endpoints = append(endpoints, ep)
		}
		sort.Strings(endpoints)

		fmt.Println("\nBy Endpoint:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ENDPOINT\tCALLS\tFAILURES\tAVG MS")
		for _, ep := range endpoints {
			eu := usage.ByEndpoint[ep]
			fmt.Fprintf(w, "  %s\t%d\t%d\t%.0f\n", ep, eu.Calls, eu.Failures, eu.AvgMs)
		}
		w.Flush()
	}
}
