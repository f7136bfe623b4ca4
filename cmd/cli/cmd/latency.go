package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

var (
	latencyService  string
	latencyEndpoint string
	latencyFrom     string
	latencyTo       string
)

var latencyCmd = &cobra.Command{
	Use:   "latency",
	Short: "View latency percentiles",
	Long:  `View latency percentiles (p50, p95, p99) for calls in a time window.`,
	RunE:  runLatency,
}

func init() {
	rootCmd.AddCommand(latencyCmd)

	latencyCmd.Flags().StringVarP(&latencyService, "service", "s", "", "Filter by service name")
	latencyCmd.Flags().StringVarP(&latencyEndpoint, "endpoint", "e", "", "Filter by endpoint")
	latencyCmd.Flags().StringVar(&latencyFrom, "from", "", "Window start (YYYY-MM-DD or RFC3339)")
	latencyCmd.Flags().StringVar(&latencyTo, "to", "", "Window end (YYYY-MM-DD or RFC3339)")
}

func runLatency(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if latencyService != "" {
		params.Set("service", latencyService)
	}
	if latencyEndpoint != "" {
		params.Set("endpoint", latencyEndpoint)
	}
	if latencyFrom != "" {
		params.Set("from", latencyFrom)
	}
	if latencyTo != "" {
		params.Set("to", latencyTo)
	}

	reqURL := fmt.Sprintf("%s/api/v1/latency", serverURL)
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

	var result LatencyStats
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	printLatency(result)
	return nil
}

func printLatency(stats LatencyStats) {
	fmt.Println("Latency")
	fmt.Println("=======")
	fmt.Println()

	if stats.ServiceName != "" {
		fmt.Printf("Service:   %s\n", stats.ServiceName)
	}
	if stats.Endpoint != "" {
		fmt.Printf("Endpoint:  %s\n", stats.Endpoint)
	}
	fmt.Printf("Samples:   %d\n", stats.Count)

	if stats.Count == 0 {
		fmt.Println("\nNo calls in window.")
		return
	}

	fmt.Printf("Min:       %d ms\n", stats.MinMs)
	fmt.Printf("p50:       %d ms\n", stats.P50Ms)
	fmt.Printf("p95:       %d ms\n", stats.P95Ms)
	fmt.Printf("p99:       %d ms\n", stats.P99Ms)
	fmt.Printf("Max:       %d ms\n", stats.MaxMs)
}
