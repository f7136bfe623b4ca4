package cmd

import (
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
	errorsService string
	errorsLimit   int
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List recent call errors",
	Long:  `List recent errors recorded by the governor, newest first.`,
	RunE:  runErrors,
}

func init() {
	rootCmd.AddCommand(errorsCmd)

	errorsCmd.Flags().StringVarP(&errorsService, "service", "s", "", "Filter by service name")
	errorsCmd.Flags().IntVarP(&errorsLimit, "limit", "n", 0, "Maximum entries to return (default 50)")
}

func runErrors(cmd *cobra.Command, args []string) error {
	params := url.Values{}
	if errorsService != "" {
		params.Set("service", errorsService)
	}
	if errorsLimit > 0 {
		params.Set("limit", strconv.Itoa(errorsLimit))
	}

	reqURL := fmt.Sprintf("%s/api/v1/errors", serverURL)
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
		Errors []ErrorRecord `json:"errors"`
		Count  int           `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if len(result.Errors) == 0 {
		fmt.Println("No recent errors.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSERVICE\tENDPOINT\tKIND\tMESSAGE")
	for _, rec := range result.Errors {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt, rec.ServiceName, rec.Endpoint, rec.Kind, truncate(rec.Message, 60))
	}
	w.Flush()

	fmt.Printf("\n%d error(s)\n", result.Count)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
