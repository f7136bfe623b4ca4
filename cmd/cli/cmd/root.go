package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL    string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "apigov",
	Short: "apigov CLI - monitor outbound API call governance",
	Long: `apigov governs and monitors outbound calls to third-party APIs.

This CLI tool allows you to:
- Check remaining quota per service and billing period
- Review call volume, error rates, and latency percentiles
- List and resolve active alerts
- Generate and browse periodic usage reports`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getEnvOrDefault("APIGOV_URL", "http://localhost:8080"), "apigov server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
