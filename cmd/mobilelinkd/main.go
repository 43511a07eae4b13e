// Mobilelinkd polls the Generac Mobile Link dashboard for propane tank
// telemetry and republishes it for home automation consumers: Prometheus
// metrics, Home Assistant MQTT discovery, and redacted diagnostics.
//
// Usage:
//
//	mobilelinkd serve --config /etc/mobilelink/config.yaml
//	mobilelinkd discover --email user@example.com --password-file ./pw
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmansel/mobilelink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mobilelinkd",
	Short:   "Mobile Link propane tank poller",
	Long:    "Polls the Generac Mobile Link web dashboard for propane tank telemetry\nand republishes it as Prometheus metrics and Home Assistant MQTT sensors.",
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(discoverCmd)
}
