// Package cmd provides the command-line interface for the ESS EPM telemetry poller.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	outputFile string
	force      bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate sample configuration files",
	Long:  `Generate sample configuration files for the ESS EPM telemetry poller.`,
	Example: `# Generate config to stdout
	ts-ess-epm generate

	# Generate config to specific file
	ts-ess-epm generate --output config.yaml

	# Overwrite existing file
	ts-ess-epm generate --output config.yaml --force`,
	RunE: generateConfig,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	generateCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
}

func generateConfig(cmd *cobra.Command, args []string) error {
	// Create sample configuration YAML content
	configYAML := `# ESS EPM Telemetry Poller Configuration
# This is a sample configuration file with default values and examples.
# Modify the values according to your environment and requirements.

app:
  name: "ts-ess-epm"
  log_level: "info"
  log_format: "json"
  shutdown_timeout: "30s"

devices:
  ups-main:
    protocol: "snmp"
    device_type: "xups"
    host: "10.0.1.10"
    port: 161
    snmp_community: "public"
    poll_interval: "1s"
    connect_timeout: "60s"
    max_read_timeouts: 5

  pdu-rack-4:
    protocol: "snmp"
    device_type: "raritan"
    host: "10.0.1.21"

  outlet-strip-2:
    protocol: "snmp"
    device_type: "netbooter"
    host: "10.0.1.30"

  power-meter-1:
    protocol: "snmp"
    device_type: "schneiderPm5xxx"
    host: "10.0.1.40"

  genset-1:
    protocol: "modbus"
    host: "10.0.2.10"
    port: 502
    slave_id: 1
    poll_interval: "1s"
    auto_reconnect: true

  # Simulated device for commissioning without hardware
  ups-sim:
    protocol: "snmp"
    device_type: "xups"
    host: "127.0.0.1"
    simulate: true

read_loop:
  max_read_failures: 5
  setup_attempts: 3
  initial_delay: "1s"
  max_delay: "30s"
  backoff_multiplier: 2.0
  jitter: true

storage:
  enabled: true
  database_type: "sqlite3"
  connection_string: "./ess_epm_telemetry.db"
  max_connections: 10
  retention_days: 30
  batch_size: 100
  flush_interval: "5s"

metrics:
  enabled: true
  listen_address: ":9090"
  metrics_path: "/metrics"
  health_path: "/health"
  ready_path: "/ready"
  update_interval: "30s"
  namespace: "ess_epm"
`

	// Output to file or stdout
	if outputFile == "" {
		fmt.Print(configYAML)
		return nil
	}

	// Check if file exists and force flag
	if _, err := os.Stat(outputFile); err == nil && !force {
		return fmt.Errorf("file %s already exists, use --force to overwrite", outputFile)
	}

	// Create directory if needed
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Write to file
	if err := os.WriteFile(outputFile, []byte(configYAML), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Printf("Configuration file generated: %s\n", outputFile)
	return nil
}
