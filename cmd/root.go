// Package cmd provides the command-line interface for the ESS EPM telemetry poller.

package cmd

import (
	"fmt"
	"os"

	"github.com/geekxflood/common/config"
	"github.com/spf13/cobra"

	"github.com/lsst-ts/ts-ess-epm/internal/app"
)

var (
	cfgFile string
	version = "dev" // Will be set by build flags
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "ts-ess-epm",
	Version: version,
	Short:   "Electrical power manager telemetry poller",
	Long: `ts-ess-epm polls electrical power manager devices, power distribution
units, UPSes and generator controllers over SNMP and Modbus and publishes
their telemetry.`,
	Example: `# Start the poller with default config
	ts-ess-epm

	# Start with specific configuration file
	ts-ess-epm --config /etc/ts-ess-epm/config.yaml

	# Generate sample configuration
	ts-ess-epm generate --output config.yaml

	# Validate configuration
	ts-ess-epm validate --config config.yaml`,
	RunE: runPoller,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func runPoller(cmd *cobra.Command, args []string) error {
	manager, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer manager.Close()

	application, err := app.NewApplication(manager)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.Run()
}

func loadConfig() (config.Manager, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		// Try default locations
		defaultPaths := []string{
			"config.yaml",
			"config.yml",
			"/etc/ts-ess-epm/config.yaml",
			"/etc/ts-ess-epm/config.yml",
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	options := config.Options{
		SchemaPath: "cmd/schemas/config.cue",
		ConfigPath: configPath,
	}

	if configPath == "" {
		fmt.Println("No configuration file found, using schema defaults")
	} else {
		fmt.Printf("Loading configuration from: %s\n", configPath)
	}

	manager, err := config.NewManager(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	return manager, nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")

	// Handle version flag
	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
			fmt.Printf("ts-ess-epm version %s\n", version)
			os.Exit(0)
		}
		return nil
	}
}
