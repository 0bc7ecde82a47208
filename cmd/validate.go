// Package cmd provides the command-line interface for the ESS EPM telemetry poller.
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/geekxflood/common/config"
	"github.com/spf13/cobra"

	"github.com/lsst-ts/ts-ess-epm/internal/telemetry"
)

var (
	checkDevices bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and device definitions",
	Long:  `Validate configuration files and optionally check the configured device definitions.`,
	Example: `# Validate configuration file
	ts-ess-epm validate --config config.yaml

	# Validate configuration and check device definitions
	ts-ess-epm validate --config config.yaml --check-devices

	# Validate using default config locations
	ts-ess-epm validate`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&checkDevices, "check-devices", false, "Also validate device definitions")
}

func validateConfig(cmd *cobra.Command, args []string) error {
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

		if configPath == "" {
			return fmt.Errorf("no configuration file found, specify with --config or create config.yaml")
		}
	}

	fmt.Printf("Validating configuration file: %s\n", configPath)

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	// Create config manager to validate the configuration
	manager, err := config.NewManager(config.Options{
		SchemaPath: "cmd/schemas/config.cue",
		ConfigPath: configPath,
	})
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	defer manager.Close()

	// Validate the configuration
	if err := manager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Println("✓ Configuration syntax is valid")

	// Validate device definitions if requested
	if checkDevices {
		if err := validateDevices(manager.(config.Provider)); err != nil {
			return fmt.Errorf("device validation failed: %w", err)
		}
		fmt.Println("✓ Device definitions are valid")
	}

	fmt.Println("✓ Configuration validation completed successfully")
	return nil
}

func validateDevices(provider config.Provider) error {
	devices, err := provider.GetMap("devices")
	if err != nil {
		return fmt.Errorf("devices section not found in configuration: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no devices configured")
	}

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prefix := "devices." + name

		host, err := provider.GetString(prefix + ".host")
		if err != nil || host == "" {
			return fmt.Errorf("device %q: host is required", name)
		}

		protocol := "snmp"
		if p, err := provider.GetString(prefix+".protocol", "snmp"); err == nil {
			protocol = p
		}

		switch protocol {
		case "snmp":
			deviceType, err := provider.GetString(prefix + ".device_type")
			if err != nil {
				return fmt.Errorf("device %q: device_type is required for SNMP devices", name)
			}
			if _, err := telemetry.SchemaFor(telemetry.Family(deviceType)); err != nil {
				return fmt.Errorf("device %q: %w", name, err)
			}
		case "modbus":
			// The AGC 150 register map is fixed, nothing further to check.
		default:
			return fmt.Errorf("device %q: unknown protocol %q", name, protocol)
		}

		fmt.Printf("  Device %q (%s, host %s) is valid\n", name, protocol, host)
	}

	return nil
}
