package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jakenelson/dockerfixture/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dockerfixture configuration",
	Long: `Manage dockerfixture configuration settings.

Commands:
  list    List all configuration settings
  get     Get a configuration value
  set     Set a configuration value
  path    Show configuration file path
  init    Create default configuration file

Examples:
  dockerfixture config list
  dockerfixture config get readiness.port_interval
  dockerfixture config set runtime.binary podman
  dockerfixture config set readiness.port_warn_after 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := viper.AllSettings()
		printSettingsFlat(cmd.OutOrStdout(), "", settings)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !viper.IsSet(key) {
			return fmt.Errorf("key not found: %s", key)
		}
		value := viper.Get(key)
		// Handle nested maps by printing them in a readable format
		if m, ok := value.(map[string]interface{}); ok {
			printSettingsFlat(cmd.OutOrStdout(), key, m)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Validate known keys
		if err := validateConfigKey(key, value); err != nil {
			return err
		}

		// Get config file path
		configPath := getConfigPath()

		// Ensure config directory exists
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		// Parse value (handle booleans)
		var parsedValue interface{} = value
		if value == "true" {
			parsedValue = true
		} else if value == "false" {
			parsedValue = false
		}

		// Update the value
		viper.Set(key, parsedValue)

		// Write config to file
		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
			fmt.Fprintln(cmd.OutOrStdout(), cfgFile)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), getConfigPath())
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := getConfigPath()
		configDir := filepath.Dir(configPath)

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s", configPath)
		}

		defaultConfig := `# Dockerfixture configuration

# Container runtime
runtime:
  binary: docker        # docker | podman | auto | /path/to/binary
  label: dockerfixture  # label attached to every fixture container

# Readiness polling
readiness:
  cid_interval: 100ms
  state_interval: 100ms
  port_interval: 200ms
  port_warn_after: 5s
  tcp_files:
    - /proc/self/net/tcp
    - /proc/self/net/tcp6

# Logging
log:
  debug: false
  dir: ""             # write a rotated log file to this directory
  max_size_mb: 20
  max_age_days: 7
  max_backups: 3

# Fixture file
fixtures:
  file: fixtures.yaml

# Host environment variables copied into every fixture container
environment:
  passthrough: []
    # - HTTP_PROXY
    # - HTTPS_PROXY
`

		if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configPath)
		return nil
	},
}

// printSettingsFlat prints settings in dot notation
func printSettingsFlat(w io.Writer, prefix string, settings map[string]interface{}) {
	// Collect keys and sort them for consistent output
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			printSettingsFlat(w, fullKey, nested)
		} else {
			fmt.Fprintf(w, "%s: %v\n", fullKey, value)
		}
	}
}

// getConfigPath returns the default config file path
func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dockerfixture", "config.yaml")
}

// validateConfigKey validates key/value pairs for known configuration keys
func validateConfigKey(key, value string) error {
	if (strings.HasPrefix(key, "readiness.") && strings.HasSuffix(key, "_interval")) || key == "readiness.port_warn_after" {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid value for %s: %s (must be positive)", key, value)
		}
		return nil
	}

	validations := map[string][]string{
		"log.debug": {"true", "false"},
	}
	if allowed, exists := validations[key]; exists {
		for _, v := range allowed {
			if value == v {
				return nil
			}
		}
		return fmt.Errorf("invalid value for %s: %s (allowed: %s)", key, value, strings.Join(allowed, ", "))
	}

	if key == "runtime.binary" && value == "" {
		return fmt.Errorf("invalid value for %s: empty (use %s, %s or %s)", key, config.RuntimeDocker, config.RuntimePodman, config.RuntimeAuto)
	}
	return nil // Unknown keys pass through
}
