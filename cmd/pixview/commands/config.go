package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pixview configuration",
	Long:  `View and manage pixview configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current pixview configuration, including flag overrides.`,
	Example: `  # Show configuration as YAML (default)
  pixview config show

  # Show configuration as JSON
  pixview config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value and save it to the config file.`,
	Example: `  # Use the terminal backend by default
  pixview config set backend term

  # Change the background around letterboxed frames
  pixview config set window.clear_color 0,0,0`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Example: `  # Get the remote listen address
  pixview config get remote.listen`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

// parseConfigValue validates value for key and converts it to the type
// stored in the config file.
func parseConfigValue(key, value string) (interface{}, error) {
	switch key {
	case "backend":
		for _, name := range surface.Bindings().Names() {
			if name == value {
				return value, nil
			}
		}
		return nil, fmt.Errorf("unknown backend: %s (available: %s)", value, strings.Join(surface.Bindings().Names(), ", "))
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return nil, fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		return value, nil
	case "window.width", "window.height", "window.tick_interval_ms":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid positive number: %s", value)
		}
		return n, nil
	case "remote.jpeg_quality":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 100 {
			return nil, fmt.Errorf("invalid JPEG quality: %s (use 1-100)", value)
		}
		return n, nil
	case "window.clear_color":
		parts := strings.Split(value, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid color: %s (use r,g,b)", value)
		}
		rgb := make([]int, 3)
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return nil, fmt.Errorf("invalid color component: %s", p)
			}
			rgb[i] = n
		}
		return rgb, nil
	case "remote.listen":
		return value, nil
	}
	return nil, fmt.Errorf("unknown configuration key: %s", key)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value, err := parseConfigValue(key, args[1])
	if err != nil {
		return err
	}

	if err := configMgr.Set(key, value); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Configuration updated: %s = %s\n", key, args[1])
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := configMgr.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Fprintln(cmd.OutOrStdout(), v.Get(key))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), configMgr.GetConfigPath())
	return nil
}
