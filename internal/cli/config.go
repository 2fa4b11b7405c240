package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bunko/bunko/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bunko configuration",
	Long: `View and edit bunko configuration.

Commands:
  show    - Display current configuration
  edit    - Open configuration in editor
  reset   - Reset to default configuration
  path    - Show configuration file paths
  set     - Set a single value`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd.OutOrStdout(), bunkoConfig)
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration in your editor",
	Long: `Open the global configuration file in your default editor.

The editor is taken from the EDITOR environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return editConfig()
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetConfig(cmd.OutOrStdout(), config.GlobalConfigPath())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfigPaths(cmd.OutOrStdout())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the global config file.

Keys:
  archive.base_url       - Search service endpoint
  search.k_internal      - Archive results per question (1-20)
  search.k_web           - Web results per question (0-10)
  search.include_web     - Include web search (true/false)
  inference.provider     - Inference provider (ollama, openai, gemini)
  inference.model        - Model for the selected provider
  inference.ollama_host  - Ollama API endpoint
  inference.temperature  - Sampling temperature
  cache.enabled          - Cache search results in Redis (true/false)
  cache.addr             - Redis address
  events.kafka.brokers   - Comma separated Kafka brokers
  metrics.enabled        - Serve Prometheus metrics (true/false)
  logging.level          - debug, info, warn, error
  cli.theme              - dark, light
  cli.stream_response    - Stream answers (true/false)

Examples:
  bunko config set inference.provider ollama
  bunko config set search.k_internal 8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConfigValue(cmd.OutOrStdout(), config.GlobalConfigPath(), args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
}

func showConfig(w io.Writer, cfg *config.Config) error {
	redacted := *cfg
	redacted.Inference.OpenAIAPIKey = redact(redacted.Inference.OpenAIAPIKey)
	redacted.Inference.GeminiAPIKey = redact(redacted.Inference.GeminiAPIKey)
	redacted.Cache.Password = redact(redacted.Cache.Password)

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(w, "# bunko configuration")
	fmt.Fprintln(w, "# Location:", config.GlobalConfigPath())
	fmt.Fprintln(w)
	fmt.Fprint(w, string(data))
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func editConfig() error {
	configPath := config.GlobalConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(bunkoConfig, configPath); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vim"
	}

	cmd := exec.Command(editor, configPath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func resetConfig(w io.Writer, path string) error {
	cfg := config.Default()
	if err := config.Save(&cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(w, "Configuration reset to defaults")
	fmt.Fprintln(w, "Saved to:", path)
	return nil
}

func showConfigPaths(w io.Writer) error {
	globalDir, projectDir := config.ConfigPaths()

	fmt.Fprintln(w, "Configuration Paths:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global config directory:", globalDir)
	fmt.Fprintln(w, "Global config file:     ", config.GlobalConfigPath())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Project config directory:", projectDir)
	fmt.Fprintln(w, "Project config file:     ", config.ProjectConfigPath())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The project config (if present) overrides global settings.")
	fmt.Fprintln(w, "BUNKO_* environment variables override both.")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Status:")
	for _, f := range []struct{ label, path string }{
		{"Global config", config.GlobalConfigPath()},
		{"Project config", config.ProjectConfigPath()},
	} {
		state := "not found"
		if _, err := os.Stat(f.path); err == nil {
			state = "exists"
		}
		fmt.Fprintf(w, "  %s: %s\n", f.label, state)
	}
	return nil
}

// setConfigValue edits the file at path only, so values coming from the
// project file or the environment are not copied into it.
func setConfigValue(w io.Writer, path, key, value string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}
