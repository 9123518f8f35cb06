package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/config"
	"github.com/Bidon15/autodeploy/internal/orchestrator"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Commands for managing the autodeploy configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a new configuration file at ~/.autodeploy.yaml with interactive prompts.

Private keys are never written to this file; keep them in PRIVATE_KEY,
PRIVATE_KEYS or a .env file.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// fileConfig is the subset of settings written by config init.
type fileConfig struct {
	NetworkType string `yaml:"network_type"`
	Artifact    string `yaml:"artifact,omitempty"`
	Policy      string `yaml:"policy"`
	PacingMin   string `yaml:"pacing_min"`
	PacingMax   string `yaml:"pacing_max"`
	Ledger      string `yaml:"ledger"`
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())
	configPath := configFilePath()

	// Check if file exists
	if _, err := os.Stat(configPath); err == nil {
		_, _ = fmt.Fprintf(out, "%s Config file already exists at %s\n", colorYellow("⚠"), configPath)
		if answer := ask(in, out, "Overwrite? [y/N]: "); answer != "y" && answer != "Y" {
			_, _ = fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	fc := fileConfig{
		NetworkType: orDefault(ask(in, out, "Network type (press Enter for testnet): "), catalog.DefaultType),
		Artifact:    ask(in, out, "Token artifact path (optional, press Enter to skip): "),
		Policy:      orDefault(ask(in, out, "Failure policy [independent|network-abort] (press Enter for independent): "), string(orchestrator.PolicyIndependent)),
		PacingMin:   orchestrator.DefaultPacingMin.String(),
		PacingMax:   orchestrator.DefaultPacingMax.String(),
		Ledger:      config.DefaultLedger,
	}

	if _, err := orchestrator.ParsePolicy(fc.Policy); err != nil {
		return err
	}
	if _, err := catalog.Load("", fc.NetworkType); err != nil {
		return err
	}

	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	content := append([]byte("# autodeploy CLI configuration\n"), data...)

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(out, "%s Config file created at %s\n", colorGreen("✓"), configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	keys := len(cfg.Credentials())

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"network_type":    cfg.NetworkType,
			"catalog":         cfg.Catalog,
			"private_key":     maskKey(cfg.PrivateKey),
			"private_keys":    keys,
			"artifact":        cfg.Artifact,
			"policy":          cfg.Policy,
			"pacing_min":      cfg.PacingMin.String(),
			"pacing_max":      cfg.PacingMax.String(),
			"receipt_timeout": cfg.ReceiptTimeout.String(),
			"max_rounds":      cfg.MaxRounds,
			"ledger":          cfg.Ledger,
			"metrics_addr":    cfg.MetricsAddr,
			"config_file":     viper.ConfigFileUsed(),
		})
	}

	w := newTable(out)
	_, _ = fmt.Fprintf(w, "Network Type:\t%s\n", cfg.NetworkType)
	_, _ = fmt.Fprintf(w, "Catalog:\t%s\n", orDefault(cfg.Catalog, "(built-in)"))
	_, _ = fmt.Fprintf(w, "Private Key:\t%s\n", maskKey(cfg.PrivateKey))
	_, _ = fmt.Fprintf(w, "Private Keys:\t%d\n", keys)
	_, _ = fmt.Fprintf(w, "Artifact:\t%s\n", orDefault(cfg.Artifact, colorYellow("(not set)")))
	_, _ = fmt.Fprintf(w, "Policy:\t%s\n", cfg.Policy)
	_, _ = fmt.Fprintf(w, "Pacing:\t%s - %s\n", cfg.PacingMin, cfg.PacingMax)
	_, _ = fmt.Fprintf(w, "Receipt Timeout:\t%s\n", cfg.ReceiptTimeout)
	if cfg.MaxRounds > 0 {
		_, _ = fmt.Fprintf(w, "Max Rounds:\t%d\n", cfg.MaxRounds)
	} else {
		_, _ = fmt.Fprintf(w, "Max Rounds:\t%s\n", "unlimited")
	}
	_, _ = fmt.Fprintf(w, "Ledger:\t%s\n", orDefault(cfg.Ledger, "(disabled)"))
	if cfg.MetricsAddr != "" {
		_, _ = fmt.Fprintf(w, "Metrics:\t%s\n", cfg.MetricsAddr)
	}
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		_, _ = fmt.Fprintf(w, "Config File:\t%s\n", configFile)
	}
	return w.Flush()
}

// ask prints a prompt and returns the trimmed answer line.
func ask(in *bufio.Reader, out io.Writer, prompt string) string {
	_, _ = fmt.Fprint(out, prompt)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
