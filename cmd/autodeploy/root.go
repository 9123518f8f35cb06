package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Bidon15/autodeploy/internal/config"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Global flag variables
var (
	cfgFile string
	envFile string
	jsonOut bool
	verbose bool
)

// Default values
const (
	DefaultConfigName = ".autodeploy"
	DefaultEnvFile    = ".env"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "autodeploy",
	Short: "autodeploy - repeated token deployments across EVM networks",
	Long: `autodeploy deploys freshly named token contracts, round after round, on every
selected network with every configured key until each (network, key) pair
runs out of funds or fails.

Configuration (in order of priority):
  1. Command-line flags
  2. Environment variables (AUTODEPLOY_*, plus PRIVATE_KEY and PRIVATE_KEYS)
  3. A .env file in the working directory (--env-file)
  4. Config file (~/.autodeploy.yaml)

Get started:
  $ autodeploy networks                                  # List testnets
  $ autodeploy check                                     # Verify RPCs and balances
  $ autodeploy deploy --artifact out/Token.sol/Token.json`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupConfig,
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit hash, and build date of autodeploy",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "autodeploy %s\n", Version)
		if verbose {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.autodeploy.yaml)")
	pf.StringVar(&envFile, "env-file", DefaultEnvFile, "dotenv file holding PRIVATE_KEY / PRIVATE_KEYS")
	pf.String("network-type", "testnet", "catalog section to use (or AUTODEPLOY_NETWORK_TYPE)")
	pf.String("catalog", "", "network catalog YAML file (default is the built-in catalog)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", config.DefaultLogFormat, "log format: text or json")
	pf.BoolVar(&jsonOut, "json", false, "output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// SetInput sets the input reader for interactive prompts (for testing)
func SetInput(r io.Reader) {
	rootCmd.SetIn(r)
}

// ResetFlags resets all global flags and viper state to their defaults (for testing)
func ResetFlags() {
	cfgFile = ""
	envFile = DefaultEnvFile
	jsonOut = false
	verbose = false
	viper.Reset()
	resetCommandFlags(rootCmd)
}

func resetCommandFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	// pflag keeps the positional args of the previous parse when the next
	// parse gets none.
	_ = cmd.Flags().Parse([]string{"--"})
	for _, sub := range cmd.Commands() {
		resetCommandFlags(sub)
	}
}

// setupConfig layers defaults, the YAML config file, the dotenv file,
// environment variables and flags into the global viper instance.
func setupConfig(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigName)
	}

	config.BindEnv(v)
	bindFlags(v, cmd.Flags())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		// An explicit --config must exist, except for config init which creates it.
		if !missing || (cfgFile != "" && cmd != configInitCmd) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if envFile != "" {
		if err := config.MergeDotEnv(v, envFile); err != nil {
			return err
		}
	}
	return nil
}

// bindFlags binds every flag whose name maps to a setting key (--pacing-min -> pacing_min).
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if config.IsKey(key) {
			_ = v.BindPFlag(key, f)
		}
	})
}

// loadConfig decodes and validates the layered configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// networkType returns the catalog section named by the optional positional
// argument, falling back to --network-type.
func networkType(cfg *config.Config, args []string) string {
	if len(args) == 1 && args[0] != "" {
		return args[0]
	}
	return cfg.NetworkType
}

// newLogger builds the slog logger selected by --log-level and --log-format.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// configFilePath returns the config file path, honouring --config.
func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigName + ".yaml"
	}
	return filepath.Join(home, DefaultConfigName+".yaml")
}

// Output helpers

// printJSON outputs data as formatted JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError prints an error message.
func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "%s %s\n", colorRed("Error:"), err.Error())
}

// newTable creates a new tabwriter for formatted output.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printTableHeader prints a bold header row.
func printTableHeader(w *tabwriter.Writer, columns ...string) {
	for i, col := range columns {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, colorBold(col))
	}
	_, _ = fmt.Fprintln(w)
}

// Terminal colors

func colorRed(s string) string {
	return colorize("\033[31m", s)
}

func colorGreen(s string) string {
	return colorize("\033[32m", s)
}

func colorYellow(s string) string {
	return colorize("\033[33m", s)
}

func colorCyan(s string) string {
	return colorize("\033[36m", s)
}

func colorBold(s string) string {
	return colorize("\033[1m", s)
}

func colorize(code, s string) string {
	if !isTTY() {
		return s
	}
	return code + s + "\033[0m"
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// maskKey masks a private key for display.
func maskKey(key string) string {
	if key == "" {
		return colorYellow("(not set)")
	}
	if len(key) <= 12 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}
