package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/config"
	"github.com/Bidon15/autodeploy/internal/deployer"
	"github.com/Bidon15/autodeploy/internal/ledger"
	"github.com/Bidon15/autodeploy/internal/metrics"
	"github.com/Bidon15/autodeploy/internal/orchestrator"
	"github.com/Bidon15/autodeploy/internal/registry"
	"github.com/Bidon15/autodeploy/internal/tokengen"
)

// ErrNoArtifact is returned when no compiled token contract is configured.
var ErrNoArtifact = errors.New("contract artifact required. Set via --artifact, AUTODEPLOY_ARTIFACT, or ~/.autodeploy.yaml")

// executor is the deployment backend driven by the orchestrator.
type executor interface {
	orchestrator.Executor
	Close()
}

// newExecutor builds the go-ethereum deployer; replaced in tests.
var newExecutor = func(cfg *config.Config, artifact *deployer.Artifact, logger *slog.Logger) (executor, error) {
	return deployer.New(deployer.Config{
		Logger:         logger,
		Artifact:       artifact,
		DefaultKey:     cfg.PrivateKey,
		Decimals:       cfg.Decimals,
		ReceiptTimeout: cfg.ReceiptTimeout,
	})
}

var deployCmd = &cobra.Command{
	Use:   "deploy [network-type]",
	Short: "Deploy random tokens until every network and key is exhausted",
	Long: `Deploy freshly generated tokens on the selected networks, once per key per
round, until every (network, key) pair has run out of funds or failed.

Networks are chosen from the catalog by their list number, either with
--networks "1,3" or interactively. Keys come from PRIVATE_KEYS (comma
separated) or PRIVATE_KEY.`,
	Example: `  autodeploy deploy --artifact out/Token.sol/Token.json
  autodeploy deploy --networks 1,2 --policy network-abort --ledger runs.jsonl
  autodeploy deploy mainnet --max-rounds 3 --metrics-addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeploy,
}

func init() {
	f := deployCmd.Flags()
	f.String("networks", "", "comma-separated catalog numbers to deploy on (prompted when empty)")
	f.String("artifact", "", "compiled token contract JSON (Hardhat or Foundry)")
	f.String("words", "", "JSON word list overriding the built-in adjectives and nouns")
	f.Uint8("decimals", config.DefaultDecimals, "token decimals used to scale the supply")
	f.String("policy", string(orchestrator.PolicyIndependent), "failure policy: independent or network-abort")
	f.Duration("pacing-min", orchestrator.DefaultPacingMin, "minimum wait after each deployment")
	f.Duration("pacing-max", orchestrator.DefaultPacingMax, "maximum wait after each deployment")
	f.Duration("receipt-timeout", config.DefaultReceiptTimeout, "how long to wait for a deployment to be mined")
	f.Int("max-rounds", 0, "stop after this many rounds (0 = until exhausted)")
	f.Uint64("seed", 0, "seed for token generation and pacing (0 = random)")
	f.String("ledger", config.DefaultLedger, "JSON Lines file recording successful deployments (empty disables)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	printBanner(out)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	if err := cfg.RequireKeys(); err != nil {
		return err
	}
	if cfg.Artifact == "" {
		return ErrNoArtifact
	}
	artifact, err := deployer.LoadArtifact(cfg.Artifact)
	if err != nil {
		return err
	}

	gen, seed, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	networks, err := catalog.Load(cfg.Catalog, networkType(cfg, args))
	if err != nil {
		return err
	}
	printNetworkMenu(out, networks)

	input := cfg.Networks
	if input == "" {
		input, err = promptSelection(cmd.InOrStdin(), out)
		if err != nil {
			return err
		}
	}

	initial, err := registry.Initialize(catalog.Select(networks, input), cfg.Credentials())
	if err != nil {
		if errors.Is(err, registry.ErrNoSelection) {
			_, _ = fmt.Fprintln(out, colorRed("No valid networks selected. Exiting."))
		}
		return err
	}

	exec, err := newExecutor(cfg, artifact, logger)
	if err != nil {
		return err
	}
	defer exec.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observers, cleanup, err := buildObservers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := orchestrator.New(exec, gen, orchestrator.Config{
		Logger:    logger,
		Policy:    cfg.OrchestratorPolicy(),
		PacingMin: cfg.PacingMin,
		PacingMax: cfg.PacingMax,
		MaxRounds: cfg.MaxRounds,
		Rand:      tokengen.NewRand(seed + 1),
		Observers: observers,
	})

	_, _ = fmt.Fprintf(out, "\n%s\n", colorYellow(fmt.Sprintf(
		"Starting deployment on %d network(s) with %d key(s). Deployment continues until every pair runs out of funds or fails.",
		initial.NetworkCount(), initial.Len()/initial.NetworkCount())))
	logger.Info("token generator seeded", slog.Uint64("seed", seed))

	summary, runErr := orch.Run(ctx, initial)
	printSummary(out, summary)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			_, _ = fmt.Fprintln(out, colorYellow("Interrupted, stopping."))
			return nil
		}
		return runErr
	}
	if summary.Remaining == 0 {
		_, _ = fmt.Fprintln(out, colorRed("All selected networks have halted deployment."))
	}
	return nil
}

// newGenerator returns the token generator and the seed it was built from.
func newGenerator(cfg *config.Config) (*tokengen.Generator, uint64, error) {
	words := tokengen.DefaultWords()
	if cfg.Words != "" {
		w, err := tokengen.LoadWords(cfg.Words)
		if err != nil {
			return nil, 0, err
		}
		words = w
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	gen, err := tokengen.New(tokengen.NewRand(seed), words)
	if err != nil {
		return nil, 0, err
	}
	return gen, seed, nil
}

// buildObservers opens the ledger and starts the metrics server as configured.
func buildObservers(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]orchestrator.Observer, func(), error) {
	var (
		observers []orchestrator.Observer
		closers   []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Ledger != "" {
		w, err := ledger.Open(cfg.Ledger, logger)
		if err != nil {
			return nil, cleanup, err
		}
		observers = append(observers, w)
		closers = append(closers, func() { _ = w.Close() })
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observers = append(observers, metrics.NewRecorder(reg))

		srv, err := metrics.Start(ctx, cfg.MetricsAddr, reg, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("start metrics server: %w", err)
		}
		closers = append(closers, func() { _ = srv.Close() })
	}

	return observers, cleanup, nil
}

func printBanner(w io.Writer) {
	_, _ = fmt.Fprintln(w, colorGreen("======================================"))
	_, _ = fmt.Fprintln(w, colorBold(colorGreen("        EVM Auto Deploy Tool         ")))
	_, _ = fmt.Fprintln(w, colorGreen("======================================"))
	_, _ = fmt.Fprintln(w)
}

func printNetworkMenu(w io.Writer, networks []catalog.Network) {
	_, _ = fmt.Fprintln(w, colorYellow("Available networks:"))
	for i, n := range networks {
		_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, n.Name)
	}
}

// promptSelection reads one line of network numbers. EOF without input yields "".
func promptSelection(in io.Reader, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, colorCyan("\nSelect networks (enter numbers separated by comma): "))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read selection: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printSummary(w io.Writer, s orchestrator.Summary) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, colorBold("Run summary"))
	table := newTable(w)
	_, _ = fmt.Fprintf(table, "Run ID:\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(table, "Rounds:\t%d\n", s.Rounds)
	_, _ = fmt.Fprintf(table, "Attempts:\t%d\n", s.Attempts)
	_, _ = fmt.Fprintf(table, "Deployed:\t%s\n", colorGreen(fmt.Sprint(s.Deployed)))
	_, _ = fmt.Fprintf(table, "Insufficient funds:\t%d\n", s.Exhausted)
	_, _ = fmt.Fprintf(table, "Failed:\t%d\n", s.Failed)
	if s.Skipped > 0 {
		_, _ = fmt.Fprintf(table, "Skipped:\t%d\n", s.Skipped)
	}
	_, _ = fmt.Fprintf(table, "Still active:\t%d\n", s.Remaining)
	_ = table.Flush()
}
