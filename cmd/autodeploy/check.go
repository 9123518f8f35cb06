package main

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/autodeploy/internal/catalog"
	"github.com/Bidon15/autodeploy/internal/config"
	"github.com/Bidon15/autodeploy/internal/deployer"
	"github.com/Bidon15/autodeploy/internal/preflight"
	"github.com/Bidon15/autodeploy/internal/registry"
)

// ErrPreflightFailed is returned when at least one network fails its checks.
var ErrPreflightFailed = errors.New("pre-flight checks failed")

var (
	checkNetworks   string
	checkMinBalance string
)

var checkCmd = &cobra.Command{
	Use:   "check [network-type]",
	Short: "Verify RPC endpoints, chain IDs and key balances",
	Long: `Run pre-flight checks against the catalog networks: the RPC must answer, its
chain ID must match the catalog entry, and every configured key must hold at
least --min-balance ETH. Balance and nonce are fetched in one batched call.

Without keys only the RPC and chain ID checks run.`,
	Example: `  autodeploy check
  autodeploy check --networks 1,3 --min-balance 0.01
  autodeploy check mainnet --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkNetworks, "networks", "", "comma-separated catalog numbers (default: all)")
	checkCmd.Flags().StringVar(&checkMinBalance, "min-balance", "", "minimum balance in ETH per key (default: any non-zero balance)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	networks, err := catalog.Load(cfg.Catalog, networkType(cfg, args))
	if err != nil {
		return err
	}
	if checkNetworks != "" {
		networks = catalog.Select(networks, checkNetworks)
		if len(networks) == 0 {
			return registry.ErrNoSelection
		}
	}

	accounts, err := accountsOf(cfg)
	if err != nil {
		return err
	}

	var required *big.Int
	if checkMinBalance != "" {
		required, err = preflight.ParseETH(checkMinBalance)
		if err != nil {
			return err
		}
	}

	checker := preflight.NewChecker()
	responses := make([]*preflight.Response, 0, len(networks))
	allOK := true
	for _, n := range networks {
		resp, err := checker.RunChecks(cmd.Context(), &preflight.Request{
			Network:     n,
			Accounts:    accounts,
			RequiredWei: required,
		})
		if err != nil {
			return fmt.Errorf("check %s: %w", n.Name, err)
		}
		responses = append(responses, resp)
		allOK = allOK && resp.OK
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		if err := printJSON(out, responses); err != nil {
			return err
		}
	} else {
		printCheckResults(out, responses)
	}

	if !allOK {
		return ErrPreflightFailed
	}
	return nil
}

// accountsOf resolves the addresses of the configured keys.
func accountsOf(cfg *config.Config) ([]common.Address, error) {
	creds := cfg.Credentials()
	if len(creds) == 0 {
		if cfg.PrivateKey == "" {
			return nil, nil
		}
		creds = []registry.Credential{registry.DefaultCredential}
	}

	accounts := make([]common.Address, 0, len(creds))
	for _, c := range creds {
		addr, err := deployer.AddressOf(c, cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", c.Redacted(), err)
		}
		accounts = append(accounts, addr)
	}
	return accounts, nil
}

func printCheckResults(w io.Writer, responses []*preflight.Response) {
	for _, resp := range responses {
		status := colorGreen("✓")
		if !resp.OK {
			status = colorRed("✗")
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", status, colorBold(resp.Network))
		for _, c := range resp.Checks {
			mark := colorGreen("✓")
			if !c.Passed {
				mark = colorRed("✗")
			}
			_, _ = fmt.Fprintf(w, "  %s %s\n", mark, c.Message)
		}
		if len(resp.Accounts) > 0 {
			table := newTable(w)
			printTableHeader(table, "  ADDRESS", "BALANCE (ETH)", "NONCE")
			for _, a := range resp.Accounts {
				_, _ = fmt.Fprintf(table, "  %s\t%s\t%d\n", a.Address, a.BalanceETH, a.Nonce)
			}
			_ = table.Flush()
		}
	}
}
