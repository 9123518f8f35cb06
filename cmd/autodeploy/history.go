package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Bidon15/autodeploy/internal/ledger"
)

var historyRunID string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show deployments recorded in the ledger",
	Long:  `Print the successful deployments recorded in the --ledger file, optionally limited to one run.`,
	Example: `  autodeploy history
  autodeploy history --run 5f0c3b9e-7c1d-4a4e-9d55-0c8f0e6f8b1a
  autodeploy history --ledger runs.jsonl --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "only show deployments of this run ID")
	historyCmd.Flags().String("ledger", "deployments.jsonl", "ledger file to read")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if historyRunID != "" {
		if _, err := uuid.Parse(historyRunID); err != nil {
			return fmt.Errorf("invalid run ID: %w", err)
		}
	}

	records, err := ledger.ReadFile(cfg.Ledger)
	if err != nil {
		return err
	}
	records = ledger.Filter(records, historyRunID)

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, records)
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, colorYellow("No deployments recorded."))
		return nil
	}

	w := newTable(out)
	printTableHeader(w, "TIME", "ROUND", "NETWORK", "SYMBOL", "NAME", "SUPPLY", "ADDRESS")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			r.DeployedAt.Format("2006-01-02 15:04:05"),
			r.Round,
			r.Network,
			r.TokenSymbol,
			r.TokenName,
			r.TokenSupply,
			r.Address,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\n%d deployment(s)\n", len(records))
	return nil
}
