package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/autodeploy/internal/catalog"
)

var networksCmd = &cobra.Command{
	Use:   "networks [network-type]",
	Short: "List the networks of a catalog section",
	Long: `List the networks available for selection, numbered as the deploy prompt
shows them. The type defaults to --network-type (testnet).`,
	Example: `  autodeploy networks
  autodeploy networks mainnet
  autodeploy networks --catalog ./my-networks.yaml --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNetworks,
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

func runNetworks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	networks, err := catalog.Load(cfg.Catalog, networkType(cfg, args))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, networks)
	}

	w := newTable(out)
	printTableHeader(w, "#", "NAME", "CHAIN ID", "RPC URL", "EXPLORER")
	for i, n := range networks {
		chainID := "-"
		if n.ChainID != 0 {
			chainID = fmt.Sprint(n.ChainID)
		}
		explorer := n.Explorer
		if explorer == "" {
			explorer = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, n.Name, chainID, n.RPCURL, explorer)
	}
	return w.Flush()
}
