package main

import (
	"fmt"

	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <topology.yaml>",
	Short: "Check a topology file for consistency",
	Long: `Parses a topology file and reports unknown fields, dangling edges and
specialists without a way back to the hub. Intents no responder declares are
listed as warnings, since those turns stay with the hub.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := file.LoadTopology(args[0])
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, intent := range domain.Intents {
			handled := false
			for _, n := range topo.Nodes {
				if topo.Handles(n.ID, intent) {
					handled = true
					break
				}
			}
			if !handled {
				fmt.Fprintf(out, "warning: no responder declares %q, the hub keeps those turns\n", intent)
			}
		}
		fmt.Fprintf(out, "Topology is valid: %d responders, %d edges, hub %s\n",
			len(topo.Nodes), len(topo.Edges), topo.Hub())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
