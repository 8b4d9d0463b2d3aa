package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/caregraph/internal/presentation/graph"
	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/aretw0/caregraph/pkg/client"
	"github.com/aretw0/caregraph/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the responder graph",
	Long: `Outputs the responder graph as a Mermaid diagram (graph TD), JSON or YAML.
--current and --previous draw a highlight the way the chat view does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		serverURL, _ := cmd.Flags().GetString("url")
		format, _ := cmd.Flags().GetString("format")
		current, _ := cmd.Flags().GetString("current")
		previous, _ := cmd.Flags().GetString("previous")

		topo := domain.DefaultTopology()
		switch {
		case serverURL != "":
			topo, err = client.NewHTTPBinding(serverURL).Graph(context.Background())
		case cfg.Engine.Topology != "":
			topo, err = file.LoadTopology(cfg.Engine.Topology)
		}
		if err != nil {
			return fmt.Errorf("error loading graph: %w", err)
		}

		out := cmd.OutOrStdout()
		switch format {
		case "mermaid":
			var overlay *graph.Overlay
			if current != "" {
				overlay = &graph.Overlay{
					Current:  domain.Responder(current),
					Previous: domain.Responder(previous),
				}
				if previous != "" {
					overlay.Visited = []domain.Responder{domain.Responder(previous)}
				}
			}
			fmt.Fprint(out, graph.GenerateMermaid(topo, overlay))
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(topo)
		case "yaml":
			dest, _ := cmd.Flags().GetString("out")
			if dest == "" {
				return fmt.Errorf("--format yaml requires --out")
			}
			if err := file.SaveTopology(dest, topo); err != nil {
				return err
			}
			fmt.Fprintf(out, "Topology written to %s\n", dest)
		default:
			return fmt.Errorf("unknown format %q (want mermaid, json or yaml)", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("url", "", "Fetch the graph from a running server")
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid, json or yaml")
	graphCmd.Flags().StringP("out", "o", "", "Destination file for the yaml format")
	graphCmd.Flags().String("current", "", "Highlight this responder as active")
	graphCmd.Flags().String("previous", "", "Highlight the hop from this responder")
}
