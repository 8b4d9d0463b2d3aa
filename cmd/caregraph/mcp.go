package main

import (
	"fmt"
	"log"

	"github.com/aretw0/caregraph/internal/cli"
	"github.com/aretw0/caregraph/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the orchestrator as an MCP Server so AI agents can hold patient
conversations through the send_message tool and read the responder graph.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		baseURL, _ := cmd.Flags().GetString("base-url")

		// Logs go to Stderr so they never corrupt JSON-RPC on Stdout.
		logger := cli.NewLogger(cfg)
		log.SetOutput(cmd.ErrOrStderr())

		rt, err := cli.BuildEngine(cfg, logger, cli.BuildOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := mcp.NewServer(rt.Engine,
			mcp.WithLogger(logger),
			mcp.WithMaxInputSize(cfg.Engine.MaxInput),
		)

		switch transport {
		case "stdio":
			logger.Info("Starting caregraph MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()

			if rt.Janitor {
				go rt.Engine.Sessions().RunJanitor(ctx, cfg.Session.JanitorInterval, cfg.Session.ThreadTTL)
			}
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			if err := srv.ServeSSE(ctx, addr, baseURL); err != nil {
				return fmt.Errorf("MCP server failed: %w", err)
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", ":8081", "Address for the sse transport")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced by the sse transport")
}
