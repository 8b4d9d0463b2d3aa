package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/caregraph/internal/cli"
	"github.com/aretw0/caregraph/internal/config"
	"github.com/aretw0/caregraph/internal/presentation/tui"
	"github.com/aretw0/caregraph/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the responders from the terminal",
	Long: `Starts an interactive conversation. Without --url the engine runs in-process;
with --url the chat goes to a running server over HTTP, or over its WebSocket
with --socket.

Commands inside the chat:
  /attach <path> [text]  send a file with an optional message
  /graph                 print the graph with the live highlight
  /thread                print the thread id
  /exit                  leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("log-level") && os.Getenv("CAREGRAPH_LOG_LEVEL") == "" {
			cfg.LogLevel = "warn"
		}
		logger := cli.NewLogger(cfg)

		serverURL, _ := cmd.Flags().GetString("url")
		useSocket, _ := cmd.Flags().GetBool("socket")
		threadID, _ := cmd.Flags().GetString("thread")
		noBanner, _ := cmd.Flags().GetBool("no-banner")

		if useSocket && serverURL == "" {
			return errors.New("--socket requires --url")
		}
		if useSocket && threadID != "" {
			return errors.New("--thread cannot be resumed over the socket")
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		var chat *cli.ChatSession
		switch {
		case useSocket:
			chat, err = cli.NewSocketChat(ctx, serverURL, logger)
		case serverURL != "":
			chat, err = cli.NewRemoteChat(ctx, serverURL, threadID, logger)
		default:
			var rt *cli.Runtime
			rt, err = cli.BuildEngine(cfg, logger, cli.BuildOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			attachments, aerr := file.NewAttachmentStore(cfg.Uploads.Dir, cfg.Uploads.NodeID,
				file.WithMaxUploadSize(cfg.Uploads.MaxSize))
			if aerr != nil {
				return fmt.Errorf("failed to open upload directory: %w", aerr)
			}
			chat = cli.NewLocalChat(rt.Engine, attachments, threadID, logger)
		}
		if err != nil {
			return err
		}
		defer chat.Close()

		out := cmd.OutOrStdout()
		rich := tui.IsTerminal(os.Stdout)
		printer := tui.NewPrinter(out, chat.Topology(), rich)
		if !noBanner {
			tui.PrintBanner(out, printer.Profile())
		}

		if err := chat.Run(ctx, cmd.InOrStdin(), out, printer, logger); err != nil {
			return err
		}
		resumable := serverURL != "" || cfg.Session.Store != config.StoreMemory
		if id := chat.Reconciler().ThreadID(); id != "" && !useSocket && resumable {
			fmt.Fprintf(out, "Resume with: caregraph chat --thread %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("url", "", "Base URL of a running caregraph server")
	chatCmd.Flags().Bool("socket", false, "Use the WebSocket endpoint of --url")
	chatCmd.Flags().String("thread", "", "Resume an existing thread")
	chatCmd.Flags().Bool("no-banner", false, "Do not print the banner")
}
