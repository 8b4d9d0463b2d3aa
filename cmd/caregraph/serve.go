package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/aretw0/caregraph/internal/cli"
	"github.com/aretw0/caregraph/internal/metrics"
	"github.com/aretw0/caregraph/internal/telemetry"
	"github.com/aretw0/caregraph/pkg/adapters/file"
	api "github.com/aretw0/caregraph/pkg/adapters/http"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	Long: `Starts the orchestrator exposing the streaming chat API (NDJSON), the chat
WebSocket, file uploads, the responder graph and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("delivery") {
			d, _ := cmd.Flags().GetString("delivery")
			if cfg.Engine.Delivery, err = caregraph.ParseDelivery(d); err != nil {
				return err
			}
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		tel, err := telemetry.Setup(ctx, cfg.OTel)
		if err != nil {
			return fmt.Errorf("failed to set up telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = tel.Shutdown(shutdownCtx)
		}()

		logger := cli.NewLogger(cfg)
		m := metrics.New()

		rt, err := cli.BuildEngine(cfg, logger, cli.BuildOptions{
			Hooks:       m.Hooks(logger),
			StreamDelay: cli.DefaultStreamDelay,
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.Janitor {
			go rt.Engine.Sessions().RunJanitor(ctx, cfg.Session.JanitorInterval, cfg.Session.ThreadTTL)
		}

		attachments, err := file.NewAttachmentStore(cfg.Uploads.Dir, cfg.Uploads.NodeID,
			file.WithMaxUploadSize(cfg.Uploads.MaxSize))
		if err != nil {
			return fmt.Errorf("failed to open upload directory: %w", err)
		}

		handler, err := api.NewHandler(rt.Engine,
			api.WithAttachmentStore(attachments),
			api.WithLogger(logger),
			api.WithMaxInputSize(cfg.Engine.MaxInput),
			api.WithAllowedOrigins(cfg.Security.AllowedOrigins...),
			api.WithMetricsHandler(m.Handler()),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           otelhttp.NewHandler(handler, "caregraph"),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting caregraph server",
				"addr", srv.Addr,
				"store", cfg.Session.Store,
				"delivery", rt.Engine.Delivery(),
			)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil

		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
			logger.Info("Caregraph server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (env CAREGRAPH_ADDR)")
	serveCmd.Flags().String("delivery", "", "Reply delivery: tokens or message (env CAREGRAPH_DELIVERY)")
}
