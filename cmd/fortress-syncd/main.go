// Copyright (c) 2025 Justin Cranford

// Package main is the entry point for the fortress sync server, the
// reference implementation of the blind object store that fortress clients
// sync against.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	fortresssync "fortress/internal/fortresssync"
	fortressTelemetry "fortress/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newSyncdCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newSyncdCommand() *cobra.Command {
	var listenAddr string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "fortress-syncd",
		Short: "Blind object-store sync server for fortress clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetEnvPrefix("FORTRESS_SYNCD")
			v.AutomaticEnv()
			if listenAddr == "" {
				listenAddr = v.GetString("listen")
			}
			if listenAddr == "" {
				listenAddr = ":8443"
			}
			return runServer(listenAddr, verbose)
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Address to listen on (default :8443, or $FORTRESS_SYNCD_LISTEN)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose structured logging")

	return cmd
}

func runServer(listenAddr string, verbose bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetrySettings := &fortressTelemetry.TelemetrySettings{
		ServiceName: "fortress-syncd",
		VerboseMode: verbose,
		OTLPConsole: verbose,
	}
	telemetryService, err := fortressTelemetry.NewTelemetryService(ctx, telemetrySettings)
	if err != nil {
		return fmt.Errorf("fortress-syncd: init telemetry: %w", err)
	}
	defer telemetryService.Shutdown()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(otelfiber.Middleware(otelfiber.WithServerName(telemetrySettings.ServiceName)))
	fortresssync.NewServer().Register(app)

	errCh := make(chan error, 1)
	go func() {
		telemetryService.Slogger.Info("fortress-syncd: listening", "addr", listenAddr)
		errCh <- app.Listen(listenAddr)
	}()

	select {
	case <-ctx.Done():
		telemetryService.Slogger.Info("fortress-syncd: shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("fortress-syncd: serve: %w", err)
		}
		return nil
	}
}
