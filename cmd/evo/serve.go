package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/cloudtrail"
	"github.com/rafaesapata/AWS-EVO-sub014/credentials"
	"github.com/rafaesapata/AWS-EVO-sub014/internal/server"
	"github.com/rafaesapata/AWS-EVO-sub014/orchestrator"
	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON action endpoint and collect on an interval",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "evo-collector",
		ServiceVersion: version,
		OTELEndpoint:   cfg.Server.OTLPEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client := awsclient.New()
	srv := server.New(
		orchestrator.New(client, store),
		cloudtrail.NewPaginator(client),
		credentials.FromEnv(client, cfg.Regions),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var group run.Group

	group.Add(func() error {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("listening")
		return httpServer.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Server.IntervalMinutes > 0 {
		loopCtx, cancel := context.WithCancel(ctx)
		group.Add(func() error {
			return srv.Loop(loopCtx, "env", time.Duration(cfg.Server.IntervalMinutes)*time.Minute)
		}, func(error) {
			cancel()
		})
	}

	group.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = group.Run()
	var sig run.SignalError
	if errors.As(err, &sig) || errors.Is(err, http.ErrServerClosed) {
		log.Info().Msg("shut down cleanly")
		return nil
	}
	return err
}
