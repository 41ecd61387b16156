package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/garrison-chat/garrison/internal/auth"
	"github.com/garrison-chat/garrison/internal/barrack"
	"github.com/garrison-chat/garrison/internal/config"
	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/logging"
	"github.com/garrison-chat/garrison/internal/messagestore"
	"github.com/garrison-chat/garrison/internal/relay"
	"github.com/garrison-chat/garrison/internal/server"
	"github.com/garrison-chat/garrison/internal/stats"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "garrison-server",
		Short: "Websocket chat server with barrack rooms and durable message history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	store, err := database.NewPgStore(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	msgStore, err := messagestore.Open(cfg.Messages.Dir, logger)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	defer msgStore.Close()

	mux := http.NewServeMux()
	recorder := stats.NewPromRecorder(mux)

	authMgr := auth.NewManager(logger, store)
	barracks := barrack.NewManager(logger, store, msgStore, recorder, cfg.Messages.QueueSize, cfg.Messages.FetchLimit)
	defer barracks.Close()

	outboxRelay := relay.New(logger, store, msgStore, recorder,
		cfg.Relay.PollInterval, cfg.Relay.BatchSize, cfg.Relay.ErrorBackoff)
	outboxRelay.Start()
	defer outboxRelay.Stop()

	srv := server.NewServer(logger, cfg, authMgr, barracks, recorder, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
