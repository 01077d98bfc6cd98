package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/config"
	"github.com/rafaesapata/AWS-EVO-sub014/credentials"
	"github.com/rafaesapata/AWS-EVO-sub014/orchestrator"
	"github.com/rafaesapata/AWS-EVO-sub014/storage"
)

var collectRegions []string

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection pass and print the result",
	RunE:  runCollect,
}

func init() {
	collectCmd.Flags().StringSliceVar(&collectRegions, "regions", nil, "regions to collect (overrides config)")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	regions := cfg.Regions
	if len(collectRegions) > 0 {
		regions = collectRegions
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client := awsclient.New()
	resolver := credentials.FromEnv(client, regions)
	resolved, err := resolver.Resolve(ctx, "env", "")
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	result, err := orchestrator.New(client, store).Collect(ctx, resolved)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	if err := os.MkdirAll(cfg.Storage.Path, 0750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return storage.New(cfg.Storage.Path)
}
