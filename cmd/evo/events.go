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
	"github.com/rafaesapata/AWS-EVO-sub014/cloudtrail"
	"github.com/rafaesapata/AWS-EVO-sub014/credentials"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

var (
	eventsRegion string
	eventsMax    int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Look up recent CloudTrail events",
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsRegion, "region", "us-east-1", "region to query")
	eventsCmd.Flags().IntVar(&eventsMax, "max-events", cloudtrail.PageSize, "event cap (50, 200 or 500)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	if !cloudtrail.AllowedMaxEvents(eventsMax) {
		return fmt.Errorf("--max-events must be 50, 200 or 500")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := awsclient.New()
	resolver := credentials.FromEnv(client, []string{eventsRegion})
	resolved, err := resolver.Resolve(ctx, "env", eventsRegion)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	events, err := cloudtrail.NewPaginator(client).LookupEvents(ctx, resolved.Credentials, eventsRegion, eventsMax)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(types.EventLookupResult{Success: true, Events: events, Count: len(events)})
}
