package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/daybook-ai/daybook/internal/sources"
	"github.com/daybook-ai/daybook/internal/timeline"
	"github.com/daybook-ai/daybook/pkg/types"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline [date]",
	Short: "Build and print the timeline skeleton for a date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dateArg := "today"
		if len(args) > 0 {
			dateArg = args[0]
		}
		date, err := parseDateArg(dateArg)
		if err != nil {
			return err
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		// Same adapter wiring as the MCP server, minus the breakers: a CLI
		// invocation is one-shot, so there is no call series to protect.
		var device, receipts sources.Adapter
		if cfg.Sources.DeviceBaseURL != "" {
			device = sources.NewDeviceClient(sources.DeviceConfig{
				BaseURL:           cfg.Sources.DeviceBaseURL,
				APIKey:            cfg.Sources.DeviceAPIKey,
				RequestsPerSecond: cfg.Sources.DeviceRateLimit,
			})
		}
		if cfg.Sources.ReceiptsBaseURL != "" {
			receipts = sources.NewReceiptsClient(sources.ReceiptsConfig{
				BaseURL: cfg.Sources.ReceiptsBaseURL,
				APIKey:  cfg.Sources.ReceiptsAPIKey,
			})
		}

		builder := timeline.NewBuilder(db, device, sources.NewStoreAdapter(db), receipts, timeline.Options{
			GapThreshold: time.Duration(cfg.Timeline.GapThresholdMinutes) * time.Minute,
			FetchTimeout: cfg.Timeline.FetchTimeout,
		})

		skeleton, err := builder.Build(cmd.Context(), owner, date)
		if err != nil {
			return err
		}
		printSkeleton(cmd, skeleton)
		return nil
	},
}

func printSkeleton(cmd *cobra.Command, sk *types.TimelineSkeleton) {
	cmd.Printf("%s — %s\n", sk.Owner, sk.Date.Format("Mon 2006-01-02"))

	for source, status := range sk.Sources {
		if status.Failed {
			cmd.Printf("  ! %s unavailable: %s\n", source, status.Error)
		}
	}

	if len(sk.Blocks) == 0 {
		cmd.Println("  no confirmed blocks")
	}
	for _, b := range sk.Blocks {
		end := "…"
		if b.End != nil {
			end = b.End.Format("15:04")
		}
		title := b.Title
		if title == "" {
			title = b.Type
		}
		cmd.Printf("  %s–%s  %-13s %s (%s, %s)\n",
			b.Start.Format("15:04"), end, b.Type, title, b.Source, b.Confidence)
	}

	for _, g := range sk.Gaps {
		cmd.Printf("  %s–%s  gap: %d min unaccounted\n",
			g.Start.Format("15:04"), g.End.Format("15:04"), g.Minutes)
	}

	if len(sk.Unplaced) > 0 {
		cmd.Println("  unplaced anchors:")
		for _, a := range sk.Unplaced {
			cmd.Printf("    %s  %s — %s\n", a.Timestamp.Format("15:04"), a.Kind, a.Description)
		}
	}

	if len(sk.Skipped) > 0 {
		cmd.Printf("  %d record(s) skipped (see sources)\n", len(sk.Skipped))
	}
}

func init() {
	rootCmd.AddCommand(timelineCmd)
}
