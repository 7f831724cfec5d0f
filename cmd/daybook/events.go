package main

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage confirmed event records",
}

var eventsListCmd = &cobra.Command{
	Use:   "list [date]",
	Short: "List stored events for a date",
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

		records, err := db.ListByDate(cmd.Context(), owner, date)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			cmd.Println("no events")
			return nil
		}
		for _, rec := range records {
			end := "…"
			if rec.End != nil {
				end = rec.End.Format("15:04")
			}
			title := rec.Title
			if title == "" {
				title = rec.Type
			}
			cmd.Printf("%s  %s–%s  %-13s %s\n", rec.ID, rec.Start.Format("15:04"), end, rec.Type, title)
		}
		return nil
	},
}

var (
	addDate  string
	addType  string
	addTitle string
	addStart string
	addEnd   string
)

var eventsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store a confirmed event record",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !types.IsValidBlockType(addType) {
			return fmt.Errorf("invalid event type %q", addType)
		}
		date, err := parseDateArg(addDate)
		if err != nil {
			return err
		}
		start, err := parseClock(addStart, date)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		if start == nil {
			return fmt.Errorf("a start time is required")
		}
		end, err := parseClock(addEnd, date)
		if err != nil {
			return fmt.Errorf("end: %w", err)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.EnsureOwner(cmd.Context(), owner, owner); err != nil {
			return err
		}

		rec := &storage.EventRecord{
			ID:    "evt:" + ulid.Make().String(),
			Owner: owner,
			Date:  types.DayStart(date),
			Start: *start,
			End:   end,
			Type:  addType,
			Title: addTitle,
		}
		if err := db.Store(cmd.Context(), rec); err != nil {
			return err
		}
		cmd.Println(rec.ID)
		return nil
	},
}

var eventsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored event record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Delete(cmd.Context(), args[0])
	},
}

// parseClock accepts RFC 3339 or a bare HH:MM interpreted on the given date.
// Empty input returns nil.
func parseClock(s string, day time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	clock, err := time.Parse("15:04", s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: expected HH:MM or RFC 3339", s)
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, day.Location())
	return &t, nil
}

func init() {
	eventsAddCmd.Flags().StringVar(&addDate, "date", "today", "event date (YYYY-MM-DD)")
	eventsAddCmd.Flags().StringVar(&addType, "type", "generic", "event type")
	eventsAddCmd.Flags().StringVar(&addTitle, "title", "", "event title")
	eventsAddCmd.Flags().StringVar(&addStart, "start", "", "start time (HH:MM or RFC 3339)")
	eventsAddCmd.Flags().StringVar(&addEnd, "end", "", "end time (HH:MM or RFC 3339)")

	eventsCmd.AddCommand(eventsListCmd, eventsAddCmd, eventsDeleteCmd)
	rootCmd.AddCommand(eventsCmd)
}
