package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/msgraph"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

type outlookSyncOptions struct {
	from     string
	to       string
	date     string
	dryRun   bool
	timezone string
}

func newOutlookCmd(w *wiring) *cobra.Command {
	outlookCmd := &cobra.Command{
		Use:   "outlook",
		Short: "Outlook calendar integration",
	}

	var opts outlookSyncOptions
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Import Outlook calendar events as closed time entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOutlookSync(cmd, w, opts)
		},
	}
	syncCmd.Flags().StringVar(&opts.from, "from", "", "Start date (YYYY-MM-DD); required when --to is specified")
	syncCmd.Flags().StringVar(&opts.to, "to", "", "End date (YYYY-MM-DD); defaults to today")
	syncCmd.Flags().StringVar(&opts.date, "date", "", "Sync a specific date (YYYY-MM-DD); defaults to today")
	syncCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print planned operations without writing")
	syncCmd.Flags().StringVar(&opts.timezone, "timezone", "", "IANA timezone for event times (overrides outlook.timezone)")
	syncCmd.MarkFlagsMutuallyExclusive("date", "from")
	syncCmd.MarkFlagsMutuallyExclusive("date", "to")

	outlookCmd.AddCommand(syncCmd)
	return outlookCmd
}

// syncRange resolves the flags to [from, to] in loc.
func syncRange(opts outlookSyncOptions, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	parse := func(flag, s string) (time.Time, error) {
		t, err := timecalc.ParseDate(s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --%s value %q: %w", flag, s, err)
		}
		return t, nil
	}

	switch {
	case opts.date != "":
		d, err := parse("date", opts.date)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return timecalc.StartOfDay(d), timecalc.EndOfDay(d), nil

	case opts.from != "" || opts.to != "":
		if opts.from == "" {
			return time.Time{}, time.Time{}, errors.New("--from is required when --to is specified")
		}
		from, err := parse("from", opts.from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to := now.In(loc)
		if opts.to != "" {
			if to, err = parse("to", opts.to); err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, errors.New("--to must not be before --from")
		}
		return timecalc.StartOfDay(from), timecalc.EndOfDay(to), nil
	}

	today := now.In(loc)
	return timecalc.StartOfDay(today), timecalc.EndOfDay(today), nil
}

func runOutlookSync(cmd *cobra.Command, w *wiring, opts outlookSyncOptions) error {
	a, err := w.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	from, to, err := syncRange(opts, a.now(), a.loc)
	if err != nil {
		return userFailure(err)
	}

	timezone := opts.timezone
	if timezone == "" {
		timezone = a.cfg.Outlook.Timezone
	}

	out := cmd.OutOrStdout()
	dryTag := ""
	if opts.dryRun {
		dryTag = " [dry-run]"
	}
	fmt.Fprintf(out, "Syncing Outlook events (%s → %s)%s...\n\n",
		from.Format(timecalc.DateLayout), to.Format(timecalc.DateLayout), dryTag)

	tokenPath, err := msgraph.DefaultTokenPath()
	if err != nil {
		return err
	}
	auth := msgraph.NewAuthenticator(a.cfg.Outlook.TenantID, a.cfg.Outlook.ClientID, tokenPath, cmd.ErrOrStderr())
	client, err := auth.Client(cmd.Context())
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	events, err := client.GetCalendarView(cmd.Context(), from, to, timezone)
	if err != nil {
		return fmt.Errorf("failed to fetch calendar events: %w", err)
	}
	a.logger.Debug("fetched calendar events", "count", len(events))

	result, err := msgraph.SyncEvents(cmd.Context(), a.store, events, msgraph.SyncOptions{
		DryRun:   opts.dryRun,
		Timezone: timezone,
		Out:      out,
	})
	if err != nil {
		return storageFailure(fmt.Errorf("sync error: %w", err))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  %d imported\n", result.Imported)
	fmt.Fprintf(out, "  %d skipped\n", result.Skipped)
	fmt.Fprintf(out, "  %d updated\n", result.Updated)
	if result.Errors > 0 {
		fmt.Fprintf(out, "  %d errors\n", result.Errors)
		return storageFailure(fmt.Errorf("%d events could not be imported", result.Errors))
	}
	return nil
}
