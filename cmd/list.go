package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/report"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

type listOptions struct {
	week     bool
	previous bool
	date     string
}

func newListCmd(w *wiring) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List time entries grouped by day",
		Long: `List today's entries, or those of another day with --date.
--week lists the Monday-first week containing that day and --previous
lists every closed entry, most recent day first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ref, err := referenceDate(opts.date, a)
			if err != nil {
				return err
			}

			var groups []model.DateGroup
			switch {
			case opts.previous:
				groups, err = a.reports.Previous(cmd.Context())
			case opts.week:
				groups, err = a.reports.Week(cmd.Context(), ref)
			default:
				var day report.DaySummary
				day, err = a.reports.Day(cmd.Context(), ref)
				groups = report.GroupByDate(day.Entries, a.loc).Groups()
			}
			if err != nil {
				return storageFailure(err)
			}

			printList(cmd.OutOrStdout(), groups, a.loc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.week, "week", false, "List the week's closed entries")
	cmd.Flags().BoolVar(&opts.previous, "previous", false, "List all closed entries, most recent day first")
	cmd.Flags().StringVar(&opts.date, "date", "", "Reference day (YYYY-MM-DD); defaults to today")
	cmd.MarkFlagsMutuallyExclusive("week", "previous")
	return cmd
}

// referenceDate parses --date in the configured zone, or returns now.
func referenceDate(s string, a *app) (time.Time, error) {
	if s == "" {
		return a.now(), nil
	}
	t, err := timecalc.ParseDate(s, a.loc)
	if err != nil {
		return time.Time{}, userFailure(fmt.Errorf("invalid --date value %q: %w", s, err))
	}
	return t, nil
}

// printList prints each day followed by its entries.
func printList(w io.Writer, groups []model.DateGroup, loc *time.Location) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	for _, g := range groups {
		fmt.Fprintf(w, "%s  %s\n", g.Date, timecalc.FormatDuration(int64(g.TotalDuration)))
		for _, e := range g.Entries {
			endStr := "ongoing"
			durStr := ""
			if e.ClockOut != nil {
				endStr = e.ClockOut.In(loc).Format("15:04")
				durStr = fmt.Sprintf(" (%s)", timecalc.FormatDuration(int64(e.DurationSeconds())))
			}

			note := ""
			if e.Note != nil {
				note = "  " + firstLine(*e.Note)
			}
			fmt.Fprintf(w, "  %s–%s%s%s  [%s]\n", e.ClockIn.In(loc).Format("15:04"), endStr, durStr, note, e.ID)
		}
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
