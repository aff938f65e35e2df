package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/report"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

func newExportCmd(w *wiring) *cobra.Command {
	var (
		all    bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export this week's entries (or all with --all) to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			filter := storage.Filter{}
			if !all {
				now := a.now()
				filter.ClockInFrom = timecalc.WeekStart(now, a.loc)
				filter.ClockInTo = timecalc.NextWeekStart(now, a.loc)
			}
			entries, err := a.store.Find(cmd.Context(), filter)
			if err != nil {
				return storageFailure(err)
			}
			if entries == nil {
				entries = []model.Entry{}
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(entries); err != nil {
					return fmt.Errorf("encoding JSON: %w", err)
				}
			case "md":
				printList(out, report.GroupByDate(entries, a.loc).Groups(), a.loc)
			case "csv":
				printCSV(out, entries, a.loc)
			default:
				return userFailure(fmt.Errorf("unknown format %q (want csv, json or md)", format))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Export every entry instead of the current week")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv, json, md")
	return cmd
}

func printCSV(w io.Writer, entries []model.Entry, loc *time.Location) {
	fmt.Fprintln(w, "id,date,clock_in,clock_out,duration_seconds,source,external_id,note")
	for _, e := range entries {
		endStr := ""
		if e.ClockOut != nil {
			endStr = e.ClockOut.In(loc).Format(time.RFC3339)
		}
		note := ""
		if e.Note != nil {
			note = *e.Note
		}
		fmt.Fprintf(w, "%s,%s,%s,%s,%d,%s,%s,%s\n",
			csvEscape(e.ID),
			timecalc.DateKey(e.ClockIn, loc),
			csvEscape(e.ClockIn.In(loc).Format(time.RFC3339)),
			csvEscape(endStr),
			int64(e.DurationSeconds()),
			csvEscape(e.Source),
			csvEscape(e.ExternalID),
			csvEscape(note),
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
