package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

type weekReport struct {
	Week          string     `json:"week"`
	Start         string     `json:"start"`
	Days          []dayTotal `json:"days"`
	TotalDuration float64    `json:"totalDuration"`
}

type dayTotal struct {
	Date          string  `json:"date"`
	Weekday       string  `json:"weekday"`
	Entries       int     `json:"entries"`
	TotalDuration float64 `json:"totalDuration"`
}

func newReportCmd(w *wiring) *cobra.Command {
	var (
		date   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the weekly report, one row per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ref, err := referenceDate(date, a)
			if err != nil {
				return err
			}
			groups, err := a.reports.Week(cmd.Context(), ref)
			if err != nil {
				return storageFailure(err)
			}

			rep := buildWeekReport(timecalc.WeekStart(ref, a.loc), groups, a.loc)
			out := cmd.OutOrStdout()
			switch format {
			case "csv":
				return printReportCSV(out, rep)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			case "md":
				return printReportTable(out, rep)
			}
			return userFailure(fmt.Errorf("unknown format %q (want md, csv or json)", format))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Any day of the week to report (YYYY-MM-DD); defaults to today")
	cmd.Flags().StringVar(&format, "format", "md", "Output format: md, csv, json")
	return cmd
}

func buildWeekReport(start time.Time, groups []model.DateGroup, loc *time.Location) weekReport {
	rep := weekReport{
		Week:  timecalc.ISOWeekLabel(start),
		Start: start.Format(timecalc.DateLayout),
		Days:  make([]dayTotal, 0, len(groups)),
	}
	for _, g := range groups {
		weekday := ""
		if d, err := timecalc.ParseDate(g.Date, loc); err == nil {
			weekday = d.Weekday().String()
		}
		rep.Days = append(rep.Days, dayTotal{
			Date:          g.Date,
			Weekday:       weekday,
			Entries:       len(g.Entries),
			TotalDuration: g.TotalDuration,
		})
		rep.TotalDuration += g.TotalDuration
	}
	return rep
}

func printReportTable(w io.Writer, rep weekReport) error {
	fmt.Fprintf(w, "Week %s\n", rep.Week)
	if len(rep.Days) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return nil
	}

	data := [][]string{{"Day", "Date", "Entries", "Duration"}}
	for _, d := range rep.Days {
		data = append(data, []string{
			d.Weekday,
			d.Date,
			fmt.Sprint(d.Entries),
			timecalc.FormatDurationHHMMSS(int64(d.TotalDuration)),
		})
	}
	data = append(data, []string{"Total", "", "", timecalc.FormatDurationHHMMSS(int64(rep.TotalDuration))})

	table := pterm.DefaultTable
	table.Boxed = true
	str, err := table.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("rendering report table: %w", err)
	}
	fmt.Fprintln(w, str)
	return nil
}

func printReportCSV(w io.Writer, rep weekReport) error {
	fmt.Fprintln(w, "date,weekday,entries,duration_minutes")
	for _, d := range rep.Days {
		if _, err := fmt.Fprintf(w, "%s,%s,%d,%d\n",
			csvEscape(d.Date), csvEscape(d.Weekday), d.Entries, int64(d.TotalDuration)/60); err != nil {
			return err
		}
	}
	return nil
}
