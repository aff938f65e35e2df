package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

func newStatusCmd(w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether you are clocked in and today's total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			status, err := a.sessions.Status(cmd.Context())
			if err != nil {
				return storageFailure(err)
			}
			today, err := a.reports.Today(cmd.Context())
			if err != nil {
				return storageFailure(err)
			}

			if status.IsClockedIn {
				elapsed := int64(a.now().Sub(*status.ClockInTime).Seconds())
				fmt.Fprintln(out, "Clocked in:")
				fmt.Fprintf(out, "  Since: %s\n", status.ClockInTime.In(a.loc).Format("15:04"))
				fmt.Fprintf(out, "  Elapsed: %s\n", timecalc.FormatDurationHHMMSS(elapsed))
			} else {
				fmt.Fprintln(out, "Not clocked in.")
			}
			fmt.Fprintf(out, "Today: %s logged.\n", timecalc.FormatDuration(int64(today.TotalDuration)))
			return nil
		},
	}
}
