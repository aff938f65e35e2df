package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newStartCmd(w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:     "in",
		Aliases: []string{"start"},
		Short:   "Clock in",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.sessions.Status(cmd.Context())
			if err != nil {
				return storageFailure(err)
			}
			if status.IsClockedIn {
				// Clocking in again is allowed; the newest session is the one clock-out closes.
				pterm.Warning.Printfln("already clocked in since %s",
					status.ClockInTime.In(a.loc).Format("15:04:05"))
			}

			entry, err := a.sessions.ClockIn(cmd.Context())
			if err != nil {
				return storageFailure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clocked in at %s\n", entry.ClockIn.In(a.loc).Format("15:04:05"))
			return nil
		},
	}
}
