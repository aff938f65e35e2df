package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/session"
)

func newStopCmd(w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:     "out",
		Aliases: []string{"stop"},
		Short:   "Clock out of the running session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.sessions.ClockOut(cmd.Context())
			if errors.Is(err, session.ErrNoActiveSession) {
				return userFailure(errors.New("no active clock-in session found"))
			}
			if err != nil {
				return storageFailure(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Clocked out at %s. Elapsed: %s\n",
				entry.ClockOut.In(a.loc).Format("15:04:05"), formatElapsed(entry.Duration()))
			return nil
		},
	}
}

// formatElapsed renders d as "1h 2m 3s", dropping leading zero units.
// Sub-second remainders are truncated.
func formatElapsed(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
