package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

func newDeleteCmd(w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a time entry by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.sessions.Delete(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return userFailure(fmt.Errorf("entry %q not found", args[0]))
			}
			if err != nil {
				return storageFailure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entry %s deleted\n", args[0])
			return nil
		},
	}
}
