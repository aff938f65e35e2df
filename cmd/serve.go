package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/time-tracking-app/internal/httpapi"
)

func newServeCmd(w *wiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the web client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := w.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := httpapi.New(a.sessions, a.reports, httpapi.WithLogger(a.logger.Logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pterm.Info.Printfln("starting server on port: %d", a.cfg.Port)
			return srv.Serve(ctx, a.cfg.Addr())
		},
	}
	cmd.Flags().Int("port", 0, "HTTP listen port (default 5050)")
	_ = w.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

