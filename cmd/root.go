package cmd

import (
	"errors"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes. Usage mistakes such as an unknown flag also exit with 1.
const (
	exitUser    = 1
	exitStorage = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userFailure(err error) error    { return &exitError{code: exitUser, err: err} }
func storageFailure(err error) error { return &exitError{code: exitStorage, err: err} }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUser
}

// Execute is the entry point called from main.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	w := &wiring{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "tta",
		Short: "Time tracking app: clock in, clock out, see your day and week",
		Long: `tta records clock-in/clock-out sessions and aggregates them per day
and per Monday-first week. Run "tta serve" for the web client and JSON API,
or use the subcommands directly from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&w.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/tta/config.toml)")
	flags.String("db-url", "", "Interval store: bolt://PATH, sqlite://PATH, file://DIR or memory://")
	flags.String("timezone", "", "IANA time zone for day and week boundaries")
	_ = w.v.BindPFlag("db_url", flags.Lookup("db-url"))
	_ = w.v.BindPFlag("timezone", flags.Lookup("timezone"))

	rootCmd.AddCommand(
		newServeCmd(w),
		newStartCmd(w),
		newStopCmd(w),
		newStatusCmd(w),
		newListCmd(w),
		newReportCmd(w),
		newExportCmd(w),
		newDeleteCmd(w),
		newOutlookCmd(w),
	)
	return rootCmd
}
