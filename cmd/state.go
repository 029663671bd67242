package cmd

import (
	"github.com/spf13/cobra"
)

var (
	stateLimit int
	stateEvent string
	stateCSV   string
)

var stateCmd = &cobra.Command{
	Use:   "state [dump-filename]",
	Short: "Show recent pipeline events from the state database.",
	Long: `Displays the event log the pipeline writes as it works, newest first.
An optional argument filters to dumps whose filename contains it. With
--csv the full unfiltered log is written to a file instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if stateCSV != "" {
			return getStore().ExportHistory(cmd.Context(), stateCSV)
		}
		dumpFilter := ""
		if len(args) > 0 {
			dumpFilter = args[0]
		}
		return getStore().DisplayHistory(cmd.Context(), dumpFilter, stateEvent, stateLimit)
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Maximum number of events to show")
	stateCmd.Flags().StringVar(&stateEvent, "event", "", "Only show events of this kind (start, end, error, skip)")
	stateCmd.Flags().StringVar(&stateCSV, "csv", "", "Write the whole event log to this file as CSV and exit")
}
