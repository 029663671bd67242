package cmd

import (
	"github.com/spf13/cobra"
)

var statsRuns int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize pipeline activity recorded in the state database.",
	Long: `Aggregates the event log into per-stage totals (completions, failures,
bytes moved, timings) and a list of recent runs with their outcomes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getStore().DisplayStats(cmd.Context(), statsRuns)
	},
}

func init() {
	statsCmd.Flags().IntVarP(&statsRuns, "runs", "n", 10, "Number of recent runs to list")
}
