package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ghtfetch/internal/restore"
)

var completedCmd = &cobra.Command{
	Use:   "completed",
	Short: "List completed dumps as restore candidates.",
	Long: `Lists every dump that finished its pipeline in any run, with the
per-dump collection name and the paths an external mongorestore consumes.
Repackaged dumps must be extracted again before the bson path exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		records, err := getStore().CompletedDumpRecords(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No completed dumps recorded.")
			return nil
		}

		candidates := make([]restore.Candidate, 0, len(records))
		for _, rec := range records {
			candidates = append(candidates, restore.FromDump(rec.Dump, cfg.TargetDir, cfg.PruneSubdir))
		}
		printCandidates(candidates)
		return nil
	},
}

func printCandidates(candidates []restore.Candidate) {
	if len(candidates) == 0 {
		fmt.Println("No restore candidates.")
		return
	}

	fmt.Printf("%-34s | %-42s | %s\n", "DUMP", "COLLECTION", "BSON PATH")
	fmt.Println(strings.Repeat("-", 140))
	for _, c := range candidates {
		fmt.Printf("%-34s | %-42s | %s\n", c.Dump, c.Collection, c.BSONPath)
	}
	fmt.Printf("\n%d restore candidate(s).\n", len(candidates))
}
