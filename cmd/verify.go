package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"ghtfetch/internal/config"
	"ghtfetch/internal/downloader"
	"ghtfetch/internal/extractor"
	"ghtfetch/internal/inspector"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Read every dump archive in the target directory and report damage.",
	Long: `Decompresses each dump archive in the target directory in place, without
extracting anything, to confirm the stream is intact and show which
collections it holds. A pruned archive lists only the issue collections;
a freshly downloaded one lists everything the dump shipped with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		filter, err := downloader.NewDateFilter(cfg.Pattern)
		if err != nil {
			return err
		}

		summaries, damaged := inspector.New(afero.NewOsFs(), logger).Scan(ctx, cfg.TargetDir, filter)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("verification interrupted: %w", ctxErr)
		}
		if len(summaries) == 0 {
			fmt.Printf("No dump archives found in %s.\n", cfg.TargetDir)
			return damaged
		}

		fmt.Printf("%-34s | %-10s | %7s | %9s | %9s | %-9s | %s\n",
			"DUMP", "DATE", "MEMBERS", "ARCHIVE", "DATA", "STATUS", "COLLECTIONS")
		fmt.Println(strings.Repeat("-", 120))

		broken := 0
		for _, sum := range summaries {
			status := "ok"
			switch {
			case errors.Is(sum.Err, extractor.ErrTruncated):
				status = "truncated"
				broken++
			case sum.Err != nil:
				status = "error"
				broken++
			}
			fmt.Printf("%-34s | %-10s | %7d | %9s | %9s | %-9s | %s\n",
				sum.Dump,
				sum.Date.Format(config.DateLayout),
				sum.Members,
				humanize.Bytes(uint64(sum.ArchiveSize)),
				humanize.Bytes(uint64(sum.Bytes)),
				status,
				strings.Join(sum.Collections, ", "))
		}

		if damaged != nil {
			return fmt.Errorf("%d of %d archive(s) damaged: %w", broken, len(summaries), damaged)
		}
		fmt.Printf("\n%d archive(s) intact.\n", len(summaries))
		return nil
	},
}
