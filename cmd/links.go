package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ghtfetch/internal/config"
	"ghtfetch/internal/downloader"
	"ghtfetch/internal/util"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "List the dump archives the date range admits, without downloading.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		filter, err := downloader.NewDateFilter(cfg.Pattern)
		if err != nil {
			return err
		}
		rng := downloader.DateRange{Start: cfg.Start(), End: cfg.End()}

		descs, err := downloader.Discover(ctx, util.DefaultHTTPClient(), cfg.ListingURL, filter, rng, logger)
		if err != nil {
			return fmt.Errorf("discover dumps: %w", err)
		}

		if len(descs) == 0 {
			fmt.Println("No dumps in the requested date range.")
			return nil
		}

		fmt.Printf("%-34s | %-10s | %s\n", "DUMP", "DATE", "URL")
		fmt.Println(strings.Repeat("-", 110))
		for _, d := range descs {
			fmt.Printf("%-34s | %-10s | %s\n", d.Filename, d.Date.Format(config.DateLayout), d.URL)
		}
		fmt.Printf("\n%d dump(s) between %s and %s.\n", len(descs), cfg.StartDate, cfg.EndDate)
		return nil
	},
}
