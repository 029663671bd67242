package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/spf13/cobra"

	"ghtfetch/internal/config"
	"ghtfetch/internal/db"
)

var (
	// Flag values, bound in init. They override config file and environment
	// values only when set on the command line.
	cfgFile    string
	targetDir  string
	listingURL string
	startDate  string
	endDate    string
	workers    int
	chunkSize  int
	dbPath     string
	logFormat  string
	logLevel   string
	logOutput  string

	// Populated in PersistentPreRunE for subcommands to use.
	rootLogger *slog.Logger
	dbConn     *sql.DB
	store      *db.Store
	appConfig  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ghtfetch",
	Short: "Fetch GHTorrent mongo daily dumps and reduce them to issue data.",
	Long: `ghtfetch discovers the daily mongodb dumps on the GHTorrent mirror,
downloads the ones in a date range, extracts them, prunes everything except
the issue collections, and repackages the result. Interrupted downloads
resume from the bytes already on disk, and a DuckDB event log records what
each run did so finished dumps are not fetched twice.`,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close DuckDB connection cleanly.", "error", err)
			}
		}
		return nil
	},
}

// PersistentPreRunE is assigned here instead of in the literal above: its
// body calls applyFlagOverrides, which reads rootCmd, and that reference
// chain inside the var initializer is an initialization cycle.
func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr
		if logOutput != "" && strings.ToLower(logOutput) != "stderr" {
			if strings.ToLower(logOutput) == "stdout" {
				logWriter = os.Stdout
			} else {
				// Append so repeated runs share one log file. The handle
				// lives until exit; the OS closes it.
				f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file %s: %w", logOutput, err)
				}
				logWriter = f
			}
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized.", "level", level.String(), "format", logFormat, "output", logOutput)

		var err error
		appConfig, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		applyFlagOverrides()
		if err := appConfig.Validate(); err != nil {
			return err
		}
		rootLogger.Debug("Configuration loaded.", slog.Any("config", appConfig))

		if err := os.MkdirAll(appConfig.TargetDir, 0o755); err != nil {
			return fmt.Errorf("failed to create target directory %s: %w", appConfig.TargetDir, err)
		}
		if appConfig.DBPath != ":memory:" {
			dbDir := filepath.Dir(appConfig.DBPath)
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}

		rootLogger.Debug("Initializing DuckDB connection.", "path", appConfig.DBPath)
		dbConn, err = sql.Open("duckdb", appConfig.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open duckdb database (%s): %w", appConfig.DBPath, err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = dbConn.PingContext(pingCtx); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to ping duckdb database (%s): %w", appConfig.DBPath, err)
		}

		if err := db.InitializeSchema(dbConn); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
		store = db.NewStore(dbConn, rootLogger)

		return nil
	}
}

// applyFlagOverrides copies explicitly set command line flags over the
// loaded configuration. Unset flags leave file and environment values
// alone.
func applyFlagOverrides() {
	pf := rootCmd.PersistentFlags()
	if pf.Changed("target-dir") {
		appConfig.TargetDir = targetDir
	}
	if pf.Changed("listing-url") {
		appConfig.ListingURL = listingURL
	}
	if pf.Changed("start-date") {
		appConfig.StartDate = startDate
	}
	if pf.Changed("end-date") {
		appConfig.EndDate = endDate
	}
	if pf.Changed("workers") {
		appConfig.Workers = workers
	}
	if pf.Changed("chunk-size") {
		appConfig.ChunkSize = chunkSize
	}
	if pf.Changed("db-path") {
		appConfig.DBPath = dbPath
	}
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.
func Execute() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(completedCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed.", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml); GHTFETCH_* environment variables also apply")
	rootCmd.PersistentFlags().StringVarP(&targetDir, "target-dir", "t", "", "Directory for downloaded archives and extracted dumps (required)")
	rootCmd.PersistentFlags().StringVar(&listingURL, "listing-url", config.DefaultListingURL, "Listing page to discover dump archives on")
	rootCmd.PersistentFlags().StringVarP(&startDate, "start-date", "s", config.DefaultStartDate, "Earliest dump date to fetch (YYYY-MM-DD, inclusive)")
	rootCmd.PersistentFlags().StringVarP(&endDate, "end-date", "e", "", "Latest dump date to fetch (YYYY-MM-DD, inclusive; default today)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", config.DefaultWorkers, "Number of dumps processed concurrently")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "Download chunk size in bytes")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", config.DefaultDBPath, "Path to DuckDB state database file (:memory: for in-memory)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.3.0"
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		// PersistentPreRunE has not run, as in tests. Discard rather than
		// panic.
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getStore() *db.Store {
	return store
}

func getConfig() *config.Config {
	return appConfig
}
