package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DisplayStats prints aggregate figures from the event log on stdout: how
// each stage has fared across all runs, then the most recent runs. Stage
// rows come out in the order the stages first ran, which is pipeline order.
func (s *Store) DisplayStats(ctx context.Context, runLimit int) error {
	if err := s.displayStageStats(ctx); err != nil {
		return err
	}
	fmt.Println()
	return s.displayRecentRuns(ctx, runLimit)
}

func (s *Store) displayStageStats(ctx context.Context) error {
	query := `
	SELECT stage,
		SUM(CASE WHEN event = 'end' THEN 1 ELSE 0 END) AS completions,
		SUM(CASE WHEN event = 'error' THEN 1 ELSE 0 END) AS failures,
		SUM(CASE WHEN event = 'end' THEN bytes END) AS total_bytes,
		CAST(AVG(CASE WHEN event = 'end' THEN duration_ms END) AS BIGINT) AS avg_ms,
		MAX(CASE WHEN event = 'end' THEN duration_ms END) AS max_ms
	FROM ght_event_log
	WHERE event IN ('end', 'error')
	GROUP BY stage
	ORDER BY MIN(log_id);`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query stage statistics: %w", err)
	}
	defer rows.Close()

	fmt.Printf("%-11s | %9s | %8s | %10s | %9s | %9s\n",
		"STAGE", "COMPLETED", "FAILED", "BYTES", "AVG TIME", "MAX TIME")
	fmt.Println(strings.Repeat("-", 72))

	count := 0
	for rows.Next() {
		var stage string
		var completions, failures int64
		var totalBytes, avgMs, maxMs sql.NullInt64
		if err := rows.Scan(&stage, &completions, &failures, &totalBytes, &avgMs, &maxMs); err != nil {
			return fmt.Errorf("scan stage statistics row: %w", err)
		}

		bytesStr := ""
		if totalBytes.Valid {
			bytesStr = humanize.Bytes(uint64(totalBytes.Int64))
		}
		fmt.Printf("%-11s | %9d | %8d | %10s | %9s | %9s\n",
			stage, completions, failures, bytesStr, msString(avgMs), msString(maxMs))
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stage statistics rows: %w", err)
	}
	if count == 0 {
		fmt.Println("(no events recorded)")
	}
	return nil
}

func (s *Store) displayRecentRuns(ctx context.Context, limit int) error {
	query := `
	SELECT run_id,
		MIN(event_timestamp) AS started,
		COUNT(DISTINCT dump) AS dumps,
		SUM(CASE WHEN stage = 'done' AND event = 'end' THEN 1 ELSE 0 END) AS completed,
		SUM(CASE WHEN event = 'skip' THEN 1 ELSE 0 END) AS skipped,
		SUM(CASE WHEN event = 'error' THEN 1 ELSE 0 END) AS failed
	FROM ght_event_log
	GROUP BY run_id
	ORDER BY started DESC
	LIMIT ?;`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	fmt.Printf("%-27s | %-19s | %5s | %9s | %7s | %6s\n",
		"RUN", "STARTED", "DUMPS", "COMPLETED", "SKIPPED", "FAILED")
	fmt.Println(strings.Repeat("-", 88))

	count := 0
	for rows.Next() {
		var runID string
		var started time.Time
		var dumps, completed, skipped, failed int64
		if err := rows.Scan(&runID, &started, &dumps, &completed, &skipped, &failed); err != nil {
			return fmt.Errorf("scan recent run row: %w", err)
		}
		fmt.Printf("%-27s | %-19s | %5d | %9d | %7d | %6d\n",
			runID, started.Format("2006-01-02 15:04:05"), dumps, completed, skipped, failed)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate recent run rows: %w", err)
	}
	if count == 0 {
		fmt.Println("(no runs recorded)")
	}
	return nil
}

func msString(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return (time.Duration(v.Int64) * time.Millisecond).String()
}
