package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghtfetch/internal/orchestrator"
)

// CompletedDump is one dump known to have finished its whole pipeline,
// taken from its most recent terminal event.
type CompletedDump struct {
	Dump       string
	Path       string
	FinishedAt time.Time
}

// CompletedDumps returns the set of dump filenames that have ever reached a
// successful terminal event. Used to skip already processed dumps when a
// run is repeated.
func (s *Store) CompletedDumps(ctx context.Context) (map[string]bool, error) {
	query := `
	SELECT DISTINCT dump
	FROM ght_event_log
	WHERE stage = ? AND event = ?;`

	rows, err := s.db.QueryContext(ctx, query,
		orchestrator.StageDone.String(), string(orchestrator.EventEnd))
	if err != nil {
		return nil, fmt.Errorf("query completed dumps: %w", err)
	}
	defer rows.Close()

	completed := make(map[string]bool)
	var errs error
	for rows.Next() {
		var dump string
		if err := rows.Scan(&dump); err != nil {
			errs = errors.Join(errs, fmt.Errorf("scan completed dump: %w", err))
			continue
		}
		completed[dump] = true
	}
	if err := rows.Err(); err != nil {
		errs = errors.Join(errs, fmt.Errorf("iterate completed dumps: %w", err))
	}
	return completed, errs
}

// CompletedDumpRecords returns one row per completed dump with the artifact
// path and timestamp of its latest terminal event, ordered by dump name.
func (s *Store) CompletedDumpRecords(ctx context.Context) ([]CompletedDump, error) {
	query := `
	WITH latest AS (
		SELECT dump, MAX(log_id) AS log_id
		FROM ght_event_log
		WHERE stage = ? AND event = ?
		GROUP BY dump
	)
	SELECT e.dump, COALESCE(e.output_path, ''), e.event_timestamp
	FROM ght_event_log e
	JOIN latest l ON e.log_id = l.log_id
	ORDER BY e.dump;`

	rows, err := s.db.QueryContext(ctx, query,
		orchestrator.StageDone.String(), string(orchestrator.EventEnd))
	if err != nil {
		return nil, fmt.Errorf("query completed dump records: %w", err)
	}
	defer rows.Close()

	records := []CompletedDump{}
	for rows.Next() {
		var rec CompletedDump
		if err := rows.Scan(&rec.Dump, &rec.Path, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan completed dump record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed dump records: %w", err)
	}
	return records, nil
}
