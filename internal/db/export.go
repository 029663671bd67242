package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ExportHistory writes the whole event log to path as headed CSV through
// DuckDB's COPY, oldest rows first. The database engine performs the write
// itself, so path must be on the real filesystem of this process.
func (s *Store) ExportHistory(ctx context.Context, path string) error {
	// DuckDB wants forward slashes and doubled single quotes in file paths.
	target := strings.ReplaceAll(path, `\`, `/`)
	target = strings.ReplaceAll(target, `'`, `''`)

	query := fmt.Sprintf(`
	COPY (
		SELECT run_id, dump, stage, event, event_timestamp, output_path, message, bytes, duration_ms
		FROM ght_event_log
		ORDER BY log_id
	) TO '%s' (FORMAT CSV, HEADER);`, target)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("export event log to %s: %w", path, err)
	}
	s.logger.Info("Event log exported.", slog.String("path", path))
	return nil
}
