package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ghtfetch/internal/orchestrator"
)

// Schema for the pipeline event log. DuckDB has no auto-increment, so the
// primary key draws from an explicit sequence.
const (
	createSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS ght_event_log_id_seq;`

	createTableSQL = `
	CREATE TABLE IF NOT EXISTS ght_event_log (
		log_id          BIGINT PRIMARY KEY DEFAULT nextval('ght_event_log_id_seq'),
		run_id          VARCHAR NOT NULL,
		dump            VARCHAR NOT NULL,
		stage           VARCHAR NOT NULL,
		event           VARCHAR NOT NULL,
		event_timestamp TIMESTAMP NOT NULL,
		output_path     VARCHAR,
		message         VARCHAR,
		bytes           BIGINT,
		duration_ms     BIGINT
	);`

	createDumpIndexSQL  = `CREATE INDEX IF NOT EXISTS idx_ght_event_log_dump ON ght_event_log (dump);`
	createEventIndexSQL = `CREATE INDEX IF NOT EXISTS idx_ght_event_log_stage_event ON ght_event_log (stage, event);`
)

// Store records pipeline events in DuckDB and answers completion queries
// for later runs. It satisfies the pipeline's event sink interface.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// InitializeSchema creates the sequence, table and indexes. Statements are
// ordered because the table default references the sequence.
func InitializeSchema(db *sql.DB) error {
	statements := []string{
		createSequenceSQL,
		createTableSQL,
		createDumpIndexSQL,
		createEventIndexSQL,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			// Concurrent first runs can race each other to CREATE.
			if strings.Contains(strings.ToLower(err.Error()), "already exists") {
				continue
			}
			return fmt.Errorf("initialize event log schema: %w", err)
		}
	}
	return nil
}

// Record implements orchestrator.EventSink. Failures are logged rather
// than returned: losing an event row must never fail a dump's pipeline.
func (s *Store) Record(ctx context.Context, ev orchestrator.Event) {
	query := `
	INSERT INTO ght_event_log
		(run_id, dump, stage, event, event_timestamp, output_path, message, bytes, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	var bytes, durationMs sql.NullInt64
	if ev.Bytes > 0 {
		bytes = sql.NullInt64{Int64: ev.Bytes, Valid: true}
	}
	if ev.Duration > 0 {
		durationMs = sql.NullInt64{Int64: ev.Duration.Milliseconds(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		ev.RunID,
		ev.Dump,
		ev.Stage.String(),
		string(ev.Kind),
		time.Now().UTC(),
		sql.NullString{String: ev.Path, Valid: ev.Path != ""},
		sql.NullString{String: ev.Message, Valid: ev.Message != ""},
		bytes,
		durationMs,
	)
	if err != nil {
		s.logger.Error("Failed to record pipeline event.",
			"error", err,
			slog.String("dump", ev.Dump),
			slog.String("stage", ev.Stage.String()),
			slog.String("event", string(ev.Kind)))
	}
}

// DisplayHistory prints recent event rows as a table on stdout, newest
// first. An empty dump or event filter means no filtering on that column.
func (s *Store) DisplayHistory(ctx context.Context, dumpFilter, eventFilter string, limit int) error {
	query := `
	SELECT dump, stage, event, event_timestamp, COALESCE(message, ''), COALESCE(output_path, ''), duration_ms
	FROM ght_event_log`

	conditions := []string{}
	args := []any{}
	if dumpFilter != "" {
		conditions = append(conditions, fmt.Sprintf("dump LIKE $%d", len(args)+1))
		args = append(args, "%"+dumpFilter+"%")
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", len(args)+1))
		args = append(args, eventFilter)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d;", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query event history: %w", err)
	}
	defer rows.Close()

	fmt.Printf("%-34s | %-11s | %-5s | %-19s | %-9s | %s\n",
		"DUMP", "STAGE", "EVENT", "TIMESTAMP", "DURATION", "DETAIL")
	fmt.Println(strings.Repeat("-", 120))

	count := 0
	for rows.Next() {
		var dump, stage, event, message, outputPath string
		var ts time.Time
		var durationMs sql.NullInt64
		if err := rows.Scan(&dump, &stage, &event, &ts, &message, &outputPath, &durationMs); err != nil {
			return fmt.Errorf("scan event history row: %w", err)
		}

		duration := ""
		if durationMs.Valid {
			duration = (time.Duration(durationMs.Int64) * time.Millisecond).String()
		}
		detail := message
		if detail == "" {
			detail = outputPath
		}
		fmt.Printf("%-34s | %-11s | %-5s | %-19s | %-9s | %s\n",
			dump, stage, event, ts.Format("2006-01-02 15:04:05"), duration, detail)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate event history rows: %w", err)
	}
	if count == 0 {
		fmt.Println("(no events recorded)")
	}
	return nil
}
