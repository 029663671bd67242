package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghtfetch/internal/orchestrator"
)

func TestDisplayStats(t *testing.T) {
	s := testStore(t)

	dump := "mongo-dump-2016-01-01.tar.gz"
	record(s, dump, orchestrator.StageDownloading, orchestrator.EventStart)
	record(s, dump, orchestrator.StageDownloading, orchestrator.EventEnd)
	record(s, dump, orchestrator.StageExtracting, orchestrator.EventError)
	record(s, "mongo-dump-2016-01-02.tar.gz", orchestrator.StageDone, orchestrator.EventSkip)

	// Smoke test: both aggregate queries execute against a populated log.
	require.NoError(t, s.DisplayStats(context.Background(), 10))
}

func TestDisplayStatsEmptyLog(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.DisplayStats(context.Background(), 10))
}

func TestExportHistory(t *testing.T) {
	s := testStore(t)

	dump := "mongo-dump-2016-01-01.tar.gz"
	record(s, dump, orchestrator.StageDownloading, orchestrator.EventStart)
	record(s, dump, orchestrator.StageDownloading, orchestrator.EventEnd)
	record(s, dump, orchestrator.StageDone, orchestrator.EventEnd)

	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, s.ExportHistory(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4, "header plus one line per event")
	assert.Equal(t, "run_id,dump,stage,event,event_timestamp,output_path,message,bytes,duration_ms", lines[0])
	assert.Contains(t, lines[1], dump)
	assert.Contains(t, lines[1], "downloading")
}

func TestExportHistoryEmptyLog(t *testing.T) {
	s := testStore(t)

	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, s.ExportHistory(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1, "header only")
}
