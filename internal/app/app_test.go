package app

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghtfetch/internal/downloader"
	"ghtfetch/internal/orchestrator"
)

func update(t *testing.T, m *Model, msg tea.Msg) *Model {
	t.Helper()
	next, _ := m.Update(msg)
	got, ok := next.(*Model)
	require.True(t, ok)
	return got
}

func TestModelTracksRun(t *testing.T) {
	m := NewModel()

	m = update(t, m, RunStartedMsg{Total: 3, Slots: 2})
	assert.Contains(t, m.View(), "0/3 dumps terminal")

	m = update(t, m, SlotProgressMsg{
		Slot:     1,
		Filename: "mongo-dump-2016-01-01.tar.gz",
		Stage:    orchestrator.StageDownloading,
		Current:  512,
		Total:    2048,
	})
	view := m.View()
	assert.Contains(t, view, "mongo-dump-2016-01-01.tar.gz")
	assert.Contains(t, view, "downloading")

	m = update(t, m, SlotDoneMsg{
		Slot: 1,
		Result: orchestrator.Result{
			Descriptor: downloader.Descriptor{Filename: "mongo-dump-2016-01-01.tar.gz"},
			Stage:      orchestrator.StageDone,
		},
		Completed: 1,
		Total:     3,
	})
	assert.Contains(t, m.View(), "1/3 dumps terminal")
	assert.Contains(t, m.View(), "done 1")
}

func TestModelIgnoresOutOfRangeSlots(t *testing.T) {
	m := NewModel()
	m = update(t, m, RunStartedMsg{Total: 1, Slots: 1})
	// A stray slot index must not panic or grow the dashboard.
	m = update(t, m, SlotProgressMsg{Slot: 7, Filename: "x.tar.gz", Stage: orchestrator.StageDownloading})
	assert.NotContains(t, m.View(), "x.tar.gz")
}

func TestModelQuitsOnRunFinished(t *testing.T) {
	m := NewModel()
	m = update(t, m, RunStartedMsg{Total: 1, Slots: 1})

	sum := orchestrator.Summary{
		Total:  1,
		Failed: 1,
		FailedByStage: map[orchestrator.Stage]int{
			orchestrator.StageExtracting: 1,
		},
		Results: []orchestrator.Result{{
			Descriptor: downloader.Descriptor{Filename: "mongo-dump-2016-01-01.tar.gz"},
			Stage:      orchestrator.StageExtracting,
			Err:        errors.New("archive truncated"),
		}},
	}

	next, cmd := m.Update(RunFinishedMsg{Summary: sum})
	require.NotNil(t, cmd, "finishing the run must quit the program")

	got, ok := next.(*Model)
	require.True(t, ok)
	view := got.View()
	assert.Contains(t, view, "1 dump(s) failed")
	assert.Contains(t, view, "mongo-dump-2016-01-01.tar.gz")
	assert.Contains(t, view, "archive truncated")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-ten", truncate("exactly-ten", 11))
	assert.Equal(t, "long-na...", truncate("long-name-here", 10))
}
