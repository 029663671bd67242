package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"ghtfetch/internal/orchestrator"
)

// progressSendThreshold is the minimum byte delta between download progress
// messages per slot. Chunk-granularity callbacks arrive far faster than a
// terminal can redraw, so intermediate updates are dropped.
const progressSendThreshold = 256 * 1024

// Reporter adapts a running bubbletea program to the pipeline's reporter
// interface. Workers call it concurrently; tea.Program.Send is safe for
// that and becomes a no-op once the program exits.
type Reporter struct {
	p *tea.Program

	mu        sync.Mutex
	lastBytes map[int]int64
}

func NewReporter(p *tea.Program) *Reporter {
	return &Reporter{
		p:         p,
		lastBytes: make(map[int]int64),
	}
}

func (r *Reporter) RunStarted(total, slots int) {
	r.p.Send(RunStartedMsg{Total: total, Slots: slots})
}

func (r *Reporter) SlotProgress(slot int, filename string, stage orchestrator.Stage, current, total int64) {
	if stage == orchestrator.StageDownloading && total > 0 && current < total {
		r.mu.Lock()
		last := r.lastBytes[slot]
		if current != 0 && current-last < progressSendThreshold {
			r.mu.Unlock()
			return
		}
		r.lastBytes[slot] = current
		r.mu.Unlock()
	} else {
		r.mu.Lock()
		delete(r.lastBytes, slot)
		r.mu.Unlock()
	}

	r.p.Send(SlotProgressMsg{
		Slot:     slot,
		Filename: filename,
		Stage:    stage,
		Current:  current,
		Total:    total,
	})
}

func (r *Reporter) SlotDone(slot int, res orchestrator.Result, completed, total int) {
	r.p.Send(SlotDoneMsg{
		Slot:      slot,
		Result:    res,
		Completed: completed,
		Total:     total,
	})
}

func (r *Reporter) RunFinished(sum orchestrator.Summary) {
	r.p.Send(RunFinishedMsg{Summary: sum})
}
