package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Reporter receives progress from pipeline workers. Slot indexes are stable
// for the life of a run: worker n reports only through slot n, so
// concurrent updates stay attributable to the dump that slot is working
// on. Implementations must be safe for concurrent use.
type Reporter interface {
	// RunStarted announces how many dumps were scheduled and across how
	// many worker slots.
	RunStarted(total, slots int)
	// SlotProgress reports the dump a slot is working on, its current
	// stage and, while downloading, the byte counts.
	SlotProgress(slot int, filename string, stage Stage, current, total int64)
	// SlotDone reports a dump reaching a terminal state, along with the
	// running count of terminal dumps.
	SlotDone(slot int, res Result, completed, total int)
	// RunFinished delivers the summary once every dump is terminal.
	RunFinished(sum Summary)
}

// LogReporter renders progress as structured log lines. Download progress
// is throttled to decile transitions so chunk-granularity callbacks do not
// flood the log.
type LogReporter struct {
	logger *slog.Logger

	mu      sync.Mutex
	deciles map[int]int
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{
		logger:  logger,
		deciles: make(map[int]int),
	}
}

func (r *LogReporter) RunStarted(total, slots int) {
	r.logger.Info("Pipeline run starting.",
		slog.Int("dumps", total),
		slog.Int("workers", slots))
}

func (r *LogReporter) SlotProgress(slot int, filename string, stage Stage, current, total int64) {
	if stage == StageDownloading && total > 0 {
		decile := int(10 * current / total)
		r.mu.Lock()
		last, seen := r.deciles[slot]
		if seen && decile == last {
			r.mu.Unlock()
			return
		}
		r.deciles[slot] = decile
		r.mu.Unlock()

		r.logger.Info("Downloading.",
			slog.Int("worker", slot),
			slog.String("dump", filename),
			slog.String("progress", fmt.Sprintf("%d%%", decile*10)),
			slog.String("received", humanize.Bytes(uint64(current))),
			slog.String("size", humanize.Bytes(uint64(total))))
		return
	}

	r.mu.Lock()
	delete(r.deciles, slot)
	r.mu.Unlock()

	r.logger.Info("Stage started.",
		slog.Int("worker", slot),
		slog.String("dump", filename),
		slog.String("stage", stage.String()))
}

func (r *LogReporter) SlotDone(slot int, res Result, completed, total int) {
	attrs := []any{
		slog.Int("worker", slot),
		slog.String("dump", res.Descriptor.Filename),
		slog.Duration("took", res.Duration.Round(time.Millisecond)),
		slog.String("terminal", fmt.Sprintf("%d/%d", completed, total)),
	}
	switch {
	case res.Failed():
		attrs = append(attrs, slog.String("failed_stage", res.Stage.String()), "error", res.Err)
		r.logger.Error("Dump pipeline failed.", attrs...)
	case res.Skipped:
		r.logger.Info("Dump already completed in a previous run, skipped.", attrs...)
	default:
		r.logger.Info("Dump pipeline complete.", attrs...)
	}
}

func (r *LogReporter) RunFinished(sum Summary) {
	attrs := []any{
		slog.Int("total", sum.Total),
		slog.Int("done", sum.Done),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
	}
	for stage, count := range sum.FailedByStage {
		attrs = append(attrs, slog.Int("failed_"+stage.String(), count))
	}
	if !sum.Ok() {
		r.logger.Error("Run finished with failures.", attrs...)
		return
	}
	r.logger.Info("Run finished.", attrs...)
}
