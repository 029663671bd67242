package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"

	"ghtfetch/internal/config"
	"ghtfetch/internal/downloader"
	"ghtfetch/internal/extractor"
	"ghtfetch/internal/processor"
)

// Orchestrator fans dump descriptors out across a fixed pool of workers,
// each running the full per-dump pipeline, and aggregates the terminal
// results. One dump failing never stops the others.
type Orchestrator struct {
	cfg    config.Config
	fs     afero.Fs
	dl     *downloader.Downloader
	ex     *extractor.Extractor
	proc   *processor.Processor
	events EventSink
	logger *slog.Logger
}

// New assembles the orchestrator and its stage components on top of fs. A
// nil events sink disables event recording.
func New(fs afero.Fs, cfg config.Config, events EventSink, logger *slog.Logger) *Orchestrator {
	if events == nil {
		events = NopSink{}
	}
	dl := downloader.New(fs, logger)
	dl.ChunkSize = cfg.ChunkSize
	return &Orchestrator{
		cfg:    cfg,
		fs:     fs,
		dl:     dl,
		ex:     extractor.New(fs, logger),
		proc:   processor.New(fs, cfg.KeepFiles, logger),
		events: events,
		logger: logger,
	}
}

// Run executes the pipeline for every descriptor and blocks until all of
// them reach a terminal state. Dumps named in completed are skipped unless
// the force setting is on. Per-dump failures land in the summary, never in
// the returned error; the error covers only run-level problems such as an
// unusable target directory or context cancellation.
func (o *Orchestrator) Run(ctx context.Context, descs []downloader.Descriptor, completed map[string]bool, rep Reporter) (Summary, error) {
	if rep == nil {
		rep = NewLogReporter(o.logger)
	}

	runID := ksuid.New().String()
	logger := o.logger.With(slog.String("run_id", runID))

	sum := Summary{
		Total:         len(descs),
		FailedByStage: make(map[Stage]int),
	}
	if len(descs) == 0 {
		rep.RunStarted(0, 0)
		rep.RunFinished(sum)
		logger.Info("No dumps scheduled, nothing to do.")
		return sum, nil
	}

	if err := o.fs.MkdirAll(o.cfg.TargetDir, 0o755); err != nil {
		return sum, fmt.Errorf("create target dir %s: %w", o.cfg.TargetDir, err)
	}

	workers := o.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(descs) {
		workers = len(descs)
	}

	rep.RunStarted(len(descs), workers)
	logger.Info("Starting dump pipelines.",
		slog.Int("dumps", len(descs)),
		slog.Int("workers", workers))

	jobs := make(chan downloader.Descriptor)
	results := make(chan Result)

	var wg sync.WaitGroup
	var terminal atomic.Int64
	total := len(descs)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			wlog := logger.With(slog.Int("worker", slot))
			for desc := range jobs {
				res := o.runOne(ctx, desc, slot, completed, rep, runID, wlog)
				n := int(terminal.Add(1))
				rep.SlotDone(slot, res, n, total)
				results <- res
			}
		}(w)
	}

	go func() {
		defer close(jobs)
		for _, desc := range descs {
			select {
			case jobs <- desc:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		sum.Results = append(sum.Results, res)
		switch {
		case res.Failed():
			sum.Failed++
			sum.FailedByStage[res.Stage]++
		case res.Skipped:
			sum.Skipped++
		default:
			sum.Done++
		}
	}

	sort.Slice(sum.Results, func(i, j int) bool {
		return sum.Results[i].Descriptor.Filename < sum.Results[j].Descriptor.Filename
	})

	rep.RunFinished(sum)

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("run interrupted: %w", err)
	}
	return sum, nil
}

func (o *Orchestrator) runOne(ctx context.Context, desc downloader.Descriptor, slot int, completed map[string]bool, rep Reporter, runID string, logger *slog.Logger) Result {
	p := newPipeline(o, desc, slot, rep, runID, logger)

	if completed[desc.Filename] && !o.cfg.Force {
		o.events.Record(ctx, Event{
			RunID:   runID,
			Dump:    desc.Filename,
			Stage:   StageDone,
			Kind:    EventSkip,
			Path:    p.archivePath,
			Message: "completed in a previous run",
		})
		return Result{
			Descriptor:  desc,
			Stage:       StageDone,
			Skipped:     true,
			ArchivePath: p.archivePath,
			ExtractDir:  p.extractDir,
		}
	}

	return p.run(ctx)
}
