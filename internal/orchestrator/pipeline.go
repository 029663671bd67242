package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"ghtfetch/internal/downloader"
)

// pipeline carries one dump descriptor through its stage sequence. A
// pipeline belongs to exactly one worker and is never shared.
type pipeline struct {
	o     *Orchestrator
	desc  downloader.Descriptor
	slot  int
	rep   Reporter
	runID string
	log   *slog.Logger

	archivePath string
	extractDir  string

	// fetched is the byte count on disk after the download stage, kept so
	// the download end event can carry it.
	fetched int64
}

func newPipeline(o *Orchestrator, desc downloader.Descriptor, slot int, rep Reporter, runID string, log *slog.Logger) *pipeline {
	return &pipeline{
		o:           o,
		desc:        desc,
		slot:        slot,
		rep:         rep,
		runID:       runID,
		log:         log.With(slog.String("dump", desc.Filename)),
		archivePath: filepath.Join(o.cfg.TargetDir, desc.Filename),
		extractDir:  filepath.Join(o.cfg.TargetDir, desc.Basename()),
	}
}

// run advances the dump through its stages and returns the terminal result.
// The first failing stage ends the run for this dump; no later stage is
// attempted for it, and artifacts already produced stay on disk.
func (p *pipeline) run(ctx context.Context) Result {
	start := time.Now()
	res := Result{
		Descriptor:  p.desc,
		ArchivePath: p.archivePath,
		ExtractDir:  p.extractDir,
	}

	stages := []struct {
		stage Stage
		fn    func(context.Context) (string, error)
	}{
		{StageDownloading, p.download},
		{StageExtracting, p.extract},
		{StagePruning, p.prune},
		{StageRepackaging, p.repack},
	}

	for _, s := range stages {
		if s.stage == StageRepackaging && !p.o.cfg.Repackage {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Stage = s.stage
			res.Err = err
			res.Duration = time.Since(start)
			return res
		}

		p.rep.SlotProgress(p.slot, p.desc.Filename, s.stage, 0, 0)
		p.record(ctx, s.stage, EventStart, "", 0, 0)

		stageStart := time.Now()
		detail, err := s.fn(ctx)
		took := time.Since(stageStart)
		if err != nil {
			p.record(ctx, s.stage, EventError, err.Error(), 0, took)
			p.log.Error("Stage failed.",
				slog.String("stage", s.stage.String()),
				slog.Duration("took", took.Round(time.Millisecond)),
				"error", err)
			res.Stage = s.stage
			res.Err = err
			res.Duration = time.Since(start)
			return res
		}
		p.record(ctx, s.stage, EventEnd, detail, p.stageBytes(s.stage), took)
	}

	p.record(ctx, StageDone, EventEnd, "", 0, time.Since(start))
	res.Stage = StageDone
	res.Duration = time.Since(start)
	return res
}

func (p *pipeline) stageBytes(stage Stage) int64 {
	if stage == StageDownloading {
		return p.fetched
	}
	return 0
}

func (p *pipeline) record(ctx context.Context, stage Stage, kind EventKind, message string, bytes int64, took time.Duration) {
	path := p.archivePath
	if stage == StageExtracting || stage == StagePruning {
		path = p.extractDir
	}
	p.o.events.Record(ctx, Event{
		RunID:    p.runID,
		Dump:     p.desc.Filename,
		Stage:    stage,
		Kind:     kind,
		Path:     path,
		Message:  message,
		Bytes:    bytes,
		Duration: took,
	})
}

func (p *pipeline) download(ctx context.Context) (string, error) {
	progress := func(written, total int64) {
		p.rep.SlotProgress(p.slot, p.desc.Filename, StageDownloading, written, total)
	}
	st, err := p.o.dl.Fetch(ctx, p.desc.URL, p.archivePath, progress)
	p.fetched = st.Offset
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d bytes on disk", st.Offset), nil
}

func (p *pipeline) extract(ctx context.Context) (string, error) {
	files, err := p.o.ex.Extract(ctx, p.archivePath, p.extractDir)
	if err != nil {
		return "", err
	}
	if !p.o.cfg.KeepArchives && !p.o.cfg.Repackage {
		// When repackaging is on, the pruned archive overwrites this path
		// later; removing it here would widen the window with no archive at
		// all, so the original is left until then.
		if err := p.o.fs.Remove(p.archivePath); err != nil {
			return "", fmt.Errorf("remove archive after extraction %s: %w", p.archivePath, err)
		}
	}
	return fmt.Sprintf("%d files extracted", files), nil
}

func (p *pipeline) prune(ctx context.Context) (string, error) {
	dir := filepath.Join(p.extractDir, p.o.cfg.PruneSubdir)
	removed, err := p.o.proc.Prune(dir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d entries pruned", removed), nil
}

func (p *pipeline) repack(ctx context.Context) (string, error) {
	files, err := p.o.proc.Repack(ctx, p.extractDir, p.archivePath, true)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d files repacked", files), nil
}
