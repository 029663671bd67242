package orchestrator

import (
	"fmt"
	"time"

	"ghtfetch/internal/downloader"
)

// Stage identifies one step of a dump's pipeline. Every dump advances
// through the stages in declaration order and stops either at StageDone or
// at the stage that failed. A failed stage is never skipped over: later
// stages do not run for that dump.
type Stage int

const (
	StagePending Stage = iota
	StageDownloading
	StageExtracting
	StagePruning
	StageRepackaging
	StageDone
)

var stageNames = map[Stage]string{
	StagePending:     "pending",
	StageDownloading: "downloading",
	StageExtracting:  "extracting",
	StagePruning:     "pruning",
	StageRepackaging: "repackaging",
	StageDone:        "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Result is the terminal record for one dump. On success Stage is StageDone
// and Err is nil; on failure Stage names the stage that failed and Err
// carries the cause. Results are immutable once the worker hands them off.
type Result struct {
	Descriptor  downloader.Descriptor
	Stage       Stage
	Err         error
	ArchivePath string
	ExtractDir  string
	Skipped     bool
	Duration    time.Duration
}

// Failed reports whether the dump stopped before completing its pipeline.
func (r Result) Failed() bool { return r.Err != nil }

// Summary aggregates the terminal results of one run. Done counts dumps
// processed this run; Skipped counts dumps carried over from earlier runs.
type Summary struct {
	Total         int
	Done          int
	Skipped       int
	Failed        int
	FailedByStage map[Stage]int
	Results       []Result
}

// Ok reports whether every scheduled dump either completed or was already
// complete.
func (s Summary) Ok() bool { return s.Failed == 0 }
