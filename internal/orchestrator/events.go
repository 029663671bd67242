package orchestrator

import (
	"context"
	"time"
)

// EventKind classifies event log records.
type EventKind string

const (
	EventStart EventKind = "start"
	EventEnd   EventKind = "end"
	EventError EventKind = "error"
	EventSkip  EventKind = "skip"
)

// Event is one stage transition of one dump, recorded so a later run can
// tell what already happened and an operator can reconstruct a failure.
type Event struct {
	RunID    string
	Dump     string
	Stage    Stage
	Kind     EventKind
	Path     string
	Message  string
	Bytes    int64
	Duration time.Duration
}

// EventSink persists pipeline events. Recording is advisory: sinks handle
// their own failures and never interrupt a dump's pipeline.
type EventSink interface {
	Record(ctx context.Context, ev Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}
