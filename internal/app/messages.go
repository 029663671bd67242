package app

import "ghtfetch/internal/orchestrator"

// RunStartedMsg announces how many dumps were scheduled and across how many
// worker slots. It sizes the slot rows of the dashboard.
type RunStartedMsg struct {
	Total int
	Slots int
}

// SlotProgressMsg updates one worker slot with the dump it is working on.
type SlotProgressMsg struct {
	Slot     int
	Filename string
	Stage    orchestrator.Stage
	Current  int64
	Total    int64
}

// SlotDoneMsg reports one dump reaching a terminal state.
type SlotDoneMsg struct {
	Slot      int
	Result    orchestrator.Result
	Completed int
	Total     int
}

// RunFinishedMsg carries the final summary; the program quits on receipt
// and leaves the summary as its last rendered frame.
type RunFinishedMsg struct {
	Summary orchestrator.Summary
}
