package domain

import "time"

// RunState is the state of a sync run.
type RunState string

const (
	StateIdle            RunState = "idle"
	StateFetching        RunState = "fetching"
	StateWriting         RunState = "writing"
	StateCursorAdvancing RunState = "cursor_advancing"
	StateDone            RunState = "done"
	StateTimeboxed       RunState = "timeboxed"
	StateFailed          RunState = "failed"
)

// StopReason explains why a run ended.
type StopReason string

const (
	StopCaughtUp   StopReason = "caught_up"
	StopTimeBudget StopReason = "time_budget"
	StopPageBudget StopReason = "page_budget"
	StopCancelled  StopReason = "cancelled"
	StopError      StopReason = "error"
)

// RunReport summarizes one sync invocation. Counters only include batches
// whose writes and cursor update were committed.
type RunReport struct {
	RunID         string     `json:"run_id"`
	State         RunState   `json:"state"`
	StopReason    StopReason `json:"stop_reason"`
	Synced        int        `json:"synced"`
	Staged        int        `json:"staged"`
	Uniques       int        `json:"uniques"`
	Pages         int        `json:"pages"`
	MoneyUnparsed int        `json:"money_unparsed"`
	Unseekable    int        `json:"unseekable,omitempty"`
	StartCursor   Cursor     `json:"start_cursor"`
	Cursor        Cursor     `json:"cursor"`
	HasMore       bool       `json:"has_more"`
	ResumeToken   string     `json:"next_cursor,omitempty"`
	Error         string     `json:"error,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
}

// Complete reports whether the run caught up with upstream.
func (r *RunReport) Complete() bool {
	return r.State == StateDone
}

// BatchProgress is emitted after each committed batch.
type BatchProgress struct {
	RunID     string    `json:"run_id"`
	Page      int       `json:"page"`
	Records   int       `json:"records"`
	Synced    int       `json:"synced"`
	Cursor    Cursor    `json:"cursor"`
	Timestamp time.Time `json:"timestamp"`
}
