package domain

import "time"

// SyncStats holds statistics about a sync operation.
type SyncStats struct {
	Status      Status
	Incremental bool
	DatabaseID  string
	Total       int
	Added       int
	Updated     int
	Skipped     int
	Failed      int
	Duration    time.Duration
}

type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RecordResult is what happened to one movie during a run.
type RecordResult struct {
	Outcome Outcome
	Handle  *RecordHandle
	Err     error
}
