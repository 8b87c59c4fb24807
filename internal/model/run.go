package model

import "time"

// RunStatus is the terminal state of one enrichment run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusSkipped RunStatus = "skipped"
	RunStatusFailed  RunStatus = "failed"
	// RunStatusInsufficient marks a run that completed without enough
	// gathered evidence to extract anything. A valid terminal outcome,
	// not an error.
	RunStatusInsufficient RunStatus = "insufficient_evidence"
)

// EnrichmentRun is the audit record of one pipeline invocation.
type EnrichmentRun struct {
	ID         string       `json:"id"`
	TargetID   string       `json:"target_id"`
	Pipeline   PipelineType `json:"pipeline"`
	Status     RunStatus    `json:"status"`
	Detail     string       `json:"detail,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DurationMS int64        `json:"duration_ms"`
}
