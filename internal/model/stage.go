package model

import "time"

// StageStatus represents the state of a single pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
)

// StageRecord is the persisted audit row for one stage of a job.
type StageRecord struct {
	ID        string       `json:"id"`
	JobID     string       `json:"job_id"`
	Name      string       `json:"name"`
	Status    StageStatus  `json:"status"`
	Result    *StageResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// StageResult holds the outcome of a stage for auditing.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Items    int         `json:"items"`
	Artifact string      `json:"artifact,omitempty"`
	Error    string      `json:"error,omitempty"`
}
