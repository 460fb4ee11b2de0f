package model

import "time"

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// LookupMode names which identifier kind a batch run looks up.
type LookupMode string

const (
	LookupByCaseNumber LookupMode = "case-number"
	LookupByPartyID    LookupMode = "party-id"
)

// Run is one batch invocation over an input table.
type Run struct {
	ID        string     `json:"id"`
	Input     string     `json:"input"`
	Mode      LookupMode `json:"mode"`
	Status    RunStatus  `json:"status"`
	Stats     RunStats   `json:"stats"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunStats summarizes the outcome of a batch run.
type RunStats struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errored  int `json:"errored"`
}
