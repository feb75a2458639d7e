package models

import "time"

// AllocationRunStatus tracks the lifecycle of an allocation run.
type AllocationRunStatus string

const (
	AllocationRunPending   AllocationRunStatus = "PENDING"
	AllocationRunRunning   AllocationRunStatus = "RUNNING"
	AllocationRunCompleted AllocationRunStatus = "COMPLETED"
	AllocationRunFailed    AllocationRunStatus = "FAILED"
)

// AllocationRun records one full reallocation of the grid.
type AllocationRun struct {
	ID         string              `db:"id" json:"id"`
	Status     AllocationRunStatus `db:"status" json:"status"`
	Trigger    string              `db:"trigger" json:"trigger"`
	Assigned   int                 `db:"assigned" json:"assigned"`
	Unassigned int                 `db:"unassigned" json:"unassigned"`
	Error      *string             `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	FinishedAt *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
}
