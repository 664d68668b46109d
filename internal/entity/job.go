package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Job struct {
	ID        uuid.UUID `json:"id"`
	IntakeRef string    `json:"intake_ref"`
	Status    JobStatus `json:"status"`

	// Pipeline progress: stage 1..6 once running, 0 before the first stage.
	Stage     int    `json:"stage"`
	StageName string `json:"stage_name,omitempty"`
	Message   string `json:"message,omitempty"`

	ResultRef *string `json:"result_ref,omitempty"`
	Error     *string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
