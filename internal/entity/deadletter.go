package entity

import "time"

// DeadLetter is the durable record kept for a job that exhausted its
// delivery attempts. Stored as JSON on the dead-letter list and never
// auto-retried.
type DeadLetter struct {
	JobID     string    `json:"job_id"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}
