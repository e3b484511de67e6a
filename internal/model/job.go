package model

import (
	"time"

	"github.com/google/uuid"
)

// Job is the queue message for one estimate. It has no identity of its own;
// the estimate id doubles as the queue task id.
type Job struct {
	EstimateID uuid.UUID   `json:"estimateId"`
	PhotoIDs   []uuid.UUID `json:"photoIds"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
	Attempt    int         `json:"attempt"`
	NotBefore  time.Time   `json:"notBefore"`
}

// NewJob builds the initial job for an estimate
func NewJob(e *Estimate, now time.Time) Job {
	return Job{
		EstimateID: e.ID,
		PhotoIDs:   append([]uuid.UUID(nil), e.PhotoIDs...),
		EnqueuedAt: now,
		Attempt:    e.AttemptCount,
		NotBefore:  now,
	}
}

// PoisonedJob is a job that exhausted its attempts and was parked
type PoisonedJob struct {
	EstimateID string    `json:"estimateId"`
	LastError  string    `json:"lastError"`
	Retried    int       `json:"retried"`
	LastFailed time.Time `json:"lastFailedAt"`
	Queue      string    `json:"queue"`
}
