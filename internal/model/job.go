package model

import "time"

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Job tracks one invocation of the decision cycle.
type Job struct {
	JobID       string     `json:"jobId"`
	CycleID     string     `json:"cycleId"`
	Type        string     `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	WindowHours int        `json:"windowHours"`
	Apply       bool       `json:"apply"`
	DryRun      bool       `json:"dryRun"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	FinishedAt  *time.Time `json:"finishedAt"`
}

// JobUpdate is a partial update; nil fields are left untouched.
type JobUpdate struct {
	Status     *JobStatus `json:"status,omitempty"`
	Progress   *int       `json:"progress,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// Merge applies u to the job. Terminal jobs are frozen and progress never
// moves backwards.
func (j *Job) Merge(u JobUpdate) {
	if j.Status.Terminal() {
		return
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = min(*u.Progress, 100)
	}
	if u.StartedAt != nil {
		j.StartedAt = u.StartedAt
	}
	if u.FinishedAt != nil {
		j.FinishedAt = u.FinishedAt
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
}
