// Package jobs runs conversions in the background and keeps their records.
//
// A [Manager] accepts conversion requests, assigns each a UUID and runs it on
// its own goroutine through a shared [pipeline.Runner]. At most a fixed number
// of jobs convert at the same time; the rest wait in the queued state. Job
// records live in a [Store]:
//   - [MemoryStore]: records vanish with the process
//   - [FileStore]: one JSON file per job, kept across restarts
//
// # Usage
//
//	m := jobs.NewManager(runner, jobs.NewMemoryStore(), jobs.Config{})
//	job, err := m.Submit(ctx, pipeline.Options{Input: "scans/book"})
//	if err != nil {
//	    return err
//	}
//	// later
//	job, err = m.Get(ctx, job.ID)
//	fmt.Println(job.Status, job.Produced)
//
// [pipeline.Runner]: github.com/matzehuels/reflow/pkg/pipeline.Runner
package jobs

import (
	"context"
	"errors"
	"time"

	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/pipeline"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Done reports whether the job has reached a final state.
func (s Status) Done() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// DefaultTTL is how long finished jobs are kept.
const DefaultTTL = 24 * time.Hour

// Job is the record of one conversion.
type Job struct {
	ID      string           `json:"id"`
	Status  Status           `json:"status"`
	Options pipeline.Options `json:"options"`

	// Progress, updated while the job runs.
	Total     int `json:"total_pages"`
	Processed int `json:"processed_pages"`
	Produced  int `json:"produced_pages"`

	Output string          `json:"output,omitempty"`
	Stats  *pipeline.Stats `json:"stats,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   apperr.Code     `json:"code,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
}

// IsExpired reports whether a finished job has outlived its TTL.
func (j *Job) IsExpired() bool {
	return !j.ExpiresAt.IsZero() && time.Now().After(j.ExpiresAt)
}

// clone returns a copy that shares no mutable state with j.
func (j *Job) clone() *Job {
	cp := *j
	if j.Stats != nil {
		s := *j.Stats
		cp.Stats = &s
	}
	if j.Options.Background != nil {
		bg := *j.Options.Background
		cp.Options.Background = &bg
	}
	return &cp
}

// Store is the interface for job record backends.
type Store interface {
	// Get retrieves a job by ID.
	// Returns nil, nil if the job doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Job, error)

	// Set stores a job, replacing any record with the same ID.
	Set(ctx context.Context, job *Job) error

	// Delete removes a job. Deleting a missing job is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all unexpired jobs, oldest first.
	List(ctx context.Context) ([]*Job, error)

	// Cleanup removes expired jobs.
	Cleanup(ctx context.Context) error
}
