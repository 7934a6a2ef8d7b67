// -----------------------------------------------------------------------
// Job / Step - batch audit job state machine
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an audit job or step
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobType represents the type of an audit job
type JobType string

const (
	JobTypeBatchScraping  JobType = "batch_scraping"
	JobTypeSingleScraping JobType = "single_scraping"
)

// JobConfig is the immutable configuration snapshot taken at job creation.
// Jobs are self-contained and re-runnable from their config alone.
type JobConfig struct {
	Domains     []string `json:"domains"`
	MaxRetries  int      `json:"max_retries"`
	Concurrency int      `json:"concurrency"`
}

// Job represents one batch audit spanning one or more domains.
// A Job owns its Steps (one per domain); progress counters are recomputed
// from step terminal states, never incremented ad hoc.
type Job struct {
	ID        string    `json:"id"`
	JobType   JobType   `json:"job_type"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	Status    JobStatus `json:"status"`
	Config    JobConfig `json:"config"`

	TotalSteps     int `json:"total_steps"`
	CompletedSteps int `json:"completed_steps"`
	FailedSteps    int `json:"failed_steps"`

	// Error contains a concise description of why the job failed.
	// Only populated when status is 'failed'.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Deleted marks a soft-deleted job. Terminal jobs stay immutable
	// otherwise.
	Deleted bool `json:"deleted,omitempty"`
}

// Step is the unit of work for one domain within a Job.
type Step struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	StepNumber int       `json:"step_number"`
	Name       string    `json:"name"` // target domain
	Status     JobStatus `json:"status"`

	// AttemptCount never exceeds MaxRetries+1; a step only becomes failed
	// after all attempts are exhausted.
	AttemptCount int `json:"attempt_count"`

	// ResultData holds the produced report id on success.
	ResultData string `json:"result_data,omitempty"`
	Error      string `json:"error_message,omitempty"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job with a config snapshot.
func NewJob(jobType JobType, name, createdBy string, config JobConfig) *Job {
	return &Job{
		ID:        uuid.New().String(),
		JobType:   jobType,
		Name:      name,
		CreatedBy: createdBy,
		Status:    JobStatusPending,
		Config:    config,
		CreatedAt: time.Now(),
	}
}

// NewStep creates a pending step for a domain, numbered 1-based.
func NewStep(jobID string, stepNumber int, domain string) *Step {
	return &Step{
		ID:         uuid.New().String(),
		JobID:      jobID,
		StepNumber: stepNumber,
		Name:       domain,
		Status:     JobStatusPending,
	}
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted ||
		j.Status == JobStatusFailed ||
		j.Status == JobStatusCancelled
}

// MarkStarted transitions the job to running
func (j *Job) MarkStarted() {
	j.Status = JobStatusRunning
	j.StartedAt = time.Now()
}

// MarkCompleted transitions the job to completed
func (j *Job) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.CompletedAt = time.Now()
}

// MarkFailed transitions the job to failed with an error message
func (j *Job) MarkFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.Error = errorMsg
	j.CompletedAt = time.Now()
}

// MarkCancelled transitions the job to cancelled
func (j *Job) MarkCancelled() {
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now()
}

// ProgressPercentage reports resolved steps over total, rounded to the
// nearest integer. Zero when no steps exist.
func (j *Job) ProgressPercentage() int {
	if j.TotalSteps == 0 {
		return 0
	}
	resolved := j.CompletedSteps + j.FailedSteps
	return int(float64(resolved)/float64(j.TotalSteps)*100 + 0.5)
}

// IsTerminal returns true if the step is in a terminal state
func (s *Step) IsTerminal() bool {
	return s.Status == JobStatusCompleted ||
		s.Status == JobStatusFailed ||
		s.Status == JobStatusCancelled
}

// MarkCompleted records the produced report id and completes the step.
func (s *Step) MarkCompleted(reportID string) {
	s.Status = JobStatusCompleted
	s.ResultData = reportID
	s.Error = ""
	s.CompletedAt = time.Now()
}

// MarkFailed completes the step as failed with the last attempt's error.
func (s *Step) MarkFailed(errorMsg string) {
	s.Status = JobStatusFailed
	s.Error = errorMsg
	s.CompletedAt = time.Now()
}

// MarkCancelled freezes the step as cancelled.
func (s *Step) MarkCancelled() {
	s.Status = JobStatusCancelled
	s.CompletedAt = time.Now()
}

// Reset returns the step to pending for a job retry. The attempt counter
// restarts; timestamps and results from the previous run are cleared.
func (s *Step) Reset() {
	s.Status = JobStatusPending
	s.AttemptCount = 0
	s.ResultData = ""
	s.Error = ""
	s.StartedAt = time.Time{}
	s.CompletedAt = time.Time{}
}

// JobStatusSnapshot is the consistent, immediately-readable view returned
// by GetStatus. Counters are taken under the job's progress lock.
type JobStatusSnapshot struct {
	ID                 string         `json:"id"`
	JobType            JobType        `json:"job_type"`
	Name               string         `json:"name"`
	Status             JobStatus      `json:"status"`
	ProgressPercentage int            `json:"progress_percentage"`
	TotalSteps         int            `json:"total_steps"`
	CompletedSteps     int            `json:"completed_steps"`
	FailedSteps        int            `json:"failed_steps"`
	RunningSteps       int            `json:"running_steps"`
	PendingSteps       int            `json:"pending_steps"`
	Error              string         `json:"error,omitempty"`
	StartedAt          time.Time      `json:"started_at,omitempty"`
	CompletedAt        time.Time      `json:"completed_at,omitempty"`
	Steps              []StepSnapshot `json:"steps"`
}

// StepSnapshot is the per-step view inside a JobStatusSnapshot.
type StepSnapshot struct {
	StepNumber   int       `json:"step_number"`
	Name         string    `json:"name"`
	Status       JobStatus `json:"status"`
	AttemptCount int       `json:"attempt_count"`
	ResultData   string    `json:"result_data,omitempty"`
	Error        string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
}
