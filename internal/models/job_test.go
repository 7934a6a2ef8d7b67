package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobDefaults(t *testing.T) {
	job := NewJob(JobTypeBatchScraping, "weekly audit", "scheduler", JobConfig{
		Domains:     []string{"a.com", "b.com"},
		MaxRetries:  2,
		Concurrency: 1,
	})

	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.IsTerminal())
	assert.False(t, job.CreatedAt.IsZero())
	assert.True(t, job.StartedAt.IsZero())
	assert.Equal(t, []string{"a.com", "b.com"}, job.Config.Domains)
}

func TestJobTransitions(t *testing.T) {
	job := NewJob(JobTypeSingleScraping, "audit", "cli", JobConfig{Domains: []string{"a.com"}})

	job.MarkStarted()
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.IsTerminal())

	job.MarkCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.False(t, job.CompletedAt.IsZero())
	assert.True(t, job.IsTerminal())
}

func TestJobFailedCarriesError(t *testing.T) {
	job := NewJob(JobTypeBatchScraping, "audit", "cli", JobConfig{})
	job.MarkStarted()
	job.MarkFailed("all steps failed")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "all steps failed", job.Error)
	assert.True(t, job.IsTerminal())
}

func TestJobCancelledIsTerminal(t *testing.T) {
	job := NewJob(JobTypeBatchScraping, "audit", "cli", JobConfig{})
	job.MarkStarted()
	job.MarkCancelled()

	assert.Equal(t, JobStatusCancelled, job.Status)
	assert.True(t, job.IsTerminal())
	assert.Empty(t, job.Error)
}

func TestStepLifecycle(t *testing.T) {
	step := NewStep("job-1", 1, "a.com")
	require.Equal(t, JobStatusPending, step.Status)
	require.Equal(t, 1, step.StepNumber)
	require.Equal(t, "a.com", step.Name)

	step.AttemptCount = 1
	step.MarkCompleted("report-42")
	assert.True(t, step.IsTerminal())
	assert.Equal(t, "report-42", step.ResultData)
	assert.Empty(t, step.Error)
}

func TestStepCompletedClearsPriorError(t *testing.T) {
	step := NewStep("job-1", 1, "a.com")
	step.Error = "connection refused"
	step.MarkCompleted("report-42")

	assert.Empty(t, step.Error)
}

func TestStepResetClearsRunState(t *testing.T) {
	step := NewStep("job-1", 2, "b.com")
	step.AttemptCount = 3
	step.MarkFailed("unreachable")
	require.True(t, step.IsTerminal())

	step.Reset()
	assert.Equal(t, JobStatusPending, step.Status)
	assert.Zero(t, step.AttemptCount)
	assert.Empty(t, step.ResultData)
	assert.Empty(t, step.Error)
	assert.True(t, step.StartedAt.IsZero())
	assert.True(t, step.CompletedAt.IsZero())
}

func TestErrorSentinels(t *testing.T) {
	assert.True(t, errors.Is(NewValidationError("bad domain %q", "x"), ErrValidation))
	assert.True(t, errors.Is(NewInvalidStateError("job is %s", JobStatusRunning), ErrInvalidState))
	assert.True(t, errors.Is(NewUnreachableError("http://a.com", errors.New("refused")), ErrUnreachable))
	assert.True(t, errors.Is(NewCrawlTimeoutError("a.com"), ErrCrawlTimeout))
	assert.True(t, errors.Is(NewBuildError("missing seed"), ErrBuild))
}
