// -----------------------------------------------------------------------
// Job orchestrator - owns the job/step lifecycle: creation, background
// execution with bounded step concurrency, retries, cancellation.
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/report"
)

// runHandle tracks one background execution of a job. Cancellation is
// cooperative: the flag is observed at step boundaries and between retry
// attempts, never mid-attempt.
type runHandle struct {
	cancelCh   chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	// progress serializes counter updates and status transitions for the
	// job, so reads never observe a half-applied update.
	progress sync.Mutex
}

func newRunHandle() *runHandle {
	return &runHandle{
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (h *runHandle) requestCancel() {
	h.cancelOnce.Do(func() { close(h.cancelCh) })
}

func (h *runHandle) cancelled() bool {
	select {
	case <-h.cancelCh:
		return true
	default:
		return false
	}
}

// Orchestrator implements the JobOrchestrator interface. Each running job
// owns an independent run handle; storage stays the source of truth for
// job state.
type Orchestrator struct {
	jobs    interfaces.JobStorage
	reports interfaces.ReportStorage
	crawler interfaces.SiteCrawler
	builder *report.Builder
	config  *common.JobsConfig
	logger  arbor.ILogger

	mu   sync.Mutex
	runs map[string]*runHandle
}

// New creates an Orchestrator.
func New(jobs interfaces.JobStorage, reports interfaces.ReportStorage, crawler interfaces.SiteCrawler, builder *report.Builder, config *common.JobsConfig, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		jobs:    jobs,
		reports: reports,
		crawler: crawler,
		builder: builder,
		config:  config,
		logger:  logger,
		runs:    make(map[string]*runHandle),
	}
}

// CreateBatchJob validates and deduplicates the domain list, then persists
// a pending job with one step per domain.
func (o *Orchestrator) CreateBatchJob(ctx context.Context, domains []string, name, createdBy string, maxRetries, concurrency int) (*models.Job, error) {
	return o.createJob(ctx, models.JobTypeBatchScraping, domains, name, createdBy, maxRetries, concurrency)
}

// CreateSingleJob creates a one-domain job.
func (o *Orchestrator) CreateSingleJob(ctx context.Context, domain, name, createdBy string, maxRetries int) (*models.Job, error) {
	return o.createJob(ctx, models.JobTypeSingleScraping, []string{domain}, name, createdBy, maxRetries, 1)
}

func (o *Orchestrator) createJob(ctx context.Context, jobType models.JobType, domains []string, name, createdBy string, maxRetries, concurrency int) (*models.Job, error) {
	if len(domains) == 0 {
		return nil, models.NewValidationError("domains list is empty")
	}

	// Clean, validate, and deduplicate preserving first-occurrence order.
	seen := make(map[string]struct{}, len(domains))
	deduped := make([]string, 0, len(domains))
	for _, raw := range domains {
		domain := common.CleanDomain(raw)
		if err := common.ValidateHostname(domain); err != nil {
			return nil, models.NewValidationError("invalid domain %q: %v", raw, err)
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		deduped = append(deduped, domain)
	}

	if maxRetries < 0 {
		maxRetries = o.config.MaxRetries
	}
	if concurrency <= 0 {
		concurrency = o.config.Concurrency
	}

	job := models.NewJob(jobType, name, createdBy, models.JobConfig{
		Domains:     deduped,
		MaxRetries:  maxRetries,
		Concurrency: concurrency,
	})
	job.TotalSteps = len(deduped)

	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	for i, domain := range deduped {
		step := models.NewStep(job.ID, i+1, domain)
		if err := o.jobs.SaveStep(ctx, step); err != nil {
			return nil, err
		}
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(jobType)).
		Int("domains", len(deduped)).
		Int("max_retries", maxRetries).
		Int("concurrency", concurrency).
		Msg("Job created")

	return job, nil
}

// Start transitions a pending job to running and launches the execution
// loop in the background. Returns immediately; callers poll GetStatus or
// block on Wait.
func (o *Orchestrator) Start(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.JobStatusPending {
		return models.NewInvalidStateError("job %s is %s, only pending jobs can start", jobID, job.Status)
	}

	job.MarkStarted()
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	o.launch(job.ID)
	return nil
}

// launch registers a run handle and starts the execution goroutine.
func (o *Orchestrator) launch(jobID string) {
	handle := newRunHandle()
	o.mu.Lock()
	o.runs[jobID] = handle
	o.mu.Unlock()

	go o.execute(jobID, handle)
}

func (o *Orchestrator) handleFor(jobID string) *runHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[jobID]
}

// execute runs a job's steps with bounded concurrency, then finalizes the
// job's terminal state.
func (o *Orchestrator) execute(jobID string, handle *runHandle) {
	defer close(handle.done)
	defer func() {
		o.mu.Lock()
		delete(o.runs, jobID)
		o.mu.Unlock()
	}()

	ctx := context.Background()
	log := o.logger.WithCorrelationId(jobID)

	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load job for execution")
		return
	}
	steps, err := o.jobs.GetSteps(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load steps for execution")
		return
	}

	concurrency := job.Config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	log.Info().
		Int("total_steps", job.TotalSteps).
		Int("concurrency", concurrency).
		Msg("Job execution started")

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, step := range steps {
		if step.IsTerminal() {
			continue
		}
		if handle.cancelled() {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(step *models.Step) {
			defer wg.Done()
			defer func() { <-sem }()

			o.runStepWithRetries(ctx, log, job, step, handle)
			o.applyProgress(ctx, jobID, handle)
		}(step)
	}
	wg.Wait()

	o.finalize(ctx, log, jobID, handle)
}

// runStepWithRetries executes one step with up to max_retries+1 attempts
// and a fixed backoff between attempts. Cancellation observed between
// attempts short-circuits further retries.
func (o *Orchestrator) runStepWithRetries(ctx context.Context, log arbor.ILogger, job *models.Job, step *models.Step, handle *runHandle) {
	if handle.cancelled() {
		step.MarkCancelled()
		o.saveStep(ctx, log, step)
		return
	}

	maxAttempts := job.Config.MaxRetries + 1
	step.Status = models.JobStatusRunning
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now()
	}
	o.saveStep(ctx, log, step)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		step.AttemptCount = attempt
		o.saveStep(ctx, log, step)

		crawled, err := o.crawler.Crawl(ctx, step.Name)
		if err == nil {
			reportID, saveErr := o.reports.SaveReport(ctx, crawled)
			if saveErr == nil {
				step.MarkCompleted(reportID)
				o.saveStep(ctx, log, step)
				log.Info().
					Int("step", step.StepNumber).
					Str("domain", step.Name).
					Int("attempts", attempt).
					Str("report_id", reportID).
					Msg("Step completed")
				return
			}
			err = saveErr
		}
		lastErr = err

		log.Warn().
			Err(err).
			Int("step", step.StepNumber).
			Str("domain", step.Name).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("Step attempt failed")

		if attempt < maxAttempts {
			select {
			case <-handle.cancelCh:
				step.MarkCancelled()
				o.saveStep(ctx, log, step)
				return
			case <-time.After(o.config.RetryBackoff):
			}
			if handle.cancelled() {
				step.MarkCancelled()
				o.saveStep(ctx, log, step)
				return
			}
		}
	}

	step.MarkFailed(lastErr.Error())
	o.saveStep(ctx, log, step)

	// Record the failed audit so the domain's history stays complete.
	failure := o.builder.FailureReport(step.Name, lastErr)
	if _, err := o.reports.SaveReport(ctx, failure); err != nil {
		log.Warn().Err(err).Str("domain", step.Name).Msg("Failed to save failure report")
	}

	log.Warn().
		Int("step", step.StepNumber).
		Str("domain", step.Name).
		Msg("Step failed after exhausting retries")
}

func (o *Orchestrator) saveStep(ctx context.Context, log arbor.ILogger, step *models.Step) {
	if err := o.jobs.SaveStep(ctx, step); err != nil {
		log.Error().Err(err).Str("step_id", step.ID).Msg("Failed to persist step")
	}
}

// applyProgress recomputes the job's counters from step terminal states
// under the job's progress lock.
func (o *Orchestrator) applyProgress(ctx context.Context, jobID string, handle *runHandle) {
	handle.progress.Lock()
	defer handle.progress.Unlock()

	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	steps, err := o.jobs.GetSteps(ctx, jobID)
	if err != nil {
		return
	}

	completed, failed := countTerminal(steps)
	job.CompletedSteps = completed
	job.FailedSteps = failed
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to persist job progress")
	}
}

// finalize drives the job to its terminal state once no more steps will
// run. Status is re-read from storage before the transition.
func (o *Orchestrator) finalize(ctx context.Context, log arbor.ILogger, jobID string, handle *runHandle) {
	handle.progress.Lock()
	defer handle.progress.Unlock()

	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load job for finalization")
		return
	}
	if job.IsTerminal() {
		return
	}
	steps, err := o.jobs.GetSteps(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load steps for finalization")
		return
	}

	if handle.cancelled() {
		for _, step := range steps {
			if !step.IsTerminal() {
				step.MarkCancelled()
				o.saveStep(ctx, log, step)
			}
		}
		job.CompletedSteps, job.FailedSteps = countTerminal(steps)
		job.MarkCancelled()
		if err := o.jobs.SaveJob(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to persist cancelled job")
		}
		log.Info().Msg("Job cancelled")
		return
	}

	completed, failed := countTerminal(steps)
	job.CompletedSteps = completed
	job.FailedSteps = failed

	// Per-step failures are not job-fatal; the job only fails when the
	// entire batch failed.
	if failed == job.TotalSteps && job.TotalSteps > 0 {
		job.MarkFailed("all steps failed")
	} else {
		job.MarkCompleted()
	}
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to persist finished job")
		return
	}

	log.Info().
		Str("status", string(job.Status)).
		Int("completed_steps", completed).
		Int("failed_steps", failed).
		Msg("Job finished")
}

func countTerminal(steps []*models.Step) (completed, failed int) {
	for _, step := range steps {
		switch step.Status {
		case models.JobStatusCompleted:
			completed++
		case models.JobStatusFailed:
			failed++
		}
	}
	return completed, failed
}

// Cancel requests cooperative cancellation. In-flight attempts finish;
// pending steps are frozen as cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return models.NewInvalidStateError("job %s is already %s", jobID, job.Status)
	}

	if handle := o.handleFor(jobID); handle != nil {
		handle.requestCancel()
		o.logger.Info().Str("job_id", jobID).Msg("Job cancellation requested")
		return nil
	}

	// No active run (pending job, or runner lost): cancel directly.
	steps, err := o.jobs.GetSteps(ctx, jobID)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if !step.IsTerminal() {
			step.MarkCancelled()
			if err := o.jobs.SaveStep(ctx, step); err != nil {
				return err
			}
		}
	}
	job.CompletedSteps, job.FailedSteps = countTerminal(steps)
	job.MarkCancelled()
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	o.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	return nil
}

// Retry resets failed steps of a failed or completed-with-failures job
// and restarts execution. Successful steps keep their results.
func (o *Orchestrator) Retry(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	retryable := job.Status == models.JobStatusFailed ||
		(job.Status == models.JobStatusCompleted && job.FailedSteps > 0)
	if !retryable {
		return models.NewInvalidStateError("job %s is %s with %d failed steps, nothing to retry", jobID, job.Status, job.FailedSteps)
	}

	steps, err := o.jobs.GetSteps(ctx, jobID)
	if err != nil {
		return err
	}
	reset := 0
	for _, step := range steps {
		if step.Status != models.JobStatusFailed {
			continue
		}
		step.Reset()
		if err := o.jobs.SaveStep(ctx, step); err != nil {
			return err
		}
		reset++
	}

	job.Status = models.JobStatusRunning
	job.Error = ""
	job.CompletedAt = time.Time{}
	job.CompletedSteps, job.FailedSteps = countTerminal(steps)
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	o.logger.Info().
		Str("job_id", jobID).
		Int("steps_reset", reset).
		Msg("Job retry started")

	o.launch(jobID)
	return nil
}

// Delete soft-deletes a job. Running jobs must be cancelled first.
func (o *Orchestrator) Delete(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.JobStatusRunning {
		return models.NewInvalidStateError("job %s is running, cancel it before deleting", jobID)
	}

	job.Deleted = true
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return err
	}
	o.logger.Info().Str("job_id", jobID).Msg("Job deleted")
	return nil
}

// GetStatus returns a consistent snapshot of the job and its steps.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error) {
	handle := o.handleFor(jobID)
	if handle != nil {
		handle.progress.Lock()
		defer handle.progress.Unlock()
	}

	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	steps, err := o.jobs.GetSteps(ctx, jobID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.JobStatusSnapshot{
		ID:                 job.ID,
		JobType:            job.JobType,
		Name:               job.Name,
		Status:             job.Status,
		ProgressPercentage: job.ProgressPercentage(),
		TotalSteps:         job.TotalSteps,
		CompletedSteps:     job.CompletedSteps,
		FailedSteps:        job.FailedSteps,
		Error:              job.Error,
		StartedAt:          job.StartedAt,
		CompletedAt:        job.CompletedAt,
		Steps:              make([]models.StepSnapshot, 0, len(steps)),
	}
	for _, step := range steps {
		switch step.Status {
		case models.JobStatusRunning:
			snapshot.RunningSteps++
		case models.JobStatusPending:
			snapshot.PendingSteps++
		}
		snapshot.Steps = append(snapshot.Steps, models.StepSnapshot{
			StepNumber:   step.StepNumber,
			Name:         step.Name,
			Status:       step.Status,
			AttemptCount: step.AttemptCount,
			ResultData:   step.ResultData,
			Error:        step.Error,
			StartedAt:    step.StartedAt,
			CompletedAt:  step.CompletedAt,
		})
	}
	return snapshot, nil
}

// ListJobs lists jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return o.jobs.ListJobs(ctx, opts)
}

// Wait blocks until the job reaches a terminal state or the context is
// done.
func (o *Orchestrator) Wait(ctx context.Context, jobID string) (*models.Job, error) {
	for {
		if handle := o.handleFor(jobID); handle != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-handle.done:
			}
		}

		job, err := o.jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

var _ interfaces.JobOrchestrator = (*Orchestrator)(nil)
