// -----------------------------------------------------------------------
// Scheduler - runs configured domain audits on cron schedules by creating
// and starting batch jobs through the orchestrator.
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
)

// scheduleEntry tracks one registered schedule.
type scheduleEntry struct {
	name      string
	spec      string
	domains   []string
	cronID    cron.EntryID
	isRunning bool
	lastRun   *time.Time
	lastJobID string
	lastError string
}

// ScheduleStatus is a point-in-time view of a registered schedule.
type ScheduleStatus struct {
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	Domains   []string   `json:"domains"`
	IsRunning bool       `json:"is_running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastJobID string     `json:"last_job_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler owns the cron runner. Each schedule fires a batch job; a
// schedule whose previous batch is still running skips the tick instead
// of stacking jobs.
type Scheduler struct {
	orchestrator interfaces.JobOrchestrator
	cron         *cron.Cron
	logger       arbor.ILogger

	mu      sync.Mutex
	entries map[string]*scheduleEntry
	running bool
}

// New creates a Scheduler bound to the orchestrator.
func New(orchestrator interfaces.JobOrchestrator, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		cron:         cron.New(),
		logger:       logger,
		entries:      make(map[string]*scheduleEntry),
	}
}

// Register adds a schedule. Must be called before Start.
func (s *Scheduler) Register(schedule common.ScheduleConfig) error {
	if schedule.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if len(schedule.Domains) == 0 {
		return fmt.Errorf("schedule %s has no domains", schedule.Name)
	}
	if _, err := cron.ParseStandard(schedule.Cron); err != nil {
		return fmt.Errorf("schedule %s has invalid cron expression %q: %w", schedule.Name, schedule.Cron, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[schedule.Name]; exists {
		return fmt.Errorf("schedule %s already registered", schedule.Name)
	}

	name := schedule.Name
	cronID, err := s.cron.AddFunc(schedule.Cron, func() {
		s.runSchedule(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add schedule %s: %w", schedule.Name, err)
	}

	s.entries[name] = &scheduleEntry{
		name:    name,
		spec:    schedule.Cron,
		domains: schedule.Domains,
		cronID:  cronID,
	}

	s.logger.Info().
		Str("schedule", name).
		Str("cron", schedule.Cron).
		Int("domains", len(schedule.Domains)).
		Msg("Schedule registered")

	return nil
}

// Start registers all configured schedules and starts the cron runner.
func (s *Scheduler) Start(schedules []common.ScheduleConfig) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.mu.Unlock()

	for _, schedule := range schedules {
		if err := s.Register(schedule); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.mu.Lock()
	s.running = true
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.Info().Int("schedules", count).Msg("Scheduler started")
	return nil
}

// Stop halts the cron runner and waits for any in-flight tick callbacks.
// Batch jobs already started keep running; cancelling them is the
// caller's decision.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info().Msg("Scheduler stopped")
}

// IsRunning reports whether the cron runner is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger fires a schedule immediately, outside its cron cadence.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	entry, exists := s.entries[name]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("schedule %s not found", name)
	}
	if entry.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("schedule %s is already running", name)
	}
	s.mu.Unlock()

	s.logger.Info().Str("schedule", name).Msg("Schedule triggered manually")
	go s.runSchedule(name)
	return nil
}

// Status returns the state of one schedule.
func (s *Scheduler) Status(name string) (*ScheduleStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[name]
	if !exists {
		return nil, fmt.Errorf("schedule %s not found", name)
	}
	return s.statusLocked(entry), nil
}

// Statuses returns the state of every registered schedule.
func (s *Scheduler) Statuses() map[string]*ScheduleStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]*ScheduleStatus, len(s.entries))
	for name, entry := range s.entries {
		statuses[name] = s.statusLocked(entry)
	}
	return statuses
}

func (s *Scheduler) statusLocked(entry *scheduleEntry) *ScheduleStatus {
	status := &ScheduleStatus{
		Name:      entry.name,
		Spec:      entry.spec,
		Domains:   entry.domains,
		IsRunning: entry.isRunning,
		LastRun:   entry.lastRun,
		LastJobID: entry.lastJobID,
		LastError: entry.lastError,
	}
	for _, cronEntry := range s.cron.Entries() {
		if cronEntry.ID == entry.cronID {
			next := cronEntry.Next
			status.NextRun = &next
			break
		}
	}
	return status
}

// runSchedule creates and runs one batch job for the schedule, blocking
// until the batch finishes so overlapping ticks can be skipped.
func (s *Scheduler) runSchedule(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("schedule", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Panic recovered in schedule execution")
			s.mu.Lock()
			if entry, exists := s.entries[name]; exists {
				entry.isRunning = false
				entry.lastError = fmt.Sprintf("panic: %v", r)
			}
			s.mu.Unlock()
		}
	}()

	s.mu.Lock()
	entry, exists := s.entries[name]
	if !exists {
		s.mu.Unlock()
		return
	}
	if entry.isRunning {
		s.mu.Unlock()
		s.logger.Warn().Str("schedule", name).Msg("Previous run still active, skipping tick")
		return
	}
	entry.isRunning = true
	domains := entry.domains
	s.mu.Unlock()

	started := time.Now()
	jobID, err := s.executeBatch(name, domains)

	s.mu.Lock()
	entry.isRunning = false
	now := time.Now()
	entry.lastRun = &now
	entry.lastJobID = jobID
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("schedule", name).
			Dur("duration", time.Since(started)).
			Msg("Schedule run failed")
		return
	}
	s.logger.Info().
		Str("schedule", name).
		Str("job_id", jobID).
		Dur("duration", time.Since(started)).
		Msg("Schedule run completed")
}

func (s *Scheduler) executeBatch(name string, domains []string) (string, error) {
	ctx := context.Background()

	jobName := fmt.Sprintf("%s %s", name, time.Now().Format("2006-01-02 15:04"))
	job, err := s.orchestrator.CreateBatchJob(ctx, domains, jobName, "scheduler", -1, 0)
	if err != nil {
		return "", fmt.Errorf("failed to create batch job: %w", err)
	}
	if err := s.orchestrator.Start(ctx, job.ID); err != nil {
		return job.ID, fmt.Errorf("failed to start batch job: %w", err)
	}

	final, err := s.orchestrator.Wait(ctx, job.ID)
	if err != nil {
		return job.ID, err
	}
	if final.FailedSteps > 0 {
		s.logger.Warn().
			Str("schedule", name).
			Str("job_id", job.ID).
			Int("failed_steps", final.FailedSteps).
			Msg("Schedule batch finished with failed domains")
	}
	return job.ID, nil
}
