package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
)

// fakeOrchestrator records batch creation and completes jobs instantly.
type fakeOrchestrator struct {
	mu        sync.Mutex
	created   []createdBatch
	started   []string
	block     chan struct{} // non-nil makes Wait block until closed
	createErr error
}

type createdBatch struct {
	id        string
	domains   []string
	name      string
	createdBy string
}

func (f *fakeOrchestrator) CreateBatchJob(ctx context.Context, domains []string, name, createdBy string, maxRetries, concurrency int) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	job := models.NewJob(models.JobTypeBatchScraping, name, createdBy, models.JobConfig{Domains: domains})
	f.created = append(f.created, createdBatch{id: job.ID, domains: domains, name: name, createdBy: createdBy})
	return job, nil
}

func (f *fakeOrchestrator) CreateSingleJob(ctx context.Context, domain, name, createdBy string, maxRetries int) (*models.Job, error) {
	return nil, errors.New("not used")
}

func (f *fakeOrchestrator) Start(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, jobID)
	return nil
}

func (f *fakeOrchestrator) Cancel(ctx context.Context, jobID string) error { return nil }
func (f *fakeOrchestrator) Retry(ctx context.Context, jobID string) error  { return nil }
func (f *fakeOrchestrator) Delete(ctx context.Context, jobID string) error { return nil }

func (f *fakeOrchestrator) GetStatus(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error) {
	return nil, errors.New("not used")
}

func (f *fakeOrchestrator) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return nil, nil
}

func (f *fakeOrchestrator) Wait(ctx context.Context, jobID string) (*models.Job, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	job := &models.Job{ID: jobID, Status: models.JobStatusCompleted}
	return job, nil
}

func (f *fakeOrchestrator) batches() []createdBatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]createdBatch, len(f.created))
	copy(out, f.created)
	return out
}

var _ interfaces.JobOrchestrator = (*fakeOrchestrator)(nil)

func newTestScheduler() (*Scheduler, *fakeOrchestrator) {
	orch := &fakeOrchestrator{}
	return New(orch, arbor.NewLogger()), orch
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestScheduler()

	if err := s.Register(common.ScheduleConfig{Name: "", Cron: "@daily", Domains: []string{"a.com"}}); err == nil {
		t.Error("empty name accepted")
	}
	if err := s.Register(common.ScheduleConfig{Name: "nodomains", Cron: "@daily"}); err == nil {
		t.Error("empty domain list accepted")
	}
	if err := s.Register(common.ScheduleConfig{Name: "badcron", Cron: "not a cron", Domains: []string{"a.com"}}); err == nil {
		t.Error("invalid cron expression accepted")
	}

	valid := common.ScheduleConfig{Name: "weekly", Cron: "0 6 * * 1", Domains: []string{"a.com", "b.com"}}
	if err := s.Register(valid); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if err := s.Register(valid); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestTriggerRunsBatch(t *testing.T) {
	s, orch := newTestScheduler()

	schedule := common.ScheduleConfig{Name: "audits", Cron: "@daily", Domains: []string{"a.com", "b.com"}}
	if err := s.Register(schedule); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("audits"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(orch.batches()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("batch never created")
		}
		time.Sleep(5 * time.Millisecond)
	}

	batch := orch.batches()[0]
	if len(batch.domains) != 2 || batch.domains[0] != "a.com" {
		t.Errorf("domains = %v", batch.domains)
	}
	if batch.createdBy != "scheduler" {
		t.Errorf("created_by = %s", batch.createdBy)
	}
	if !strings.HasPrefix(batch.name, "audits ") {
		t.Errorf("name = %s", batch.name)
	}

	// The batch must also have been started.
	for time.Now().Before(deadline) {
		orch.mu.Lock()
		started := len(orch.started)
		orch.mu.Unlock()
		if started == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Wait for run to settle, then check status bookkeeping.
	for time.Now().Before(deadline) {
		status, err := s.Status("audits")
		if err != nil {
			t.Fatal(err)
		}
		if !status.IsRunning && status.LastRun != nil {
			if status.LastJobID != batch.id {
				t.Errorf("last_job_id = %s, want %s", status.LastJobID, batch.id)
			}
			if status.LastError != "" {
				t.Errorf("last_error = %s", status.LastError)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run never settled")
}

func TestTriggerSkipsOverlappingRun(t *testing.T) {
	s, orch := newTestScheduler()
	block := make(chan struct{})
	orch.block = block

	if err := s.Register(common.ScheduleConfig{Name: "slow", Cron: "@hourly", Domains: []string{"a.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("slow"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, _ := s.Status("slow")
		if status.IsRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Trigger("slow"); err == nil {
		t.Error("overlapping trigger accepted")
	}

	close(block)
}

func TestTriggerUnknownSchedule(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.Trigger("missing"); err == nil {
		t.Error("unknown schedule accepted")
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler()

	schedules := []common.ScheduleConfig{
		{Name: "one", Cron: "@daily", Domains: []string{"a.com"}},
		{Name: "two", Cron: "@weekly", Domains: []string{"b.com"}},
	}
	if err := s.Start(schedules); err != nil {
		t.Fatal(err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running")
	}
	if err := s.Start(nil); err == nil {
		t.Error("double start accepted")
	}

	statuses := s.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d", len(statuses))
	}
	if statuses["one"].NextRun == nil {
		t.Error("next_run not computed for active schedule")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should be stopped")
	}
	s.Stop() // idempotent
}

func TestCreateFailureRecorded(t *testing.T) {
	s, orch := newTestScheduler()
	orch.createErr = errors.New("storage down")

	if err := s.Register(common.ScheduleConfig{Name: "broken", Cron: "@daily", Domains: []string{"a.com"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("broken"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, _ := s.Status("broken")
		if !status.IsRunning && status.LastRun != nil {
			if !strings.Contains(status.LastError, "storage down") {
				t.Errorf("last_error = %q", status.LastError)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("run never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
