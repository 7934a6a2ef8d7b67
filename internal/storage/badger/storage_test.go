package badger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestJobAndStepPersistence(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := models.NewJob(models.JobTypeBatchScraping, "nightly", "tester", models.JobConfig{
		Domains:     []string{"example.com", "other.com"},
		MaxRetries:  2,
		Concurrency: 1,
	})
	job.TotalSteps = 2

	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	// Steps saved out of order must come back ordered by step number.
	step2 := models.NewStep(job.ID, 2, "other.com")
	step1 := models.NewStep(job.ID, 1, "example.com")
	for _, s := range []*models.Step{step2, step1} {
		if err := storage.SaveStep(ctx, s); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
	}

	got, err := storage.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != models.JobStatusPending || got.TotalSteps != 2 {
		t.Errorf("unexpected job: status=%s total=%d", got.Status, got.TotalSteps)
	}
	if len(got.Config.Domains) != 2 {
		t.Errorf("config snapshot lost: %v", got.Config)
	}

	steps, err := storage.GetSteps(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetSteps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].StepNumber != 1 || steps[1].StepNumber != 2 {
		t.Errorf("steps not ordered: %d, %d", steps[0].StepNumber, steps[1].StepNumber)
	}
	if steps[0].Name != "example.com" {
		t.Errorf("unexpected step name %q", steps[0].Name)
	}

	// Status updates survive a round trip.
	step1.MarkCompleted("report-1")
	if err := storage.SaveStep(ctx, step1); err != nil {
		t.Fatalf("SaveStep update: %v", err)
	}
	reloaded, err := storage.GetStep(ctx, step1.ID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if reloaded.Status != models.JobStatusCompleted || reloaded.ResultData != "report-1" {
		t.Errorf("step update lost: %+v", reloaded)
	}
}

func TestListJobsFiltering(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	running := models.NewJob(models.JobTypeBatchScraping, "a", "", models.JobConfig{})
	running.MarkStarted()
	done := models.NewJob(models.JobTypeSingleScraping, "b", "", models.JobConfig{})
	done.MarkCompleted()
	deleted := models.NewJob(models.JobTypeBatchScraping, "c", "", models.JobConfig{})
	deleted.Deleted = true

	for _, j := range []*models.Job{running, done, deleted} {
		if err := storage.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	all, err := storage.ListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("soft-deleted jobs must be excluded, got %d jobs", len(all))
	}

	byStatus, err := storage.ListJobs(ctx, &interfaces.JobListOptions{Status: models.JobStatusRunning})
	if err != nil {
		t.Fatal(err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != running.ID {
		t.Errorf("status filter failed: %v", byStatus)
	}

	byType, err := storage.ListJobs(ctx, &interfaces.JobListOptions{JobType: models.JobTypeSingleScraping})
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 1 || byType[0].ID != done.ID {
		t.Errorf("type filter failed: %v", byType)
	}
}

func sampleReport(domain string) *models.Report {
	report := models.NewReport(domain)
	report.StatusCode = 200
	report.Success = true
	report.SEO = &models.SEOStats{Title: "Acme", WordCount: 340}
	report.Site.Contacts.Emails = []string{"info@" + domain, "sales@" + domain, "info@" + domain}
	report.Site.Contacts.Phones = []string{"+15550100"}
	report.Site.PagesCrawled = 4
	report.Summary = models.ReportSummary{
		PagesCrawled:       4,
		SEOTitle:           "Acme",
		ContactEmailsCount: 2,
		ContactPhonesCount: 1,
	}
	return report
}

func TestReportRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewReportStorage(db, arbor.NewLogger(), 32*1024)
	ctx := context.Background()

	report := sampleReport("example.com")
	id, err := storage.SaveReport(ctx, report)
	if err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if id != report.ID {
		t.Errorf("SaveReport returned %q, want %q", id, report.ID)
	}

	got, err := storage.GetReport(ctx, id)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Domain != "example.com" || got.SEO.Title != "Acme" {
		t.Errorf("report round trip lost data: %+v", got)
	}
	if got.Site.PagesCrawled != 4 {
		t.Errorf("site summary lost: %+v", got.Site)
	}
}

func TestReportCompressionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	// Tiny threshold forces the compressed path.
	storage := NewReportStorage(db, arbor.NewLogger(), 64)
	ctx := context.Background()

	report := sampleReport("example.com")
	report.SeedMarkdown = strings.Repeat("# Heading\n\nbody text\n", 200)

	id, err := storage.SaveReport(ctx, report)
	if err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	var record reportRecord
	if err := db.Store().Get(id, &record); err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if !record.IsCompressed {
		t.Fatal("payload above threshold should be stored compressed")
	}

	got, err := storage.GetReport(ctx, id)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.SeedMarkdown != report.SeedMarkdown {
		t.Error("decompressed payload differs from original")
	}
}

func TestDomainRegistry(t *testing.T) {
	db := newTestDB(t)
	storage := NewReportStorage(db, arbor.NewLogger(), 32*1024)
	ctx := context.Background()

	missing, err := storage.GetDomain(ctx, "never-seen.com")
	if err != nil {
		t.Fatalf("GetDomain: %v", err)
	}
	if missing != nil {
		t.Fatal("unknown domain should return nil")
	}

	first := sampleReport("example.com")
	first.ScrapedAt = time.Now().Add(-time.Hour)
	if _, err := storage.SaveReport(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := sampleReport("example.com")
	if _, err := storage.SaveReport(ctx, second); err != nil {
		t.Fatal(err)
	}

	domain, err := storage.GetDomain(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if domain == nil || domain.TotalReports != 2 {
		t.Fatalf("expected 2 reports tracked, got %+v", domain)
	}
	if !domain.FirstScrapedAt.Equal(first.ScrapedAt) {
		t.Errorf("first_scraped_at overwritten: %v", domain.FirstScrapedAt)
	}
	if !domain.LastScrapedAt.Equal(second.ScrapedAt) {
		t.Errorf("last_scraped_at not advanced: %v", domain.LastScrapedAt)
	}
	if domain.Status != "active" {
		t.Errorf("status = %q, want active", domain.Status)
	}

	failed := sampleReport("example.com")
	failed.Success = false
	failed.Error = "unreachable"
	if _, err := storage.SaveReport(ctx, failed); err != nil {
		t.Fatal(err)
	}
	domain, _ = storage.GetDomain(ctx, "example.com")
	if domain.Status != "error" {
		t.Errorf("failed audit should mark domain error, got %q", domain.Status)
	}

	reports, err := storage.ListByDomain(ctx, "example.com", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("limit ignored, got %d reports", len(reports))
	}
}

func TestContactOptionsDeduplicated(t *testing.T) {
	db := newTestDB(t)
	storage := NewReportStorage(db, arbor.NewLogger(), 32*1024)
	ctx := context.Background()

	report := sampleReport("example.com")
	id, err := storage.SaveReport(ctx, report)
	if err != nil {
		t.Fatal(err)
	}

	opts, err := storage.ContactOptions(ctx, id)
	if err != nil {
		t.Fatalf("ContactOptions: %v", err)
	}
	if len(opts.Emails) != 2 {
		t.Errorf("emails not deduplicated: %v", opts.Emails)
	}
	if opts.Emails[0] != "info@example.com" {
		t.Errorf("first-occurrence order lost: %v", opts.Emails)
	}
	if len(opts.Phones) != 1 || opts.Phones[0] != "+15550100" {
		t.Errorf("phones wrong: %v", opts.Phones)
	}
}
