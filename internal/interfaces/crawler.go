package interfaces

import (
	"context"

	"github.com/ternarybob/prospect/internal/models"
)

// PageLoader loads one URL in a rendered browser context and reports the
// final DOM, the network requests observed during the load, and timing.
// Implemented by the chromedp pool; faked in tests.
type PageLoader interface {
	Load(ctx context.Context, url string) (*models.LoadedPage, error)
	Close() error
}

// SiteCrawler performs one bounded, prioritized crawl of a domain and
// returns the finished report. Page-level failures are absorbed into the
// partial result; only seed failure or budget exhaustion surface as errors.
type SiteCrawler interface {
	Crawl(ctx context.Context, domain string) (*models.Report, error)
}

// JobOrchestrator owns the job lifecycle: creation, background execution
// with bounded step concurrency, retry policy, cancellation, and status.
type JobOrchestrator interface {
	CreateBatchJob(ctx context.Context, domains []string, name, createdBy string, maxRetries, concurrency int) (*models.Job, error)
	CreateSingleJob(ctx context.Context, domain, name, createdBy string, maxRetries int) (*models.Job, error)
	Start(ctx context.Context, jobID string) error
	Cancel(ctx context.Context, jobID string) error
	Retry(ctx context.Context, jobID string) error
	Delete(ctx context.Context, jobID string) error
	GetStatus(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	// Wait blocks until the job reaches a terminal state or the context is
	// cancelled. Used by the CLI and by tests.
	Wait(ctx context.Context, jobID string) (*models.Job, error)
}
