package interfaces

import (
	"context"

	"github.com/ternarybob/prospect/internal/models"
)

// JobListOptions filters and paginates job listings.
type JobListOptions struct {
	Status  models.JobStatus
	JobType models.JobType
	Limit   int
	Offset  int
}

// JobStorage - durable persistence for jobs and their steps.
// Storage is the single source of truth for job state: the orchestrator
// re-reads status before every transition rather than trusting an
// in-memory snapshot.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)

	SaveStep(ctx context.Context, step *models.Step) error
	GetStep(ctx context.Context, stepID string) (*models.Step, error)
	// GetSteps returns a job's steps ordered by step number.
	GetSteps(ctx context.Context, jobID string) ([]*models.Step, error)
}

// ContactOptions are the deduplicated contact channels a report offers for
// trusted-contact selection.
type ContactOptions struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// ReportStorage - durable persistence for audit reports, keyed by id.
// Payloads above the compression threshold are stored compressed; reads
// are transparent.
type ReportStorage interface {
	SaveReport(ctx context.Context, report *models.Report) (string, error)
	GetReport(ctx context.Context, reportID string) (*models.Report, error)
	ListByDomain(ctx context.Context, domain string, limit, offset int) ([]*models.Report, error)
	DeleteReport(ctx context.Context, reportID string) error

	// GetDomain returns the registry entry for a hostname, nil when the
	// domain has never been audited.
	GetDomain(ctx context.Context, domain string) (*models.Domain, error)
	ListDomains(ctx context.Context, limit, offset int) ([]*models.Domain, error)

	// ContactOptions extracts the selectable contact channels of a report.
	ContactOptions(ctx context.Context, reportID string) (*ContactOptions, error)
}
