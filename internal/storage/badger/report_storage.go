package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// reportRecord is the stored shape of a report: cached summary scalars for
// cheap listing, plus the full payload as a (possibly compressed) JSON blob.
type reportRecord struct {
	ID           string               `json:"id"`
	Domain       string               `json:"domain"`
	ScrapedAt    time.Time            `json:"scraped_at"`
	Success      bool                 `json:"success"`
	Summary      models.ReportSummary `json:"summary"`
	Payload      []byte               `json:"payload"`
	IsCompressed bool                 `json:"is_compressed"`
}

// ReportStorage implements the ReportStorage interface for Badger
type ReportStorage struct {
	db        *BadgerDB
	logger    arbor.ILogger
	threshold int
}

// NewReportStorage creates a new ReportStorage instance. Payloads at or
// above threshold bytes are stored zlib-compressed.
func NewReportStorage(db *BadgerDB, logger arbor.ILogger, threshold int) interfaces.ReportStorage {
	return &ReportStorage{
		db:        db,
		logger:    logger,
		threshold: threshold,
	}
}

func (s *ReportStorage) SaveReport(ctx context.Context, report *models.Report) (string, error) {
	if report == nil || report.ID == "" {
		return "", fmt.Errorf("report ID is required")
	}
	if report.Domain == "" {
		return "", fmt.Errorf("report domain is required")
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	stored, compressed, err := compressPayload(payload, s.threshold)
	if err != nil {
		return "", err
	}

	record := &reportRecord{
		ID:           report.ID,
		Domain:       report.Domain,
		ScrapedAt:    report.ScrapedAt,
		Success:      report.Success,
		Summary:      report.Summary,
		Payload:      stored,
		IsCompressed: compressed,
	}
	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	if err := s.touchDomain(report); err != nil {
		return "", err
	}

	s.logger.Debug().
		Str("report_id", report.ID).
		Str("domain", report.Domain).
		Bool("compressed", compressed).
		Int("payload_bytes", len(stored)).
		Msg("Report saved")

	return report.ID, nil
}

// touchDomain upserts the registry entry for the report's hostname.
func (s *ReportStorage) touchDomain(report *models.Report) error {
	key := "domain:" + report.Domain

	var domain models.Domain
	err := s.db.Store().Get(key, &domain)
	switch err {
	case nil:
	case badgerhold.ErrNotFound:
		domain = models.Domain{
			Name:           report.Domain,
			FirstScrapedAt: report.ScrapedAt,
			Status:         "active",
		}
	default:
		return fmt.Errorf("failed to get domain %s: %w", report.Domain, err)
	}

	domain.LastScrapedAt = report.ScrapedAt
	domain.TotalReports++
	if report.Success {
		domain.Status = "active"
	} else {
		domain.Status = "error"
	}

	if err := s.db.Store().Upsert(key, &domain); err != nil {
		return fmt.Errorf("failed to save domain %s: %w", report.Domain, err)
	}
	return nil
}

func (s *ReportStorage) GetReport(ctx context.Context, reportID string) (*models.Report, error) {
	var record reportRecord
	if err := s.db.Store().Get(reportID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("report not found: %s", reportID)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return decodeRecord(&record)
}

func decodeRecord(record *reportRecord) (*models.Report, error) {
	payload, err := decompressPayload(record.Payload, record.IsCompressed)
	if err != nil {
		return nil, err
	}

	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", record.ID, err)
	}
	return &report, nil
}

func (s *ReportStorage) ListByDomain(ctx context.Context, domain string, limit, offset int) ([]*models.Report, error) {
	query := badgerhold.Where("Domain").Eq(domain).SortBy("ScrapedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []reportRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list reports for %s: %w", domain, err)
	}

	reports := make([]*models.Report, 0, len(records))
	for i := range records {
		report, err := decodeRecord(&records[i])
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *ReportStorage) DeleteReport(ctx context.Context, reportID string) error {
	if err := s.db.Store().Delete(reportID, &reportRecord{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("report not found: %s", reportID)
		}
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func (s *ReportStorage) GetDomain(ctx context.Context, name string) (*models.Domain, error) {
	var domain models.Domain
	if err := s.db.Store().Get("domain:"+name, &domain); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return &domain, nil
}

func (s *ReportStorage) ListDomains(ctx context.Context, limit, offset int) ([]*models.Domain, error) {
	query := badgerhold.Where("Name").Ne("").SortBy("LastScrapedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var domains []models.Domain
	if err := s.db.Store().Find(&domains, query); err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	result := make([]*models.Domain, len(domains))
	for i := range domains {
		result[i] = &domains[i]
	}
	return result, nil
}

func (s *ReportStorage) ContactOptions(ctx context.Context, reportID string) (*interfaces.ContactOptions, error) {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	opts := &interfaces.ContactOptions{
		Emails: dedupe(report.Site.Contacts.Emails),
		Phones: dedupe(report.Site.Contacts.Phones),
	}
	return opts, nil
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
