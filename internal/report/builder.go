// -----------------------------------------------------------------------
// Report builder - assembles crawl outputs into a persistable Report.
// -----------------------------------------------------------------------

package report

import (
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
)

// BuildInput is everything one finished crawl hands to the builder.
type BuildInput struct {
	Domain   string
	Seed     *models.LoadedPage
	SEO      *models.SEOStats
	Tech     *models.TechStats
	Security *models.SecurityHeaders
	Site     models.SiteSummary
	Pages    []models.PageRecord
}

// Builder assembles reports and computes their cached summary scalars.
type Builder struct {
	config    *common.ReportConfig
	converter *md.Converter
	logger    arbor.ILogger
}

// NewBuilder creates a Builder.
func NewBuilder(config *common.ReportConfig, logger arbor.ILogger) *Builder {
	return &Builder{
		config:    config,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Build assembles a Report from crawl output. The seed page result is the
// one hard requirement; an otherwise empty crawl is a valid report. The
// page sample is bounded by the configured limit.
func (b *Builder) Build(in *BuildInput) (*models.Report, error) {
	if in == nil || in.Seed == nil {
		return nil, models.NewBuildError("missing seed page result")
	}
	if in.Domain == "" {
		return nil, models.NewBuildError("missing domain")
	}

	report := models.NewReport(in.Domain)
	report.StatusCode = in.Seed.StatusCode
	report.Success = true
	report.SEO = in.SEO
	report.Tech = in.Tech
	report.Security = in.Security
	report.Site = in.Site

	report.Pages = in.Pages
	if limit := b.config.PageSampleLimit; limit > 0 && len(report.Pages) > limit {
		report.Pages = report.Pages[:limit]
	}

	if markdown, err := b.converter.ConvertString(in.Seed.HTML); err == nil {
		report.SeedMarkdown = markdown
	} else {
		b.logger.Warn().Err(err).Str("domain", in.Domain).Msg("Seed markdown conversion failed")
	}

	report.Summary = summarize(report)

	b.logger.Debug().
		Str("domain", in.Domain).
		Str("report_id", report.ID).
		Int("pages", report.Site.PagesCrawled).
		Msg("Report assembled")

	return report, nil
}

// FailureReport records an audit that never produced a crawl, keeping the
// domain's history complete.
func (b *Builder) FailureReport(domain string, cause error) *models.Report {
	report := models.NewReport(domain)
	report.Success = false
	if cause != nil {
		report.Error = cause.Error()
	}
	return report
}

// summarize computes the cached scalars used for listing without decoding
// the full payload.
func summarize(r *models.Report) models.ReportSummary {
	summary := models.ReportSummary{
		PagesCrawled:       r.Site.PagesCrawled,
		ContactEmailsCount: len(r.Site.Contacts.Emails),
		ContactPhonesCount: len(r.Site.Contacts.Phones),
		FormsFound:         r.Site.FormsFound,
	}
	if r.SEO != nil {
		summary.SEOTitle = r.SEO.Title
		summary.SEOWordCount = r.SEO.WordCount
		summary.SEOLinksTotal = r.SEO.Links.Total
		summary.SEOImagesTotal = r.SEO.Images.Total
	}
	if r.Tech != nil {
		summary.TechRequestsCount = r.Tech.RequestCount
		summary.TechTotalBytes = r.Tech.TotalBytes
		summary.TechTTFBMs = r.Tech.Timing.TTFBMs
	}
	return summary
}
