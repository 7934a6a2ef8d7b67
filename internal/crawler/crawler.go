// -----------------------------------------------------------------------
// Crawler - bounded, prioritized crawl of one domain.
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/extractor"
	"github.com/ternarybob/prospect/internal/interfaces"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/report"
)

// Frontier growth cap relative to the page budget, so prioritization can
// act without unbounded memory.
const frontierGrowthFactor = 4

// Crawler drives PageLoader and Extractor across one domain and builds
// the finished report.
type Crawler struct {
	loader    interfaces.PageLoader
	extractor *extractor.Extractor
	builder   *report.Builder
	config    *common.CrawlerConfig
	logger    arbor.ILogger
}

// NewCrawler creates a Crawler.
func NewCrawler(loader interfaces.PageLoader, builder *report.Builder, config *common.CrawlerConfig, logger arbor.ILogger) *Crawler {
	return &Crawler{
		loader:    loader,
		extractor: extractor.New(),
		builder:   builder,
		config:    config,
		logger:    logger,
	}
}

// Crawl audits one domain. Seed failure surfaces as an unreachable error
// and budget exhaustion as a crawl timeout; page-level failures inside the
// crawl are absorbed into the partial result.
func (c *Crawler) Crawl(ctx context.Context, domain string) (*models.Report, error) {
	cleaned := common.CleanDomain(domain)
	baseURL := common.EnsureScheme(cleaned)

	crawlCtx, cancel := context.WithTimeout(ctx, c.config.CrawlTimeout)
	defer cancel()

	log := c.logger.WithCorrelationId(cleaned)
	log.Info().Str("domain", cleaned).Str("url", baseURL).Msg("Starting crawl")

	seed, err := c.loader.Load(crawlCtx, baseURL)
	if err != nil {
		if wrapped := c.budgetErr(ctx, crawlCtx, cleaned); wrapped != nil {
			return nil, wrapped
		}
		return nil, models.NewUnreachableError(baseURL, err)
	}

	agg := newAggregator()
	var records []models.PageRecord
	pagesCrawled := 0

	seedExtract, err := c.extractor.Extract(seed, baseURL, models.SeedTypeSeed)
	if err != nil {
		return nil, models.NewUnreachableError(baseURL, err)
	}
	agg.merge(seedExtract)
	records = append(records, seedExtract.Record)
	pagesCrawled++

	f := newFrontier()
	f.MarkSeen(baseURL)
	for _, link := range seedExtract.Links {
		f.PushLink(link, baseURL)
	}
	c.seedFrontier(crawlCtx, f, baseURL)

	consecutiveFailures := 0
	for pagesCrawled < c.config.MaxPages {
		if wrapped := c.budgetErr(ctx, crawlCtx, cleaned); wrapped != nil {
			return nil, wrapped
		}
		if consecutiveFailures >= c.config.MaxConsecutiveFailures {
			log.Warn().
				Int("failures", consecutiveFailures).
				Msg("Consecutive failure threshold reached, stopping crawl")
			break
		}

		item, ok := f.Pop()
		if !ok {
			break
		}

		page, err := c.loader.Load(crawlCtx, item.url)
		if err != nil {
			if wrapped := c.budgetErr(ctx, crawlCtx, cleaned); wrapped != nil {
				return nil, wrapped
			}
			consecutiveFailures++
			log.Debug().Err(err).Str("url", item.url).Msg("Page load failed")
			continue
		}
		consecutiveFailures = 0

		if page.StatusCode >= 400 {
			continue
		}
		pagesCrawled++

		ex, err := c.extractor.Extract(page, baseURL, item.seedType)
		if err != nil {
			log.Debug().Err(err).Str("url", item.url).Msg("Page extraction failed")
			continue
		}

		agg.merge(ex)
		records = append(records, ex.Record)

		if f.Len() < c.config.MaxPages*frontierGrowthFactor {
			for _, link := range ex.Links {
				f.PushLink(link, baseURL)
			}
		}
	}

	site := agg.summary(pagesCrawled)

	built, err := c.builder.Build(&report.BuildInput{
		Domain:   cleaned,
		Seed:     seed,
		SEO:      seedExtract.SEO,
		Tech:     buildTechStats(seed),
		Security: buildSecurityHeaders(seed),
		Site:     site,
		Pages:    records,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("pages_crawled", pagesCrawled).
		Int("emails", len(site.Contacts.Emails)).
		Int("forms", site.FormsFound).
		Str("report_id", built.ID).
		Msg("Crawl finished")

	return built, nil
}

// budgetErr distinguishes the crawl's own deadline from caller
// cancellation. Returns nil while the budget holds.
func (c *Crawler) budgetErr(ctx, crawlCtx context.Context, domain string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(crawlCtx.Err(), context.DeadlineExceeded) {
		return models.NewCrawlTimeoutError(domain)
	}
	return nil
}

// buildTechStats aggregates the seed page's network activity.
func buildTechStats(seed *models.LoadedPage) *models.TechStats {
	tech := &models.TechStats{
		RequestCount: len(seed.Requests),
		Timing:       seed.Timing,
	}
	if len(seed.Requests) > 0 {
		tech.BytesByMime = make(map[string]int64)
	}
	for _, req := range seed.Requests {
		tech.TotalBytes += req.Bytes
		if req.Mime != "" {
			tech.BytesByMime[req.Mime] += req.Bytes
		}
		if req.FirstParty {
			tech.FirstPartyRequests++
		} else {
			tech.ThirdPartyRequests++
		}
	}
	return tech
}

// buildSecurityHeaders reads the security response headers of the seed
// page. Absent headers stay empty.
func buildSecurityHeaders(seed *models.LoadedPage) *models.SecurityHeaders {
	return &models.SecurityHeaders{
		ContentSecurityPolicy:   seed.Headers["Content-Security-Policy"],
		StrictTransportSecurity: seed.Headers["Strict-Transport-Security"],
		XFrameOptions:           seed.Headers["X-Frame-Options"],
		XContentTypeOptions:     seed.Headers["X-Content-Type-Options"],
		ReferrerPolicy:          seed.Headers["Referrer-Policy"],
	}
}

var _ interfaces.SiteCrawler = (*Crawler)(nil)
