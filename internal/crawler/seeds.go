package crawler

import (
	"context"
	"regexp"
	"strings"

	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/extractor"
	"github.com/ternarybob/prospect/internal/models"
)

// Well-known path hints queued alongside the homepage. English and
// Spanish variants cover the sites this system targets.
var seedHints = []string{
	"contact",
	"contacto",
	"about",
	"nosotros",
	"quienes-somos",
	"team",
	"equipo",
	"pricing",
	"precios",
	"privacy-policy",
	"politica-de-privacidad",
	"aviso-legal",
	"terminos",
	"blog",
}

var (
	sitemapLocRe    = regexp.MustCompile(`<loc>\s*(.*?)\s*</loc>`)
	robotsSitemapRe = regexp.MustCompile(`(?i)Sitemap:\s*(\S+)`)
)

const maxSitemapSeeds = 100

// seedFrontier queues the path hints and any sitemap-discovered URLs for
// a crawl, after the homepage has already been loaded.
func (c *Crawler) seedFrontier(ctx context.Context, f *frontier, baseURL string) {
	base := strings.TrimSuffix(baseURL, "/")

	for _, hint := range seedHints {
		hintURL := base + "/" + hint
		pageType := extractor.ClassifyURL(hintURL, baseURL)
		f.Push(hintURL, models.SeedTypeHint, priorityFor(pageType))
	}

	for _, loc := range c.discoverSitemapURLs(ctx, base) {
		pageType := extractor.ClassifyURL(loc, baseURL)
		f.Push(loc, models.SeedTypeSitemap, priorityFor(pageType))
	}
}

// discoverSitemapURLs probes wp-sitemap.xml, sitemap.xml, and robots.txt
// for same-site page URLs. robots.txt Sitemap: directives are followed one
// level deep. Probe failures are silent; sitemaps are best-effort.
func (c *Crawler) discoverSitemapURLs(ctx context.Context, base string) []string {
	sitemaps := []string{base + "/wp-sitemap.xml", base + "/sitemap.xml"}

	if page, err := c.loader.Load(ctx, base+"/robots.txt"); err == nil && page.StatusCode < 400 {
		for _, m := range robotsSitemapRe.FindAllStringSubmatch(page.HTML, -1) {
			sitemaps = append(sitemaps, strings.TrimSpace(m[1]))
		}
	}

	seen := map[string]struct{}{}
	var urls []string
	for _, sitemapURL := range sitemaps {
		if len(urls) >= maxSitemapSeeds {
			break
		}
		page, err := c.loader.Load(ctx, sitemapURL)
		if err != nil || page.StatusCode >= 400 {
			continue
		}
		for _, m := range sitemapLocRe.FindAllStringSubmatch(page.HTML, -1) {
			loc := strings.TrimSpace(m[1])
			if !common.SameSite(loc, base) || common.IsAsset(loc) {
				continue
			}
			// Nested sitemap indexes are not followed further.
			if strings.HasSuffix(strings.ToLower(loc), ".xml") {
				continue
			}
			key := common.VisitKey(loc)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			urls = append(urls, loc)
			if len(urls) >= maxSitemapSeeds {
				break
			}
		}
	}
	return urls
}
