package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/models"
)

// buildSEOStats computes the on-page SEO signals for the seed page.
func buildSEOStats(doc *goquery.Document, pageURL string) *models.SEOStats {
	stats := &models.SEOStats{
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		H1Count: doc.Find("h1").Length(),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		stats.MetaDescription = strings.TrimSpace(desc)
	}
	if robots, ok := doc.Find(`meta[name="robots"]`).Attr("content"); ok {
		stats.Robots = strings.TrimSpace(robots)
	}
	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		stats.Canonical = strings.TrimSpace(canonical)
	}

	stats.WordCount = len(strings.Fields(doc.Find("body").Text()))

	currentHost := ""
	if u, err := url.Parse(pageURL); err == nil {
		currentHost = strings.ToLower(u.Host)
	}
	base, _ := url.Parse(pageURL)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		stats.Links.Total++

		rel, _ := a.Attr("rel")
		if strings.Contains(strings.ToLower(rel), "nofollow") {
			stats.Links.Nofollow++
		}

		ref, err := url.Parse(href)
		if err != nil || base == nil {
			stats.Links.Internal++
			return
		}
		host := strings.ToLower(base.ResolveReference(ref).Host)
		if host == currentHost || host == "" {
			stats.Links.Internal++
		} else {
			stats.Links.External++
		}
	})

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		stats.Images.Total++
		alt, _ := img.Attr("alt")
		if strings.TrimSpace(alt) == "" {
			stats.Images.WithoutAlt++
		}
	})

	return stats
}
