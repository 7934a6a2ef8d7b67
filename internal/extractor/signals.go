package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
)

var (
	wpThemeRe  = regexp.MustCompile(`/wp-content/themes/([^/"']+)/`)
	wpPluginRe = regexp.MustCompile(`/wp-content/plugins/([^/"']+)/`)
	currencyRe = regexp.MustCompile(`[$€£]\s?\d|(?i)\d+\s?(usd|eur|gbp|mxn|ars)\b`)

	testimonialClassRe = regexp.MustCompile(`(?i)\b(testimonial|review|quote)\b`)
)

const (
	maxValueProps    = 5
	maxPricingLines  = 10
	maxServices      = 10
	maxTestimonials  = 5
	maxSignalRuneLen = 200
)

// extractIntegrations detects analytics and pixel scripts. Matching
// follows well-known script hosts: gtag/googletagmanager/analytics.js for
// Google, hotjar, connect.facebook (or an inline fbq call) for Meta.
func extractIntegrations(doc *goquery.Document, html string) (analytics, pixels []string) {
	seenAnalytics := map[string]struct{}{}
	seenPixels := map[string]struct{}{}
	addAnalytics := func(name string) {
		if _, ok := seenAnalytics[name]; !ok {
			seenAnalytics[name] = struct{}{}
			analytics = append(analytics, name)
		}
	}
	addPixel := func(name string) {
		if _, ok := seenPixels[name]; !ok {
			seenPixels[name] = struct{}{}
			pixels = append(pixels, name)
		}
	}

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.ToLower(src)
		if strings.Contains(src, "gtag/js") || strings.Contains(src, "googletagmanager") || strings.Contains(src, "analytics.js") {
			addAnalytics("google")
		}
		if strings.Contains(src, "hotjar") {
			addAnalytics("hotjar")
		}
		if strings.Contains(src, "connect.facebook") {
			addPixel("meta")
		}
	})
	if strings.Contains(html, "fbq(") {
		addPixel("meta")
	}
	return analytics, pixels
}

// extractWPSignals fingerprints WordPress from asset paths and the REST
// API prefix. First theme match wins.
func extractWPSignals(html string) models.WPSignals {
	var wp models.WPSignals

	if strings.Contains(html, "/wp-json") {
		wp.RESTAPI = true
	}
	if m := wpThemeRe.FindStringSubmatch(html); m != nil {
		wp.Theme = m[1]
	}

	seen := map[string]struct{}{}
	for _, m := range wpPluginRe.FindAllStringSubmatch(html, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		wp.Plugins = append(wp.Plugins, m[1])
	}
	return wp
}

// extractBusinessSignals samples marketing copy by page role: hero
// headings on the homepage, currency-bearing lines on pricing pages,
// service headings on service-like pages, testimonial blocks anywhere.
func extractBusinessSignals(doc *goquery.Document, pageType models.PageType) models.BusinessSignals {
	var signals models.BusinessSignals

	clean := func(s string) string {
		s = strings.Join(strings.Fields(s), " ")
		if len([]rune(s)) > maxSignalRuneLen {
			s = string([]rune(s)[:maxSignalRuneLen])
		}
		return s
	}

	if pageType == models.PageTypeHome {
		doc.Find("h1, h2").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if text := clean(h.Text()); text != "" {
				signals.ValueProps = append(signals.ValueProps, text)
			}
			return len(signals.ValueProps) < maxValueProps
		})
	}

	if pageType == models.PageTypePricing {
		doc.Find("li, p, td, h3").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text := clean(el.Text())
			if text != "" && currencyRe.MatchString(text) {
				signals.Pricing = append(signals.Pricing, text)
			}
			return len(signals.Pricing) < maxPricingLines
		})
	}

	if pageType == models.PageTypeOther || pageType == models.PageTypeHome {
		doc.Find(`[class*="service"] h2, [class*="service"] h3, [class*="servicio"] h3`).EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if text := clean(h.Text()); text != "" {
				signals.Services = append(signals.Services, text)
			}
			return len(signals.Services) < maxServices
		})
	}

	doc.Find("blockquote").EachWithBreak(func(_ int, q *goquery.Selection) bool {
		if text := clean(q.Text()); text != "" {
			signals.Testimonials = append(signals.Testimonials, text)
		}
		return len(signals.Testimonials) < maxTestimonials
	})
	doc.Find("div, section").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		if !testimonialClassRe.MatchString(class) {
			return true
		}
		if el.Find("blockquote").Length() > 0 {
			return true
		}
		if text := clean(el.Find("p").First().Text()); text != "" {
			signals.Testimonials = append(signals.Testimonials, text)
		}
		return len(signals.Testimonials) < maxTestimonials
	})

	return signals
}

// extractLinks collects the page's same-site links as frontier candidates,
// deduplicated by normalized URL within the page.
func extractLinks(doc *goquery.Document, pageURL, baseURL string) []Link {
	seen := map[string]struct{}{}
	var links []Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved, ok := common.ResolveLink(href, pageURL)
		if !ok {
			return
		}
		if !common.SameSite(resolved, baseURL) || common.IsAsset(resolved) {
			return
		}
		key := common.VisitKey(resolved)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, Link{
			URL:  resolved,
			Text: strings.Join(strings.Fields(a.Text()), " "),
		})
	})
	return links
}
