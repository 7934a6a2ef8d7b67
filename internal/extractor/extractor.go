// -----------------------------------------------------------------------
// Extractor - pure transformation of one loaded page into structured
// signals. No network I/O; deterministic for a fixed input.
// -----------------------------------------------------------------------

package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/models"
)

// Link is an internal link candidate discovered on a page, carrying its
// anchor text for frontier prioritization.
type Link struct {
	URL  string
	Text string
}

// PageExtract bundles the per-page record with the page's incremental
// contributions to the site-level summary.
type PageExtract struct {
	Record models.PageRecord

	SEO      *models.SEOStats
	Socials  map[string][]string
	WhatsApp []string
	Forms    []models.FormInfo
	CTAs     []models.CTA
	IsLegal  bool

	Analytics   []string
	Pixels      []string
	FormVendors []string

	WP       models.WPSignals
	Business models.BusinessSignals

	Links []Link
}

// Extractor turns loaded pages into PageExtracts.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses the page HTML and produces the page record plus site
// summary contributions. baseURL anchors same-site and internal/external
// decisions; seedType records why the URL was queued.
func (e *Extractor) Extract(page *models.LoadedPage, baseURL string, seedType models.SeedType) (*PageExtract, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", page.URL, err)
	}

	pageType := ClassifyPage(page.URL, baseURL, doc)
	text := doc.Find("body").Text()

	emails := extractEmails(text, doc)
	phones := extractPhones(text, doc)
	team := extractTeamContacts(doc, pageType)
	forms := extractForms(doc, page.URL)

	out := &PageExtract{
		Record: models.PageRecord{
			URL:          page.URL,
			Status:       page.StatusCode,
			PageType:     pageType,
			SeedType:     seedType,
			EmailsFound:  emails,
			PhonesFound:  phones,
			FormsCount:   len(forms),
			TeamContacts: team,
		},
		Socials:  extractSocials(doc),
		WhatsApp: extractWhatsApp(doc),
		Forms:    forms,
		CTAs:     extractCTAs(doc, page.URL),
		IsLegal:  pageType == models.PageTypeLegal,
		WP:       extractWPSignals(page.HTML),
		Business: extractBusinessSignals(doc, pageType),
		Links:    extractLinks(doc, page.URL, baseURL),
	}

	out.Analytics, out.Pixels = extractIntegrations(doc, page.HTML)
	out.FormVendors = vendorsFromForms(forms)

	if pageType == models.PageTypeHome {
		out.SEO = buildSEOStats(doc, page.URL)
	}

	return out, nil
}

func vendorsFromForms(forms []models.FormInfo) []string {
	seen := map[string]struct{}{}
	var vendors []string
	for _, f := range forms {
		if f.Vendor == "" {
			continue
		}
		if _, ok := seen[f.Vendor]; ok {
			continue
		}
		seen[f.Vendor] = struct{}{}
		vendors = append(vendors, f.Vendor)
	}
	return vendors
}
