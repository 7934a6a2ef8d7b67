// -----------------------------------------------------------------------
// Report - typed audit payload for one crawl of one domain
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// PageType classifies a page by its role on the site.
type PageType string

const (
	PageTypeHome    PageType = "home"
	PageTypeAbout   PageType = "about"
	PageTypeContact PageType = "contact"
	PageTypeTeam    PageType = "team"
	PageTypePricing PageType = "pricing"
	PageTypeBlog    PageType = "blog"
	PageTypeLegal   PageType = "legal"
	PageTypeOther   PageType = "other"
)

// SeedType records why a URL entered the frontier.
type SeedType string

const (
	SeedTypeSeed    SeedType = "seed"    // the homepage itself
	SeedTypeHint    SeedType = "hint"    // well-known path hint (/contact, /about, ...)
	SeedTypeSitemap SeedType = "sitemap" // discovered via sitemap.xml or robots.txt
	SeedTypeLink    SeedType = "link"    // discovered on a crawled page
)

// Contact source tags for TeamContact.Source.
const (
	ContactSourceStructured = "structured" // schema.org Person / JSON-LD
	ContactSourceHeuristic  = "heuristic"  // team-page card layout
)

// SEOStats captures the seed page's on-page SEO signals.
type SEOStats struct {
	Title           string     `json:"title"`
	MetaDescription string     `json:"meta_description"`
	Robots          string     `json:"robots"`
	Canonical       string     `json:"canonical"`
	H1Count         int        `json:"h1_count"`
	WordCount       int        `json:"word_count"`
	Links           LinkStats  `json:"links"`
	Images          ImageStats `json:"images"`
}

type LinkStats struct {
	Total    int `json:"total"`
	Internal int `json:"internal"`
	External int `json:"external"`
	Nofollow int `json:"nofollow"`
}

type ImageStats struct {
	Total      int `json:"total"`
	WithoutAlt int `json:"without_alt"`
}

// NetworkRequest is one outgoing request observed while loading a page.
type NetworkRequest struct {
	URL        string `json:"url"`
	Type       string `json:"type"` // document, script, stylesheet, image, xhr, ...
	Mime       string `json:"mime"`
	Bytes      int64  `json:"bytes"`
	FirstParty bool   `json:"first_party"`
}

// PageTiming holds page-load timing milestones in milliseconds.
type PageTiming struct {
	TTFBMs int64 `json:"ttfb_ms"`
	DCLMs  int64 `json:"dcl_ms"`
	LoadMs int64 `json:"load_ms"`
}

// TechStats aggregates network behavior of the seed page load.
type TechStats struct {
	RequestCount       int              `json:"request_count"`
	TotalBytes         int64            `json:"total_bytes"`
	BytesByMime        map[string]int64 `json:"bytes_by_mime,omitempty"`
	FirstPartyRequests int              `json:"first_party_requests"`
	ThirdPartyRequests int              `json:"third_party_requests"`
	Timing             PageTiming       `json:"timing"`
}

// SecurityHeaders records the security response headers of the seed page.
// Empty string means the header was absent.
type SecurityHeaders struct {
	ContentSecurityPolicy   string `json:"content_security_policy"`
	StrictTransportSecurity string `json:"strict_transport_security"`
	XFrameOptions           string `json:"x_frame_options"`
	XContentTypeOptions     string `json:"x_content_type_options"`
	ReferrerPolicy          string `json:"referrer_policy"`
}

// TeamContact is a named person extracted from team/about pages.
type TeamContact struct {
	Name           string   `json:"name"`
	JobTitle       string   `json:"job_title,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	SocialProfiles []string `json:"social_profiles,omitempty"`
	Source         string   `json:"source"` // structured | heuristic
}

// ContactConfidence buckets every email/phone exactly once: personal when
// bound to a named individual, generic otherwise.
type ContactConfidence struct {
	Personal []string `json:"personal"`
	Generic  []string `json:"generic"`
}

// Contacts aggregates contact channels found across the crawl.
type Contacts struct {
	Emails       []string          `json:"emails"`
	Phones       []string          `json:"phones"`
	WhatsApp     []string          `json:"whatsapp"`
	TeamContacts []TeamContact     `json:"team_contacts"`
	Confidence   ContactConfidence `json:"contact_confidence"`
}

// FormField describes one input of a discovered form.
type FormField struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// FormInfo is the detailed record of one form.
type FormInfo struct {
	PageURL    string      `json:"page_url"`
	Method     string      `json:"method"`
	Action     string      `json:"action,omitempty"`
	Fields     []FormField `json:"fields,omitempty"`
	ButtonText string      `json:"button_text,omitempty"`
	HasCaptcha bool        `json:"has_captcha"`
	Vendor     string      `json:"vendor,omitempty"` // third-party form vendor, if matched
}

// CTA is a prominent call-to-action link or button.
type CTA struct {
	Text    string `json:"text"`
	Href    string `json:"href"`
	PageURL string `json:"page_url"`
}

// Integrations lists detected third-party tooling by category.
type Integrations struct {
	Analytics []string `json:"analytics"`
	Pixels    []string `json:"pixels"`
	Forms     []string `json:"forms"`
}

// BusinessSignals holds marketing copy sampled from the site.
type BusinessSignals struct {
	ValueProps   []string `json:"value_prop"`
	Pricing      []string `json:"pricing"`
	Services     []string `json:"services"`
	Testimonials []string `json:"testimonials"`
}

// WPSignals fingerprints a WordPress installation, when present.
type WPSignals struct {
	Theme   string   `json:"theme,omitempty"`
	Plugins []string `json:"plugins"`
	RESTAPI bool     `json:"rest_api"`
}

// SiteSummary is the aggregated, domain-level view across all visited pages.
type SiteSummary struct {
	PagesCrawled  int                 `json:"pages_crawled"`
	Contacts      Contacts            `json:"contacts"`
	Socials       map[string][]string `json:"socials,omitempty"`
	FormsFound    int                 `json:"forms_found"`
	FormsDetailed []FormInfo          `json:"forms_detailed,omitempty"`
	CTAHighlights []CTA               `json:"cta_highlights,omitempty"`
	LegalPages    []string            `json:"legal_pages,omitempty"`
	Integrations  Integrations        `json:"integrations"`
	Business      BusinessSignals     `json:"business"`
	WP            *WPSignals          `json:"wp,omitempty"`
}

// PageRecord holds the extracted signals for one visited page.
// Produced once per URL, immutable afterwards, owned by the Report.
type PageRecord struct {
	URL          string        `json:"url"`
	Status       int           `json:"status"`
	PageType     PageType      `json:"page_type"`
	SeedType     SeedType      `json:"seed_type"`
	EmailsFound  []string      `json:"emails_found"`
	PhonesFound  []string      `json:"phones_found"`
	FormsCount   int           `json:"forms_count"`
	TeamContacts []TeamContact `json:"team_contacts,omitempty"`
}

// ReportSummary holds cached scalars for fast listing without decoding the
// full payload.
type ReportSummary struct {
	PagesCrawled       int    `json:"pages_crawled"`
	SEOTitle           string `json:"seo_title,omitempty"`
	SEOWordCount       int    `json:"seo_word_count"`
	SEOLinksTotal      int    `json:"seo_links_total"`
	SEOImagesTotal     int    `json:"seo_images_total"`
	TechRequestsCount  int    `json:"tech_requests_count"`
	TechTotalBytes     int64  `json:"tech_total_bytes"`
	TechTTFBMs         int64  `json:"tech_ttfb_ms"`
	ContactEmailsCount int    `json:"contacts_emails_count"`
	ContactPhonesCount int    `json:"contacts_phones_count"`
	FormsFound         int    `json:"forms_found"`
}

// Report is the finished audit of one domain at one point in time.
// Reports are never mutated; later audits of the same domain supersede
// earlier ones without replacing them.
type Report struct {
	ID         string    `json:"id"`
	Domain     string    `json:"domain"`
	ScrapedAt  time.Time `json:"scraped_at"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`

	SEO      *SEOStats        `json:"seo,omitempty"`
	Tech     *TechStats       `json:"tech,omitempty"`
	Security *SecurityHeaders `json:"security,omitempty"`
	Site     SiteSummary      `json:"site"`

	// Pages is a bounded sample of per-page records.
	Pages []PageRecord `json:"pages"`

	// SeedMarkdown is a markdown rendering of the seed page's main content.
	SeedMarkdown string `json:"seed_markdown,omitempty"`

	Summary ReportSummary `json:"summary"`
}

// Domain is the registry entry tracking audit history for one hostname.
type Domain struct {
	Name           string    `json:"domain"`
	FirstScrapedAt time.Time `json:"first_scraped_at"`
	LastScrapedAt  time.Time `json:"last_scraped_at"`
	TotalReports   int       `json:"total_reports"`
	Status         string    `json:"status"` // active, archived, error
}

// LoadedPage is the PageLoader output for one URL: rendered DOM, the
// network requests observed during the load, and timing milestones.
type LoadedPage struct {
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	HTML       string            `json:"html"`
	Headers    map[string]string `json:"headers,omitempty"`
	Requests   []NetworkRequest  `json:"requests,omitempty"`
	Timing     PageTiming        `json:"timing"`
}

// NewReport creates an empty report shell for a domain.
func NewReport(domain string) *Report {
	return &Report{
		ID:        uuid.New().String(),
		Domain:    domain,
		ScrapedAt: time.Now(),
	}
}
