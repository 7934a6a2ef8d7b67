package crawler

import (
	"sort"
	"strings"

	"github.com/ternarybob/prospect/internal/extractor"
	"github.com/ternarybob/prospect/internal/models"
)

// Site-level sample bounds.
const (
	maxDetailedForms = 25
	maxCTAHighlights = 15
	maxBusinessLines = 10
)

// aggregator folds per-page extracts into the site summary. Contact and
// social sets are deduplicated across pages; list outputs are sorted for
// stable reports.
type aggregator struct {
	emails   map[string]struct{}
	phones   map[string]struct{}
	whatsapp map[string]struct{}
	socials  map[string]map[string]struct{}

	// personal holds emails and phones bound to a named person, for
	// confidence bucketing.
	personal map[string]struct{}

	team    []models.TeamContact
	teamKey map[string]int

	legalPages  map[string]struct{}
	analytics   []string
	pixels      []string
	formVendors []string
	seenSignal  map[string]struct{}

	forms      []models.FormInfo
	formsFound int
	ctas       []models.CTA
	business   models.BusinessSignals
	wp         models.WPSignals
	wpSeen     bool
	wpPlugins  map[string]struct{}
}

func newAggregator() *aggregator {
	return &aggregator{
		emails:     map[string]struct{}{},
		phones:     map[string]struct{}{},
		whatsapp:   map[string]struct{}{},
		socials:    map[string]map[string]struct{}{},
		personal:   map[string]struct{}{},
		teamKey:    map[string]int{},
		legalPages: map[string]struct{}{},
		seenSignal: map[string]struct{}{},
		wpPlugins:  map[string]struct{}{},
	}
}

func (a *aggregator) merge(ex *extractor.PageExtract) {
	for _, e := range ex.Record.EmailsFound {
		a.emails[e] = struct{}{}
	}
	for _, p := range ex.Record.PhonesFound {
		a.phones[p] = struct{}{}
	}
	for _, w := range ex.WhatsApp {
		a.whatsapp[w] = struct{}{}
	}
	for platform, urls := range ex.Socials {
		if a.socials[platform] == nil {
			a.socials[platform] = map[string]struct{}{}
		}
		for _, u := range urls {
			a.socials[platform][u] = struct{}{}
		}
	}

	a.mergeTeam(ex.Record.TeamContacts)

	if ex.IsLegal {
		a.legalPages[ex.Record.URL] = struct{}{}
	}

	for _, name := range ex.Analytics {
		a.addSignal("analytics:"+name, func() { a.analytics = append(a.analytics, name) })
	}
	for _, name := range ex.Pixels {
		a.addSignal("pixel:"+name, func() { a.pixels = append(a.pixels, name) })
	}
	for _, name := range ex.FormVendors {
		a.addSignal("formvendor:"+name, func() { a.formVendors = append(a.formVendors, name) })
	}

	a.formsFound += len(ex.Forms)
	for _, f := range ex.Forms {
		if len(a.forms) < maxDetailedForms {
			a.forms = append(a.forms, f)
		}
	}
	for _, cta := range ex.CTAs {
		if len(a.ctas) < maxCTAHighlights {
			a.ctas = append(a.ctas, cta)
		}
	}

	a.mergeBusiness(ex.Business)
	a.mergeWP(ex.WP)
}

func (a *aggregator) addSignal(key string, add func()) {
	if _, dup := a.seenSignal[key]; dup {
		return
	}
	a.seenSignal[key] = struct{}{}
	add()
}

// mergeTeam deduplicates by normalized email-or-name across pages;
// structured entries replace heuristic duplicates. Emails and phones of
// named people feed the personal confidence bucket.
func (a *aggregator) mergeTeam(contacts []models.TeamContact) {
	for _, c := range contacts {
		if c.Email != "" {
			a.personal[c.Email] = struct{}{}
		}
		if c.Phone != "" {
			a.personal[c.Phone] = struct{}{}
		}

		key := c.Email
		if key == "" {
			key = strings.ToLower(c.Name)
		}
		if idx, dup := a.teamKey[key]; dup {
			if a.team[idx].Source == models.ContactSourceHeuristic && c.Source == models.ContactSourceStructured {
				a.team[idx] = c
			}
			continue
		}
		a.teamKey[key] = len(a.team)
		a.team = append(a.team, c)
	}
}

func (a *aggregator) mergeBusiness(b models.BusinessSignals) {
	appendBounded := func(dst *[]string, src []string) {
		for _, s := range src {
			if len(*dst) >= maxBusinessLines {
				return
			}
			*dst = append(*dst, s)
		}
	}
	appendBounded(&a.business.ValueProps, b.ValueProps)
	appendBounded(&a.business.Pricing, b.Pricing)
	appendBounded(&a.business.Services, b.Services)
	appendBounded(&a.business.Testimonials, b.Testimonials)
}

func (a *aggregator) mergeWP(wp models.WPSignals) {
	if wp.Theme == "" && !wp.RESTAPI && len(wp.Plugins) == 0 {
		return
	}
	a.wpSeen = true
	if a.wp.Theme == "" {
		a.wp.Theme = wp.Theme
	}
	a.wp.RESTAPI = a.wp.RESTAPI || wp.RESTAPI
	for _, p := range wp.Plugins {
		if _, dup := a.wpPlugins[p]; dup {
			continue
		}
		a.wpPlugins[p] = struct{}{}
		a.wp.Plugins = append(a.wp.Plugins, p)
	}
}

// summary finalizes the site-level view. Every email and phone lands in
// exactly one confidence bucket: personal when bound to a named person,
// generic otherwise.
func (a *aggregator) summary(pagesCrawled int) models.SiteSummary {
	emails := sortedKeys(a.emails)
	phones := sortedKeys(a.phones)

	var confidence models.ContactConfidence
	for _, e := range emails {
		if _, ok := a.personal[e]; ok {
			confidence.Personal = append(confidence.Personal, e)
		} else {
			confidence.Generic = append(confidence.Generic, e)
		}
	}
	for _, p := range phones {
		if _, ok := a.personal[p]; ok {
			confidence.Personal = append(confidence.Personal, p)
		} else {
			confidence.Generic = append(confidence.Generic, p)
		}
	}

	var socials map[string][]string
	if len(a.socials) > 0 {
		socials = make(map[string][]string, len(a.socials))
		for platform, urls := range a.socials {
			socials[platform] = sortedKeys(urls)
		}
	}

	site := models.SiteSummary{
		PagesCrawled: pagesCrawled,
		Contacts: models.Contacts{
			Emails:       emails,
			Phones:       phones,
			WhatsApp:     sortedKeys(a.whatsapp),
			TeamContacts: a.team,
			Confidence:   confidence,
		},
		Socials:       socials,
		FormsFound:    a.formsFound,
		FormsDetailed: a.forms,
		CTAHighlights: a.ctas,
		LegalPages:    sortedKeys(a.legalPages),
		Integrations: models.Integrations{
			Analytics: a.analytics,
			Pixels:    a.pixels,
			Forms:     a.formVendors,
		},
		Business: a.business,
	}
	if a.wpSeen {
		wp := a.wp
		site.WP = &wp
	}
	return site
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
