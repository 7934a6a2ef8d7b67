package extractor

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/models"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?\d{1,3}[\s.-]?)?(?:\(?\d{2,4}\)?[\s.-]?)?\d{3,5}[\s.-]?\d{3,5}`)

	// Image srcsets produce strings like logo@2x.png that match the email
	// pattern.
	emailAssetRe = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|webp|svg|css|js)$`)
	digitsRe     = regexp.MustCompile(`\d`)
)

// Hosts recognized as social platforms, mapped to the platform key used in
// the site summary.
var socialHosts = map[string]string{
	"facebook.com":     "facebook",
	"instagram.com":    "instagram",
	"x.com":            "x",
	"twitter.com":      "x",
	"linkedin.com":     "linkedin",
	"youtube.com":      "youtube",
	"tiktok.com":       "tiktok",
	"wa.me":            "whatsapp",
	"api.whatsapp.com": "whatsapp",
}

// extractEmails finds email addresses in visible text and mailto: links,
// lowercased and deduplicated in first-occurrence order.
func extractEmails(text string, doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var emails []string
	add := func(e string) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || emailAssetRe.MatchString(e) {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		emails = append(emails, e)
	}

	for _, m := range emailRe.FindAllString(text, -1) {
		add(m)
	}
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		if emailRe.MatchString(addr) {
			add(addr)
		}
	})
	return emails
}

// NormalizePhone reduces a raw phone match to canonical digit form: a
// leading + is kept, everything else non-digit is stripped. Matches with
// fewer than 7 or more than 15 digits are rejected as noise.
func NormalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	digits := len(digitsRe.FindAllString(normalized, -1))
	if digits < 7 || digits > 15 {
		return "", false
	}
	return normalized, true
}

// extractPhones finds phone numbers in visible text and tel: links,
// normalized to canonical digit form and deduplicated.
func extractPhones(text string, doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var phones []string
	add := func(raw string) {
		normalized, ok := NormalizePhone(raw)
		if !ok {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		phones = append(phones, normalized)
	}

	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		add(strings.TrimPrefix(href, "tel:"))
	})
	for _, m := range phoneRe.FindAllString(text, -1) {
		add(m)
	}
	return phones
}

// extractSocials maps social profile links found on the page to platform
// keys. URLs per platform are sorted for stable output.
func extractSocials(doc *goquery.Document) map[string][]string {
	found := map[string]map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Host == "" {
			return
		}
		host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
		for domain, key := range socialHosts {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				if found[key] == nil {
					found[key] = map[string]struct{}{}
				}
				found[key][href] = struct{}{}
			}
		}
	})

	if len(found) == 0 {
		return nil
	}
	socials := make(map[string][]string, len(found))
	for key, urls := range found {
		list := make([]string, 0, len(urls))
		for u := range urls {
			list = append(list, u)
		}
		sort.Strings(list)
		socials[key] = list
	}
	return socials
}

// extractWhatsApp collects wa.me / api.whatsapp.com links.
func extractWhatsApp(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "wa.me") && !strings.Contains(href, "api.whatsapp.com") {
			return
		}
		if _, ok := seen[href]; ok {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// jsonldPerson mirrors the schema.org Person fields this system uses.
type jsonldPerson struct {
	Type      string          `json:"@type"`
	Name      string          `json:"name"`
	JobTitle  string          `json:"jobTitle"`
	Email     string          `json:"email"`
	Telephone string          `json:"telephone"`
	SameAs    json.RawMessage `json:"sameAs"`
	Graph     []jsonldPerson  `json:"@graph"`
}

// extractTeamContacts finds named people. Structured data (JSON-LD Person)
// is trusted everywhere; the card-layout heuristic only runs on team and
// about pages where that layout is expected.
func extractTeamContacts(doc *goquery.Document, pageType models.PageType) []models.TeamContact {
	var contacts []models.TeamContact

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		contacts = append(contacts, parseJSONLDPersons(s.Text())...)
	})

	if pageType == models.PageTypeTeam || pageType == models.PageTypeAbout {
		contacts = append(contacts, extractTeamCards(doc)...)
	}

	return dedupeTeamContacts(contacts)
}

func parseJSONLDPersons(raw string) []models.TeamContact {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var nodes []jsonldPerson
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
			return nil
		}
	} else {
		var node jsonldPerson
		if err := json.Unmarshal([]byte(raw), &node); err != nil {
			return nil
		}
		nodes = []jsonldPerson{node}
	}

	var contacts []models.TeamContact
	for _, node := range nodes {
		if len(node.Graph) > 0 {
			for _, inner := range node.Graph {
				if c, ok := personToContact(inner); ok {
					contacts = append(contacts, c)
				}
			}
		}
		if c, ok := personToContact(node); ok {
			contacts = append(contacts, c)
		}
	}
	return contacts
}

func personToContact(p jsonldPerson) (models.TeamContact, bool) {
	if !strings.EqualFold(p.Type, "Person") || strings.TrimSpace(p.Name) == "" {
		return models.TeamContact{}, false
	}

	contact := models.TeamContact{
		Name:     strings.TrimSpace(p.Name),
		JobTitle: strings.TrimSpace(p.JobTitle),
		Email:    strings.ToLower(strings.TrimSpace(strings.TrimPrefix(p.Email, "mailto:"))),
		Source:   models.ContactSourceStructured,
	}
	if normalized, ok := NormalizePhone(p.Telephone); ok {
		contact.Phone = normalized
	}

	// sameAs may be a string or an array of strings
	if len(p.SameAs) > 0 {
		var many []string
		if err := json.Unmarshal(p.SameAs, &many); err == nil {
			contact.SocialProfiles = many
		} else {
			var one string
			if err := json.Unmarshal(p.SameAs, &one); err == nil && one != "" {
				contact.SocialProfiles = []string{one}
			}
		}
	}
	return contact, true
}

var (
	teamCardClassRe = regexp.MustCompile(`(?i)\b(team-?member|member|staff|person|profile)\b`)
	jobTitleClassRe = regexp.MustCompile(`(?i)\b(title|role|position|job)\b`)
)

// extractTeamCards applies the team-page card heuristic: a container whose
// class suggests a person card, holding a heading with a plausible name.
func extractTeamCards(doc *goquery.Document) []models.TeamContact {
	var contacts []models.TeamContact
	doc.Find("div, li, article").Each(func(_ int, card *goquery.Selection) {
		class, _ := card.Attr("class")
		if !teamCardClassRe.MatchString(class) {
			return
		}
		// Skip containers that themselves hold cards.
		if card.Find("div, li, article").FilterFunction(func(_ int, inner *goquery.Selection) bool {
			c, _ := inner.Attr("class")
			return teamCardClassRe.MatchString(c)
		}).Length() > 0 {
			return
		}

		name := strings.TrimSpace(card.Find("h2, h3, h4, strong").First().Text())
		if !plausiblePersonName(name) {
			return
		}

		contact := models.TeamContact{
			Name:   name,
			Source: models.ContactSourceHeuristic,
		}

		card.Find("p, span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			c, _ := s.Attr("class")
			if jobTitleClassRe.MatchString(c) {
				contact.JobTitle = strings.TrimSpace(s.Text())
				return false
			}
			return true
		})

		if href, ok := card.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			addr := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			contact.Email = strings.ToLower(strings.TrimSpace(addr))
		}
		if href, ok := card.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			if normalized, valid := NormalizePhone(strings.TrimPrefix(href, "tel:")); valid {
				contact.Phone = normalized
			}
		}
		card.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			u, err := url.Parse(href)
			if err != nil {
				return
			}
			host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
			if _, social := socialHosts[host]; social {
				contact.SocialProfiles = append(contact.SocialProfiles, href)
			}
		})

		contacts = append(contacts, contact)
	})
	return contacts
}

// plausiblePersonName requires 2-4 words, each starting uppercase, no
// digits. Filters section headings like "Our Team".
func plausiblePersonName(name string) bool {
	if name == "" || strings.ContainsAny(name, "0123456789") {
		return false
	}
	words := strings.Fields(name)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := rune(w[0])
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	lower := strings.ToLower(name)
	for _, generic := range []string{"our team", "the team", "meet the", "nuestro equipo"} {
		if strings.Contains(lower, generic) {
			return false
		}
	}
	return true
}

// dedupeTeamContacts deduplicates by normalized email when present, else
// by lowercased name. Structured entries win over heuristic ones.
func dedupeTeamContacts(contacts []models.TeamContact) []models.TeamContact {
	byKey := map[string]int{}
	var out []models.TeamContact
	for _, c := range contacts {
		key := c.Email
		if key == "" {
			key = strings.ToLower(c.Name)
		}
		if idx, ok := byKey[key]; ok {
			if out[idx].Source == models.ContactSourceHeuristic && c.Source == models.ContactSourceStructured {
				out[idx] = c
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, c)
	}
	return out
}
