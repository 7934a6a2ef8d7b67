package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/models"
)

// Keyword lists for page classification. URL path tokens are checked
// first, then heading text. Spanish variants are included because the
// path hints cover them.
var pageTypeKeywords = []struct {
	pageType models.PageType
	tokens   []string
}{
	{models.PageTypeContact, []string{"contact", "contacto", "contact-us", "contactenos"}},
	{models.PageTypeTeam, []string{"team", "equipo", "staff", "people", "our-team", "nuestro-equipo"}},
	{models.PageTypeAbout, []string{"about", "about-us", "nosotros", "quienes-somos", "empresa", "company"}},
	{models.PageTypePricing, []string{"pricing", "precios", "planes", "plans", "tarifas", "prices"}},
	{models.PageTypeLegal, []string{"privacy", "privacidad", "privacy-policy", "politica-de-privacidad", "terms", "terminos", "cookies", "aviso-legal", "legal"}},
	{models.PageTypeBlog, []string{"blog", "news", "noticias", "articles", "articulos"}},
}

// ClassifyURL decides a page type from the URL path alone. The first
// keyword group that matches a path segment wins; the order above is the
// precedence order, so classification is deterministic.
func ClassifyURL(pageURL, baseURL string) models.PageType {
	u, err := url.Parse(pageURL)
	if err != nil {
		return models.PageTypeOther
	}
	path := strings.Trim(strings.ToLower(u.Path), "/")
	if path == "" {
		return models.PageTypeHome
	}

	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for _, group := range pageTypeKeywords {
		for _, segment := range segments {
			for _, token := range group.tokens {
				if segment == token {
					return group.pageType
				}
			}
		}
	}
	return models.PageTypeOther
}

// ClassifyPage classifies from the URL path, falling back to heading text
// when the path is uninformative.
func ClassifyPage(pageURL, baseURL string, doc *goquery.Document) models.PageType {
	if pt := ClassifyURL(pageURL, baseURL); pt != models.PageTypeOther {
		return pt
	}

	headings := strings.ToLower(doc.Find("h1, h2").Text())
	if headings == "" {
		return models.PageTypeOther
	}
	for _, group := range pageTypeKeywords {
		for _, token := range group.tokens {
			if strings.Contains(headings, strings.ReplaceAll(token, "-", " ")) {
				return group.pageType
			}
		}
	}
	return models.PageTypeOther
}

// ClassifyLink classifies a discovered link from its URL and anchor text,
// for frontier prioritization.
func ClassifyLink(href, anchorText, baseURL string) models.PageType {
	if pt := ClassifyURL(href, baseURL); pt != models.PageTypeOther {
		return pt
	}

	anchor := strings.ToLower(anchorText)
	if anchor == "" {
		return models.PageTypeOther
	}
	for _, group := range pageTypeKeywords {
		for _, token := range group.tokens {
			if strings.Contains(anchor, strings.ReplaceAll(token, "-", " ")) {
				return group.pageType
			}
		}
	}
	return models.PageTypeOther
}
