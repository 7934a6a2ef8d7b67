package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/models"
)

// Known third-party form vendors, matched against form actions and script
// sources.
var formVendors = []struct {
	token  string
	vendor string
}{
	{"hubspot", "hubspot"},
	{"hsforms", "hubspot"},
	{"typeform", "typeform"},
	{"mailchimp", "mailchimp"},
	{"list-manage.com", "mailchimp"},
	{"marketo", "marketo"},
	{"jotform", "jotform"},
	{"formspree", "formspree"},
	{"docs.google.com/forms", "google-forms"},
	{"calendly", "calendly"},
}

var (
	captchaRe  = regexp.MustCompile(`(?i)recaptcha|hcaptcha|captcha|turnstile`)
	ctaClassRe = regexp.MustCompile(`(?i)\b(btn|button|cta)\b`)
)

const maxCTAsPerPage = 5

// extractForms walks the page's forms collecting method, action, inputs,
// button text, CAPTCHA presence, and vendor match.
func extractForms(doc *goquery.Document, pageURL string) []models.FormInfo {
	var forms []models.FormInfo
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		action, _ := f.Attr("action")
		method, _ := f.Attr("method")
		method = strings.ToLower(strings.TrimSpace(method))
		if method == "" {
			method = "get"
		}

		info := models.FormInfo{
			PageURL: pageURL,
			Method:  method,
			Action:  strings.TrimSpace(action),
		}

		f.Find("input, textarea, select").Each(func(_ int, in *goquery.Selection) {
			inputType, _ := in.Attr("type")
			if inputType == "" {
				inputType = goquery.NodeName(in)
			}
			inputType = strings.ToLower(inputType)
			if inputType == "hidden" || inputType == "submit" {
				return
			}
			name, _ := in.Attr("name")
			_, required := in.Attr("required")
			info.Fields = append(info.Fields, models.FormField{
				Name:     name,
				Type:     inputType,
				Required: required,
			})
		})

		if btn := f.Find(`button, input[type="submit"]`).First(); btn.Length() > 0 {
			text := strings.TrimSpace(btn.Text())
			if text == "" {
				text, _ = btn.Attr("value")
			}
			info.ButtonText = strings.TrimSpace(text)
		}

		formHTML, _ := goquery.OuterHtml(f)
		info.HasCaptcha = captchaRe.MatchString(formHTML)
		info.Vendor = matchFormVendor(info.Action)

		forms = append(forms, info)
	})

	// Vendor scripts count as an embedded form even without a <form> tag.
	if vendor := matchVendorScript(doc); vendor != "" {
		found := false
		for i := range forms {
			if forms[i].Vendor == "" {
				forms[i].Vendor = vendor
			}
			if forms[i].Vendor == vendor {
				found = true
			}
		}
		if !found {
			forms = append(forms, models.FormInfo{
				PageURL: pageURL,
				Method:  "post",
				Vendor:  vendor,
			})
		}
	}

	return forms
}

func matchFormVendor(action string) string {
	action = strings.ToLower(action)
	if action == "" {
		return ""
	}
	for _, v := range formVendors {
		if strings.Contains(action, v.token) {
			return v.vendor
		}
	}
	return ""
}

func matchVendorScript(doc *goquery.Document) string {
	vendor := ""
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		src = strings.ToLower(src)
		for _, v := range formVendors {
			if strings.Contains(src, v.token) {
				vendor = v.vendor
				return false
			}
		}
		return true
	})
	return vendor
}

// extractCTAs collects prominent call-to-action links: anchors styled as
// buttons with non-empty text and a usable href. Bounded per page.
func extractCTAs(doc *goquery.Document, pageURL string) []models.CTA {
	var ctas []models.CTA
	seen := map[string]struct{}{}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		class, _ := a.Attr("class")
		if !ctaClassRe.MatchString(class) {
			return true
		}
		text := strings.Join(strings.Fields(a.Text()), " ")
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if text == "" || href == "" || strings.HasPrefix(href, "javascript:") {
			return true
		}
		key := text + "|" + href
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		ctas = append(ctas, models.CTA{Text: text, Href: href, PageURL: pageURL})
		return len(ctas) < maxCTAsPerPage
	})
	return ctas
}
