package extractor

import (
	"reflect"
	"testing"

	"github.com/ternarybob/prospect/internal/models"
)

const base = "http://example.com"

func loadedPage(url, html string) *models.LoadedPage {
	return &models.LoadedPage{URL: url, StatusCode: 200, HTML: html}
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		url  string
		want models.PageType
	}{
		{"http://example.com", models.PageTypeHome},
		{"http://example.com/", models.PageTypeHome},
		{"http://example.com/contact", models.PageTypeContact},
		{"http://example.com/contacto", models.PageTypeContact},
		{"http://example.com/about", models.PageTypeAbout},
		{"http://example.com/quienes-somos", models.PageTypeAbout},
		{"http://example.com/team", models.PageTypeTeam},
		{"http://example.com/equipo", models.PageTypeTeam},
		{"http://example.com/pricing", models.PageTypePricing},
		{"http://example.com/privacy-policy", models.PageTypeLegal},
		{"http://example.com/aviso-legal", models.PageTypeLegal},
		{"http://example.com/blog", models.PageTypeBlog},
		{"http://example.com/blog/post-1", models.PageTypeBlog},
		{"http://example.com/products/widget", models.PageTypeOther},
	}
	for _, tt := range tests {
		if got := ClassifyURL(tt.url, base); got != tt.want {
			t.Errorf("ClassifyURL(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestClassifyLinkByAnchorText(t *testing.T) {
	got := ClassifyLink("http://example.com/page-7", "Contact us today", base)
	if got != models.PageTypeContact {
		t.Errorf("anchor-text classification = %s, want contact", got)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"+1 (555) 010-4477", "+15550104477", true},
		{"555.010.4477", "5550104477", true},
		{"91 234 56 78", "912345678", true},
		{"12345", "", false},
		{"2024 2025 2026 2027", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractContactPage(t *testing.T) {
	html := `<html><body>
		<h1>Contact</h1>
		<p>Write to Info@Example.com or call +1 (555) 010-4477.</p>
		<a href="mailto:sales@example.com?subject=hi">Email sales</a>
		<a href="tel:+1-555-010-4477">Call us</a>
		<a href="https://wa.me/15550104477">WhatsApp</a>
		<a href="https://www.facebook.com/acme">Facebook</a>
		<a href="https://linkedin.com/company/acme">LinkedIn</a>
		<form action="/submit" method="POST">
			<input type="text" name="name" required>
			<input type="email" name="email">
			<input type="hidden" name="csrf">
			<div class="g-recaptcha"></div>
			<button type="submit">Send message</button>
		</form>
	</body></html>`

	e := New()
	got, err := e.Extract(loadedPage(base+"/contact", html), base, models.SeedTypeHint)
	if err != nil {
		t.Fatal(err)
	}

	if got.Record.PageType != models.PageTypeContact {
		t.Errorf("page_type = %s", got.Record.PageType)
	}
	wantEmails := []string{"info@example.com", "sales@example.com"}
	if !reflect.DeepEqual(got.Record.EmailsFound, wantEmails) {
		t.Errorf("emails = %v, want %v", got.Record.EmailsFound, wantEmails)
	}
	// tel: link and text mention normalize to the same number
	if len(got.Record.PhonesFound) != 1 || got.Record.PhonesFound[0] != "+15550104477" {
		t.Errorf("phones = %v", got.Record.PhonesFound)
	}
	if len(got.WhatsApp) != 1 {
		t.Errorf("whatsapp = %v", got.WhatsApp)
	}
	if len(got.Socials["facebook"]) != 1 || len(got.Socials["x"]) != 0 {
		t.Errorf("socials = %v", got.Socials)
	}
	if len(got.Socials["whatsapp"]) != 1 {
		t.Errorf("wa.me link should also count as whatsapp social: %v", got.Socials)
	}

	if got.Record.FormsCount != 1 || len(got.Forms) != 1 {
		t.Fatalf("forms = %v", got.Forms)
	}
	form := got.Forms[0]
	if form.Method != "post" || form.Action != "/submit" {
		t.Errorf("form meta = %+v", form)
	}
	// hidden input excluded
	if len(form.Fields) != 2 {
		t.Errorf("fields = %v", form.Fields)
	}
	if !form.Fields[0].Required || form.Fields[1].Required {
		t.Errorf("required flags = %v", form.Fields)
	}
	if !form.HasCaptcha {
		t.Error("captcha not detected")
	}
	if form.ButtonText != "Send message" {
		t.Errorf("button text = %q", form.ButtonText)
	}
}

func TestExtractFormVendor(t *testing.T) {
	html := `<html><body>
		<form action="https://api.hsforms.com/submissions/v3/integration/submit/123/abc" method="post">
			<input type="email" name="email">
		</form>
	</body></html>`

	got, err := New().Extract(loadedPage(base+"/contact", html), base, models.SeedTypeHint)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Forms) != 1 || got.Forms[0].Vendor != "hubspot" {
		t.Errorf("vendor = %v", got.Forms)
	}
	if !reflect.DeepEqual(got.FormVendors, []string{"hubspot"}) {
		t.Errorf("form vendors = %v", got.FormVendors)
	}
}

func TestExtractTeamContactsStructured(t *testing.T) {
	html := `<html><body>
		<script type="application/ld+json">
		{"@context":"https://schema.org","@type":"Person","name":"Jane Roe","jobTitle":"CEO","email":"jane@example.com","telephone":"+1 555 010 9999","sameAs":["https://linkedin.com/in/janeroe"]}
		</script>
	</body></html>`

	got, err := New().Extract(loadedPage(base+"/about", html), base, models.SeedTypeHint)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Record.TeamContacts) != 1 {
		t.Fatalf("team contacts = %v", got.Record.TeamContacts)
	}
	tc := got.Record.TeamContacts[0]
	if tc.Name != "Jane Roe" || tc.JobTitle != "CEO" || tc.Email != "jane@example.com" {
		t.Errorf("contact = %+v", tc)
	}
	if tc.Phone != "+15550109999" {
		t.Errorf("phone = %q", tc.Phone)
	}
	if tc.Source != models.ContactSourceStructured {
		t.Errorf("source = %q", tc.Source)
	}
	if len(tc.SocialProfiles) != 1 {
		t.Errorf("social profiles = %v", tc.SocialProfiles)
	}
}

func TestExtractTeamCardsHeuristic(t *testing.T) {
	html := `<html><body>
		<div class="team-member">
			<h3>John Smith</h3>
			<p class="job-title">Head of Sales</p>
			<a href="mailto:john@example.com">Email</a>
		</div>
		<div class="team-member">
			<h3>Our Team</h3>
		</div>
	</body></html>`

	got, err := New().Extract(loadedPage(base+"/team", html), base, models.SeedTypeHint)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Record.TeamContacts) != 1 {
		t.Fatalf("team contacts = %v", got.Record.TeamContacts)
	}
	tc := got.Record.TeamContacts[0]
	if tc.Name != "John Smith" || tc.Email != "john@example.com" {
		t.Errorf("contact = %+v", tc)
	}
	if tc.Source != models.ContactSourceHeuristic {
		t.Errorf("source = %q", tc.Source)
	}
}

func TestTeamCardsIgnoredOffTeamPages(t *testing.T) {
	html := `<html><body>
		<div class="team-member"><h3>John Smith</h3></div>
	</body></html>`

	got, err := New().Extract(loadedPage(base+"/blog/post", html), base, models.SeedTypeLink)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Record.TeamContacts) != 0 {
		t.Errorf("heuristic cards should only apply on team/about pages: %v", got.Record.TeamContacts)
	}
}

func TestStructuredWinsOverHeuristicDuplicate(t *testing.T) {
	html := `<html><body>
		<div class="team-member">
			<h3>Jane Roe</h3>
			<a href="mailto:jane@example.com">Email</a>
		</div>
		<script type="application/ld+json">
		{"@type":"Person","name":"Jane Roe","jobTitle":"CEO","email":"jane@example.com"}
		</script>
	</body></html>`

	got, err := New().Extract(loadedPage(base+"/team", html), base, models.SeedTypeHint)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Record.TeamContacts) != 1 {
		t.Fatalf("duplicate not merged: %v", got.Record.TeamContacts)
	}
	if got.Record.TeamContacts[0].Source != models.ContactSourceStructured {
		t.Errorf("structured entry should win: %+v", got.Record.TeamContacts[0])
	}
}

func TestExtractHomeSEOAndSignals(t *testing.T) {
	html := `<html><head>
		<title>Acme Widgets</title>
		<meta name="description" content="Widgets for everyone">
		<meta name="robots" content="index,follow">
		<link rel="canonical" href="http://example.com/">
		<script src="https://www.googletagmanager.com/gtag/js?id=G-1"></script>
		<script src="https://static.hotjar.com/c/hotjar-1.js"></script>
	</head><body>
		<h1>Widgets that work</h1>
		<h2>Trusted by thousands</h2>
		<a href="/about">About us</a>
		<a href="/pricing">Pricing</a>
		<a href="https://partner.com" rel="nofollow">Partner</a>
		<img src="/logo.png" alt="Acme">
		<img src="/hero.png">
		<a class="btn btn-primary" href="/signup">Start free trial</a>
		<link rel="stylesheet" href="/wp-content/themes/acme-theme/style.css">
		<script src="/wp-content/plugins/contact-form-7/form.js"></script>
		<script>fbq('init', '123');</script>
	</body></html>`

	got, err := New().Extract(loadedPage(base, html), base, models.SeedTypeSeed)
	if err != nil {
		t.Fatal(err)
	}

	if got.SEO == nil {
		t.Fatal("home page should carry SEO stats")
	}
	if got.SEO.Title != "Acme Widgets" || got.SEO.H1Count != 1 {
		t.Errorf("seo = %+v", got.SEO)
	}
	if got.SEO.Links.Total != 4 || got.SEO.Links.Internal != 3 || got.SEO.Links.External != 1 || got.SEO.Links.Nofollow != 1 {
		t.Errorf("links = %+v", got.SEO.Links)
	}
	if got.SEO.Images.Total != 2 || got.SEO.Images.WithoutAlt != 1 {
		t.Errorf("images = %+v", got.SEO.Images)
	}

	if !reflect.DeepEqual(got.Analytics, []string{"google", "hotjar"}) {
		t.Errorf("analytics = %v", got.Analytics)
	}
	if !reflect.DeepEqual(got.Pixels, []string{"meta"}) {
		t.Errorf("pixels = %v", got.Pixels)
	}

	if got.WP.Theme != "acme-theme" {
		t.Errorf("wp theme = %q", got.WP.Theme)
	}
	if !reflect.DeepEqual(got.WP.Plugins, []string{"contact-form-7"}) {
		t.Errorf("wp plugins = %v", got.WP.Plugins)
	}

	if len(got.CTAs) != 1 || got.CTAs[0].Text != "Start free trial" {
		t.Errorf("ctas = %v", got.CTAs)
	}

	if len(got.Business.ValueProps) != 2 {
		t.Errorf("value props = %v", got.Business.ValueProps)
	}

	// Internal links discovered for the frontier, assets excluded.
	if len(got.Links) != 3 {
		t.Errorf("links = %v", got.Links)
	}
}

func TestExtractDeterministic(t *testing.T) {
	html := `<html><body>
		<h1>Contact</h1>
		<p>info@example.com and +1 555 010 4477</p>
		<a href="https://instagram.com/acme">IG</a>
		<a href="/about">About</a>
		<form method="post"><input type="email" name="e"></form>
	</body></html>`
	page := loadedPage(base+"/contact", html)

	first, err := New().Extract(page, base, models.SeedTypeHint)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := New().Extract(page, base, models.SeedTypeHint)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("extraction not deterministic on run %d:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}
