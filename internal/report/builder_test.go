package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
)

func testBuilder(sampleLimit int) *Builder {
	cfg := common.NewDefaultConfig()
	if sampleLimit > 0 {
		cfg.Report.PageSampleLimit = sampleLimit
	}
	return NewBuilder(&cfg.Report, arbor.NewLogger())
}

func seedPage() *models.LoadedPage {
	return &models.LoadedPage{
		URL:        "http://example.com",
		StatusCode: 200,
		HTML:       "<html><body><h1>Welcome</h1><p>Plain text here.</p></body></html>",
	}
}

func TestBuildAssemblesReport(t *testing.T) {
	b := testBuilder(0)

	in := &BuildInput{
		Domain: "example.com",
		Seed:   seedPage(),
		SEO:    &models.SEOStats{Title: "Example", WordCount: 120, Links: models.LinkStats{Total: 7}, Images: models.ImageStats{Total: 3}},
		Tech:   &models.TechStats{RequestCount: 12, TotalBytes: 90000, Timing: models.PageTiming{TTFBMs: 80}},
		Site: models.SiteSummary{
			PagesCrawled: 4,
			Contacts:     models.Contacts{Emails: []string{"a@example.com"}, Phones: []string{"+15550100"}},
			FormsFound:   2,
		},
		Pages: []models.PageRecord{{URL: "http://example.com", Status: 200, PageType: models.PageTypeHome}},
	}

	rep, err := b.Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if rep.ID == "" || !rep.Success || rep.StatusCode != 200 {
		t.Errorf("report head = %+v", rep)
	}
	if !strings.Contains(rep.SeedMarkdown, "Welcome") {
		t.Errorf("seed markdown = %q", rep.SeedMarkdown)
	}

	s := rep.Summary
	if s.PagesCrawled != 4 || s.SEOTitle != "Example" || s.SEOWordCount != 120 ||
		s.SEOLinksTotal != 7 || s.SEOImagesTotal != 3 ||
		s.TechRequestsCount != 12 || s.TechTotalBytes != 90000 || s.TechTTFBMs != 80 ||
		s.ContactEmailsCount != 1 || s.ContactPhonesCount != 1 || s.FormsFound != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestBuildMissingSeedFails(t *testing.T) {
	b := testBuilder(0)
	_, err := b.Build(&BuildInput{Domain: "example.com"})
	if !errors.Is(err, models.ErrBuild) {
		t.Errorf("err = %v, want build error", err)
	}
}

func TestBuildEmptyCrawlIsValid(t *testing.T) {
	b := testBuilder(0)
	rep, err := b.Build(&BuildInput{
		Domain: "example.com",
		Seed:   seedPage(),
		Site:   models.SiteSummary{PagesCrawled: 0},
	})
	if err != nil {
		t.Fatalf("empty crawl should build: %v", err)
	}
	if !rep.Success || rep.Site.PagesCrawled != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestBuildBoundsPageSample(t *testing.T) {
	b := testBuilder(2)

	pages := []models.PageRecord{
		{URL: "http://example.com/1"},
		{URL: "http://example.com/2"},
		{URL: "http://example.com/3"},
	}
	rep, err := b.Build(&BuildInput{Domain: "example.com", Seed: seedPage(), Pages: pages})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Pages) != 2 {
		t.Errorf("page sample = %d, want 2", len(rep.Pages))
	}
	if rep.Pages[0].URL != "http://example.com/1" {
		t.Errorf("sample should keep leading records: %v", rep.Pages)
	}
}

func TestFailureReport(t *testing.T) {
	b := testBuilder(0)
	rep := b.FailureReport("dead.com", models.NewUnreachableError("http://dead.com", nil))
	if rep.Success || rep.Error == "" || rep.Domain != "dead.com" {
		t.Errorf("failure report = %+v", rep)
	}
}
