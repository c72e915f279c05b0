package detector

import (
	"context"
	"testing"

	"github.com/nao1215/sitescan/internal/model"
)

func TestCrossSiteRedirectDetector(t *testing.T) {
	t.Parallel()

	d := NewCrossSiteRedirectDetector()

	plain := newResult("https://example.test/go", 302, "", "")
	plain.Err = nil
	findings, err := d.Inspect(context.Background(), plain)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Fatalf("unexpected findings: %+v", findings)
	}

	redirected := newResult("https://example.test/go", 302, "", "")
	redirected.Err = nil
	redirected.CrossSiteRedirect = "https://evil.example.org/landing"
	findings, err = d.Inspect(context.Background(), redirected)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.Type != "cross_site_redirect" || f.Category != model.CategoryRedirect {
		t.Errorf("finding = %+v", f)
	}
	if f.Evidence != "https://example.test/go -> https://evil.example.org/landing" {
		t.Errorf("Evidence = %q", f.Evidence)
	}
}
