package detector

import (
	"context"

	"github.com/nao1215/sitescan/internal/model"
)

// CrossSiteRedirectDetector reports redirects that lead to another site.
// The fetcher records such redirects instead of following them.
type CrossSiteRedirectDetector struct{}

// NewCrossSiteRedirectDetector creates a CrossSiteRedirectDetector.
func NewCrossSiteRedirectDetector() *CrossSiteRedirectDetector {
	return &CrossSiteRedirectDetector{}
}

// Name returns the detector name.
func (d *CrossSiteRedirectDetector) Name() string {
	return "cross-site-redirect"
}

// Category returns the detector category.
func (d *CrossSiteRedirectDetector) Category() string {
	return model.CategoryRedirect
}

// Inspect reports result.CrossSiteRedirect when it is set.
func (d *CrossSiteRedirectDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	if result.CrossSiteRedirect == "" {
		return nil, nil
	}
	info := model.GetFindingInfo("cross_site_redirect")
	return []model.Finding{
		model.NewFinding("cross_site_redirect", model.CategoryRedirect, result.FinalURL,
			"Redirect to another site", info.Impact, result.FinalURL+" -> "+result.CrossSiteRedirect),
	}, nil
}

var _ Detector = (*CrossSiteRedirectDetector)(nil)
