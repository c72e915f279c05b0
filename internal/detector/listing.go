package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitescan/internal/model"
)

// DirectoryListingDetector recognizes automatic directory index pages
// generated by Apache, nginx, IIS, lighttpd and Python's http.server.
type DirectoryListingDetector struct{}

// NewDirectoryListingDetector creates a DirectoryListingDetector.
func NewDirectoryListingDetector() *DirectoryListingDetector {
	return &DirectoryListingDetector{}
}

// Name returns the detector name.
func (d *DirectoryListingDetector) Name() string {
	return "directory-listing"
}

// Category returns the detector category.
func (d *DirectoryListingDetector) Category() string {
	return model.CategoryInformationDisclosure
}

// Inspect parses HTML responses and looks for index page markers.
func (d *DirectoryListingDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	if !result.IsHTML() || len(result.Body) == 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Text()))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	server, ok := listingServer(doc)
	if !ok {
		return nil, nil
	}

	entries := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "?") || href == "../" || href == "/" {
			return
		}
		if strings.Contains(strings.ToLower(s.Text()), "parent directory") {
			return
		}
		entries++
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	evidence := fmt.Sprintf("%s directory index %q with %d entries", server, title, entries)
	info := model.GetFindingInfo("directory_listing")
	return []model.Finding{
		model.NewFinding("directory_listing", model.CategoryInformationDisclosure, result.FinalURL,
			"Directory listing enabled", info.Impact, evidence),
	}, nil
}

// listingServer identifies which server generated an index page.
func listingServer(doc *goquery.Document) (string, bool) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	body := doc.Find("body").Text()

	switch {
	case strings.HasPrefix(title, "Directory listing for /"):
		return "Python http.server", true
	case strings.HasPrefix(title, "Index of /") && doc.Find(`a[href="?C=N;O=D"], a[href="?C=M;O=A"]`).Length() > 0:
		return "Apache", true
	case strings.HasPrefix(title, "Index of /") && strings.HasPrefix(h1, "Index of /"):
		if doc.Find("pre a").Length() > 0 {
			return "nginx", true
		}
		return "generic", true
	case strings.Contains(body, "[To Parent Directory]") && strings.Contains(title, " - /"):
		return "IIS", true
	case doc.Find("div.list table").Length() > 0 && strings.Contains(body, "lighttpd"):
		return "lighttpd", true
	}
	return "", false
}

var _ Detector = (*DirectoryListingDetector)(nil)
