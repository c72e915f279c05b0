package detector

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/nao1215/sitescan/internal/model"
)

var (
	sessionCookiePattern = regexp.MustCompile(`(?i)sess|sid|auth|token|jwt|login|remember|csrf`)
	versionPattern       = regexp.MustCompile(`\d+\.\d+`)
)

// bannerHeaders are headers that commonly reveal server software.
var bannerHeaders = []string{
	"Server",
	"X-Powered-By",
	"X-AspNet-Version",
	"X-AspNetMvc-Version",
	"X-Generator",
}

// SecurityHeadersDetector checks response headers: HSTS on HTTPS, cookie
// attributes of session-like cookies and version banners.
type SecurityHeadersDetector struct{}

// NewSecurityHeadersDetector creates a SecurityHeadersDetector.
func NewSecurityHeadersDetector() *SecurityHeadersDetector {
	return &SecurityHeadersDetector{}
}

// Name returns the detector name.
func (d *SecurityHeadersDetector) Name() string {
	return "security-headers"
}

// Category returns the detector category.
func (d *SecurityHeadersDetector) Category() string {
	return model.CategoryTransport
}

// Inspect examines the headers of result.
func (d *SecurityHeadersDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	findings := make([]model.Finding, 0)
	origin := result.Origin()
	https := strings.HasPrefix(result.FinalURL, "https://")

	if https && result.IsHTML() && result.Header.Get("Strict-Transport-Security") == "" {
		findings = append(findings, d.finding("missing_hsts", model.CategoryTransport, origin,
			"Strict-Transport-Security header missing", "no Strict-Transport-Security header on "+origin))
	}

	resp := &http.Response{Header: result.Header}
	for _, c := range resp.Cookies() {
		if !sessionCookiePattern.MatchString(c.Name) {
			continue
		}
		missing := make([]string, 0, 2)
		if https && !c.Secure {
			missing = append(missing, "Secure")
		}
		if !c.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		if len(missing) == 0 {
			continue
		}
		findings = append(findings, d.finding("insecure_cookie", model.CategoryTransport, origin,
			"Session cookie without protective attributes",
			fmt.Sprintf("Set-Cookie %s missing %s", c.Name, strings.Join(missing, ", "))))
	}

	for _, name := range bannerHeaders {
		value := result.Header.Get(name)
		if value == "" || !versionPattern.MatchString(value) {
			continue
		}
		findings = append(findings, d.finding("version_banner", model.CategoryInformationDisclosure, origin,
			"Software version disclosed in "+name+" header", name+": "+snippet(value, 100)))
	}

	return findings, nil
}

func (d *SecurityHeadersDetector) finding(findingType, category, origin, title, evidence string) model.Finding {
	info := model.GetFindingInfo(findingType)
	return model.NewFinding(findingType, category, origin, title, info.Impact, evidence)
}

var _ Detector = (*SecurityHeadersDetector)(nil)
