package detector

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitescan/internal/model"
)

// adminRule recognizes one administrative or data endpoint.
type adminRule struct {
	label       string
	findingType string

	// match decides from the path whether the rule applies. Nil matches every path.
	match func(p string) bool

	// validate confirms the endpoint from the response.
	validate func(result *model.FetchResult, doc *goquery.Document) bool

	probes []string
}

var catIndicesPattern = regexp.MustCompile(`(?m)^(?:green|yellow|red)\s+(?:open|close)\s+\S+`)

func jsonHasKeys(body []byte, keys ...string) bool {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return false
	}
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

func titleContains(doc *goquery.Document, s string) bool {
	return doc != nil && strings.Contains(doc.Find("title").First().Text(), s)
}

func defaultAdminRules() []adminRule {
	return []adminRule{
		{
			label:       "phpMyAdmin login",
			findingType: "admin_endpoint",
			validate: func(_ *model.FetchResult, doc *goquery.Document) bool {
				return titleContains(doc, "phpMyAdmin") || (doc != nil && doc.Find(`input[name="pma_username"]`).Length() > 0)
			},
			probes: []string{"/phpmyadmin/"},
		},
		{
			label:       "Adminer database console",
			findingType: "admin_endpoint",
			validate: func(_ *model.FetchResult, doc *goquery.Document) bool {
				return doc != nil && (doc.Find(`input[name="auth[driver]"], select[name="auth[driver]"]`).Length() > 0 ||
					(titleContains(doc, "Adminer") && doc.Find("form").Length() > 0))
			},
			probes: []string{"/adminer.php"},
		},
		{
			label:       "Spring Boot actuator environment",
			findingType: "admin_endpoint",
			match:       func(p string) bool { return strings.HasSuffix(p, "/actuator/env") || strings.HasSuffix(p, "/env") },
			validate: func(r *model.FetchResult, _ *goquery.Document) bool {
				return jsonHasKeys(r.Body, "propertySources") || jsonHasKeys(r.Body, "activeProfiles")
			},
			probes: []string{"/actuator/env"},
		},
		{
			label:       "Go pprof profiling index",
			findingType: "admin_endpoint",
			match:       func(p string) bool { return strings.Contains(p, "/debug/pprof") },
			validate: func(r *model.FetchResult, _ *goquery.Document) bool {
				text := string(r.Body)
				return strings.Contains(text, "Types of profiles available") || strings.Contains(text, "/debug/pprof/goroutine")
			},
			probes: []string{"/debug/pprof/"},
		},
		{
			label:       "Apache server-status",
			findingType: "server_status",
			match:       func(p string) bool { return strings.HasSuffix(p, "/server-status") },
			validate: func(r *model.FetchResult, _ *goquery.Document) bool {
				return strings.Contains(string(r.Body), "Apache Server Status")
			},
			probes: []string{"/server-status"},
		},
		{
			label:       "Elasticsearch cluster health",
			findingType: "admin_endpoint",
			match:       func(p string) bool { return strings.HasSuffix(p, "/_cluster/health") },
			validate: func(r *model.FetchResult, _ *goquery.Document) bool {
				return jsonHasKeys(r.Body, "cluster_name", "status")
			},
			probes: []string{"/_cluster/health"},
		},
		{
			label:       "Elasticsearch index list",
			findingType: "admin_endpoint",
			match:       func(p string) bool { return strings.HasSuffix(p, "/_cat/indices") },
			validate: func(r *model.FetchResult, _ *goquery.Document) bool {
				return catIndicesPattern.Match(r.Body)
			},
			probes: []string{"/_cat/indices"},
		},
		{
			label:       "CouchDB database list",
			findingType: "admin_endpoint",
			match:       func(p string) bool { return strings.HasSuffix(p, "/_all_dbs") },
			validate: func(r *model.FetchResult, _ *goquery.Document) bool {
				var dbs []string
				return json.Unmarshal(r.Body, &dbs) == nil
			},
			probes: []string{"/_all_dbs"},
		},
	}
}

// AdminEndpointDetector finds administrative consoles and data endpoints
// that answer without authentication. Every match is confirmed from the
// response content.
type AdminEndpointDetector struct {
	rules []adminRule
}

// NewAdminEndpointDetector creates an AdminEndpointDetector.
func NewAdminEndpointDetector() *AdminEndpointDetector {
	return &AdminEndpointDetector{rules: defaultAdminRules()}
}

// Name returns the detector name.
func (d *AdminEndpointDetector) Name() string {
	return "admin-endpoint"
}

// Category returns the detector category.
func (d *AdminEndpointDetector) Category() string {
	return model.CategoryInformationDisclosure
}

// ProbePaths returns the endpoints to request on each probed host.
func (d *AdminEndpointDetector) ProbePaths() []string {
	paths := make([]string, 0, len(d.rules))
	for _, r := range d.rules {
		paths = append(paths, r.probes...)
	}
	return paths
}

// Inspect checks result against every rule whose path matches.
func (d *AdminEndpointDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	if result.StatusCode < 200 || result.StatusCode > 299 || len(result.Body) == 0 {
		return nil, nil
	}

	var doc *goquery.Document
	if result.IsHTML() {
		parsed, err := goquery.NewDocumentFromReader(strings.NewReader(result.Text()))
		if err == nil {
			doc = parsed
		}
	}

	p := result.Path()
	for _, r := range d.rules {
		if r.match != nil && !r.match(p) {
			continue
		}
		if !r.validate(result, doc) {
			continue
		}
		info := model.GetFindingInfo(r.findingType)
		return []model.Finding{
			model.NewFinding(r.findingType, model.CategoryInformationDisclosure, result.FinalURL,
				r.label+" exposed", info.Impact, p+": "+r.label),
		}, nil
	}
	return nil, nil
}

var (
	_ Detector = (*AdminEndpointDetector)(nil)
	_ Prober   = (*AdminEndpointDetector)(nil)
)
