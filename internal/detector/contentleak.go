package detector

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/nao1215/sitescan/internal/model"
)

// leakPattern is one kind of secret.
type leakPattern struct {
	name        string
	findingType string
	title       string
	severity    model.Severity
	pattern     *regexp.Regexp
	// redact turns the full match into evidence.
	redact func(match string) string
}

var (
	pemHeaderPattern = regexp.MustCompile(`-----BEGIN ((?:RSA |EC |DSA |OPENSSH |ENCRYPTED |PGP )?PRIVATE KEY(?: BLOCK)?)-----`)
	dbPasswordPart   = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

func prefixRedactor(keep int) func(string) string {
	return func(m string) string { return redact(m, keep) }
}

// assignmentRedactor keeps the key name of "key = value" and redacts the value.
func assignmentRedactor(m string) string {
	i := strings.IndexAny(m, "=:")
	if i < 0 {
		return redact(m, 4)
	}
	name := strings.Trim(m[:i], ` "'`)
	value := strings.Trim(strings.TrimSpace(m[i+1:]), `"'`)
	return name + "=" + redact(value, 4)
}

func defaultLeakPatterns() []leakPattern {
	return []leakPattern{
		{
			name:        "pem_private_key",
			findingType: "private_key",
			title:       "Private key in response",
			severity:    model.SeverityCritical,
			pattern:     pemHeaderPattern,
			redact: func(m string) string {
				return m + " " + redactedMarker
			},
		},
		{
			name:        "putty_private_key",
			findingType: "private_key",
			title:       "PuTTY private key in response",
			severity:    model.SeverityCritical,
			pattern:     regexp.MustCompile(`PuTTY-User-Key-File-\d+: \S+`),
			redact: func(m string) string {
				return m + " " + redactedMarker
			},
		},
		{
			name:        "aws_access_key",
			findingType: "cloud_credential",
			title:       "AWS access key ID in response",
			severity:    model.SeverityHigh,
			pattern:     regexp.MustCompile(`\b(?:AKIA|ASIA|ABIA|ACCA)[A-Z0-9]{16}\b`),
			redact:      prefixRedactor(8),
		},
		{
			name:        "aws_secret_key",
			findingType: "cloud_credential",
			title:       "AWS secret access key in response",
			severity:    model.SeverityCritical,
			pattern:     regexp.MustCompile(`(?i)aws_?secret_?(?:access_?)?key["']?\s*[:=]\s*["']?[A-Za-z0-9/+=]{40}`),
			redact:      assignmentRedactor,
		},
		{
			name:        "google_api_key",
			findingType: "api_token",
			title:       "Google API key in response",
			severity:    model.SeverityHigh,
			pattern:     regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`),
			redact:      prefixRedactor(8),
		},
		{
			name:        "github_token",
			findingType: "api_token",
			title:       "GitHub token in response",
			severity:    model.SeverityHigh,
			pattern:     regexp.MustCompile(`\b(?:gh[pousr]_[A-Za-z0-9]{36,255}|github_pat_[A-Za-z0-9_]{22,255})\b`),
			redact:      prefixRedactor(8),
		},
		{
			name:        "gitlab_token",
			findingType: "api_token",
			title:       "GitLab token in response",
			severity:    model.SeverityHigh,
			pattern:     regexp.MustCompile(`\bglpat-[A-Za-z0-9_\-]{20,}\b`),
			redact:      prefixRedactor(8),
		},
		{
			name:        "slack_token",
			findingType: "api_token",
			title:       "Slack token in response",
			severity:    model.SeverityHigh,
			pattern:     regexp.MustCompile(`\bxox[abposr]-[0-9A-Za-z\-]{10,}\b`),
			redact:      prefixRedactor(8),
		},
		{
			name:        "stripe_key",
			findingType: "api_token",
			title:       "Stripe secret key in response",
			severity:    model.SeverityCritical,
			pattern:     regexp.MustCompile(`\b(?:sk|rk)_live_[0-9A-Za-z]{24,}\b`),
			redact:      prefixRedactor(8),
		},
		{
			name:        "jwt",
			findingType: "api_token",
			title:       "JSON Web Token in response",
			severity:    model.SeverityMedium,
			pattern:     regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{10,}\.eyJ[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}`),
			redact:      prefixRedactor(10),
		},
		{
			name:        "generic_api_key",
			findingType: "api_token",
			title:       "API key assignment in response",
			severity:    model.SeverityMedium,
			pattern:     regexp.MustCompile(`(?i)\b(?:api[_\-]?key|apikey|secret[_\-]?key|client[_\-]?secret|access[_\-]?token)["']?\s*[:=]\s*["'][A-Za-z0-9_\-]{20,}["']`),
			redact:      assignmentRedactor,
		},
		{
			name:        "database_url",
			findingType: "database_url",
			title:       "Database connection string with credentials",
			severity:    model.SeverityCritical,
			pattern:     regexp.MustCompile(`\b(?:postgres(?:ql)?|mysql|mariadb|mongodb(?:\+srv)?|redis|rediss|amqp|mssql|sqlserver)://[^:/@\s"'<>]+:[^@\s"'<>]+@[^\s"'<>]+`),
			redact: func(m string) string {
				return snippet(dbPasswordPart.ReplaceAllString(m, "://$1:"+redactedMarker+"@"), 120)
			},
		},
	}
}

// ContentLeakDetector finds secrets in response bodies and headers:
// private keys, cloud credentials, API tokens and database connection
// strings. Evidence keeps a short prefix of the secret only.
type ContentLeakDetector struct {
	patterns []leakPattern
}

// NewContentLeakDetector creates a ContentLeakDetector.
func NewContentLeakDetector() *ContentLeakDetector {
	return &ContentLeakDetector{patterns: defaultLeakPatterns()}
}

// Name returns the detector name.
func (d *ContentLeakDetector) Name() string {
	return "content-leak"
}

// Category returns the detector category.
func (d *ContentLeakDetector) Category() string {
	return model.CategoryContentLeak
}

// Inspect scans the headers and, for textual responses, the body.
// Each pattern is reported at most once per response.
func (d *ContentLeakDetector) Inspect(ctx context.Context, result *model.FetchResult) ([]model.Finding, error) {
	sources := []string{headerText(result)}
	if result.IsText() || !binaryHead(result.Body) {
		sources = append(sources, result.Text())
	}

	findings := make([]model.Finding, 0)
	for _, p := range d.patterns {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		for _, src := range sources {
			match := p.pattern.FindString(src)
			if match == "" {
				continue
			}
			info := model.GetFindingInfo(p.findingType)
			f := model.NewFinding(p.findingType, model.CategoryContentLeak, result.FinalURL, p.title, info.Impact, p.redact(match))
			f.Severity = p.severity
			findings = append(findings, f)
			break
		}
	}
	return findings, nil
}

// headerText renders the response headers one per line in a stable order.
// Set-Cookie is left out: session tokens are expected there.
func headerText(result *model.FetchResult) string {
	names := make([]string, 0, len(result.Header))
	for name := range result.Header {
		if http.CanonicalHeaderKey(name) == "Set-Cookie" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		for _, v := range result.Header[name] {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// binaryHead reports whether the start of body contains a NUL byte.
func binaryHead(body []byte) bool {
	return len(body) == 0 || bytes.IndexByte(body[:min(len(body), 512)], 0) >= 0
}

var _ Detector = (*ContentLeakDetector)(nil)
