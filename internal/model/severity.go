package model

import (
	"fmt"
	"strings"
)

// Severity represents the risk level of a security finding.
//
// Severity is ordered, so findings can be sorted and filtered with plain
// integer comparisons. In reports it is serialized as lowercase text.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct security impact.
	// Examples: a security.txt file, a server banner without version.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues with limited impact.
	// Examples: missing HSTS, EXIF metadata in published images.
	SeverityLow

	// SeverityMedium indicates moderate issues that warrant attention.
	// Examples: directory listings, verbose stack traces, certificates about to expire.
	SeverityMedium

	// SeverityHigh indicates serious issues that expose sensitive data.
	// Examples: reachable .git directories, database dumps, admin consoles.
	SeverityHigh

	// SeverityCritical indicates issues that likely lead to compromise.
	// Examples: exposed private keys, cloud credentials, connection strings with passwords.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the severity as lowercase text ("high", "critical", ...).
// Both encoding/json and yaml.v3 honour this method.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityInfo || s > SeverityCritical {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeverity, int(s))
	}
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText decodes a severity written by MarshalText. Matching is case-insensitive.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a severity name into a Severity.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityInfo, fmt.Errorf("%w: %q", ErrUnknownSeverity, name)
	}
}

// FindingInfo contains metadata about a finding type: its default severity,
// an impact description and a remediation recommendation.
type FindingInfo struct {
	Severity       Severity
	Impact         string
	Recommendation string
}

// findingInfoMapping maps finding types to their metadata.
// Detectors take the severity from here so that risk levels are defined in one place.
var findingInfoMapping = map[string]FindingInfo{
	// CRITICAL
	"private_key": {
		Severity:       SeverityCritical,
		Impact:         "A private key is served to anyone who requests it, allowing impersonation or decryption.",
		Recommendation: "Remove the key from the web root, revoke it and issue a new one.",
	},
	"cloud_credential": {
		Severity:       SeverityCritical,
		Impact:         "Cloud provider credentials allow direct access to the account's resources.",
		Recommendation: "Revoke the credential immediately and audit the account for misuse.",
	},
	"database_url": {
		Severity:       SeverityCritical,
		Impact:         "A database connection string with credentials gives direct access to stored data.",
		Recommendation: "Rotate the database password and keep connection strings out of served content.",
	},
	"env_file": {
		Severity:       SeverityCritical,
		Impact:         "Environment files usually contain passwords, API keys and internal endpoints.",
		Recommendation: "Block access to dotfiles in the web server and rotate every secret in the file.",
	},
	"htpasswd_file": {
		Severity:       SeverityCritical,
		Impact:         "Password hashes can be cracked offline.",
		Recommendation: "Deny access to .htpasswd and change the affected passwords.",
	},
	"tls_revoked": {
		Severity:       SeverityCritical,
		Impact:         "The certificate has been revoked by its issuer but is still being served.",
		Recommendation: "Install a newly issued certificate.",
	},

	// HIGH
	"git_repository": {
		Severity:       SeverityHigh,
		Impact:         "An exposed .git directory lets anyone download the full source history, often including secrets.",
		Recommendation: "Remove the .git directory from the document root or deny access to it.",
	},
	"vcs_metadata": {
		Severity:       SeverityHigh,
		Impact:         "Version control metadata reveals source files and can allow repository reconstruction.",
		Recommendation: "Deploy build artifacts only and deny access to VCS directories.",
	},
	"backup_file": {
		Severity:       SeverityHigh,
		Impact:         "Backup and editor files often contain source code or configuration with secrets.",
		Recommendation: "Delete backup files from the web root and deny common backup extensions.",
	},
	"database_dump": {
		Severity:       SeverityHigh,
		Impact:         "A database dump exposes stored records, often including user data and password hashes.",
		Recommendation: "Remove the dump and review who may have downloaded it.",
	},
	"api_token": {
		Severity:       SeverityHigh,
		Impact:         "An API token grants access to a third-party service on behalf of the site owner.",
		Recommendation: "Revoke the token and load secrets from server-side configuration only.",
	},
	"admin_endpoint": {
		Severity:       SeverityHigh,
		Impact:         "An administrative or data endpoint is reachable without authentication.",
		Recommendation: "Restrict the endpoint to trusted networks or put it behind authentication.",
	},
	"tls_invalid": {
		Severity:       SeverityHigh,
		Impact:         "Clients cannot verify the server identity, enabling man-in-the-middle attacks.",
		Recommendation: "Serve a certificate from a trusted CA that matches the host name.",
	},
	"tls_expired": {
		Severity:       SeverityHigh,
		Impact:         "Browsers reject the certificate and users are trained to click through warnings.",
		Recommendation: "Renew the certificate and automate renewal.",
	},

	// MEDIUM
	"directory_listing": {
		Severity:       SeverityMedium,
		Impact:         "Directory listings reveal files that were never meant to be linked.",
		Recommendation: "Disable automatic directory indexes in the web server configuration.",
	},
	"ds_store_file": {
		Severity:       SeverityMedium,
		Impact:         "A .DS_Store file lists the names of files in its directory, including unlinked ones.",
		Recommendation: "Delete .DS_Store files before deploying and deny access to them.",
	},
	"stack_trace": {
		Severity:       SeverityMedium,
		Impact:         "Stack traces and debug pages reveal framework versions, file paths and internal logic.",
		Recommendation: "Disable debug mode in production and return generic error pages.",
	},
	"server_status": {
		Severity:       SeverityMedium,
		Impact:         "Status pages expose client addresses, requested URLs and server internals.",
		Recommendation: "Restrict status pages to localhost.",
	},
	"tls_weak_version": {
		Severity:       SeverityMedium,
		Impact:         "TLS versions below 1.2 have known weaknesses.",
		Recommendation: "Disable TLS 1.0 and 1.1 on the server.",
	},
	"tls_expiring": {
		Severity:       SeverityMedium,
		Impact:         "The certificate expires soon.",
		Recommendation: "Renew the certificate before it expires.",
	},
	"cross_site_redirect": {
		Severity:       SeverityMedium,
		Impact:         "An in-scope URL redirects to another site, which may be an open redirect or a stale link to a third party.",
		Recommendation: "Verify that the redirect target is intended and not controlled by request parameters.",
	},
	"insecure_cookie": {
		Severity:       SeverityMedium,
		Impact:         "Cookies without Secure or HttpOnly can be stolen over plain HTTP or by scripts.",
		Recommendation: "Set the Secure and HttpOnly attributes on session cookies.",
	},

	// LOW
	"missing_hsts": {
		Severity:       SeverityLow,
		Impact:         "Without HSTS, the first request can be downgraded to plain HTTP.",
		Recommendation: "Send Strict-Transport-Security with a long max-age.",
	},
	"version_banner": {
		Severity:       SeverityLow,
		Impact:         "Software versions in headers make it easy to match known vulnerabilities.",
		Recommendation: "Suppress version numbers in Server and X-Powered-By headers.",
	},
	"exif_metadata": {
		Severity:       SeverityLow,
		Impact:         "Image metadata may reveal locations, devices or author names.",
		Recommendation: "Strip EXIF metadata from images before publishing.",
	},
}

// GetSeverity returns the severity level for a finding type.
// Returns SeverityInfo if the finding type is not in the mapping.
func GetSeverity(findingType string) Severity {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info.Severity
	}
	return SeverityInfo
}

// GetFindingInfo returns the full finding information for a finding type.
// Returns a default FindingInfo with SeverityInfo if the type is not in the mapping.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{
		Severity:       SeverityInfo,
		Impact:         "Unknown finding type. Review manually.",
		Recommendation: "Investigate the finding and assess risk.",
	}
}
