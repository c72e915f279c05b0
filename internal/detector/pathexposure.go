package detector

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/nao1215/sitescan/internal/model"
)

// pathRule describes one sensitive file.
type pathRule struct {
	findingType string
	title       string

	// match decides from the URL path whether the rule applies.
	match func(p string) bool

	// validate rejects soft-404 pages and other lookalikes.
	validate func(body []byte) bool

	// preview allows the first line of the body in the evidence.
	preview bool

	// probes are requested actively on each probed host.
	probes []string
}

var (
	gitHeadPattern   = regexp.MustCompile(`^(?:ref: refs/|[0-9a-f]{40}\s*$)`)
	envLinePattern   = regexp.MustCompile(`(?m)^\s*(?:export\s+)?[A-Za-z_][A-Za-z0-9_]*\s*=`)
	htpasswdPattern  = regexp.MustCompile(`(?m)^[^:\s#]+:(?:\$apr1\$|\$2[aby]\$|\{SHA\}|\$[156]\$|[./0-9A-Za-z]{13}\s*$)`)
	sqlDumpPattern   = regexp.MustCompile(`(?i)(?:^|\n)\s*(?:CREATE TABLE|INSERT INTO|DROP TABLE|-- MySQL dump|-- PostgreSQL database dump|-- MariaDB dump)`)
	svnEntriesFormat = regexp.MustCompile(`^\d+\s*\n`)
)

func suffix(s string) func(string) bool {
	return func(p string) bool {
		return strings.HasSuffix(p, s)
	}
}

func baseIn(names ...string) func(string) bool {
	return func(p string) bool {
		base := path.Base(p)
		for _, n := range names {
			if base == n {
				return true
			}
		}
		return false
	}
}

func extIn(exts ...string) func(string) bool {
	return func(p string) bool {
		lower := strings.ToLower(p)
		for _, ext := range exts {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
		return false
	}
}

func notHTML(body []byte) bool {
	return len(bytes.TrimSpace(body)) > 0 && !looksLikeHTML(body)
}

func hasMagic(body []byte) bool {
	switch {
	case bytes.HasPrefix(body, []byte("PK\x03\x04")):
		return true
	case bytes.HasPrefix(body, []byte{0x1f, 0x8b}):
		return true
	case bytes.HasPrefix(body, []byte("7z\xbc\xaf\x27\x1c")):
		return true
	case bytes.HasPrefix(body, []byte("Rar!\x1a\x07")):
		return true
	case bytes.HasPrefix(body, []byte("BZh")):
		return true
	case len(body) > 262 && string(body[257:262]) == "ustar":
		return true
	}
	return false
}

func defaultPathRules() []pathRule {
	return []pathRule{
		{
			findingType: "git_repository",
			title:       "Git HEAD file exposed",
			match:       suffix("/.git/HEAD"),
			validate:    func(b []byte) bool { return gitHeadPattern.Match(bytes.TrimSpace(b)) },
			preview:     true,
			probes:      []string{"/.git/HEAD"},
		},
		{
			findingType: "git_repository",
			title:       "Git config file exposed",
			match:       suffix("/.git/config"),
			validate:    func(b []byte) bool { return bytes.Contains(b, []byte("[core]")) },
			preview:     true,
			probes:      []string{"/.git/config"},
		},
		{
			findingType: "vcs_metadata",
			title:       "Subversion metadata exposed",
			match: func(p string) bool {
				return strings.HasSuffix(p, "/.svn/entries") || strings.HasSuffix(p, "/.svn/wc.db")
			},
			validate: func(b []byte) bool {
				return bytes.HasPrefix(b, []byte("SQLite format 3\x00")) || svnEntriesFormat.Match(b)
			},
			probes: []string{"/.svn/entries", "/.svn/wc.db"},
		},
		{
			findingType: "vcs_metadata",
			title:       "Mercurial config exposed",
			match:       suffix("/.hg/hgrc"),
			validate: func(b []byte) bool {
				return notHTML(b) && (bytes.Contains(b, []byte("[paths]")) || bytes.Contains(b, []byte("[ui]")))
			},
			preview: true,
			probes:  []string{"/.hg/hgrc"},
		},
		{
			findingType: "env_file",
			title:       "Environment file exposed",
			match:       baseIn(".env", ".env.local", ".env.production", ".env.development", ".env.backup"),
			validate:    func(b []byte) bool { return notHTML(b) && envLinePattern.Match(b) },
			probes:      []string{"/.env"},
		},
		{
			findingType: "htpasswd_file",
			title:       "htpasswd file exposed",
			match:       baseIn(".htpasswd"),
			validate:    htpasswdPattern.Match,
			probes:      []string{"/.htpasswd"},
		},
		{
			findingType: "ds_store_file",
			title:       ".DS_Store file exposed",
			match:       baseIn(".DS_Store"),
			validate:    func(b []byte) bool { return bytes.HasPrefix(b, []byte("\x00\x00\x00\x01Bud1")) },
			probes:      []string{"/.DS_Store"},
		},
		{
			findingType: "private_key",
			title:       "Private key file exposed",
			match: func(p string) bool {
				return baseIn("id_rsa", "id_dsa", "id_ecdsa", "id_ed25519", "server.key", "private.key", "privkey.pem")(p) ||
					extIn(".pem", ".key", ".ppk")(p)
			},
			validate: func(b []byte) bool {
				return bytes.Contains(b, []byte("PRIVATE KEY-----")) || bytes.HasPrefix(b, []byte("PuTTY-User-Key-File-"))
			},
			probes: []string{"/id_rsa", "/server.key"},
		},
		{
			findingType: "database_dump",
			title:       "Database dump exposed",
			match:       extIn(".sql", ".sql.gz", ".dump"),
			validate: func(b []byte) bool {
				return bytes.HasPrefix(b, []byte{0x1f, 0x8b}) || (notHTML(b) && sqlDumpPattern.Match(b))
			},
			probes: []string{"/dump.sql", "/backup.sql", "/database.sql"},
		},
		{
			findingType: "backup_file",
			title:       "Backup archive exposed",
			match:       extIn(".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".7z", ".rar"),
			validate:    hasMagic,
			probes:      []string{"/backup.zip", "/backup.tar.gz", "/backup/{domain}.tar.gz"},
		},
		{
			findingType: "backup_file",
			title:       "Backup or editor file exposed",
			match: func(p string) bool {
				return extIn(".bak", ".old", ".orig", ".swp", ".save", ".backup", ".tmp")(p) || strings.HasSuffix(p, "~")
			},
			validate: notHTML,
			probes:   []string{"/wp-config.php.bak", "/config.php.bak", "/.index.php.swp"},
		},
		{
			findingType: "backup_file",
			title:       "Configuration file exposed",
			match:       baseIn("wp-config.php.txt", "config.php.txt", "web.config.txt", "settings.py.txt", "database.yml", "config.json.bak"),
			validate:    notHTML,
		},
	}
}

// PathExposureDetector reports well-known sensitive files that are served
// by the target, such as version control metadata, environment files, keys
// and backups.
//
// It is passive for every fetched URL and contributes probe paths for the
// crawler to request on each probed host. A matching path alone is not
// enough: the body must look like the real file, so soft-404 pages served
// with status 200 do not produce findings.
type PathExposureDetector struct {
	rules []pathRule
}

// NewPathExposureDetector creates a PathExposureDetector.
func NewPathExposureDetector() *PathExposureDetector {
	return &PathExposureDetector{rules: defaultPathRules()}
}

// Name returns the detector name.
func (d *PathExposureDetector) Name() string {
	return "path-exposure"
}

// Category returns the detector category.
func (d *PathExposureDetector) Category() string {
	return model.CategoryPathExposure
}

// ProbePaths returns the paths to request on each probed host.
// "{domain}" is replaced by the crawler.
func (d *PathExposureDetector) ProbePaths() []string {
	paths := make([]string, 0)
	for _, r := range d.rules {
		paths = append(paths, r.probes...)
	}
	return paths
}

// Inspect checks whether result is one of the known sensitive files.
func (d *PathExposureDetector) Inspect(_ context.Context, result *model.FetchResult) ([]model.Finding, error) {
	if result.StatusCode < 200 || result.StatusCode > 299 || len(result.Body) == 0 {
		return nil, nil
	}

	p := result.Path()
	for _, r := range d.rules {
		if !r.match(p) || !r.validate(result.Body) {
			continue
		}
		evidence := fmt.Sprintf("%s returned HTTP %d (%d bytes)", p, result.StatusCode, len(result.Body))
		if r.preview {
			if line := firstLine(string(result.Body)); line != "" {
				evidence = fmt.Sprintf("%s: %s", p, snippet(line, 80))
			}
		}
		info := model.GetFindingInfo(r.findingType)
		return []model.Finding{
			model.NewFinding(r.findingType, model.CategoryPathExposure, result.FinalURL, r.title, info.Impact, evidence),
		}, nil
	}
	return nil, nil
}

var (
	_ Detector = (*PathExposureDetector)(nil)
	_ Prober   = (*PathExposureDetector)(nil)
)
