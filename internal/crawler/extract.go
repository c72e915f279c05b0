package crawler

import (
	"iter"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/nao1215/sitescan/internal/model"
)

// linkAttrs lists the attributes that hold followable links, per element.
var linkAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"frame":  "src",
	"iframe": "src",
	"form":   "action",
}

// assetAttrs lists asset references, followed only when the target asks for them.
var assetAttrs = map[string]string{
	"img":    "src",
	"script": "src",
	"link":   "href",
	"source": "src",
	"embed":  "src",
}

// textURLPattern finds absolute and root-relative URLs in plain text bodies.
var textURLPattern = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}]+|(?:^|[\s"'(])(/[A-Za-z0-9._~!$&*+,;=:@%/-]+)`)

// Extractor proposes the in-scope links of fetched pages.
type Extractor struct {
	scope  *Scope
	assets bool
}

// NewExtractor creates an extractor bound to scope. When assets is true,
// image, script and stylesheet URLs are proposed as well.
func NewExtractor(scope *Scope, assets bool) *Extractor {
	return &Extractor{scope: scope, assets: assets}
}

// Extract returns the candidate URLs of result, resolved against its final URL.
//
// The sequence is produced lazily by a single pass over the body and can be
// consumed once; ranging over it a second time yields nothing. Non-HTTP(S)
// and out-of-scope links are dropped silently.
func (x *Extractor) Extract(result *model.FetchResult) iter.Seq[string] {
	var used atomic.Bool
	return func(yield func(string) bool) {
		if used.Swap(true) || result == nil || len(result.Body) == 0 {
			return
		}
		base, err := url.Parse(result.FinalURL)
		if err != nil {
			return
		}
		switch {
		case result.IsHTML():
			x.extractHTML(result.Text(), base, yield)
		case result.ContentType() == "text/plain", result.ContentType() == "" && result.IsText():
			x.extractText(result.Text(), base, yield)
		}
	}
}

// extractHTML tokenizes body and yields link attributes as they are found.
// A <base href> changes the resolution base for everything after it.
func (x *Extractor) extractHTML(body string, base *url.URL, yield func(string) bool) {
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				continue
			}
			tag := string(name)
			want, isLink := linkAttrs[tag]
			if !isLink && x.assets {
				want, isLink = assetAttrs[tag]
			}
			if tag != "base" && !isLink {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				k := string(key)
				if tag == "base" && k == "href" {
					if u, ok := resolve(base, string(val)); ok {
						base = u
					}
				} else if k == want {
					if link, ok := x.accept(base, string(val)); ok {
						if !yield(link) {
							return
						}
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

// extractText scans a plain text body for URLs.
func (x *Extractor) extractText(body string, base *url.URL, yield func(string) bool) {
	rest := body
	for {
		loc := textURLPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			return
		}
		candidate := rest[loc[0]:loc[1]]
		if loc[2] >= 0 {
			candidate = rest[loc[2]:loc[3]]
		}
		rest = rest[loc[1]:]
		candidate = strings.TrimRight(candidate, ".,;:!")
		if link, ok := x.accept(base, candidate); ok {
			if !yield(link) {
				return
			}
		}
	}
}

// accept resolves raw against base and applies scheme and scope filters.
func (x *Extractor) accept(base *url.URL, raw string) (string, bool) {
	u, ok := resolve(base, raw)
	if !ok {
		return "", false
	}
	if !x.scope.InScope(u) {
		return "", false
	}
	return stripFragment(u), true
}

// resolve turns raw into an absolute http(s) URL relative to base.
func resolve(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	return u, true
}
