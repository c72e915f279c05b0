package crawler

import (
	"net/http"
	"slices"
	"testing"

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/model"
)

func htmlResult(finalURL, contentType, body string) *model.FetchResult {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return &model.FetchResult{
		URL:        finalURL,
		FinalURL:   finalURL,
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       []byte(body),
	}
}

func TestExtractHTML(t *testing.T) {
	t.Parallel()

	body := `<html><head><link rel="stylesheet" href="/style.css"></head><body>
<a href="relative">relative</a>
<a href="/absolute#frag">absolute</a>
<a href="https://example.test/full">full</a>
<a href="https://other.test/">other host</a>
<a href="mailto:someone@example.test">mail</a>
<a href="javascript:void(0)">js</a>
<a href="#top">anchor</a>
<a>no href</a>
<area href="/map">
<iframe src="/frame"></iframe>
<form action="/login" method="post"></form>
<img src="/logo.png">
</body></html>`

	x := NewExtractor(testScope("example.test"), false)
	got := slices.Collect(x.Extract(htmlResult("https://example.test/dir/page", "text/html; charset=utf-8", body)))
	want := []string{
		"https://example.test/dir/relative",
		"https://example.test/absolute",
		"https://example.test/full",
		"https://example.test/map",
		"https://example.test/frame",
		"https://example.test/login",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Extract() = %v\nwant %v", got, want)
	}
}

func TestExtractAssets(t *testing.T) {
	t.Parallel()

	body := `<html><head><link href="/style.css"><script src="/app.js"></script></head>
<body><img src="/logo.png"><a href="/next">next</a></body></html>`

	x := NewExtractor(testScope("example.test"), true)
	got := slices.Collect(x.Extract(htmlResult("https://example.test/", "text/html", body)))
	want := []string{
		"https://example.test/style.css",
		"https://example.test/app.js",
		"https://example.test/logo.png",
		"https://example.test/next",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Extract() = %v\nwant %v", got, want)
	}
}

func TestExtractBaseHref(t *testing.T) {
	t.Parallel()

	body := `<html><head><base href="https://example.test/docs/"></head>
<body><a href="intro">intro</a></body></html>`

	got := slices.Collect(NewExtractor(testScope("example.test"), false).
		Extract(htmlResult("https://example.test/", "text/html", body)))
	if !slices.Equal(got, []string{"https://example.test/docs/intro"}) {
		t.Errorf("Extract() = %v", got)
	}
}

func TestExtractScope(t *testing.T) {
	t.Parallel()

	scope := NewScope(config.Target{
		AllowedHosts:   []string{"example.test"},
		PathPrefixes:   []string{"/"},
		IgnorePatterns: []string{"/logout"},
	})
	body := `<a href="/logout">out</a><a href="/account">account</a>`
	got := slices.Collect(NewExtractor(scope, false).Extract(htmlResult("https://example.test/", "text/html", body)))
	if !slices.Equal(got, []string{"https://example.test/account"}) {
		t.Errorf("Extract() = %v", got)
	}
}

func TestExtractPlainText(t *testing.T) {
	t.Parallel()

	body := "See https://example.test/docs and /files/a.txt.\nMirror: https://other.test/x\n"
	got := slices.Collect(NewExtractor(testScope("example.test"), false).
		Extract(htmlResult("https://example.test/readme.txt", "text/plain", body)))
	want := []string{"https://example.test/docs", "https://example.test/files/a.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Extract() = %v\nwant %v", got, want)
	}
}

func TestExtractIsSinglePass(t *testing.T) {
	t.Parallel()

	seq := NewExtractor(testScope("example.test"), false).
		Extract(htmlResult("https://example.test/", "text/html", `<a href="/a">a</a><a href="/b">b</a>`))

	first := 0
	for range seq {
		first++
		break
	}
	second := 0
	for range seq {
		second++
	}
	if first != 1 || second != 0 {
		t.Errorf("first pass yielded %d, second %d; want 1 and 0", first, second)
	}
}

func TestExtractSkipsBinary(t *testing.T) {
	t.Parallel()

	got := slices.Collect(NewExtractor(testScope("example.test"), false).
		Extract(htmlResult("https://example.test/a.bin", "application/octet-stream", "https://example.test/x")))
	if len(got) != 0 {
		t.Errorf("Extract() = %v, want nothing", got)
	}
}
