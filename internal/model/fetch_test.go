package model

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

// TestFetchResultHash tests the Hash method.
func TestFetchResultHash(t *testing.T) {
	t.Parallel()

	t.Run("computes SHA256 hash of body", func(t *testing.T) {
		t.Parallel()

		result := &FetchResult{Body: []byte("Hello, World!")}

		// Expected SHA256 of "Hello, World!"
		expected := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
		if got := result.Hash(); got != expected {
			t.Errorf("got %q, expected %q", got, expected)
		}
	})

	t.Run("empty body produces empty hash", func(t *testing.T) {
		t.Parallel()

		result := &FetchResult{}
		if got := result.Hash(); got != "" {
			t.Errorf("expected empty hash, got %q", got)
		}
	})
}

// TestFetchResultContentType tests media type classification.
func TestFetchResultContentType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		contentType string
		body        string
		wantType    string
		wantHTML    bool
		wantText    bool
		wantImage   bool
	}{
		{"html with charset", "text/html; charset=utf-8", "<html>", "text/html", true, true, false},
		{"uppercase html", "TEXT/HTML", "<html>", "text/html", true, true, false},
		{"xhtml", "application/xhtml+xml", "<html>", "application/xhtml+xml", true, true, false},
		{"json", "application/json", "{}", "application/json", false, true, false},
		{"problem json", "application/problem+json", "{}", "application/problem+json", false, true, false},
		{"jpeg", "image/jpeg", "\xff\xd8\xff", "image/jpeg", false, false, true},
		{"missing header with text body", "", "ref: refs/heads/master", "", false, true, false},
		{"missing header with binary body", "", "\x00\x01\x02", "", false, false, false},
		{"octet stream", "application/octet-stream", "abc", "application/octet-stream", false, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			header := http.Header{}
			if tc.contentType != "" {
				header.Set("Content-Type", tc.contentType)
			}
			result := &FetchResult{Header: header, Body: []byte(tc.body)}

			if got := result.ContentType(); got != tc.wantType {
				t.Errorf("ContentType() = %q, want %q", got, tc.wantType)
			}
			if got := result.IsHTML(); got != tc.wantHTML {
				t.Errorf("IsHTML() = %v, want %v", got, tc.wantHTML)
			}
			if got := result.IsText(); got != tc.wantText {
				t.Errorf("IsText() = %v, want %v", got, tc.wantText)
			}
			if got := result.IsImage(); got != tc.wantImage {
				t.Errorf("IsImage() = %v, want %v", got, tc.wantImage)
			}
		})
	}
}

// TestFetchResultHeaderCaseInsensitive verifies header lookups ignore case.
func TestFetchResultHeaderCaseInsensitive(t *testing.T) {
	t.Parallel()

	header := http.Header{}
	header.Set("x-powered-by", "PHP/8.1.2")
	result := &FetchResult{Header: header}

	for _, name := range []string{"X-Powered-By", "x-powered-by", "X-POWERED-BY"} {
		if got := result.Header.Get(name); got != "PHP/8.1.2" {
			t.Errorf("Header.Get(%q) = %q", name, got)
		}
	}
}

// TestFetchResultText tests charset transcoding.
func TestFetchResultText(t *testing.T) {
	t.Parallel()

	t.Run("utf-8 body is returned unchanged", func(t *testing.T) {
		t.Parallel()

		header := http.Header{"Content-Type": {"text/html; charset=utf-8"}}
		result := &FetchResult{Header: header, Body: []byte("héllo")}
		if got := result.Text(); got != "héllo" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("latin-1 body is transcoded", func(t *testing.T) {
		t.Parallel()

		header := http.Header{"Content-Type": {"text/plain; charset=iso-8859-1"}}
		result := &FetchResult{Header: header, Body: []byte{'c', 'a', 'f', 0xe9}}
		if got := result.Text(); got != "café" {
			t.Errorf("got %q, want %q", got, "café")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		if got := (&FetchResult{Header: http.Header{}}).Text(); got != "" {
			t.Errorf("got %q", got)
		}
	})
}

// TestFetchResultURLHelpers tests Path and Origin.
func TestFetchResultURLHelpers(t *testing.T) {
	t.Parallel()

	result := &FetchResult{FinalURL: "https://example.test:8443/a/b.html?x=1"}
	if got := result.Path(); got != "/a/b.html" {
		t.Errorf("Path() = %q", got)
	}
	if got := result.Origin(); got != "https://example.test:8443" {
		t.Errorf("Origin() = %q", got)
	}

	empty := &FetchResult{FinalURL: "https://example.test"}
	if got := empty.Path(); got != "/" {
		t.Errorf("Path() = %q, want /", got)
	}
}

// TestFetchError tests error formatting, unwrapping and transient classification.
func TestFetchError(t *testing.T) {
	t.Parallel()

	t.Run("http status message", func(t *testing.T) {
		t.Parallel()

		err := &FetchError{Kind: FetchErrorHTTPStatus, Status: 503, URL: "https://example.test/"}
		if !strings.Contains(err.Error(), "503") {
			t.Errorf("expected status in message, got %q", err.Error())
		}
	})

	t.Run("unwraps underlying error", func(t *testing.T) {
		t.Parallel()

		inner := errors.New("boom")
		var err error = &FetchError{Kind: FetchErrorOther, URL: "https://example.test/", Err: inner}
		if !errors.Is(err, inner) {
			t.Error("expected errors.Is to find the wrapped error")
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != FetchErrorOther {
			t.Error("expected errors.As to find *FetchError")
		}
	})

	t.Run("transient kinds", func(t *testing.T) {
		t.Parallel()

		transient := map[FetchErrorKind]bool{
			FetchErrorTimeout:           true,
			FetchErrorConnectionReset:   true,
			FetchErrorConnectionRefused: false,
			FetchErrorDNS:               false,
			FetchErrorTLS:               false,
			FetchErrorTooManyRedirects:  false,
			FetchErrorHTTPStatus:        false,
			FetchErrorOther:             false,
		}
		for kind, want := range transient {
			if got := kind.Transient(); got != want {
				t.Errorf("%s.Transient() = %v, want %v", kind, got, want)
			}
		}
	})
}
