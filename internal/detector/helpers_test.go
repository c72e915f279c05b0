package detector

import (
	"net/http"

	"github.com/nao1215/sitescan/internal/model"
)

// newResult builds a successful fetch result for rawURL.
func newResult(rawURL string, status int, contentType, body string) *model.FetchResult {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	r := &model.FetchResult{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: status,
		Header:     h,
		Body:       []byte(body),
		Attempts:   1,
	}
	if status >= 400 {
		r.Err = &model.FetchError{Kind: model.FetchErrorHTTPStatus, Status: status, URL: rawURL}
	}
	return r
}

func findingTypes(findings []model.Finding) []string {
	types := make([]string, 0, len(findings))
	for _, f := range findings {
		types = append(types, f.Type)
	}
	return types
}
