// Package fetcher retrieves single URLs for the crawler.
//
// A Fetcher never returns a Go error: every call yields a *model.FetchResult
// whose Err field classifies the failure. Transient failures (timeouts and
// dropped connections) are retried with exponential backoff. Redirects are
// followed by hand so that each hop can be checked against the crawl scope
// and the per-host politeness delay; redirects to another site are recorded
// and not followed.
package fetcher
