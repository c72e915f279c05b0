// Package model defines the core data structures shared by the sitescan packages.
//
// This package contains the following main types:
//   - FetchResult: one fetched resource, consumed by detectors and the link extractor
//   - FetchError: classified failure of a fetch
//   - Finding: a single reported security issue
//   - CrawlSummary: per-target crawl statistics
//   - Report: the serializable scan result
//
// Models live in their own package so that crawler, detector, report and
// database can all use them without import cycles. Report types carry both
// JSON and YAML tags and round-trip through either encoding.
package model
