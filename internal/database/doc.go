// Package database provides SQLite-based storage for sitescan's crawl history.
//
// The CrawlDB stores:
//   - The latest fetch of every URL crawled for a target
//   - Per-target scan reports, so that runs can be compared over time
//
// SQLite (via modernc.org/sqlite) keeps the history in a single file and
// needs no cgo. WAL mode lets the compare command read while a scan writes.
package database
