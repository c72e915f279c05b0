// Package pipeline runs the targets of a scan.
//
// Each target passes through a Pipeline of steps: the crawl itself, the
// collection of its summary into the report aggregator and, when the history
// database is enabled, the persistence of its report section. Steps run in
// order and share a TargetRun.
//
// A BatchProcessor runs the pipelines of several targets concurrently with
// errgroup, bounded by the configured target parallelism. Findings and
// summaries reach the aggregator as each target finishes, so a scan that is
// interrupted still produces a report of everything that completed.
package pipeline
