// Package crawler walks the pages of one target and feeds them to the
// detector pipeline.
//
// # Components
//
//   - Frontier: deduplicated, breadth-first work queue with per-host ordering
//   - HostGate: minimum delay between two requests to the same host
//   - Scope: allowed hosts, path prefixes and ignore/follow patterns
//   - Extractor: lazy link extraction from HTML and plain text
//   - Robots: robots.txt cache, one fetch per host
//   - Scheduler: the worker pool tying everything together
//
// # Politeness
//
// The Frontier only hands out an entry when its host's gate is open, so a
// worker never sleeps on a busy host while another host has work. Retries
// and redirects wait on the same gate inside the fetcher.
//
// # Termination
//
// A crawl ends when the frontier is empty with nothing in flight, when the
// page or wall-clock budget is used up, or when the caller cancels. Entries
// already taken are finished in every case, so the summary is consistent.
//
// # Usage
//
//	s := crawler.NewScheduler(detector.NewPipeline(), aggregator)
//	summary, err := s.Run(ctx, target)
package crawler
