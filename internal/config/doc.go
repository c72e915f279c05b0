// Package config provides configuration structures and utilities for sitescan.
//
// Run-level options (report destination, parallelism, proxy, history database)
// live in Config. Crawl settings are read from a YAML file into File and then
// resolved into one immutable Target per site: defaults first, then the site
// entry, then command line overrides. All validation happens in File.Targets
// and Config.Validate so that configuration errors abort the run before any
// request is sent.
package config
