// Package main provides the entry point for the sitescan CLI.
//
// sitescan crawls the websites listed in a configuration file and reports
// security exposures: leaked files and directories, secrets in page content,
// weak TLS and missing security headers.
//
// Usage:
//
//	sitescan init
//	sitescan scan .sitescan.yaml report.yaml
//	sitescan compare https://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
