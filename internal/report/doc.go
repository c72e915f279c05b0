// Package report collects crawl results and writes them out.
//
// The Aggregator receives findings from every crawl worker, drops
// duplicates and assembles a model.Report once the targets are done.
// Writers render that report:
//   - YAMLWriter: the default, grouped by target
//   - JSONWriter: structured output for tool integration
//   - MarkdownWriter: tables and charts for sharing
//   - TextWriter: plain text for terminal display
//
// Decode reads YAML and JSON reports back, which the compare command and
// the history database rely on.
package report
