// Package report renders crawl records and crawl summaries.
//
// JSONWriter writes one record or summary as JSON, optionally in the legacy
// record layout used by older analysis scripts. SimpleWriter renders plain
// text for the terminal and MarkdownWriter renders a summary as Markdown
// with a mermaid pie chart of visit statuses.
package report
