// Package report renders crawl jobs for people and tools.
//
// Writers:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: the job as JSON, optionally wrapped with the tool version
//   - MarkdownWriter: tables, an outcome alert and a mermaid chart of pages
//     per depth
//
// All writers implement Writer and can be combined with MultiWriter.
package report
