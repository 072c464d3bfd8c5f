// Package report formats filter reports as plain text, JSON or Markdown.
package report
