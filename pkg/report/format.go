// Package report renders crawl events into the statification log and reads
// that log back into a report.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
)

// LogSource is the tag carried by every line of the crawl log
const LogSource = "statification"

// continuationIndent prefixes the second and later lines of a multi-line message
const continuationIndent = "    "

// Level names as they appear in the crawl log
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// HTTPErrorMessage is the message for a response outside the accepted status range
func HTTPErrorMessage(code int, url, referrer string) string {
	return fmt.Sprintf("HTTP error [%d] for %s from %s", code, url, referrer)
}

// ForbiddenMimeMessage is the message for a response whose type is not in the dispatch table
func ForbiddenMimeMessage(mime, url string) string {
	return fmt.Sprintf("Forbidden content [%s] detected in %s", mime, url)
}

// ExternalLinkMessage is the message for the first sighting of an external link
func ExternalLinkMessage(url, source string) string {
	return fmt.Sprintf("External link detected [%s] in %s", url, source)
}

// InternalErrorMessage is the message for a request that failed inside the crawler
func InternalErrorMessage(outcome models.CrawlOutcome) string {
	if outcome.Referrer == "" {
		return fmt.Sprintf("Error processing %s\n%s", outcome.URL, outcome.Message)
	}
	return fmt.Sprintf("Error processing %s (referer: %s)\n%s", outcome.URL, outcome.Referrer, outcome.Message)
}

// StatsMessage is the periodic crawl statistics message
func StatsMessage(s models.CrawlStats) string {
	return fmt.Sprintf("Crawl stats: response_received_count: %d, saved_count: %d, http_error_count: %d, "+
		"forbidden_mime_count: %d, internal_error_count: %d, external_link_count: %d, enqueued_count: %d",
		s.ResponsesReceived, s.Saved, s.HTTPErrors, s.ForbiddenMimes, s.InternalErrors, s.ExternalLinks, s.Enqueued)
}

// OutcomeLine returns the level and message logged for an outcome.
// Saved outcomes are only logged at debug level.
func OutcomeLine(outcome models.CrawlOutcome) (logrus.Level, string) {
	switch outcome.Kind {
	case models.OutcomeHTTPError:
		return logrus.WarnLevel, HTTPErrorMessage(outcome.StatusCode, outcome.URL, outcome.Referrer)
	case models.OutcomeForbiddenMime:
		return logrus.WarnLevel, ForbiddenMimeMessage(outcome.MIME, outcome.URL)
	case models.OutcomeInternalError:
		return logrus.ErrorLevel, InternalErrorMessage(outcome)
	default:
		return logrus.DebugLevel, fmt.Sprintf("Saved %s as %s", outcome.URL, outcome.Path)
	}
}

// LevelName maps a logrus level to its crawl log name
func LevelName(level logrus.Level) string {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return LevelError
	case logrus.WarnLevel:
		return LevelWarning
	case logrus.InfoLevel:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// FormatLine renders one crawl log record. Every line after the first is indented.
func FormatLine(ts time.Time, level string, message string) string {
	var b strings.Builder
	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	fmt.Fprintf(&b, "%s [%s] %s: %s\n", ts.Format(time.RFC3339), LogSource, level, lines[0])
	for _, l := range lines[1:] {
		b.WriteString(continuationIndent)
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// LineFormatter is a logrus.Formatter producing crawl log lines
type LineFormatter struct{}

// Format implements logrus.Formatter
func (LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf *bytes.Buffer
	if entry.Buffer != nil {
		buf = entry.Buffer
	} else {
		buf = &bytes.Buffer{}
	}
	buf.WriteString(FormatLine(entry.Time, LevelName(entry.Level), entry.Message))
	return buf.Bytes(), nil
}
