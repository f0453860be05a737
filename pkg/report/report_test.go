package report

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/statifier/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

var fixedTime = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		message string
		want    string
	}{
		{
			name:    "single line",
			level:   LevelInfo,
			message: "hello",
			want:    "2026-03-01T12:30:00Z [statification] INFO: hello\n",
		},
		{
			name:    "continuation lines are indented",
			level:   LevelError,
			message: "boom\ntrace 1\ntrace 2\n",
			want:    "2026-03-01T12:30:00Z [statification] ERROR: boom\n    trace 1\n    trace 2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLine(fixedTime, tt.level, tt.message))
		})
	}
}

func TestOutcomeLine_404(t *testing.T) {
	level, msg := OutcomeLine(models.CrawlOutcome{
		Kind:       models.OutcomeHTTPError,
		URL:        "http://example.com/missing",
		Referrer:   "http://example.com/",
		StatusCode: 404,
	})
	assert.Equal(t, logrus.WarnLevel, level)
	assert.Equal(t,
		"2026-03-01T12:30:00Z [statification] WARNING: HTTP error [404] for http://example.com/missing from http://example.com/\n",
		FormatLine(fixedTime, LevelName(level), msg))
}

func TestOutcomeLine_Kinds(t *testing.T) {
	tests := []struct {
		name      string
		outcome   models.CrawlOutcome
		wantLevel logrus.Level
		wantMsg   string
	}{
		{
			name:      "forbidden mime",
			outcome:   models.CrawlOutcome{Kind: models.OutcomeForbiddenMime, URL: "http://e.com/a.exe", MIME: "application/x-msdownload"},
			wantLevel: logrus.WarnLevel,
			wantMsg:   "Forbidden content [application/x-msdownload] detected in http://e.com/a.exe",
		},
		{
			name:      "internal error",
			outcome:   models.CrawlOutcome{Kind: models.OutcomeInternalError, URL: "http://e.com/feed", Message: "xml: unexpected EOF"},
			wantLevel: logrus.ErrorLevel,
			wantMsg:   "Error processing http://e.com/feed\nxml: unexpected EOF",
		},
		{
			name:      "saved",
			outcome:   models.CrawlOutcome{Kind: models.OutcomeSaved, URL: "http://e.com/", Path: "/index.html"},
			wantLevel: logrus.DebugLevel,
			wantMsg:   "Saved http://e.com/ as /index.html",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := OutcomeLine(tt.outcome)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestLineFormatter(t *testing.T) {
	var sb strings.Builder
	l := logrus.New()
	l.SetOutput(&sb)
	l.SetFormatter(LineFormatter{})

	l.Warn(ExternalLinkMessage("https://other.org/", "http://e.com/"))
	assert.Regexp(t, `^\S+ \[statification\] WARNING: External link detected \[https://other.org/\] in http://e.com/\n$`, sb.String())
}

func TestStatsMessage(t *testing.T) {
	msg := StatsMessage(models.CrawlStats{ResponsesReceived: 42, Saved: 40, HTTPErrors: 2})
	assert.True(t, strings.HasPrefix(msg, "Crawl stats: response_received_count: 42, saved_count: 40, http_error_count: 2,"))
}

const sampleLog = `2026-03-01T12:00:00Z [statification] INFO: Starting crawl of 1 seed(s)
2026-03-01T12:00:01Z [statification] WARNING: HTTP error [404] for http://e.com/missing from http://e.com/
2026-03-01T12:00:01Z [statification] WARNING: HTTP error [500] for http://e.com/ from 
2026-03-01T12:00:02Z [statification] WARNING: Forbidden content [application/x-msdownload] detected in http://e.com/setup.exe
2026-03-01T12:00:02Z [statification] INFO: External link detected [https://other.org/page] in http://e.com/about
2026-03-01T12:00:03Z [statification] ERROR: Error processing http://e.com/feed.xml
    XML syntax error on line 3
    unexpected EOF
2026-03-01T12:00:04Z [statification] INFO: Crawl stats: response_received_count: 7, saved_count: 3, http_error_count: 2
2026-03-01T12:00:05Z [statification] ERROR: finalize failed
this WARNING ends the error block
    not part of anything
2026-03-01T12:00:09Z [statification] INFO: Crawl stats: response_received_count: 12, saved_count: 8, http_error_count: 2
`

func TestParseLog(t *testing.T) {
	rep, err := ParseLog(strings.NewReader(sampleLog))
	require.NoError(t, err)

	assert.Equal(t, []models.HTMLError{
		{Code: 404, URL: "http://e.com/missing", Source: "http://e.com/"},
		{Code: 500, URL: "http://e.com/", Source: ""},
	}, rep.HTMLErrors)
	assert.Equal(t, []models.MimeError{{MIME: "application/x-msdownload", URL: "http://e.com/setup.exe"}}, rep.MimeErrors)
	assert.Equal(t, []models.ExternalLink{{URL: "https://other.org/page", Source: "http://e.com/about"}}, rep.ExternalLinks)
	require.Len(t, rep.CrawlErrors, 2)
	assert.Equal(t, "Error processing http://e.com/feed.xml\nXML syntax error on line 3\nunexpected EOF", rep.CrawlErrors[0].Message)
	assert.Equal(t, "finalize failed", rep.CrawlErrors[1].Message)
	assert.Equal(t, 12, rep.ItemCount)
}

func TestParseLog_ExternalLinkHosts(t *testing.T) {
	tests := []struct {
		name   string
		target string
		source string
	}{
		{"plain host", "https://other.org/page", "http://e.com/"},
		{"ipv6 target", "http://[::1]/x", "http://e.com/about"},
		{"ipv6 target with port", "http://[2001:db8::1]:8080/a]b", "http://e.com/"},
		{"ipv6 source", "https://other.org/", "http://[::1]:9000/page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := FormatLine(fixedTime, LevelInfo, ExternalLinkMessage(tt.target, tt.source))
			rep, err := ParseLog(strings.NewReader(line))
			require.NoError(t, err)
			assert.Equal(t, []models.ExternalLink{{URL: tt.target, Source: tt.source}}, rep.ExternalLinks)
		})
	}
}

func TestParseLogFile_Missing(t *testing.T) {
	rep, err := ParseLogFile(filepath.Join(t.TempDir(), "absent.log"))
	require.NoError(t, err)
	assert.Empty(t, rep.HTMLErrors)
	assert.Zero(t, rep.ItemCount)
}

func TestEmitter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "crawl.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0644))

	e, err := OpenEmitter(path, true, testLogger())
	require.NoError(t, err)

	e.EmitOutcome(models.CrawlOutcome{Kind: models.OutcomeHTTPError, URL: "http://e.com/x", Referrer: "http://e.com/", StatusCode: 404})
	e.EmitOutcome(models.CrawlOutcome{Kind: models.OutcomeSaved, URL: "http://e.com/", Path: "/index.html"})
	e.EmitOutcome(models.CrawlOutcome{Kind: models.OutcomeForbiddenMime, URL: "http://e.com/v", MIME: "video/x-flv"})
	e.EmitExternalLink(models.ExternalLinkEvent{Source: "http://e.com/", Target: "https://ext.net/"})
	e.EmitOutcome(models.CrawlOutcome{Kind: models.OutcomeInternalError, URL: "http://e.com/f", Message: "line one\nline two"})
	e.EmitStats(models.CrawlStats{ResponsesReceived: 5})
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	// Emits after close are dropped
	e.EmitStats(models.CrawlStats{ResponsesReceived: 99})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "stale line")
	assert.NotContains(t, string(raw), "Saved http://e.com/", "saved items are debug only")

	rep, err := ParseLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.HTMLError{{Code: 404, URL: "http://e.com/x", Source: "http://e.com/"}}, rep.HTMLErrors)
	assert.Equal(t, []models.MimeError{{MIME: "video/x-flv", URL: "http://e.com/v"}}, rep.MimeErrors)
	assert.Equal(t, []models.ExternalLink{{URL: "https://ext.net/", Source: "http://e.com/"}}, rep.ExternalLinks)
	require.Len(t, rep.CrawlErrors, 1)
	assert.Equal(t, "Error processing http://e.com/f\nline one\nline two", rep.CrawlErrors[0].Message)
	assert.Equal(t, 5, rep.ItemCount)
}

func TestScanFileTypes(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"index.html", "a/b.html", "a/c.CSS", "img/x.png", "img/y.png", "img/z.png", "LICENSE"} {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	scanned, err := ScanFileTypes(root, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []models.ScannedFile{
		{Extension: "png", Count: 3},
		{Extension: "html", Count: 2},
		{Extension: "css", Count: 1},
	}, scanned)
}

func TestReport_Apply(t *testing.T) {
	rep := &Report{ItemCount: 3, HTMLErrors: []models.HTMLError{{Code: 404}}}
	var s models.Statification
	rep.Apply(&s, []models.ScannedFile{{Extension: "html", Count: 1}})
	assert.Equal(t, 3, s.ItemCount)
	assert.Len(t, s.HTMLErrors, 1)
	assert.Len(t, s.ScannedFiles, 1)
}
