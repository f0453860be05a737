package report

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Report is what a crawl log says about a run
type Report struct {
	HTMLErrors    []models.HTMLError    `json:"html_errors"`
	MimeErrors    []models.MimeError    `json:"mime_errors"`
	ExternalLinks []models.ExternalLink `json:"external_links"`
	CrawlErrors   []models.CrawlError   `json:"crawl_errors"`
	ItemCount     int                   `json:"item_count"`
}

var (
	headerPattern        = regexp.MustCompile(`^\S+ \[` + LogSource + `\] (DEBUG|INFO|WARNING|ERROR): (.*)$`)
	httpErrorPattern     = regexp.MustCompile(`^HTTP error \[(\d+)\] for (\S+) from ?(.*)$`)
	forbiddenMimePattern = regexp.MustCompile(`^Forbidden content \[([^\]]*)\] detected in (\S+)`)
	externalLinkPattern  = regexp.MustCompile(`^External link detected \[(.*)\] in (\S+)$`) // greedy: IPv6 hosts contain "]"
)

const statsPrefix = "Crawl stats: "
const receivedKey = "response_received_count: "

// ParseLogFile reads the crawl log at path. A missing file yields an empty report.
func ParseLogFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Report{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening crawl log '%s': %w", utils.ErrFilesystem, path, err)
	}
	defer f.Close()
	return ParseLog(f)
}

// ParseLog rebuilds a report from crawl log lines.
// Lines following an ERROR line belong to it until a line mentioning a level name shows up.
func ParseLog(r io.Reader) (*Report, error) {
	rep := &Report{}
	var pending *strings.Builder

	flush := func() {
		if pending != nil {
			rep.CrawlErrors = append(rep.CrawlErrors, models.CrawlError{Message: pending.String()})
			pending = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			if pending == nil {
				continue
			}
			if mentionsLevel(line) {
				flush()
				continue
			}
			pending.WriteByte('\n')
			pending.WriteString(strings.TrimPrefix(line, continuationIndent))
			continue
		}

		flush()
		level, msg := m[1], m[2]
		switch level {
		case LevelError:
			pending = &strings.Builder{}
			pending.WriteString(msg)
		case LevelWarning:
			parseWarning(rep, msg)
		case LevelInfo:
			parseInfo(rep, msg)
		}
	}
	flush()
	if err := sc.Err(); err != nil {
		return rep, fmt.Errorf("%w: reading crawl log: %w", utils.ErrParsing, err)
	}
	return rep, nil
}

func mentionsLevel(line string) bool {
	return strings.Contains(line, LevelWarning) || strings.Contains(line, LevelInfo) || strings.Contains(line, LevelError)
}

func parseWarning(rep *Report, msg string) {
	if m := httpErrorPattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		rep.HTMLErrors = append(rep.HTMLErrors, models.HTMLError{Code: code, URL: m[2], Source: m[3]})
		return
	}
	if m := forbiddenMimePattern.FindStringSubmatch(msg); m != nil {
		rep.MimeErrors = append(rep.MimeErrors, models.MimeError{MIME: m[1], URL: m[2]})
	}
}

func parseInfo(rep *Report, msg string) {
	if m := externalLinkPattern.FindStringSubmatch(msg); m != nil {
		rep.ExternalLinks = append(rep.ExternalLinks, models.ExternalLink{URL: m[1], Source: m[2]})
		return
	}
	if !strings.HasPrefix(msg, statsPrefix) {
		return
	}
	// The last stats line of the run wins
	_, rest, ok := strings.Cut(msg, receivedKey)
	if !ok {
		return
	}
	value, _, _ := strings.Cut(rest, ",")
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		rep.ItemCount = n
	}
}

// ScanFileTypes counts mirrored files per extension under root, most frequent first
func ScanFileTypes(root string, log *logrus.Entry) ([]models.ScannedFile, error) {
	counts, err := utils.CountFileExtensions(root, log)
	if err != nil {
		return nil, err
	}
	scanned := make([]models.ScannedFile, 0, len(counts))
	for ext, n := range counts {
		scanned = append(scanned, models.ScannedFile{Extension: ext, Count: n})
	}
	slices.SortFunc(scanned, func(a, b models.ScannedFile) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Extension, b.Extension)
	})
	return scanned, nil
}

// Apply copies the report and scanned files onto a statification record
func (r *Report) Apply(s *models.Statification, scanned []models.ScannedFile) {
	s.HTMLErrors = r.HTMLErrors
	s.MimeErrors = r.MimeErrors
	s.ExternalLinks = r.ExternalLinks
	s.CrawlErrors = r.CrawlErrors
	s.ItemCount = r.ItemCount
	s.ScannedFiles = scanned
}
