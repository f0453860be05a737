// Package classify turns a fetched response into a crawl outcome and, when the
// content type is accepted, a mirror item plus the links it carries.
package classify

import (
	"bytes"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/Sriram-PR/statifier/pkg/extract"
	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/parse"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Response is the part of an HTTP response the classifier needs
type Response struct {
	URL        *url.URL // Final URL after redirects
	Referrer   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Result is the classification of one response.
// Item is nil unless Outcome.Kind is OutcomeSaved; Links is never nil.
// Err wraps the matching sentinel for every outcome other than OutcomeSaved.
type Result struct {
	Outcome models.CrawlOutcome
	Item    *models.MirrorItem
	Links   iter.Seq[string]
	Err     error
}

// Classifier applies the MIME dispatch table and the URL rewrite rule
type Classifier struct {
	rewrite     *regexp.Regexp // nil disables rewriting
	replacement []byte
	mapper      parse.PathMapper
	extractor   *extract.Extractor
	log         *logrus.Entry
}

// NewClassifier creates a Classifier. pattern is compiled case-insensitively; an empty pattern disables rewriting.
func NewClassifier(pattern, replacement string, mapper parse.PathMapper, extractor *extract.Extractor, log *logrus.Entry) (*Classifier, error) {
	re, err := utils.CompileRewritePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		rewrite:     re,
		replacement: []byte(replacement),
		mapper:      mapper,
		extractor:   extractor,
		log:         log,
	}, nil
}

// Rewrite substitutes every match of the rewrite pattern in body with the literal replacement
func (c *Classifier) Rewrite(body []byte) []byte {
	if c.rewrite == nil {
		return body
	}
	return c.rewrite.ReplaceAllLiteral(body, c.replacement)
}

func noLinks(func(string) bool) {}

// Classify produces the outcome, item and links for one response
func (c *Classifier) Classify(resp Response) Result {
	outcome := models.CrawlOutcome{URL: resp.URL.String(), Referrer: resp.Referrer, StatusCode: resp.StatusCode}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		outcome.Kind = models.OutcomeHTTPError
		err := utils.WrapErrorf(utils.ErrHTTPStatus, "[%d] for %s", resp.StatusCode, outcome.URL)
		return Result{Outcome: outcome, Links: noLinks, Err: err}
	}

	mimeType := MIMEOf(resp.Header)
	outcome.MIME = mimeType
	kind := KindFor(mimeType)
	if kind == models.KindReject {
		outcome.Kind = models.OutcomeForbiddenMime
		err := utils.WrapErrorf(utils.ErrForbiddenMime, "[%s] in %s", mimeType, outcome.URL)
		return Result{Outcome: outcome, Links: noLinks, Err: err}
	}

	item := &models.MirrorItem{Path: c.mapper.LocalPath(resp.URL), Kind: kind}
	outcome.Path = item.Path
	links := iter.Seq[string](noLinks)

	switch kind {
	case models.KindHTML:
		content, doc, err := c.processHTML(resp)
		if err != nil {
			return internalError(outcome, err)
		}
		item.Content = content
		links = c.extractor.HTML(doc, resp.URL)
	case models.KindCSS:
		item.Content = c.Rewrite(resp.Body)
		links = c.extractor.CSS(item.Content, resp.URL)
	case models.KindXML:
		item.Content = c.Rewrite(resp.Body)
		doc, err := extract.ParseXML(item.Content)
		if err != nil {
			return internalError(outcome, fmt.Errorf("parsing %s: %w", resp.URL, err))
		}
		links = c.extractor.XML(doc, resp.URL)
	case models.KindJS:
		item.Content = c.Rewrite(resp.Body)
	default: // PDF, images and generic binaries are stored unmodified
		item.Content = resp.Body
	}

	outcome.Kind = models.OutcomeSaved
	return Result{Outcome: outcome, Item: item, Links: links}
}

func internalError(outcome models.CrawlOutcome, err error) Result {
	outcome.Kind = models.OutcomeInternalError
	outcome.Message = err.Error()
	return Result{Outcome: outcome, Links: noLinks, Err: err}
}

// processHTML rewrites, decodes and parses an HTML body, then serializes the tree back in its declared encoding
func (c *Classifier) processHTML(resp Response) ([]byte, *goquery.Document, error) {
	rewritten := c.Rewrite(resp.Body)

	enc, name, _ := charset.DetermineEncoding(rewritten, resp.Header.Get("Content-Type"))
	utf8Body := rewritten
	if name != "utf-8" {
		decoded, err := enc.NewDecoder().Bytes(rewritten)
		if err != nil {
			c.log.Debugf("Decoding %s as %s failed, parsing raw bytes: %v", resp.URL, name, err)
			enc, name = encoding.Nop, "utf-8"
		} else {
			utf8Body = decoded
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: HTML document %s: %w", utils.ErrParsing, resp.URL, err)
	}

	var buf bytes.Buffer
	for _, n := range doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, nil, fmt.Errorf("%w: rendering HTML %s: %w", utils.ErrParsing, resp.URL, err)
		}
	}
	if name == "utf-8" {
		return buf.Bytes(), doc, nil
	}
	encoded, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes(buf.Bytes())
	if err != nil {
		c.log.Debugf("Re-encoding %s to %s failed, storing UTF-8: %v", resp.URL, name, err)
		return buf.Bytes(), doc, nil
	}
	return encoded, doc, nil
}
