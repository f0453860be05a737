package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Response is a fully read HTTP response
type Response struct {
	URL        *url.URL // Final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPFetcher performs single GET requests for the crawl engine
type HTTPFetcher interface {
	Fetch(ctx context.Context, rawURL, referrer string) (*Response, error)
}

// Options configures a Fetcher
type Options struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration // Per-request deadline covering connect, headers and body
	MaxBodyBytes   int64         // 0 means unlimited
}

// Fetcher issues one GET per call with a mandatory per-request timeout.
// Failed requests are never retried; the caller records them as internal errors.
type Fetcher struct {
	client *http.Client
	opts   Options
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, opts Options, log *logrus.Entry) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Minute
	}
	return &Fetcher{client: client, opts: opts, log: log}
}

// Fetch requests rawURL and reads the whole body. Any HTTP status is returned as a Response;
// only transport failures, timeouts and body read errors produce an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, referrer string) (*Response, error) {
	reqLog := f.log.WithField("url", rawURL)

	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			reqLog.Warnf("Request timed out after %v", f.opts.Timeout)
			return nil, fmt.Errorf("%w: timeout after %v fetching '%s': %w", utils.ErrNetwork, f.opts.Timeout, rawURL, err)
		}
		return nil, fmt.Errorf("%w: fetching '%s': %w", utils.ErrNetwork, rawURL, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if f.opts.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1) // +1 to detect exceeding the limit
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, rawURL, err)
	}
	if f.opts.MaxBodyBytes > 0 && int64(len(data)) > f.opts.MaxBodyBytes {
		return nil, fmt.Errorf("%w: '%s' exceeds max size (%d bytes)", utils.ErrResponseBodyRead, rawURL, f.opts.MaxBodyBytes)
	}

	reqLog.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"bytes":       len(data),
		"duration":    time.Since(start).String(),
	}).Debug("Fetched")

	return &Response{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
