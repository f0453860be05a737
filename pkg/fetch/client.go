package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/config"
)

// maxRedirects matches the default Go client behavior
const maxRedirects = 10

type redirectGuardKey struct{}

// WithRedirectGuard attaches admit to ctx. A redirect whose target admit rejects
// is not followed; the 3xx response is returned to the caller instead.
func WithRedirectGuard(ctx context.Context, admit func(target string) bool) context.Context {
	return context.WithValue(ctx, redirectGuardKey{}, admit)
}

func redirectGuard(ctx context.Context) func(string) bool {
	admit, _ := ctx.Value(redirectGuardKey{}).(func(string) bool)
	return admit
}

// IsRedirect reports whether resp is a redirect the client did not follow
func IsRedirect(resp *Response) bool {
	return resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != ""
}

// NewClient creates a new HTTP client based on the provided configuration.
func NewClient(cfg config.HTTPClientConfig, log *logrus.Entry) *http.Client {
	log.Debug("Initializing HTTP client...")

	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		ForceAttemptHTTP2:      true, // Default to true unless explicitly disabled
		MaxIdleConns:           cfg.MaxIdleConns,
		MaxIdleConnsPerHost:    cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:        cfg.IdleConnTimeout,
		TLSHandshakeTimeout:    cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout:  cfg.ExpectContinueTimeout,
		MaxResponseHeaderBytes: 1 << 20,
		// Mirrored bytes must match the server's, so never decompress behind the crawler's back
		DisableCompression: true,
	}
	if cfg.ForceAttemptHTTP2 != nil {
		transport.ForceAttemptHTTP2 = *cfg.ForceAttemptHTTP2
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after 10 redirects")
			}
			if admit := redirectGuard(req.Context()); admit != nil && !admit(req.URL.String()) {
				log.Debugf("Not following redirect %s -> %s: already scheduled", via[len(via)-1].URL, req.URL)
				return http.ErrUseLastResponse
			}
			log.Debugf("Redirecting: %s -> %s (hop %d)", via[len(via)-1].URL, req.URL, len(via))
			return nil
		},
	}
	return client
}
