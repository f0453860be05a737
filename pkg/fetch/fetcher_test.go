package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/statifier/pkg/config"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func newTestFetcher(opts Options) *Fetcher {
	return NewFetcher(testClient(), opts, testLogger())
}

func TestFetch_Success(t *testing.T) {
	var gotUA, gotRef, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(server.Close)

	f := newTestFetcher(Options{UserAgent: "statifier-test", AcceptLanguage: "fr", Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), server.URL+"/page", "http://example.com/from")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, server.URL+"/page", resp.URL.String())
	assert.Equal(t, "statifier-test", gotUA)
	assert.Equal(t, "http://example.com/from", gotRef)
	assert.Equal(t, "fr", gotLang)
}

func TestFetch_ErrorStatusIsNotAnError(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		attempts := &atomic.Int32{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(code)
		}))

		resp, err := newTestFetcher(Options{Timeout: 5 * time.Second}).Fetch(context.Background(), server.URL, "")
		server.Close()

		require.NoError(t, err, "status %d", code)
		assert.Equal(t, code, resp.StatusCode)
		assert.Equal(t, int32(1), attempts.Load(), "status %d must not be retried", code)
	}
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	resp, err := newTestFetcher(Options{Timeout: 5 * time.Second}).Fetch(context.Background(), server.URL+"/old", "")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/new", resp.URL.Path)
	assert.Equal(t, "moved", string(resp.Body))
}

func TestFetch_RedirectGuard(t *testing.T) {
	tests := []struct {
		name       string
		admit      bool
		wantStatus int
		wantNewHit int32
	}{
		{"admitted target is followed", true, http.StatusOK, 1},
		{"rejected target is not followed", false, http.StatusFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var newHits atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/b", http.StatusFound)
			})
			mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
				newHits.Add(1)
				w.Write([]byte("b"))
			})
			server := httptest.NewServer(mux)
			t.Cleanup(server.Close)

			var asked []string
			ctx := WithRedirectGuard(context.Background(), func(target string) bool {
				asked = append(asked, target)
				return tt.admit
			})
			f := NewFetcher(NewClient(config.HTTPClientConfig{}, testLogger()), Options{Timeout: 5 * time.Second}, testLogger())
			resp, err := f.Fetch(ctx, server.URL+"/a", "")

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantNewHit, newHits.Load())
			assert.Equal(t, []string{server.URL + "/b"}, asked)
			assert.Equal(t, !tt.admit, IsRedirect(resp))
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	start := time.Now()
	_, err := newTestFetcher(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), server.URL, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrNetwork), "timeout should wrap ErrNetwork, got %v", err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(Options{Timeout: 5 * time.Second}).Fetch(ctx, server.URL, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := newTestFetcher(Options{Timeout: 5 * time.Second}).Fetch(context.Background(), addr, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrNetwork))
}

func TestFetch_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	t.Cleanup(server.Close)

	_, err := newTestFetcher(Options{Timeout: 5 * time.Second, MaxBodyBytes: 1024}).Fetch(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrResponseBodyRead))

	resp, err := newTestFetcher(Options{Timeout: 5 * time.Second, MaxBodyBytes: 4096}).Fetch(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Len(t, resp.Body, 2048)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(Options{}).Fetch(context.Background(), "http://[::1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrRequestCreation))
}

func TestNewClient_DoesNotDecompress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Accept-Encoding"))
		w.Write([]byte("plain"))
	}))
	t.Cleanup(server.Close)

	cfg := config.HTTPClientConfig{Timeout: 5 * time.Second, DialerTimeout: time.Second}
	client := NewClient(cfg, testLogger())
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
