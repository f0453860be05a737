package dedup

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func filters() map[string]func() Filter {
	return map[string]func() Filter{
		"memory": func() Filter { return NewMemoryFilter(testLogger()) },
		"bloom":  func() Filter { return NewBloomFilter(10_000, 0.00001, testLogger()) },
	}
}

func TestShouldFetch_IndexEquivalence(t *testing.T) {
	for name, newFilter := range filters() {
		t.Run(name, func(t *testing.T) {
			tests := []struct {
				first, second string
			}{
				{"http://example.com/", "http://example.com/index.html"},
				{"http://example.com/docs/", "http://example.com/docs/index.html"},
				{"http://example.com/docs/index.html", "http://example.com/docs/"},
				{"http://example.com/docs", "http://example.com/docs/index.html"},
				{"http://example.com", "http://example.com/"},
			}
			for _, tt := range tests {
				f := newFilter()
				assert.True(t, f.ShouldFetch("GET", tt.first), "first %s", tt.first)
				assert.False(t, f.ShouldFetch("GET", tt.second), "second %s after %s", tt.second, tt.first)
			}
		})
	}
}

func TestShouldFetch_DistinctURLs(t *testing.T) {
	for name, newFilter := range filters() {
		t.Run(name, func(t *testing.T) {
			f := newFilter()
			assert.True(t, f.ShouldFetch("GET", "http://example.com/a"))
			assert.True(t, f.ShouldFetch("GET", "http://example.com/b"))
			assert.True(t, f.ShouldFetch("GET", "http://example.com/a?x=1"))
			assert.False(t, f.ShouldFetch("GET", "http://example.com/a"))
			assert.False(t, f.ShouldFetch("GET", "http://EXAMPLE.com:80/a#frag"))
			assert.Equal(t, 3, f.Len())
		})
	}
}

func TestShouldFetch_UnparsableRejected(t *testing.T) {
	f := NewMemoryFilter(testLogger())
	assert.False(t, f.ShouldFetch("GET", "http://exa mple.com/%zz"))
	assert.Equal(t, 0, f.Len())
}

func TestShouldFetch_ConcurrentCallersAdmitOnce(t *testing.T) {
	for name, newFilter := range filters() {
		t.Run(name, func(t *testing.T) {
			f := newFilter()
			const workers = 32
			const urls = 50

			var admitted atomic.Int64
			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < urls; i++ {
						u := fmt.Sprintf("http://example.com/p%d/", i)
						if w%2 == 1 {
							u += "index.html" // Equivalent form races with the bare one
						}
						if f.ShouldFetch("GET", u) {
							admitted.Add(1)
						}
					}
				}(w)
			}
			wg.Wait()

			assert.Equal(t, int64(urls), admitted.Load())
			assert.Equal(t, urls, f.Len())
		})
	}
}
