// Package dedup decides whether a discovered URL should be scheduled, treating a
// directory URL and its index.html form as the same resource.
package dedup

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/parse"
)

// Filter is a run-scoped seen-set over request fingerprints.
// ShouldFetch must be atomic: two callers racing on equivalent URLs never both get true.
type Filter interface {
	ShouldFetch(method, rawURL string) bool
	Len() int
}

// fingerprintSet is the storage behind a Filter; callers hold the filter lock
type fingerprintSet interface {
	has(fp string) bool
	add(fp string)
}

// SeenFilter implements Filter with dual insertion of the canonical and index-equivalent fingerprints
type SeenFilter struct {
	mu    sync.Mutex
	set   fingerprintSet
	count int
	log   *logrus.Entry
}

// NewMemoryFilter creates an exact, map-backed filter
func NewMemoryFilter(log *logrus.Entry) *SeenFilter {
	return &SeenFilter{set: mapSet{}, log: log}
}

// NewBloomFilter creates a probabilistic filter sized for capacity fingerprints at the given false-positive rate.
// A false positive makes a never-seen URL look like a duplicate; it never causes a double fetch.
func NewBloomFilter(capacity uint, falsePositive float64, log *logrus.Entry) *SeenFilter {
	return &SeenFilter{set: &bloomSet{bf: bloom.NewWithEstimates(capacity, falsePositive)}, log: log}
}

// ShouldFetch returns false if either fingerprint of rawURL was seen; otherwise records both and returns true.
// Unparsable URLs are never fetched.
func (f *SeenFilter) ShouldFetch(method, rawURL string) bool {
	fp, fpIndex, err := parse.Fingerprints(method, rawURL)
	if err != nil {
		f.log.Debugf("Dedup: rejecting unparsable URL '%s': %v", rawURL, err)
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set.has(fp) || f.set.has(fpIndex) {
		return false
	}
	f.set.add(fp)
	f.set.add(fpIndex)
	f.count++
	f.log.Debugf("do request : %s", rawURL)
	return true
}

// Len returns the number of URLs admitted so far
func (f *SeenFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type mapSet map[string]struct{}

func (s mapSet) has(fp string) bool {
	_, ok := s[fp]
	return ok
}

func (s mapSet) add(fp string) { s[fp] = struct{}{} }

type bloomSet struct {
	bf *bloom.BloomFilter
}

func (s *bloomSet) has(fp string) bool { return s.bf.TestString(fp) }

func (s *bloomSet) add(fp string) { s.bf.AddString(fp) }
