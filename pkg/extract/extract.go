// Package extract finds the links carried by HTML, CSS and RSS documents.
package extract

import (
	"iter"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/parse"
)

// ExternalLinkEmitter receives the first sighting of each external link in a run
type ExternalLinkEmitter interface {
	EmitExternalLink(ev models.ExternalLinkEvent)
}

// ExternalTracker classifies links against the domain allow-list and remembers which external
// links were already reported during the current run
type ExternalTracker struct {
	allowed map[string]struct{}
	mu      sync.Mutex
	seen    map[string]struct{}
	emitter ExternalLinkEmitter
}

// NewExternalTracker creates a tracker for the given allow-list; emitter may be nil
func NewExternalTracker(domains []string, emitter ExternalLinkEmitter) *ExternalTracker {
	allowed := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return &ExternalTracker{allowed: allowed, seen: make(map[string]struct{}), emitter: emitter}
}

// IsInternal reports whether the link's host is in the allow-list.
// The host is matched with its port first, then without it.
func (t *ExternalTracker) IsInternal(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	if _, ok := t.allowed[host]; ok {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		_, ok := t.allowed[h]
		return ok
	}
	return false
}

// Observe records a link found on source and emits an ExternalLinkEvent the first time an external link is seen.
// Returns true if the link is external.
func (t *ExternalTracker) Observe(source, link string) bool {
	if t.IsInternal(link) {
		return false
	}
	t.mu.Lock()
	_, dup := t.seen[link]
	if !dup {
		t.seen[link] = struct{}{}
	}
	t.mu.Unlock()

	if !dup && t.emitter != nil {
		t.emitter.EmitExternalLink(models.ExternalLinkEvent{Source: source, Target: link})
	}
	return true
}

// Reported returns the number of distinct external links seen so far
func (t *ExternalTracker) Reported() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Extractor turns raw link references from a document into absolute candidate URLs
type Extractor struct {
	tracker *ExternalTracker
	log     *logrus.Entry
}

// NewExtractor creates an Extractor reporting external links through tracker
func NewExtractor(tracker *ExternalTracker, log *logrus.Entry) *Extractor {
	return &Extractor{tracker: tracker, log: log}
}

// candidates resolves raw references against base, drops unsupported schemes and records external links.
// External links are still yielded so the crawl can follow them.
func (e *Extractor) candidates(raw iter.Seq[string], base *url.URL) iter.Seq[string] {
	source := base.String()
	return func(yield func(string) bool) {
		for ref := range raw {
			if strings.TrimSpace(ref) == "" {
				continue
			}
			link, err := parse.Resolve(base, ref)
			if err != nil {
				e.log.Debugf("Unparsable link [%s] in %s: %v", ref, source, err)
				continue
			}
			if !parse.IsAcceptedLink(link) {
				e.log.Debugf("Unknown external link format [%s] in %s", link, source)
				continue
			}
			if e.tracker != nil {
				e.tracker.Observe(source, link)
			}
			if !yield(link) {
				return
			}
		}
	}
}
