package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

type hostSlot struct {
	sem      *semaphore.Weighted
	inFlight int64 // held plus waiting
	idleFrom time.Time
}

// HostSemaphorePool bounds concurrent fetches per host for one crawl run.
// Followed external links get their own slots, so a slow third-party host
// never holds up the mirrored site.
type HostSemaphorePool struct {
	mu    sync.Mutex
	slots map[string]*hostSlot
	limit int64
	log   *logrus.Entry
}

func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	if maxPerHost <= 0 {
		maxPerHost = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", maxPerHost)
	}
	return &HostSemaphorePool{
		slots: make(map[string]*hostSlot),
		limit: int64(maxPerHost),
		log:   log,
	}
}

// Acquire blocks until host has a free slot or ctx ends.
// The returned release must be called exactly once.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) (func(), error) {
	p.mu.Lock()
	slot, ok := p.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(p.limit)}
		p.slots[host] = slot
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Tracking new host")
	}
	slot.inFlight++
	p.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		p.mu.Lock()
		slot.inFlight--
		if slot.inFlight == 0 {
			slot.idleFrom = time.Now()
		}
		p.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			p.mu.Lock()
			slot.inFlight--
			if slot.inFlight == 0 {
				slot.idleFrom = time.Now()
			}
			p.mu.Unlock()
		})
	}, nil
}

// InFlight reports the fetches held or waiting on host.
func (p *HostSemaphorePool) InFlight(host string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot, ok := p.slots[host]; ok {
		return slot.inFlight
	}
	return 0
}

// Len returns the number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Sweep drops hosts that have had nothing in flight for at least maxIdle
// and returns how many were dropped.
func (p *HostSemaphorePool) Sweep(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	dropped := 0
	for host, slot := range p.slots {
		if slot.inFlight == 0 && !slot.idleFrom.IsZero() && now.Sub(slot.idleFrom) >= maxIdle {
			delete(p.slots, host)
			dropped++
		}
	}
	return dropped
}

// RunEviction sweeps idle hosts every interval until ctx ends.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Sweep(interval); n > 0 {
				p.log.Debugf("Dropped %d idle hosts, %d tracked", n, p.Len())
			}
		}
	}
}
