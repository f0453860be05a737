// Package queue holds the crawl frontier: discovered requests not yet fetched.
package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
)

// PQItem represents an item in the priority queue
type PQItem struct {
	request  *models.CrawlRequest
	priority int // Lower value means higher priority (Depth)
	seq      uint64
	index    int // The index of the item in the heap (required by heap interface)
}

// PriorityQueue implements heap.Interface
type PriorityQueue []*PQItem

func (pq PriorityQueue) Len() int { return len(pq) }

// Less orders by depth, then by insertion so equal depths pop breadth-first
func (pq PriorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds an element to the heap
func (pq *PriorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*PQItem)
	item.index = n
	*pq = append(*pq, item)
}

// Pop removes and returns the highest priority element (minimum value) from the heap
func (pq *PriorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// Frontier is a blocking, thread-safe priority queue of crawl requests
type Frontier struct {
	pq     PriorityQueue
	mu     sync.Mutex
	cond   *sync.Cond // Signalled when items arrive or the frontier closes
	seq    uint64
	closed bool
	log    *logrus.Entry
}

// NewFrontier creates an empty frontier
func NewFrontier(log *logrus.Entry) *Frontier {
	f := &Frontier{log: log}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.pq)
	return f
}

// Add pushes a request with priority based on depth.
// Returns false if the frontier is closed and the request was dropped.
func (f *Frontier) Add(req *models.CrawlRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Debugf("Dropping request for closed frontier: %s", req.URL)
		return false
	}

	f.seq++
	heap.Push(&f.pq, &PQItem{request: req, priority: req.Depth, seq: f.seq})
	f.cond.Signal()
	return true
}

// Pop retrieves and removes the highest priority request.
// It blocks while the frontier is empty and open.
// Returns nil and false once the frontier is closed and empty.
func (f *Frontier) Pop() (*models.CrawlRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pq) == 0 {
		if f.closed {
			return nil, false
		}
		f.cond.Wait()
	}

	item := heap.Pop(&f.pq).(*PQItem)
	return item.request, true
}

// Close signals that no more requests will be added and wakes all waiters
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Drain closes the frontier and discards every pending request, returning how many were dropped
func (f *Frontier) Drain() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	dropped := len(f.pq)
	f.pq = f.pq[:0]
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
	return dropped
}

// Len returns the current number of pending requests
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pq)
}
