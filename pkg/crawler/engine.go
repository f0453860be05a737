// Package crawler runs one statification crawl: it fetches the seeds, follows the
// links they carry and mirrors every accepted response under the output directory.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/statifier/pkg/classify"
	"github.com/Sriram-PR/statifier/pkg/config"
	"github.com/Sriram-PR/statifier/pkg/dedup"
	"github.com/Sriram-PR/statifier/pkg/extract"
	"github.com/Sriram-PR/statifier/pkg/fetch"
	"github.com/Sriram-PR/statifier/pkg/lock"
	"github.com/Sriram-PR/statifier/pkg/mirror"
	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/parse"
	"github.com/Sriram-PR/statifier/pkg/queue"
	"github.com/Sriram-PR/statifier/pkg/report"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Result is the terminal state of a run
type Result struct {
	State  models.EngineState   `json:"state"`
	Reason models.FailureReason `json:"reason,omitempty"`
	Stats  models.CrawlStats    `json:"stats"`
	Err    error                `json:"-"`
}

// Options carries collaborators that are normally built from the configuration
type Options struct {
	Fetcher     fetch.HTTPFetcher // nil builds an HTTP fetcher from the client settings
	TruncateLog bool              // Start the crawl log from scratch instead of appending
}

// Engine runs a single crawl. It moves IDLE -> RUNNING -> COMPLETED or FAILED and cannot be restarted.
type Engine struct {
	log  *logrus.Entry
	cfg  *config.AppConfig
	opts Options

	mu      sync.Mutex
	state   models.EngineState
	refusal models.FailureReason // Why the last Start was refused
	cancel  context.CancelFunc
	done    chan struct{}
	result  Result

	// Per-run collaborators, set by Start
	lock        *lock.FileLock
	frontier    *queue.Frontier
	filter      dedup.Filter
	tracker     *extract.ExternalTracker
	classifier  *classify.Classifier
	writer      *mirror.Writer
	emitter     *report.Emitter
	fetcher     fetch.HTTPFetcher
	rateLimiter *fetch.RateLimiter
	globalSem   *semaphore.Weighted
	hostSems    *fetch.HostSemaphorePool

	pending   sync.WaitGroup // Requests queued or in flight
	counterMu sync.Mutex     // Serializes progress counter updates
	counter   int64
	stats     runStats
}

type runStats struct {
	responses      atomic.Int64
	saved          atomic.Int64
	httpErrors     atomic.Int64
	forbiddenMimes atomic.Int64
	internalErrors atomic.Int64
	enqueued       atomic.Int64
}

// NewEngine creates an idle engine. cfg must already be validated.
func NewEngine(cfg *config.AppConfig, log *logrus.Entry, opts Options) *Engine {
	return &Engine{
		log:   log.WithField("component", "crawler"),
		cfg:   cfg,
		opts:  opts,
		state: models.EngineIdle,
		done:  make(chan struct{}),
	}
}

// State returns the current engine state
func (e *Engine) State() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns the number of responses handled so far in this run
func (e *Engine) Progress() int64 {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	return e.counter
}

// Stats returns a snapshot of the run counters
func (e *Engine) Stats() models.CrawlStats {
	s := models.CrawlStats{
		ResponsesReceived: e.stats.responses.Load(),
		Saved:             e.stats.saved.Load(),
		HTTPErrors:        e.stats.httpErrors.Load(),
		ForbiddenMimes:    e.stats.forbiddenMimes.Load(),
		InternalErrors:    e.stats.internalErrors.Load(),
		Enqueued:          e.stats.enqueued.Load(),
	}
	if e.tracker != nil {
		s.ExternalLinks = int64(e.tracker.Reported())
	}
	return s
}

// Start checks the run parameters, takes the advisory lock and launches the crawl in the background.
// A refused start returns ErrMissingParameters, ErrLockHeld or ErrAlreadyRunning and leaves the engine idle.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != models.EngineIdle {
		return fmt.Errorf("%w: engine is %s", utils.ErrAlreadyRunning, e.state)
	}
	if err := e.checkParameters(); err != nil {
		e.refusal = models.ReasonMissingParameters
		return err
	}

	fl := lock.New(e.cfg.LockFile)
	if err := fl.TryLock(); err != nil {
		if errors.Is(err, utils.ErrLockHeld) {
			e.refusal = models.ReasonLockHeld
		} else {
			e.refusal = models.ReasonInternalError
		}
		return err
	}
	e.lock = fl

	if err := e.setup(); err != nil {
		e.teardown()
		e.refusal = models.ReasonInternalError
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.refusal = models.ReasonNone
	e.state = models.EngineRunning

	seeds := e.cfg.Site.SeedURLs()
	e.emitter.Info("Starting crawl of %d seed(s) with %d worker(s)", len(seeds), e.cfg.NumWorkers)
	for _, seed := range seeds {
		e.enqueue(seed, "", 0)
	}

	go e.run(runCtx)
	return nil
}

// checkParameters verifies seeds, domains and the output directory
func (e *Engine) checkParameters() error {
	site := e.cfg.Site
	if len(site.SeedURLs()) == 0 {
		return fmt.Errorf("%w: no seed urls", utils.ErrMissingParameters)
	}
	if len(site.AllowedDomains()) == 0 {
		return fmt.Errorf("%w: no domains", utils.ErrMissingParameters)
	}
	if site.OutputDir == "" {
		return fmt.Errorf("%w: no output directory", utils.ErrMissingParameters)
	}
	info, err := os.Stat(site.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output directory '%s': %w", utils.ErrMissingParameters, site.OutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: output path '%s' is not a directory", utils.ErrMissingParameters, site.OutputDir)
	}
	return nil
}

// setup builds the per-run collaborators and resets the progress counter
func (e *Engine) setup() error {
	site := e.cfg.Site

	emitter, err := report.OpenEmitter(e.cfg.CrawlLogFile, e.opts.TruncateLog, e.log.WithField("component", "emitter"))
	if err != nil {
		return err
	}
	e.emitter = emitter
	if e.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		emitter.SetDebug(true)
	}

	if e.cfg.DedupMode == "bloom" {
		e.filter = dedup.NewBloomFilter(e.cfg.BloomCapacity, e.cfg.BloomFalsePositive, e.log.WithField("component", "dedup"))
	} else {
		e.filter = dedup.NewMemoryFilter(e.log.WithField("component", "dedup"))
	}

	mapper := parse.NewPathMapper(site.OutputDir, site.DefaultIndex)
	e.tracker = extract.NewExternalTracker(site.AllowedDomains(), emitter)
	extractor := extract.NewExtractor(e.tracker, e.log.WithField("component", "extract"))
	e.classifier, err = classify.NewClassifier(site.URLRegex, site.URLReplacement, mapper, extractor, e.log.WithField("component", "classify"))
	if err != nil {
		return err
	}
	e.writer = mirror.NewWriter(mapper, e.log.WithField("component", "mirror"))

	e.fetcher = e.opts.Fetcher
	if e.fetcher == nil {
		fetchLog := e.log.WithField("component", "fetch")
		e.fetcher = fetch.NewFetcher(fetch.NewClient(e.cfg.HTTPClientSettings, fetchLog), fetch.Options{
			UserAgent:      config.GetEffectiveUserAgent(site, *e.cfg),
			AcceptLanguage: site.AcceptLanguage,
			Timeout:        e.cfg.FetchTimeout,
			MaxBodyBytes:   e.cfg.MaxBodyBytes,
		}, fetchLog)
	}
	e.rateLimiter = fetch.NewRateLimiter(e.cfg.RequestDelay, e.log.WithField("component", "ratelimit"))
	e.globalSem = semaphore.NewWeighted(int64(e.cfg.NumWorkers))
	e.hostSems = fetch.NewHostSemaphorePool(e.cfg.MaxRequestsPerHost, e.log.WithField("component", "hostsem"))
	e.frontier = queue.NewFrontier(e.log.WithField("component", "frontier"))

	if err := ResetProgress(e.cfg.ProgressCounterFile); err != nil {
		return err
	}
	return nil
}

// teardown releases what setup and Start acquired. Safe on partially built engines.
func (e *Engine) teardown() {
	if e.emitter != nil {
		if err := e.emitter.Close(); err != nil {
			e.log.Warnf("Closing crawl log: %v", err)
		}
	}
	if err := ResetProgress(e.cfg.ProgressCounterFile); err != nil {
		e.log.Warnf("Resetting progress counter: %v", err)
	}
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			e.log.Warnf("Releasing lock: %v", err)
		}
	}
}

// Stop cancels a running crawl. Stopping an engine that is not running does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != models.EngineRunning || e.cancel == nil {
		return
	}
	e.log.Info("Stop requested")
	e.cancel()
}

// Done is closed when the run reaches a terminal state
func (e *Engine) Done() <-chan struct{} { return e.done }

// Wait blocks until the run ends and returns its result.
// On an engine whose start was refused it returns immediately with the refusal reason.
func (e *Engine) Wait() Result {
	e.mu.Lock()
	if e.state == models.EngineIdle {
		r := Result{State: models.EngineIdle, Reason: e.refusal}
		e.mu.Unlock()
		return r
	}
	e.mu.Unlock()

	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// run drives the workers until the frontier drains or the run is cancelled
func (e *Engine) run(ctx context.Context) {
	startTime := time.Now()
	runLog := e.log.WithField("workers", e.cfg.NumWorkers)
	runLog.Info("Crawl starting")

	var workers sync.WaitGroup
	for i := 1; i <= e.cfg.NumWorkers; i++ {
		workers.Add(1)
		go func(workerLog *logrus.Entry) {
			defer workers.Done()
			e.worker(ctx, workerLog)
		}(e.log.WithField("worker_id", i))
	}

	bgCtx, stopBackground := context.WithCancel(ctx)
	var background sync.WaitGroup
	background.Add(2)
	go func() { defer background.Done(); e.hostSems.RunEviction(bgCtx, time.Minute) }()
	go func() { defer background.Done(); e.reportStats(bgCtx) }()

	// Waiter: close the frontier once every request is done, or drain it on cancellation
	allDone := make(chan struct{})
	go func() { e.pending.Wait(); close(allDone) }()
	select {
	case <-allDone:
		runLog.Info("Frontier drained, all requests completed")
		e.frontier.Close()
	case <-ctx.Done():
		dropped := e.frontier.Drain()
		e.pending.Add(-dropped)
		runLog.Warnf("Crawl cancelled (%v), dropped %d queued request(s)", ctx.Err(), dropped)
	}
	workers.Wait()
	stopBackground()
	background.Wait()

	result := Result{State: models.EngineCompleted}
	if ctx.Err() != nil {
		result = Result{State: models.EngineFailed, Reason: models.ReasonCancelled, Err: ctx.Err()}
	} else if err := e.finalize(ctx); err != nil {
		runLog.Errorf("Finalization failed: %v", err)
		e.emitter.EmitError(fmt.Errorf("Finalization failed: %w", err))
		result = Result{State: models.EngineFailed, Reason: models.ReasonInternalError, Err: err}
	}
	result.Stats = e.Stats()

	e.emitter.EmitStats(result.Stats)
	e.emitter.Info("Crawl finished: %s", result.State)
	e.teardown()

	runLog.WithFields(logrus.Fields{
		"state":    result.State,
		"reason":   result.Reason,
		"duration": time.Since(startTime).String(),
		"saved":    result.Stats.Saved,
	}).Info("Crawl finished")

	e.mu.Lock()
	e.state = result.State
	e.result = result
	e.cancel()
	e.mu.Unlock()
	close(e.done)
}

// reportStats writes a stats line to the crawl log at every interval
func (e *Engine) reportStats(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := e.Stats()
			e.emitter.EmitStats(stats)
			e.log.WithFields(logrus.Fields{
				"responses": stats.ResponsesReceived,
				"saved":     stats.Saved,
				"queued":    e.frontier.Len(),
			}).Info("Crawl progress")
		}
	}
}

// worker pops requests until the frontier is closed and empty
func (e *Engine) worker(ctx context.Context, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		if ctx.Err() != nil {
			return
		}
		req, ok := e.frontier.Pop()
		if !ok {
			return
		}
		e.process(ctx, req, workerLog)
	}
}

// admit reports whether link should be fetched and marks it seen.
// Links found in documents and redirect targets both go through here.
func (e *Engine) admit(link string) bool {
	if !parse.IsFetchable(link) {
		return false
	}
	if e.cfg.Site.SkipExternal && !e.tracker.IsInternal(link) {
		return false
	}
	return e.filter.ShouldFetch("GET", link)
}

// enqueue admits a link to the frontier if it is fetchable and not seen before
func (e *Engine) enqueue(link, referrer string, depth int) {
	if !e.admit(link) {
		return
	}
	e.pending.Add(1)
	if !e.frontier.Add(&models.CrawlRequest{URL: link, Referrer: referrer, Depth: depth}) {
		e.pending.Done()
		return
	}
	e.stats.enqueued.Add(1)
}

// process runs one request through fetch, classify, extract, write and log
func (e *Engine) process(ctx context.Context, req *models.CrawlRequest, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": req.URL, "depth": req.Depth})
	outcome := models.CrawlOutcome{Kind: models.OutcomeInternalError, URL: req.URL, Referrer: req.Referrer}
	received := false
	logged := false

	defer func() {
		if r := recover(); r != nil {
			taskLog.WithField("stack_trace", string(debug.Stack())).Errorf("PANIC recovered while processing: %v", r)
			if !logged {
				outcome = models.CrawlOutcome{Kind: models.OutcomeInternalError, URL: req.URL, Referrer: req.Referrer, Message: fmt.Sprintf("panic: %v", r)}
			}
		}
		// Requests abandoned on cancellation leave no message and are not logged
		if !logged && outcome.Message != "" {
			e.record(outcome, received)
		}
		e.pending.Done()
	}()

	host := parse.HostOf(req.URL)
	release, err := e.acquire(ctx, host)
	if err != nil {
		if ctx.Err() == nil {
			outcome.Message = err.Error()
		}
		return
	}
	resp, err := e.fetcher.Fetch(fetch.WithRedirectGuard(ctx, e.admit), req.URL, req.Referrer)
	release()
	if err != nil {
		if ctx.Err() != nil {
			taskLog.Debugf("Fetch abandoned: %v", err)
			return
		}
		taskLog.WithField("category", utils.CategorizeError(err)).Warnf("Fetch failed: %v", err)
		outcome.Message = err.Error()
		return
	}
	received = true

	if fetch.IsRedirect(resp) {
		// The target is already scheduled or excluded and gets its own outcome
		taskLog.Debugf("Redirect [%d] to %s not followed", resp.StatusCode, resp.Header.Get("Location"))
		e.countResponse()
		logged = true
		return
	}

	base := finalURL(resp, req.URL)
	result := e.classifier.Classify(classify.Response{
		URL:        base,
		Referrer:   req.Referrer,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	})
	if result.Err != nil {
		taskLog.WithField("category", utils.CategorizeError(result.Err)).Debugf("Not mirrored: %v", result.Err)
	}
	source := base.String()
	for link := range result.Links {
		e.enqueue(link, source, req.Depth+1)
	}

	outcome = result.Outcome
	if result.Item != nil {
		if _, err := e.writer.Write(result.Item); err != nil {
			taskLog.WithField("category", utils.CategorizeError(err)).Errorf("Write failed: %v", err)
			outcome.Kind = models.OutcomeInternalError
			outcome.Message = err.Error()
		}
	}
	e.record(outcome, received)
	logged = true
	taskLog.WithField("outcome", outcome.Kind).Debug("Request done")
}

// record logs an outcome, updates the counters and rewrites the progress file
func (e *Engine) record(outcome models.CrawlOutcome, received bool) {
	if outcome.Kind == models.OutcomeInternalError && outcome.Message == "" {
		outcome.Message = "unknown error"
	}
	e.emitter.EmitOutcome(outcome)

	switch outcome.Kind {
	case models.OutcomeSaved:
		e.stats.saved.Add(1)
	case models.OutcomeHTTPError:
		e.stats.httpErrors.Add(1)
	case models.OutcomeForbiddenMime:
		e.stats.forbiddenMimes.Add(1)
	case models.OutcomeInternalError:
		e.stats.internalErrors.Add(1)
	}
	if received {
		e.countResponse()
	}
}

// countResponse bumps the received counter and rewrites the progress file
func (e *Engine) countResponse() {
	e.stats.responses.Add(1)

	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	e.counter++
	if err := WriteProgress(e.cfg.ProgressCounterFile, e.counter); err != nil {
		e.log.Warnf("Updating progress counter: %v", err)
	}
}

// acquire takes the per-host and global semaphores and waits out the host delay.
// The returned release must be called once the fetch is over.
func (e *Engine) acquire(ctx context.Context, host string) (func(), error) {
	if host == "" {
		return func() {}, fmt.Errorf("%w: no host", utils.ErrParsing)
	}
	releaseHost, err := e.hostSems.Acquire(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: host semaphore for '%s': %w", utils.ErrSemaphoreTimeout, host, err)
	}
	if err := e.globalSem.Acquire(ctx, 1); err != nil {
		releaseHost()
		return nil, fmt.Errorf("%w: global semaphore: %w", utils.ErrSemaphoreTimeout, err)
	}
	release := func() {
		e.globalSem.Release(1)
		releaseHost()
	}
	if err := e.rateLimiter.Wait(ctx, host); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// finalURL is the URL a response was served from, used as base for relative links
func finalURL(resp *fetch.Response, requested string) *url.URL {
	if resp != nil && resp.URL != nil {
		return resp.URL
	}
	u, _ := url.Parse(requested)
	return u
}
