package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

type record struct {
	level   logrus.Level
	message string
}

// Emitter owns the crawl log file. Events are queued on a channel and written
// by a single goroutine, so callers never block on disk I/O beyond the buffer.
type Emitter struct {
	records chan record
	done    chan struct{}
	file    *os.File
	out     *logrus.Logger
	log     *logrus.Entry

	mu     sync.RWMutex
	closed bool
}

// OpenEmitter opens (creating if needed) the crawl log at path and starts the writer goroutine.
// When truncate is true, any previous content is discarded.
func OpenEmitter(path string, truncate bool, log *logrus.Entry) (*Emitter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating log directory for '%s': %w", utils.ErrFilesystem, path, err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening crawl log '%s': %w", utils.ErrFilesystem, path, err)
	}

	out := logrus.New()
	out.SetOutput(f)
	out.SetFormatter(LineFormatter{})
	out.SetLevel(logrus.InfoLevel)

	e := &Emitter{
		records: make(chan record, 1024),
		done:    make(chan struct{}),
		file:    f,
		out:     out,
		log:     log,
	}
	go e.run()
	return e, nil
}

// SetDebug makes the log file also record saved items
func (e *Emitter) SetDebug(on bool) {
	if on {
		e.out.SetLevel(logrus.DebugLevel)
	} else {
		e.out.SetLevel(logrus.InfoLevel)
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for r := range e.records {
		e.out.Log(r.level, r.message)
	}
}

func (e *Emitter) emit(level logrus.Level, message string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.log.Debugf("Dropping log record after close: %s", message)
		return
	}
	e.records <- record{level: level, message: message}
}

// EmitOutcome logs the terminal outcome of one request
func (e *Emitter) EmitOutcome(outcome models.CrawlOutcome) {
	level, msg := OutcomeLine(outcome)
	e.emit(level, msg)
}

// EmitExternalLink implements extract.ExternalLinkEmitter
func (e *Emitter) EmitExternalLink(ev models.ExternalLinkEvent) {
	e.emit(logrus.InfoLevel, ExternalLinkMessage(ev.Target, ev.Source))
}

// EmitStats logs a crawl statistics line
func (e *Emitter) EmitStats(stats models.CrawlStats) {
	e.emit(logrus.InfoLevel, StatsMessage(stats))
}

// EmitError logs an error not tied to a single request
func (e *Emitter) EmitError(err error) {
	e.emit(logrus.ErrorLevel, err.Error())
}

// Info logs a free-form informational line
func (e *Emitter) Info(format string, args ...any) {
	e.emit(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Close stops accepting records, waits for queued ones to be written and closes the file.
// Safe to call more than once.
func (e *Emitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.records)
	e.mu.Unlock()

	<-e.done
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("%w: closing crawl log: %w", utils.ErrFilesystem, err)
	}
	return nil
}
