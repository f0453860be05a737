// Package statification manages the lifecycle of statification records around crawl runs.
package statification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/config"
	"github.com/Sriram-PR/statifier/pkg/crawler"
	"github.com/Sriram-PR/statifier/pkg/lock"
	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/report"
	"github.com/Sriram-PR/statifier/pkg/storage"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// inProgressCommit is the commit of the statification currently being built
const inProgressCommit = ""

// Status is what callers polling a running statification see
type Status struct {
	Running  bool                  `json:"running"`
	Progress int64                 `json:"progress"`
	Current  *models.Statification `json:"current,omitempty"`
	Job      *JobSnapshot          `json:"job,omitempty"`
}

// Service starts crawls and keeps the statification records in step with them.
// At most one statification runs at a time.
type Service struct {
	cfg   *config.AppConfig
	store storage.StatificationStore
	log   *logrus.Entry
	opts  crawler.Options

	mu      sync.Mutex
	current *Job
	jobs    map[string]*Job
}

// NewService creates a service. opts.TruncateLog is forced on for every run.
func NewService(cfg *config.AppConfig, store storage.StatificationStore, log *logrus.Entry, opts crawler.Options) *Service {
	opts.TruncateLog = true
	return &Service{
		cfg:   cfg,
		store: store,
		log:   log.WithField("component", "statification"),
		opts:  opts,
		jobs:  make(map[string]*Job),
	}
}

// Start creates the in-progress record and launches a crawl. ctx bounds the crawl, not the call.
func (s *Service) Start(ctx context.Context, designation, description, user string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.isRunning() {
		return nil, fmt.Errorf("%w: job %s", utils.ErrAlreadyRunning, s.current.ID())
	}
	locked, err := lock.IsLocked(s.cfg.LockFile)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, fmt.Errorf("%w: %s", utils.ErrLockHeld, s.cfg.LockFile)
	}

	if err := s.store.Delete(inProgressCommit); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	record := &models.Statification{
		Commit:      inProgressCommit,
		Designation: designation,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      models.StatusCreated,
		Historic:    []models.HistoricEntry{{Date: now, User: user, Action: models.ActionCreate}},
	}
	if err := s.store.Put(record); err != nil {
		return nil, err
	}

	engine := crawler.NewEngine(s.cfg, s.log, s.opts)
	if err := engine.Start(ctx); err != nil {
		if delErr := s.store.Delete(inProgressCommit); delErr != nil {
			s.log.Warnf("Removing refused statification record: %v", delErr)
		}
		return nil, err
	}

	job := newJob(designation, user, engine)
	s.current = job
	s.jobs[job.ID()] = job
	s.log.WithFields(logrus.Fields{"job_id": job.ID(), "designation": designation, "user": user}).Info("Statification started")

	go s.watch(job, engine, record)
	return job, nil
}

// watch settles the job once the engine reaches a terminal state
func (s *Service) watch(job *Job, engine *crawler.Engine, record *models.Statification) {
	result := engine.Wait()
	jobLog := s.log.WithFields(logrus.Fields{"job_id": job.ID(), "state": result.State})

	if result.State != models.EngineCompleted {
		if err := s.store.Delete(inProgressCommit); err != nil {
			jobLog.Errorf("Removing failed statification record: %v", err)
		}
		status := JobStatusFailed
		if result.Reason == models.ReasonCancelled {
			status = JobStatusCancelled
		}
		err := result.Err
		if err == nil {
			err = errors.New(string(result.Reason))
		}
		jobLog.Warnf("Statification did not complete: %s", result.Reason)
		job.settle(status, result, nil, fmt.Errorf("statification %s: %w", result.Reason, err))
		return
	}

	if err := s.complete(record); err != nil {
		jobLog.Errorf("Recording statification failed [%s]: %v", utils.CategorizeError(err), err)
		if delErr := s.store.Delete(inProgressCommit); delErr != nil {
			jobLog.Errorf("Removing failed statification record: %v", delErr)
		}
		result.Reason = models.ReasonInternalError
		job.settle(JobStatusFailed, result, nil, err)
		return
	}

	jobLog.WithField("items", record.ItemCount).Info("Statification completed")
	job.settle(JobStatusCompleted, result, record, nil)
}

// complete folds the crawl log and the mirrored file types into the record and marks it statified
func (s *Service) complete(record *models.Statification) error {
	rep, err := report.ParseLogFile(s.cfg.CrawlLogFile)
	if err != nil {
		return err
	}
	scanned, err := report.ScanFileTypes(s.cfg.Site.OutputDir, s.log)
	if err != nil {
		return err
	}
	rep.Apply(record, scanned)
	record.Status = models.StatusStatified
	record.UpdatedAt = time.Now().UTC()
	return s.store.Put(record)
}

// Stop cancels the running statification. It returns false when nothing was running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	job := s.current
	s.mu.Unlock()

	if job == nil || !job.isRunning() {
		return false
	}
	job.engine.Stop()
	return true
}

// Status reports whether a statification is running, its progress counter and its record
func (s *Service) Status() (Status, error) {
	s.mu.Lock()
	job := s.current
	s.mu.Unlock()

	st := Status{Progress: crawler.ReadProgress(s.cfg.ProgressCounterFile)}
	if job != nil {
		snap := job.Status()
		st.Job = &snap
		st.Running = snap.Status == JobStatusRunning
	}

	current, err := s.store.Get(inProgressCommit)
	switch {
	case err == nil:
		st.Current = current
	case !errors.Is(err, utils.ErrNotFound):
		return st, err
	}
	return st, nil
}

// Job returns a job started by this service, or nil
func (s *Service) Job(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Current returns the most recently started job, or nil
func (s *Service) Current() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// List returns every stored statification, most recent first
func (s *Service) List() ([]*models.Statification, error) {
	return s.store.List()
}

// Get returns one statification by commit. The empty commit is the one in progress.
func (s *Service) Get(commit string) (*models.Statification, error) {
	return s.store.Get(commit)
}
