// Package watch re-runs the statification of the configured site on a fixed interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/statification"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// Service is the part of statification.Service the scheduler drives
type Service interface {
	Start(ctx context.Context, designation, description, user string) (*statification.Job, error)
	List() ([]*models.Statification, error)
}

// Scheduler starts a statification whenever the newest stored one is older than the interval
type Scheduler struct {
	service     Service
	interval    time.Duration
	tick        time.Duration
	designation string
	log         *logrus.Entry

	mu      sync.Mutex
	current *statification.Job
}

// NewScheduler creates a new watch scheduler. Scheduled snapshots are named after designation and their start time.
func NewScheduler(service Service, interval time.Duration, designation string, log *logrus.Entry) *Scheduler {
	if designation == "" {
		designation = "Scheduled statification"
	}
	return &Scheduler{
		service:     service,
		interval:    interval,
		tick:        calculateTickInterval(interval),
		designation: designation,
		log:         log.WithField("component", "watch"),
	}
}

// Run checks the schedule until ctx is cancelled, then waits for a started statification to settle
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infof("Starting watch mode with interval %s", FormatInterval(s.interval))

	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			s.waitCurrent()
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue starts a statification if one is due and none is running
func (s *Scheduler) runDue(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		select {
		case <-s.current.Done():
			s.logOutcome(s.current)
			s.current = nil
		default:
			return
		}
	}

	next, err := s.NextRun()
	if err != nil {
		s.log.Errorf("Reading statification history: %v", err)
		return
	}
	if wait := time.Until(next); wait > 0 {
		s.log.Debugf("Next statification in %v (at %s)", wait.Round(time.Second), next.Format("15:04:05"))
		return
	}

	designation := fmt.Sprintf("%s %s", s.designation, time.Now().Format("2006-01-02 15:04"))
	job, err := s.service.Start(ctx, designation, "Started by the watch scheduler", "watch")
	switch {
	case errors.Is(err, utils.ErrAlreadyRunning), errors.Is(err, utils.ErrLockHeld):
		s.log.Infof("Statification due but another one is running, retrying in %v", s.tick)
		return
	case err != nil:
		s.log.Errorf("Scheduled statification refused [%s]: %v", utils.CategorizeError(err), err)
		return
	}
	s.log.WithField("job_id", job.ID()).Infof("Scheduled statification '%s' started", designation)
	s.current = job
}

// NextRun returns when the next statification is due. A site never statified is due now.
func (s *Scheduler) NextRun() (time.Time, error) {
	records, err := s.service.List()
	if err != nil {
		return time.Time{}, err
	}
	if len(records) == 0 {
		return time.Now(), nil
	}
	return records[0].CreatedAt.Add(s.interval), nil
}

func (s *Scheduler) waitCurrent() {
	s.mu.Lock()
	job := s.current
	s.mu.Unlock()
	if job == nil {
		return
	}
	<-job.Done()
	s.logOutcome(job)
}

func (s *Scheduler) logOutcome(job *statification.Job) {
	snap := job.Status()
	entry := s.log.WithFields(logrus.Fields{"job_id": snap.ID, "status": snap.Status})
	if snap.ErrorMessage != "" {
		entry.Warnf("Scheduled statification ended: %s", snap.ErrorMessage)
		return
	}
	entry.Infof("Scheduled statification ended, %d file(s) saved", snap.Stats.Saved)
}

// calculateTickInterval returns how often to check the schedule
func calculateTickInterval(interval time.Duration) time.Duration {
	// Check at least every minute, or every 1/10th of the interval
	return min(max(interval/10, time.Minute), 10*time.Minute)
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
