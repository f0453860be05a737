package statification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/statifier/pkg/crawler"
	"github.com/Sriram-PR/statifier/pkg/models"
)

// JobStatus represents the current state of a statification job
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true once the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobSnapshot is a point-in-time copy of a job, safe to serialize
type JobSnapshot struct {
	ID           string               `json:"id"`
	Designation  string               `json:"designation"`
	User         string               `json:"user,omitempty"`
	Status       JobStatus            `json:"status"`
	StartedAt    time.Time            `json:"started_at"`
	CompletedAt  time.Time            `json:"completed_at,omitempty"`
	Reason       models.FailureReason `json:"reason,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	Stats        models.CrawlStats    `json:"stats"`
}

// Job is the future of one statification run. It settles exactly once.
type Job struct {
	id          string
	designation string
	user        string
	startedAt   time.Time
	engine      *crawler.Engine
	done        chan struct{}

	mu          sync.Mutex
	status      JobStatus
	completedAt time.Time
	result      crawler.Result
	record      *models.Statification
	err         error
}

func newJob(designation, user string, engine *crawler.Engine) *Job {
	return &Job{
		id:          uuid.New().String(),
		designation: designation,
		user:        user,
		startedAt:   time.Now(),
		engine:      engine,
		done:        make(chan struct{}),
		status:      JobStatusRunning,
	}
}

// ID returns the job identifier
func (j *Job) ID() string { return j.id }

// Done is closed once the job has settled
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job settles. It returns the statified record on success.
func (j *Job) Wait() (*models.Statification, error) {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record, j.err
}

// Status returns a snapshot of the job
func (j *Job) Status() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := JobSnapshot{
		ID:          j.id,
		Designation: j.designation,
		User:        j.user,
		Status:      j.status,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
		Reason:      j.result.Reason,
		Stats:       j.result.Stats,
	}
	if j.status == JobStatusRunning {
		snap.Stats = j.engine.Stats()
	}
	if j.err != nil {
		snap.ErrorMessage = j.err.Error()
	}
	return snap
}

func (j *Job) isRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == JobStatusRunning
}

// settle records the terminal state and wakes waiters
func (j *Job) settle(status JobStatus, result crawler.Result, record *models.Statification, err error) {
	j.mu.Lock()
	j.status = status
	j.completedAt = time.Now()
	j.result = result
	j.record = record
	j.err = err
	j.mu.Unlock()
	close(j.done)
}
