// Package job tracks asynchronous API work such as backtest runs.
package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tradelab/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Done reports whether the job has finished.
func (s Status) Done() bool {
	return s == StatusComplete || s == StatusFailed
}

// Job represents an async job.
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Status    Status      `json:"status"`
	Progress  int         `json:"progress"`
	Result    any         `json:"result,omitempty"`
	Error     *core.Error `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store keeps jobs in memory. Finished jobs expire after ttl and the oldest
// job is evicted once maxSize is reached.
type Store struct {
	jobs    map[string]*Job
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a new job store.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create creates a new pending job and returns a copy of it.
func (s *Store) Create(jobType string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()

	now := s.now()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(s.order) >= s.maxSize {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	return *job
}

// Get retrieves a copy of a job by ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok || s.expired(job) {
		return Job{}, core.WrapError(core.ErrJobNotFound, fmt.Errorf("job %s", id))
	}
	return *job, nil
}

// Update modifies a job using an update function.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.WrapError(core.ErrJobNotFound, fmt.Errorf("job %s", id))
	}

	fn(job)
	job.UpdatedAt = s.now()
	return nil
}

// List returns all live jobs, oldest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		if job := s.jobs[id]; !s.expired(job) {
			result = append(result, *job)
		}
	}
	return result
}

// Active counts jobs that have not finished.
func (s *Store) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if !job.Status.Done() {
			n++
		}
	}
	return n
}

func (s *Store) expired(job *Job) bool {
	return s.ttl > 0 && job.Status.Done() && s.now().Sub(job.UpdatedAt) > s.ttl
}

func (s *Store) pruneLocked() {
	kept := s.order[:0]
	for _, id := range s.order {
		if s.expired(s.jobs[id]) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
