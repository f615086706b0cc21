package server

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/o2csim/o2csim/internal/model"
	"github.com/o2csim/o2csim/pkg/engine"
	simerrors "github.com/o2csim/o2csim/pkg/errors"
	"github.com/o2csim/o2csim/pkg/validation"
)

// Job status values.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is an asynchronous batch simulation.
type Job struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	StartTime time.Time          `json:"start_time"`
	EndTime   *time.Time         `json:"end_time,omitempty"`
	Progress  Progress           `json:"progress"`
	Items     []engine.BatchItem `json:"items,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Progress tracks batch progress.
type Progress struct {
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// JobStore holds jobs in memory. Running jobs are always kept; finished
// ones are evicted once older than the retention period or when more than
// maxFinished of them are held.
type JobStore struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	retention   time.Duration
	maxFinished int
	now         func() time.Time
}

// NewJobStore creates an empty store. Zero retention or maxFinished
// disables that bound.
func NewJobStore(retention time.Duration, maxFinished int) *JobStore {
	return &JobStore{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		retention:   retention,
		maxFinished: maxFinished,
		now:         time.Now,
	}
}

// Get returns a snapshot of the job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of every job without their items.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		c := *j
		c.Items = nil
		out = append(out, c)
	}
	return out
}

func (s *JobStore) put(job *Job, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.jobs[job.ID] = job
	s.cancels[job.ID] = cancel
}

func (s *JobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

func (s *JobStore) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	if job, ok := s.jobs[id]; ok && job.EndTime == nil {
		now := s.now()
		job.EndTime = &now
	}
	s.evictLocked()
}

// evictLocked drops expired finished jobs, then the oldest finished ones
// beyond maxFinished. Callers hold s.mu.
func (s *JobStore) evictLocked() {
	var finished []*Job
	now := s.now()
	for id, j := range s.jobs {
		if _, running := s.cancels[id]; running || j.EndTime == nil {
			continue
		}
		if s.retention > 0 && now.Sub(*j.EndTime) > s.retention {
			delete(s.jobs, id)
			continue
		}
		finished = append(finished, j)
	}
	if s.maxFinished <= 0 || len(finished) <= s.maxFinished {
		return
	}
	sort.Slice(finished, func(i, k int) bool {
		return finished[i].EndTime.Before(*finished[k].EndTime)
	})
	for _, j := range finished[:len(finished)-s.maxFinished] {
		delete(s.jobs, j.ID)
	}
}

// CancelAll stops every running job.
func (s *JobStore) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
}

// handleJobs creates a job (POST) or lists jobs (GET).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResponse(w, s.jobs.List())
	case http.MethodPost:
		data, ok := s.readBody(w, r)
		if !ok {
			return
		}
		reqs, err := validation.DecodeBatch(data)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		// A running job holds one admission slot until it finishes.
		if !s.admit(w, r) {
			return
		}
		job := s.startJob(reqs)
		w.Header().Set("Location", "/api/jobs/"+job.ID)
		jsonStatus(w, http.StatusAccepted, map[string]string{"job_id": job.ID, "status": job.Status})
	default:
		methodNotAllowed(w)
	}
}

// handleJob serves /api/jobs/{id} and /api/jobs/{id}/events.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		jsonError(w, simerrors.New(simerrors.CodeInvalidRequest, "job id required"), http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		job, ok := s.jobs.Get(id)
		if !ok {
			jsonError(w, simerrors.New(simerrors.CodeInvalidRequest, "job not found").WithContext("job_id", id), http.StatusNotFound)
			return
		}
		jsonResponse(w, job)
	case "events":
		s.broker.SSEHandler(id, func(id string) interface{} {
			if job, ok := s.jobs.Get(id); ok {
				return job
			}
			return nil
		})(w, r)
	default:
		jsonError(w, simerrors.New(simerrors.CodeInvalidRequest, "not found"), http.StatusNotFound)
	}
}

func (s *Server) startJob(reqs []model.SimulateRequest) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobPending,
		StartTime: time.Now(),
		Progress:  Progress{Total: len(reqs)},
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.jobs.put(job, cancel)
	snapshot := *job
	go s.runJob(ctx, job.ID, reqs)
	return &snapshot
}

func (s *Server) runJob(ctx context.Context, id string, reqs []model.SimulateRequest) {
	var err error
	defer func() { s.guard.Release(err == nil) }()
	defer s.jobs.finish(id)
	s.jobs.update(id, func(j *Job) { j.Status = JobRunning })

	tracker := NewProgressTracker(s.broker, id, len(reqs))
	var items []engine.BatchItem
	items, err = s.engine.SimulateBatch(ctx, reqs, func(done, total int) {
		p := Progress{Done: done, Total: total, Percent: float64(done) * 100 / float64(total)}
		s.jobs.update(id, func(j *Job) { j.Progress = p })
		tracker.Update(p)
	})

	now := time.Now()
	if err != nil {
		s.logger.Printf("job %s failed: %v", id, err)
		s.jobs.update(id, func(j *Job) {
			j.Status = JobFailed
			j.Error = err.Error()
			j.EndTime = &now
		})
		tracker.Error(err)
		return
	}
	s.jobs.update(id, func(j *Job) {
		j.Status = JobCompleted
		j.Items = items
		j.EndTime = &now
	})
	tracker.Complete(map[string]interface{}{"job_id": id, "items": len(items)})
}
