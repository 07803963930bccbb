package job

import (
	"context"
	"sort"
	"sync"

	"github.com/nao1215/crawlscope/internal/model"
)

// Store persists job records. Implementations must be safe for concurrent
// use and must return copies so callers cannot mutate stored jobs.
type Store interface {
	// Save inserts or replaces the job.
	Save(ctx context.Context, job *model.Job) error
	// Get returns the job or ErrJobNotFound.
	Get(ctx context.Context, id string) (*model.Job, error)
	// Delete removes the job and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns every job ordered by start time.
	List(ctx context.Context) ([]*model.Job, error)
}

// MemoryStore keeps jobs in a map.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sortByStart(jobs)
	return jobs, nil
}

func sortByStart(jobs []*model.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
}
