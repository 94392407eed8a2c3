package task

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Registry maps task ids to their current snapshot.
//
// Each task has a single writer (the worker running it); readers only ever
// see whole snapshots. Implementations must reject updates that Apply rejects.
type Registry interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	UpdateStage(ctx context.Context, id string, u Update) (*Task, error)
	List(ctx context.Context, filter ListFilter) ([]*Task, error)
	Delete(ctx context.Context, id string) error
}

// ListFilter specifies criteria for listing tasks.
type ListFilter struct {
	Status Status // Filter by status (empty = all)
	Limit  int    // Max results (0 = default 100)
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// MemoryRegistry keeps snapshots in process memory. Each task slot is an
// atomic pointer so a reader never blocks the worker writing that task.
type MemoryRegistry struct {
	mu     sync.RWMutex
	slots  map[string]*atomic.Pointer[Task]
	logger *slog.Logger
	now    func() time.Time
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryRegistry{
		slots:  make(map[string]*atomic.Pointer[Task]),
		logger: logger,
		now:    time.Now,
	}
}

// Create stores t. It fails with ErrExists if the id is taken.
func (r *MemoryRegistry) Create(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[t.ID]; ok {
		return ErrExists
	}
	slot := &atomic.Pointer[Task]{}
	slot.Store(t.Clone())
	r.slots[t.ID] = slot

	r.logger.Info("task created", "id", t.ID, "url", t.Request.URL)
	return nil
}

// Get returns a copy of the current snapshot.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Task, error) {
	slot := r.slot(id)
	if slot == nil {
		return nil, ErrNotFound
	}
	return slot.Load().Clone(), nil
}

// UpdateStage applies u and swaps in the new snapshot.
func (r *MemoryRegistry) UpdateStage(_ context.Context, id string, u Update) (*Task, error) {
	slot := r.slot(id)
	if slot == nil {
		return nil, ErrNotFound
	}
	for {
		cur := slot.Load()
		next, err := cur.Apply(u, r.now())
		if err != nil {
			return nil, err
		}
		if slot.CompareAndSwap(cur, next) {
			return next.Clone(), nil
		}
	}
}

// List returns tasks newest first.
func (r *MemoryRegistry) List(_ context.Context, filter ListFilter) ([]*Task, error) {
	r.mu.RLock()
	out := make([]*Task, 0, len(r.slots))
	for _, slot := range r.slots {
		t := slot.Load()
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t.Clone())
	}
	r.mu.RUnlock()

	sortNewestFirst(out)
	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

// Delete removes a task. Deleting an unknown id is not an error.
func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.slots, id)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) slot(id string) *atomic.Pointer[Task] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slots[id]
}

func sortNewestFirst(ts []*Task) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}

var _ Registry = (*MemoryRegistry)(nil)
