package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jackzampolin/popsci/internal/task"
)

// Sentinel errors for the pipeline package.
var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrStageNotFound is returned when looking up an unknown stage.
	ErrStageNotFound = errors.New("stage not found")

	// ErrInvalidWeights is returned when stage weights do not sum to 100.
	ErrInvalidWeights = errors.New("stage weights must be positive and sum to 100")
)

// Registry holds the stages in execution order.
type Registry struct {
	mu     sync.RWMutex
	stages map[task.Stage]Stage
	order  []task.Stage // Maintains registration order
}

// NewRegistry creates a registry holding stages, validating names and weights.
func NewRegistry(stages ...Stage) (*Registry, error) {
	r := &Registry{stages: make(map[task.Stage]Stage)}
	for _, s := range stages {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Register appends a stage.
// Returns an error if a stage with the same name is already registered.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Run == nil {
		return fmt.Errorf("stage %q has no run function", s.Name)
	}
	if _, exists := r.stages[s.Name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, s.Name)
	}
	if s.Mode == "" {
		s.Mode = ModeSequential
	}

	r.stages[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name task.Stage) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stages[name]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	return s, nil
}

// List returns all stages in execution order.
func (r *Registry) List() []Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]Stage, 0, len(r.order))
	for _, name := range r.order {
		stages = append(stages, r.stages[name])
	}
	return stages
}

// Names returns all stage names in execution order.
func (r *Registry) Names() []task.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]task.Stage, len(r.order))
	copy(names, r.order)
	return names
}

// Validate checks that every weight is positive and that they sum to 100,
// so progress strictly increases at each stage boundary and ends at 100.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, name := range r.order {
		w := r.stages[name].Weight
		if w <= 0 {
			return fmt.Errorf("%w: %s has weight %d", ErrInvalidWeights, name, w)
		}
		total += w
	}
	if total != 100 {
		return fmt.Errorf("%w: total %d", ErrInvalidWeights, total)
	}
	return nil
}
