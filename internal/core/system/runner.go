package system

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Runner executes registered systems in phase order once per frame. Systems
// in the same phase keep their registration order.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 8)}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Len is the number of registered systems.
func (r *Runner) Len() int { return len(r.systems) }

// Tick runs every system for frame. A failing system does not stop the
// frame; all errors are returned together.
func (r *Runner) Tick(frame int) error {
	r.ensureSorted()
	var errs error
	for _, s := range r.systems {
		if err := s.Update(frame); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Phase(), err))
		}
	}
	return errs
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, frame int) error {
	r.ensureSorted()
	var errs error
	for _, s := range r.systems {
		if s.Phase() == phase {
			errs = multierr.Append(errs, s.Update(frame))
		}
	}
	return errs
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
