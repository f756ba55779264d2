package system

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	coresys "github.com/s2go/demos/internal/core/system"
	"github.com/s2go/demos/internal/data"
	"github.com/s2go/demos/internal/soft2d"
)

// TriggerWorld is the part of the world triggers act on.
type TriggerWorld interface {
	ManipulateParticlesInTrigger(h soft2d.Handle, fn soft2d.ParticleFunc) (int, error)
	RemoveParticlesInTrigger(h soft2d.Handle) (int, error)
	RemoveParticlesInTriggerByTag(h soft2d.Handle, want, mask uint32) (int, error)
	TriggerOverlapped(h soft2d.Handle) (bool, error)
}

// TriggerAction binds a trigger to what it does each frame.
type TriggerAction struct {
	Name   string
	Handle soft2d.Handle
	Action string // one of the data.Action constants
	Tag    uint32
	Mask   uint32
	Fn     soft2d.ParticleFunc // data.ActionScript only
}

// TriggerStats are the per-trigger counters.
type TriggerStats struct {
	Removed      int // particles removed
	FramesInside int // frames with at least one particle inside (watch only)
}

// TriggerSystem applies every trigger action after the world step.
// Phase 4 (PostUpdate).
type TriggerSystem struct {
	world    TriggerWorld
	actions  []TriggerAction
	stats    map[string]*TriggerStats
	occupied map[string]bool
	log      *zap.Logger
}

func NewTriggerSystem(world TriggerWorld, log *zap.Logger) *TriggerSystem {
	return &TriggerSystem{
		world:    world,
		stats:    make(map[string]*TriggerStats),
		occupied: make(map[string]bool),
		log:      log,
	}
}

// Add registers a trigger action.
func (s *TriggerSystem) Add(a TriggerAction) error {
	if _, dup := s.stats[a.Name]; dup {
		return fmt.Errorf("duplicate trigger %q", a.Name)
	}
	switch a.Action {
	case data.ActionWatch, data.ActionRemove, data.ActionRemoveByTag:
	case data.ActionScript:
		if a.Fn == nil {
			return fmt.Errorf("trigger %q: script action without function", a.Name)
		}
	default:
		return fmt.Errorf("trigger %q: unknown action %q", a.Name, a.Action)
	}
	s.actions = append(s.actions, a)
	s.stats[a.Name] = &TriggerStats{}
	return nil
}

func (s *TriggerSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *TriggerSystem) Update(frame int) error {
	var errs error
	for _, a := range s.actions {
		st := s.stats[a.Name]
		var (
			n   int
			err error
		)
		switch a.Action {
		case data.ActionWatch:
			var inside bool
			inside, err = s.world.TriggerOverlapped(a.Handle)
			if err == nil {
				s.watch(a.Name, frame, inside)
			}
		case data.ActionRemove:
			n, err = s.world.RemoveParticlesInTrigger(a.Handle)
		case data.ActionRemoveByTag:
			n, err = s.world.RemoveParticlesInTriggerByTag(a.Handle, a.Tag, a.Mask)
		case data.ActionScript:
			n, err = s.world.ManipulateParticlesInTrigger(a.Handle, a.Fn)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("trigger %q: %w", a.Name, err))
			continue
		}
		st.Removed += n
	}
	return errs
}

func (s *TriggerSystem) watch(name string, frame int, inside bool) {
	if inside {
		s.stats[name].FramesInside++
	}
	if inside != s.occupied[name] {
		s.occupied[name] = inside
		s.log.Debug("trigger occupancy changed",
			zap.String("trigger", name),
			zap.Int("frame", frame),
			zap.Bool("occupied", inside),
		)
	}
}

// Stats returns a copy of the counters of the named trigger.
func (s *TriggerSystem) Stats(name string) (TriggerStats, bool) {
	st, ok := s.stats[name]
	if !ok {
		return TriggerStats{}, false
	}
	return *st, true
}

// Removed is the number of particles removed by all triggers.
func (s *TriggerSystem) Removed() int {
	n := 0
	for _, st := range s.stats {
		n += st.Removed
	}
	return n
}
