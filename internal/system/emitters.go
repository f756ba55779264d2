package system

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	coresys "github.com/s2go/demos/internal/core/system"
	"github.com/s2go/demos/internal/emitter"
)

// EmitterTotals sums the counters of every emitter.
type EmitterTotals struct {
	Spawned  int
	Expired  int
	Live     int
	Immortal int
	Errors   int
}

// EmitterSystem runs every emitter of the scene once per frame, in the order
// they were added. Factory failures are logged and counted; they do not stop
// the frame. Phase 2 (Emit).
type EmitterSystem struct {
	names    []string
	emitters map[string]*emitter.Emitter
	warned   map[string]bool
	errors   int
	log      *zap.Logger
}

func NewEmitterSystem(log *zap.Logger) *EmitterSystem {
	return &EmitterSystem{
		emitters: make(map[string]*emitter.Emitter),
		warned:   make(map[string]bool),
		log:      log,
	}
}

// Add registers e under a unique name.
func (s *EmitterSystem) Add(name string, e *emitter.Emitter) error {
	if _, dup := s.emitters[name]; dup {
		return fmt.Errorf("duplicate emitter %q", name)
	}
	s.names = append(s.names, name)
	s.emitters[name] = e
	return nil
}

// Get returns the emitter registered under name, or nil.
func (s *EmitterSystem) Get(name string) *emitter.Emitter {
	return s.emitters[name]
}

// Names lists the emitters in registration order.
func (s *EmitterSystem) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *EmitterSystem) Phase() coresys.Phase { return coresys.PhaseEmit }

// Update only returns frame ordering errors, which mean the driver is broken.
func (s *EmitterSystem) Update(frame int) error {
	var fatal error
	for _, name := range s.names {
		e := s.emitters[name]
		err := e.Update(frame)
		if errors.Is(err, emitter.ErrFrameOrder) {
			fatal = multierr.Append(fatal, fmt.Errorf("emitter %q: %w", name, err))
			continue
		}
		for _, fe := range multierr.Errors(err) {
			s.errors++
			s.log.Warn("emitter factory call failed",
				zap.String("emitter", name),
				zap.Int("frame", frame),
				zap.Error(fe),
			)
		}
		if e.Immortal() > 0 && !s.warned[name] {
			s.warned[name] = true
			s.log.Warn("emitter keeps bodies with infinite lifetime; its handle table grows for the whole run",
				zap.String("emitter", name),
				zap.Int("frame", frame),
			)
		}
	}
	return fatal
}

func (s *EmitterSystem) Totals() EmitterTotals {
	t := EmitterTotals{Errors: s.errors}
	for _, e := range s.emitters {
		t.Spawned += e.Spawned()
		t.Expired += e.Expired()
		t.Live += e.Len()
		t.Immortal += e.Immortal()
	}
	return t
}
