package system

import (
	"github.com/s2go/demos/internal/core/event"
	coresys "github.com/s2go/demos/internal/core/system"
)

// EventDispatchSystem delivers the events raised during the previous frame.
// Phase 0 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ int) error {
	s.Flush()
	return nil
}

// Flush delivers everything emitted since the last dispatch. The driver calls
// it once more after the last frame.
func (s *EventDispatchSystem) Flush() {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
