package system

// Phase orders systems within a frame.
type Phase int

const (
	PhasePreUpdate  Phase = iota // 0: deliver last frame's events
	PhaseSchedule                // 1: script hooks adjust emitter settings
	PhaseEmit                    // 2: emitters spawn and expire bodies
	PhaseStep                    // 3: advance the world
	PhasePostUpdate              // 4: triggers
	PhasePersist                 // 5: journal flush
	PhaseCleanup                 // 6: destroy queued entities
)

var phaseNames = [...]string{"pre-update", "schedule", "emit", "step", "post-update", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is one unit of per-frame work.
type System interface {
	Phase() Phase
	Update(frame int) error
}
