package system

import (
	coresys "github.com/s2go/demos/internal/core/system"
)

// Flusher releases objects queued for destruction.
type Flusher interface {
	FlushDestroyed() int
}

// CleanupSystem flushes the deferred destruction queue at frame end.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	world    Flusher
	released int
}

func NewCleanupSystem(world Flusher) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ int) error {
	s.released += s.world.FlushDestroyed()
	return nil
}

// Released is the total number of objects released so far.
func (s *CleanupSystem) Released() int { return s.released }
