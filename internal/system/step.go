package system

import (
	coresys "github.com/s2go/demos/internal/core/system"
)

// Stepper advances a simulation by dt seconds.
type Stepper interface {
	Step(dt float32) error
}

// StepSystem steps the world once per frame with a fixed dt.
// Phase 3 (Step).
type StepSystem struct {
	world Stepper
	dt    float32
}

func NewStepSystem(world Stepper, dt float32) *StepSystem {
	return &StepSystem{world: world, dt: dt}
}

func (s *StepSystem) Phase() coresys.Phase { return coresys.PhaseStep }

func (s *StepSystem) Update(_ int) error {
	return s.world.Step(s.dt)
}
