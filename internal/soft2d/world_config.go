package soft2d

import (
	"errors"
	"fmt"
)

// OutWorldBoundaryPolicy decides what happens to particles that leave the world.
type OutWorldBoundaryPolicy uint32

const (
	// BoundaryDeactivation freezes the body in place.
	BoundaryDeactivation OutWorldBoundaryPolicy = iota
	// BoundaryRemoving drops the escaping particles, possibly emptying the body.
	BoundaryRemoving
)

func (p OutWorldBoundaryPolicy) String() string {
	switch p {
	case BoundaryDeactivation:
		return "deactivation"
	case BoundaryRemoving:
		return "removing"
	}
	return fmt.Sprintf("OutWorldBoundaryPolicy(%d)", uint32(p))
}

func ParseBoundaryPolicy(s string) (OutWorldBoundaryPolicy, error) {
	switch s {
	case "deactivation":
		return BoundaryDeactivation, nil
	case "removing":
		return BoundaryRemoving, nil
	}
	return 0, fmt.Errorf("unknown out-of-world policy %q", s)
}

// WorldConfig is passed by value to every world; there is no process-wide default.
type WorldConfig struct {
	MaxParticles     uint32
	MaxBodies        uint32
	MaxElements      uint32
	MaxTriggers      uint32
	GridResolution   uint32
	Offset           Vec2 // bottom-left corner
	Extent           Vec2
	SubstepDt        float32
	Gravity          Vec2
	OutWorldBoundary OutWorldBoundaryPolicy
	EnableDebugging  bool
	EnableWorldQuery bool
	FineGridScale    uint32
}

// DefaultWorldConfig returns the configuration shared by the demo scenes.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		MaxParticles:     90000,
		MaxBodies:        10000,
		MaxElements:      10000,
		MaxTriggers:      10000,
		GridResolution:   128,
		Offset:           Vec2{0, 0},
		Extent:           Vec2{1, 1},
		SubstepDt:        1e-4,
		Gravity:          Vec2{0, -9.8},
		OutWorldBoundary: BoundaryRemoving,
		EnableDebugging:  true,
		EnableWorldQuery: false,
		FineGridScale:    4,
	}
}

var ErrInvalidWorldConfig = errors.New("invalid world config")

func (c WorldConfig) Validate() error {
	switch {
	case c.MaxParticles == 0 || c.MaxBodies == 0:
		return fmt.Errorf("zero particle or body capacity: %w", ErrInvalidWorldConfig)
	case c.GridResolution == 0:
		return fmt.Errorf("zero grid resolution: %w", ErrInvalidWorldConfig)
	case c.Extent.X <= 0 || c.Extent.Y <= 0:
		return fmt.Errorf("extent %v: %w", c.Extent, ErrInvalidWorldConfig)
	case c.SubstepDt <= 0:
		return fmt.Errorf("substep dt %g: %w", c.SubstepDt, ErrInvalidWorldConfig)
	}
	return nil
}

// CellSize is the spacing of the background grid along the longer extent.
func (c WorldConfig) CellSize() float32 {
	return max(c.Extent.X, c.Extent.Y) / float32(c.GridResolution)
}

// Contains reports whether p lies inside the world rectangle.
func (c WorldConfig) Contains(p Vec2) bool {
	return p.X >= c.Offset.X && p.Y >= c.Offset.Y &&
		p.X <= c.Offset.X+c.Extent.X && p.Y <= c.Offset.Y+c.Extent.Y
}
