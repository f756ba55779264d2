package system

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	coresys "github.com/s2go/demos/internal/core/system"
	"github.com/s2go/demos/internal/emitter"
	"github.com/s2go/demos/internal/scripting"
)

// ScriptSystem runs the scene's frame hook and applies the emitter changes it
// returns through the emitter setters, so invalid values are rejected rather
// than clamped. Phase 1 (Schedule).
type ScriptSystem struct {
	hook     scripting.FrameHook
	emitters *EmitterSystem
	log      *zap.Logger
	applied  int
}

func NewScriptSystem(hook scripting.FrameHook, emitters *EmitterSystem, log *zap.Logger) *ScriptSystem {
	return &ScriptSystem{hook: hook, emitters: emitters, log: log}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseSchedule }

func (s *ScriptSystem) Update(frame int) error {
	changes, err := s.hook(frame)
	if err != nil {
		return err
	}
	var errs error
	for _, c := range changes {
		e := s.emitters.Get(c.Emitter)
		if e == nil {
			errs = multierr.Append(errs, fmt.Errorf("frame hook: unknown emitter %q", c.Emitter))
			continue
		}
		if err := applyChange(e, c); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("frame hook: emitter %q: %w", c.Emitter, err))
			continue
		}
		s.applied++
		s.log.Debug("emitter settings changed",
			zap.String("emitter", c.Emitter),
			zap.Int("frame", frame),
			zap.Any("options", e.Options()),
		)
	}
	return errs
}

// Applied is the number of changes applied so far.
func (s *ScriptSystem) Applied() int { return s.applied }

// applyChange sets the window first so that a change moving both bounds is
// checked as a whole. Each setter keeps the old value on error.
func applyChange(e *emitter.Emitter, c scripting.EmitterChange) error {
	var errs error
	switch {
	case c.BeginFrame != nil && c.EndFrame != nil:
		errs = multierr.Append(errs, e.SetEmitWindow(*c.BeginFrame, *c.EndFrame))
	case c.BeginFrame != nil:
		errs = multierr.Append(errs, e.SetBeginFrame(*c.BeginFrame))
	case c.EndFrame != nil:
		errs = multierr.Append(errs, e.SetEndFrame(*c.EndFrame))
	}
	if c.Frequency != nil {
		errs = multierr.Append(errs, e.SetFrequency(*c.Frequency))
	}
	if c.Lifetime != nil {
		errs = multierr.Append(errs, e.SetLifetime(*c.Lifetime))
	}
	return errs
}
