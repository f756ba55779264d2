// Package scene assembles a runnable demo from a scene definition: the world
// with its colliders and triggers, the emitters, and the systems that drive
// them frame by frame.
package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/s2go/demos/internal/config"
	"github.com/s2go/demos/internal/core/event"
	coresys "github.com/s2go/demos/internal/core/system"
	"github.com/s2go/demos/internal/data"
	"github.com/s2go/demos/internal/emitter"
	"github.com/s2go/demos/internal/scripting"
	"github.com/s2go/demos/internal/system"
	"github.com/s2go/demos/internal/world"
)

// Deps are the optional collaborators of a scene.
type Deps struct {
	Log     *zap.Logger
	Scripts *scripting.Engine  // needed by script triggers and frame hooks
	Journal system.EventWriter // nil disables the journal
	RunID   int64
}

// Scene is a built demo ready to be ticked.
type Scene struct {
	Name   string
	Frames int
	Dt     float32

	World    *world.World
	Bus      *event.Bus
	Runner   *coresys.Runner
	Emitters *system.EmitterSystem
	Triggers *system.TriggerSystem
	Cleanup  *system.CleanupSystem
	Script   *system.ScriptSystem  // nil without a frame hook
	Journal  *system.JournalSystem // nil without a journal

	dispatch *system.EventDispatchSystem
	log      *zap.Logger
}

// Build creates everything def describes on top of the configured world.
func Build(def *data.Scene, cfg *config.Config, deps Deps) (*Scene, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("scene", def.Name))

	wcfg, err := def.World.Apply(cfg.World.Base())
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	bus := event.NewBus()
	w, err := world.New(wcfg, bus, log.Named("world"))
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	s := &Scene{
		Name:     def.Name,
		Frames:   def.Frames,
		Dt:       def.Dt,
		World:    w,
		Bus:      bus,
		Runner:   coresys.NewRunner(),
		Emitters: system.NewEmitterSystem(log),
		Triggers: system.NewTriggerSystem(w, log),
		Cleanup:  system.NewCleanupSystem(w),
		dispatch: system.NewEventDispatchSystem(bus),
		log:      log,
	}
	if cfg.Loop.MaxFrames > 0 {
		s.Frames = cfg.Loop.MaxFrames
	}
	if s.Dt <= 0 {
		s.Dt = cfg.Loop.Dt
	}

	for _, c := range def.Colliders {
		k, shape, err := c.Object()
		if err != nil {
			return nil, fmt.Errorf("collider %q: %w", c.Name, err)
		}
		if _, err := w.CreateCollider(k, shape); err != nil {
			return nil, fmt.Errorf("collider %q: %w", c.Name, err)
		}
	}

	for _, t := range def.Triggers {
		if err := s.addTrigger(t, deps.Scripts); err != nil {
			return nil, fmt.Errorf("trigger %q: %w", t.Name, err)
		}
	}

	for i := range def.Emitters {
		ed := &def.Emitters[i]
		tmpl, err := ed.Template()
		if err != nil {
			return nil, fmt.Errorf("emitter %q: %w", ed.Name, err)
		}
		e, err := emitter.New(w, tmpl, ed.Options())
		if err != nil {
			return nil, fmt.Errorf("emitter %q: %w", ed.Name, err)
		}
		if err := s.Emitters.Add(ed.Name, e); err != nil {
			return nil, err
		}
	}

	if def.FrameHook != "" {
		if deps.Scripts == nil {
			return nil, fmt.Errorf("frame hook %q: no scripts loaded", def.FrameHook)
		}
		hook, err := deps.Scripts.FrameHook(def.FrameHook)
		if err != nil {
			return nil, fmt.Errorf("frame hook: %w", err)
		}
		s.Script = system.NewScriptSystem(hook, s.Emitters, log)
	}

	if deps.Journal != nil {
		interval := cfg.Database.FlushInterval
		s.Journal = system.NewJournalSystem(bus, deps.Journal, deps.RunID, interval, log)
	}

	s.Runner.Register(s.dispatch)
	if s.Script != nil {
		s.Runner.Register(s.Script)
	}
	s.Runner.Register(s.Emitters)
	s.Runner.Register(system.NewStepSystem(w, s.Dt))
	s.Runner.Register(s.Triggers)
	if s.Journal != nil {
		s.Runner.Register(s.Journal)
	}
	s.Runner.Register(s.Cleanup)
	return s, nil
}

func (s *Scene) addTrigger(t data.TriggerDef, scripts *scripting.Engine) error {
	k, shape, err := t.Object()
	if err != nil {
		return err
	}
	h, err := s.World.CreateTrigger(k, shape)
	if err != nil {
		return err
	}
	a := system.TriggerAction{
		Name:   t.Name,
		Handle: h,
		Action: t.Action,
		Tag:    t.Tag,
		Mask:   t.Mask,
	}
	if t.Action == data.ActionScript {
		if scripts == nil {
			return errors.New("no scripts loaded")
		}
		if a.Fn, err = scripts.ParticleFunc(t.Function); err != nil {
			return err
		}
	}
	return s.Triggers.Add(a)
}

// Tick runs one frame.
func (s *Scene) Tick(frame int) error {
	return s.Runner.Tick(frame)
}

// Run ticks frames [0, Frames). With a nil ticks channel frames run back to
// back; otherwise each frame waits for a tick. Run stops early when ctx is
// done. Failed frames are logged and do not stop the run. It returns the
// number of frames run and the combined errors of the frames that failed.
func (s *Scene) Run(ctx context.Context, ticks <-chan time.Time) (int, error) {
	var errs error
	frame := 0
	for ; frame < s.Frames; frame++ {
		if ticks != nil {
			select {
			case <-ticks:
			case <-ctx.Done():
				return frame, errs
			}
		} else if ctx.Err() != nil {
			break
		}
		if err := s.Tick(frame); err != nil {
			s.log.Error("frame failed", zap.Int("frame", frame), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("frame %d: %w", frame, err))
		}
	}
	return frame, errs
}

// Close delivers the events of the last frame and flushes the journal.
func (s *Scene) Close(ctx context.Context) error {
	s.dispatch.Flush()
	if s.Journal != nil {
		return s.Journal.Flush(ctx)
	}
	return nil
}

// Summary is the end-of-run report of a scene.
type Summary struct {
	Frames          int
	Emitters        system.EmitterTotals
	World           world.Stats
	TriggerRemoved  int
	ScriptChanges   int
	JournalWritten  int
	JournalFailures int
	ObjectsReleased int
}

func (s *Scene) Summary(frames int) Summary {
	sum := Summary{
		Frames:          frames,
		Emitters:        s.Emitters.Totals(),
		World:           s.World.Stats(),
		TriggerRemoved:  s.Triggers.Removed(),
		ObjectsReleased: s.Cleanup.Released(),
	}
	if s.Script != nil {
		sum.ScriptChanges = s.Script.Applied()
	}
	if s.Journal != nil {
		sum.JournalWritten = s.Journal.Written()
		sum.JournalFailures = s.Journal.Failures()
	}
	return sum
}
