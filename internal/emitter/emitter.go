// Package emitter implements the periodic body emitter used by the demo
// scenes. Once per frame an Emitter may create one body from its template,
// counts down the lifetime of every body it created, and destroys those whose
// lifetime has run out.
//
// An Emitter is not safe for concurrent use. Update must be called from the
// frame loop, once per frame, with strictly increasing frame numbers, and
// must not be re-entered from the Factory.
package emitter

import (
	"errors"
	"fmt"

	"github.com/s2go/demos/internal/soft2d"
	"go.uber.org/multierr"
)

// Infinite is the lifetime of bodies that are never destroyed by the emitter.
const Infinite = -1

var (
	ErrInvalidFrequency = errors.New("emitter: frequency must be positive")
	ErrEmptyWindow      = errors.New("emitter: emission window is empty")
	ErrInvalidLifetime  = errors.New("emitter: lifetime must be positive or Infinite")
	ErrInvalidHandle    = errors.New("emitter: factory returned an invalid handle")
	ErrFrameOrder       = errors.New("emitter: frame did not advance")
)

// Factory creates and destroys bodies on behalf of an emitter.
type Factory interface {
	CreateBody(t soft2d.Template) (soft2d.Handle, error)
	DestroyBody(h soft2d.Handle) error
}

// Options are the emission settings. The window is the half-open frame range
// [BeginFrame, EndFrame); within it a body is emitted every Frequency frames.
type Options struct {
	BeginFrame int
	EndFrame   int
	Frequency  int
	Lifetime   int // frames, or Infinite
}

func DefaultOptions() Options {
	return Options{
		BeginFrame: 0,
		EndFrame:   1000,
		Frequency:  50,
		Lifetime:   Infinite,
	}
}

func (o Options) Validate() error {
	if err := validateWindow(o.BeginFrame, o.EndFrame); err != nil {
		return err
	}
	if err := validateFrequency(o.Frequency); err != nil {
		return err
	}
	return validateLifetime(o.Lifetime)
}

func validateWindow(begin, end int) error {
	if end <= begin {
		return fmt.Errorf("[%d, %d): %w", begin, end, ErrEmptyWindow)
	}
	return nil
}

func validateFrequency(n int) error {
	if n <= 0 {
		return fmt.Errorf("%d: %w", n, ErrInvalidFrequency)
	}
	return nil
}

// A lifetime of 0 would count past zero on the first decrement and never
// expire, so it is rejected along with every negative value but Infinite.
func validateLifetime(n int) error {
	if n == 0 || n < Infinite {
		return fmt.Errorf("%d: %w", n, ErrInvalidLifetime)
	}
	return nil
}

// Emitter spawns bodies from a template on a fixed frame cadence and destroys
// them when their lifetime runs out.
type Emitter struct {
	factory  Factory
	template soft2d.Template
	opts     Options

	lifetimes map[soft2d.Handle]int
	expired   []soft2d.Handle // scratch, reused across frames

	lastFrame int
	started   bool

	spawned  int
	expiries int
	immortal int
}

// New returns an emitter for template t. The template is copied.
func New(f Factory, t soft2d.Template, opts Options) (*Emitter, error) {
	if f == nil {
		return nil, errors.New("emitter: nil factory")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Emitter{
		factory:   f,
		template:  soft2d.NewTemplate(t.Material, t.Kinematics, t.Shape, t.Tag),
		opts:      opts,
		lifetimes: make(map[soft2d.Handle]int),
	}, nil
}

// SetEmitWindow sets the window to [begin, end).
func (e *Emitter) SetEmitWindow(begin, end int) error {
	if err := validateWindow(begin, end); err != nil {
		return err
	}
	e.opts.BeginFrame, e.opts.EndFrame = begin, end
	return nil
}

func (e *Emitter) SetBeginFrame(frame int) error {
	return e.SetEmitWindow(frame, e.opts.EndFrame)
}

func (e *Emitter) SetEndFrame(frame int) error {
	return e.SetEmitWindow(e.opts.BeginFrame, frame)
}

func (e *Emitter) SetFrequency(n int) error {
	if err := validateFrequency(n); err != nil {
		return err
	}
	e.opts.Frequency = n
	return nil
}

// SetLifetime applies to bodies emitted from the next Update on. Bodies
// already tracked keep their remaining count.
func (e *Emitter) SetLifetime(n int) error {
	if err := validateLifetime(n); err != nil {
		return err
	}
	e.opts.Lifetime = n
	return nil
}

// Armed reports whether Update(frame) would emit a body.
func (e *Emitter) Armed(frame int) bool {
	o := e.opts
	return o.BeginFrame <= frame && frame < o.EndFrame &&
		(frame-o.BeginFrame)%o.Frequency == 0
}

// Update advances the emitter by one frame.
//
// A Factory failure does not stop the frame: a body that failed to be created
// is not tracked, every tracked lifetime is still counted down, and every
// expired body is still released. The failures are returned together.
func (e *Emitter) Update(frame int) error {
	if e.started && frame <= e.lastFrame {
		return fmt.Errorf("frame %d after %d: %w", frame, e.lastFrame, ErrFrameOrder)
	}
	e.started, e.lastFrame = true, frame

	var errs error
	if e.Armed(frame) {
		errs = e.emit()
	}

	e.expired = e.expired[:0]
	for h, left := range e.lifetimes {
		if left == Infinite {
			continue
		}
		left--
		if left == 0 {
			e.expired = append(e.expired, h)
			continue
		}
		e.lifetimes[h] = left
	}
	for _, h := range e.expired {
		delete(e.lifetimes, h)
	}
	e.expiries += len(e.expired)
	for _, h := range e.expired {
		if err := e.factory.DestroyBody(h); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("destroy %v: %w", h, err))
		}
	}
	return errs
}

func (e *Emitter) emit() error {
	h, err := e.factory.CreateBody(e.template)
	if err != nil {
		return fmt.Errorf("create body: %w", err)
	}
	if !h.Valid() {
		return ErrInvalidHandle
	}
	e.lifetimes[h] = e.opts.Lifetime
	e.spawned++
	if e.opts.Lifetime == Infinite {
		e.immortal++
	}
	return nil
}

// Template returns the emitter's template.
func (e *Emitter) Template() soft2d.Template {
	t := e.template
	return soft2d.NewTemplate(t.Material, t.Kinematics, t.Shape, t.Tag)
}

func (e *Emitter) Options() Options { return e.opts }

// Len is the number of tracked bodies.
func (e *Emitter) Len() int { return len(e.lifetimes) }

// Remaining returns the frames left for h, or Infinite.
func (e *Emitter) Remaining(h soft2d.Handle) (int, bool) {
	n, ok := e.lifetimes[h]
	return n, ok
}

// Handles returns the tracked handles in unspecified order.
func (e *Emitter) Handles() []soft2d.Handle {
	out := make([]soft2d.Handle, 0, len(e.lifetimes))
	for h := range e.lifetimes {
		out = append(out, h)
	}
	return out
}

// Immortal is the number of tracked bodies with an Infinite lifetime. These
// are never released by the emitter.
func (e *Emitter) Immortal() int { return e.immortal }

// Spawned is the number of bodies created since New.
func (e *Emitter) Spawned() int { return e.spawned }

// Expired is the number of bodies released since New.
func (e *Emitter) Expired() int { return e.expiries }
