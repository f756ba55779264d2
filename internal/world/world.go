// Package world is a headless stand-in for the Soft2D engine. It keeps the
// engine's handle-based contract (bodies, colliders, triggers, step) so the
// demo scenes can run without a GPU. The physics are deliberately naive:
// particles fly ballistically and stick to colliders on contact.
package world

import (
	"errors"
	"fmt"

	"github.com/s2go/demos/internal/core/ecs"
	"github.com/s2go/demos/internal/core/event"
	"github.com/s2go/demos/internal/soft2d"
	"go.uber.org/zap"
)

var (
	ErrUnknownHandle      = errors.New("world: unknown or stale handle")
	ErrAlreadyDestroyed   = errors.New("world: object already destroyed")
	ErrBodyCapacity       = errors.New("world: body capacity exceeded")
	ErrParticleCapacity   = errors.New("world: particle capacity exceeded")
	ErrTriggerCapacity    = errors.New("world: trigger capacity exceeded")
	ErrWorldQueryDisabled = errors.New("world: world query is disabled")
	ErrInvalidStep        = errors.New("world: step dt must be positive")
)

// Stats is a snapshot of the world's counters.
type Stats struct {
	Frame            int
	Bodies           int
	Particles        int
	Colliders        int
	Triggers         int
	Created          int
	Destroyed        int
	Emptied          int
	ParticlesRemoved int
}

// World owns every simulated object. It is not safe for concurrent use.
type World struct {
	cfg soft2d.WorldConfig
	ent *ecs.World

	bodies    *ecs.Store[body]
	colliders *ecs.Store[collider]
	triggers  *ecs.Store[trigger]

	bus *event.Bus
	log *zap.Logger

	frame          int
	particles      int
	nextParticleID uint32

	created          int
	destroyed        int
	emptied          int
	particlesRemoved int
}

// New creates an empty world. bus may be nil when nobody listens for events.
func New(cfg soft2d.WorldConfig, bus *event.Bus, log *zap.Logger) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		cfg:       cfg,
		ent:       ecs.NewWorld(),
		bodies:    ecs.NewStore[body](),
		colliders: ecs.NewStore[collider](),
		triggers:  ecs.NewStore[trigger](),
		bus:       bus,
		log:       log,
	}
	w.ent.Registry().Register(w.bodies)
	w.ent.Registry().Register(w.colliders)
	w.ent.Registry().Register(w.triggers)
	return w, nil
}

func (w *World) Config() soft2d.WorldConfig { return w.cfg }

// Frame is the number of completed steps.
func (w *World) Frame() int { return w.frame }

// SetOffset moves the world rectangle. Objects keep their positions.
func (w *World) SetOffset(offset soft2d.Vec2) { w.cfg.Offset = offset }

// CreateBody builds a body by filling the template's shape with particles.
func (w *World) CreateBody(t soft2d.Template) (soft2d.Handle, error) {
	if err := t.Shape.Validate(); err != nil {
		return soft2d.InvalidHandle, err
	}
	if uint32(w.bodies.Len()) >= w.cfg.MaxBodies {
		return soft2d.InvalidHandle, fmt.Errorf("%d bodies: %w", w.bodies.Len(), ErrBodyCapacity)
	}
	free := int(w.cfg.MaxParticles) - w.particles
	local, ok := sampleShape(t.Shape, w.cfg.CellSize()/2, free)
	if !ok {
		return soft2d.InvalidHandle, fmt.Errorf("%d particles in use, %d free: %w",
			w.particles, max(free, 0), ErrParticleCapacity)
	}

	b := newBody(t, local, &w.nextParticleID)
	id := w.ent.CreateEntity()
	b.handle = soft2d.Handle(id)
	w.bodies.Set(id, b)
	w.particles += len(b.particles)
	w.created++

	event.Emit(w.bus, event.BodyCreated{
		Frame:     w.frame,
		Handle:    b.handle,
		Tag:       t.Tag,
		Particles: len(b.particles),
	})
	w.log.Debug("body created",
		zap.Stringer("handle", b.handle),
		zap.Uint32("tag", t.Tag),
		zap.Int("particles", len(b.particles)),
	)
	return b.handle, nil
}

// DestroyBody queues the body for removal at the end of the frame. Its
// particles stop taking part in the simulation immediately.
func (w *World) DestroyBody(h soft2d.Handle) error {
	id := ecs.EntityID(h)
	b, ok := w.bodies.Get(id)
	if !ok {
		return fmt.Errorf("body %v: %w", h, ErrUnknownHandle)
	}
	if !w.ent.MarkForDestruction(id) {
		return fmt.Errorf("body %v: %w", h, ErrAlreadyDestroyed)
	}
	w.particles -= len(b.particles)
	b.particles = nil
	b.dead = true
	w.destroyed++

	event.Emit(w.bus, event.BodyDestroyed{Frame: w.frame, Handle: h, Tag: b.tag})
	w.log.Debug("body destroyed", zap.Stringer("handle", h))
	return nil
}

// FlushDestroyed releases every object queued for destruction and returns
// how many were released.
func (w *World) FlushDestroyed() int {
	return w.ent.FlushDestroyQueue()
}

// BodyInfo is a read-only view of a body.
type BodyInfo struct {
	Handle    soft2d.Handle
	Tag       uint32
	Particles int
	Active    bool
	Center    soft2d.Vec2 // mean particle position
}

// Body returns a view of a live body.
func (w *World) Body(h soft2d.Handle) (BodyInfo, bool) {
	b, ok := w.bodies.Get(ecs.EntityID(h))
	if !ok || b.dead {
		return BodyInfo{}, false
	}
	return b.info(), true
}

// Bodies visits every live body in unspecified order.
func (w *World) Bodies(fn func(BodyInfo)) {
	w.bodies.Each(func(_ ecs.EntityID, b *body) {
		if !b.dead {
			fn(b.info())
		}
	})
}

func (w *World) Stats() Stats {
	return Stats{
		Frame:            w.frame,
		Bodies:           w.bodies.Len(),
		Particles:        w.particles,
		Colliders:        w.colliders.Len(),
		Triggers:         w.triggers.Len(),
		Created:          w.created,
		Destroyed:        w.destroyed,
		Emptied:          w.emptied,
		ParticlesRemoved: w.particlesRemoved,
	}
}

// CreateCollider adds a static or kinematic obstacle.
func (w *World) CreateCollider(k soft2d.Kinematics, s soft2d.Shape) (soft2d.Handle, error) {
	if err := s.Validate(); err != nil {
		return soft2d.InvalidHandle, err
	}
	id := w.ent.CreateEntity()
	w.colliders.Set(id, &collider{kin: k, shape: s.Clone()})
	return soft2d.Handle(id), nil
}

func (w *World) DestroyCollider(h soft2d.Handle) error {
	return w.destroyObject(h, w.colliders.Has(ecs.EntityID(h)))
}

// CreateTrigger adds a region that can be queried and used to manipulate
// the particles inside it.
func (w *World) CreateTrigger(k soft2d.Kinematics, s soft2d.Shape) (soft2d.Handle, error) {
	if err := s.Validate(); err != nil {
		return soft2d.InvalidHandle, err
	}
	if uint32(w.triggers.Len()) >= w.cfg.MaxTriggers {
		return soft2d.InvalidHandle, ErrTriggerCapacity
	}
	id := w.ent.CreateEntity()
	w.triggers.Set(id, &trigger{kin: k, shape: s.Clone()})
	return soft2d.Handle(id), nil
}

func (w *World) DestroyTrigger(h soft2d.Handle) error {
	return w.destroyObject(h, w.triggers.Has(ecs.EntityID(h)))
}

func (w *World) destroyObject(h soft2d.Handle, known bool) error {
	if !known {
		return fmt.Errorf("object %v: %w", h, ErrUnknownHandle)
	}
	if !w.ent.MarkForDestruction(ecs.EntityID(h)) {
		return fmt.Errorf("object %v: %w", h, ErrAlreadyDestroyed)
	}
	return nil
}
