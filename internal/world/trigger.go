package world

import (
	"fmt"

	"github.com/s2go/demos/internal/core/ecs"
	"github.com/s2go/demos/internal/core/event"
	"github.com/s2go/demos/internal/soft2d"
)

func (w *World) trigger(h soft2d.Handle) (*trigger, error) {
	if !w.cfg.EnableWorldQuery {
		return nil, ErrWorldQueryDisabled
	}
	id := ecs.EntityID(h)
	t, ok := w.triggers.Get(id)
	if !ok || w.ent.Pending(id) {
		return nil, fmt.Errorf("trigger %v: %w", h, ErrUnknownHandle)
	}
	return t, nil
}

// ManipulateParticlesInTrigger passes every particle inside the trigger to fn
// and applies the returned Tag and Removed fields. It returns the number of
// particles removed.
func (w *World) ManipulateParticlesInTrigger(h soft2d.Handle, fn soft2d.ParticleFunc) (int, error) {
	t, err := w.trigger(h)
	if err != nil {
		return 0, err
	}
	total := 0
	var removed []bool
	w.bodies.Each(func(_ ecs.EntityID, b *body) {
		if b.dead || len(b.particles) == 0 {
			return
		}
		if cap(removed) < len(b.particles) {
			removed = make([]bool, len(b.particles))
		}
		removed = removed[:len(b.particles)]
		clear(removed)
		touched := false
		for i := range b.particles {
			p := &b.particles[i]
			if !t.contains(p.pos) {
				continue
			}
			out := fn(soft2d.Particle{ID: p.id, Position: p.pos, Velocity: p.vel, Tag: p.tag})
			p.tag = out.Tag
			if out.Removed {
				removed[i] = true
				touched = true
			}
		}
		if !touched {
			return
		}
		n := b.compact(removed)
		total += n
		w.particles -= n
		w.particlesRemoved += n
		w.checkEmptied(b, event.CauseTrigger)
	})
	return total, nil
}

func (w *World) RemoveParticlesInTrigger(h soft2d.Handle) (int, error) {
	return w.ManipulateParticlesInTrigger(h, soft2d.RemoveParticle)
}

// RemoveParticlesInTriggerByTag removes particles in the trigger for which
// (tag & mask) == want.
func (w *World) RemoveParticlesInTriggerByTag(h soft2d.Handle, want, mask uint32) (int, error) {
	return w.ManipulateParticlesInTrigger(h, func(p soft2d.Particle) soft2d.Particle {
		if p.Tag&mask == want {
			p.Removed = true
		}
		return p
	})
}

// TriggerOverlapped reports whether any live particle is inside the trigger.
func (w *World) TriggerOverlapped(h soft2d.Handle) (bool, error) {
	t, err := w.trigger(h)
	if err != nil {
		return false, err
	}
	hit := false
	w.bodies.Each(func(_ ecs.EntityID, b *body) {
		if hit || b.dead {
			return
		}
		for _, p := range b.particles {
			if t.contains(p.pos) {
				hit = true
				return
			}
		}
	})
	return hit, nil
}
