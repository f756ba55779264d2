package world

import (
	"fmt"
	"math"

	"github.com/s2go/demos/internal/core/ecs"
	"github.com/s2go/demos/internal/core/event"
	"github.com/s2go/demos/internal/soft2d"
)

// maxSubsteps bounds the work of a single Step when dt is large compared
// to the configured substep.
const maxSubsteps = 64

// Step advances the world by dt seconds in ceil(dt/SubstepDt) substeps.
func (w *World) Step(dt float32) error {
	if dt <= 0 {
		return fmt.Errorf("%g: %w", dt, ErrInvalidStep)
	}
	n := int(math.Ceil(float64(dt / w.cfg.SubstepDt)))
	n = min(max(n, 1), maxSubsteps)
	h := dt / float32(n)

	var removed []bool
	w.bodies.Each(func(_ ecs.EntityID, b *body) {
		if b.dead || !b.active || b.mobility == soft2d.MobilityStatic || len(b.particles) == 0 {
			return
		}
		if cap(removed) < len(b.particles) {
			removed = make([]bool, len(b.particles))
		}
		removed = removed[:len(b.particles)]
		clear(removed)

		gravity := b.mobility == soft2d.MobilityDynamic
		for s := 0; s < n && b.active; s++ {
			w.substep(b, h, gravity, removed)
		}
		if dropped := b.compact(removed); dropped > 0 {
			w.particles -= dropped
			w.particlesRemoved += dropped
		}
		w.checkEmptied(b, event.CauseBoundary)
	})

	w.colliders.Each(func(_ ecs.EntityID, c *collider) {
		if c.kin.Mobility == soft2d.MobilityKinematic {
			c.kin.Center = c.kin.Center.Add(c.kin.LinearVelocity.Scale(dt))
			c.kin.Rotation += c.kin.AngularVelocity * dt
		}
	})

	w.frame++
	return nil
}

func (w *World) substep(b *body, h float32, gravity bool, removed []bool) {
	for i := range b.particles {
		p := &b.particles[i]
		if p.stuck || removed[i] {
			continue
		}
		if gravity {
			p.vel = p.vel.Add(w.cfg.Gravity.Scale(h))
		}
		next := p.pos.Add(p.vel.Scale(h))
		if w.hitsCollider(next) {
			p.stuck = true
			p.vel = soft2d.Vec2{}
			continue
		}
		p.pos = next
		if w.cfg.Contains(next) {
			continue
		}
		switch w.cfg.OutWorldBoundary {
		case soft2d.BoundaryRemoving:
			removed[i] = true
		case soft2d.BoundaryDeactivation:
			b.active = false
			return
		}
	}
}

func (w *World) hitsCollider(p soft2d.Vec2) bool {
	hit := false
	w.colliders.Each(func(id ecs.EntityID, c *collider) {
		if !hit && !w.ent.Pending(id) && c.contains(p) {
			hit = true
		}
	})
	return hit
}

func (w *World) checkEmptied(b *body, cause event.EmptyCause) {
	if b.emptied || len(b.particles) > 0 {
		return
	}
	b.emptied = true
	w.emptied++
	event.Emit(w.bus, event.BodyEmptied{Frame: w.frame, Handle: b.handle, Cause: cause})
}
