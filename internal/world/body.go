package world

import (
	"math"

	"github.com/s2go/demos/internal/soft2d"
)

type particle struct {
	id    uint32
	pos   soft2d.Vec2
	vel   soft2d.Vec2
	tag   uint32
	stuck bool
}

type body struct {
	handle    soft2d.Handle
	tag       uint32
	mobility  soft2d.Mobility
	particles []particle
	active    bool
	emptied   bool
	dead      bool // destroy requested, waiting for the flush
}

type collider struct {
	kin   soft2d.Kinematics
	shape soft2d.Shape
}

func (c *collider) contains(p soft2d.Vec2) bool {
	return c.shape.ContainsAt(c.kin.Center, c.kin.Rotation, p)
}

type trigger struct {
	kin   soft2d.Kinematics
	shape soft2d.Shape
}

func (t *trigger) contains(p soft2d.Vec2) bool {
	return t.shape.ContainsAt(t.kin.Center, t.kin.Rotation, p)
}

// sampleShape fills s with a square lattice of the given spacing. It gives
// up and returns false as soon as more than limit points would be needed.
// Shapes smaller than one lattice cell still get a single particle at the
// origin.
func sampleShape(s soft2d.Shape, spacing float32, limit int) ([]soft2d.Vec2, bool) {
	if limit < 1 {
		return nil, false
	}
	hb := s.HalfBounds()
	step := float64(spacing)
	cols := int(math.Ceil(2 * float64(hb.X) / step))
	rows := int(math.Ceil(2 * float64(hb.Y) / step))
	if float64(cols)*float64(rows) > float64(limit) &&
		float64(s.Area())/(step*step) > float64(limit) {
		return nil, false
	}

	var out []soft2d.Vec2
	for j := 0; j < rows; j++ {
		y := -hb.Y + (float32(j)+0.5)*spacing
		for i := 0; i < cols; i++ {
			p := soft2d.Vec2{X: -hb.X + (float32(i)+0.5)*spacing, Y: y}
			if !s.Contains(p) {
				continue
			}
			if len(out) == limit {
				return nil, false
			}
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, soft2d.Vec2{})
	}
	return out, true
}

// newBody places the local lattice at the template's pose and gives every
// particle the rigid-body velocity v + w x r.
func newBody(t soft2d.Template, local []soft2d.Vec2, nextID *uint32) *body {
	k := t.Kinematics
	b := &body{
		tag:       t.Tag,
		mobility:  k.Mobility,
		particles: make([]particle, len(local)),
		active:    true,
	}
	for i, l := range local {
		r := soft2d.Rotate(l, k.Rotation)
		*nextID++
		b.particles[i] = particle{
			id:  *nextID,
			pos: k.Center.Add(r),
			vel: k.LinearVelocity.Add(soft2d.Vec2{X: -k.AngularVelocity * r.Y, Y: k.AngularVelocity * r.X}),
			tag: t.Tag,
		}
	}
	if k.Mobility == soft2d.MobilityStatic {
		for i := range b.particles {
			b.particles[i].vel = soft2d.Vec2{}
		}
	}
	return b
}

func (b *body) info() BodyInfo {
	var c soft2d.Vec2
	for _, p := range b.particles {
		c = c.Add(p.pos)
	}
	if n := len(b.particles); n > 0 {
		c = c.Scale(1 / float32(n))
	}
	return BodyInfo{
		Handle:    b.handle,
		Tag:       b.tag,
		Particles: len(b.particles),
		Active:    b.active,
		Center:    c,
	}
}

// compact drops removed particles in place and returns how many were dropped.
func (b *body) compact(removed []bool) int {
	kept := b.particles[:0]
	for i, p := range b.particles {
		if !removed[i] {
			kept = append(kept, p)
		}
	}
	n := len(b.particles) - len(kept)
	b.particles = kept
	return n
}
