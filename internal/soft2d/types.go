// Package soft2d holds the value types exchanged with the physics engine:
// materials, shapes, kinematics, spawn templates and opaque handles.
package soft2d

import "fmt"

// Vec2 is a 2D float vector in world units (meters).
type Vec2 struct {
	X float32
	Y float32
}

func V2(x, y float32) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float32   { return v.X*o.X + v.Y*o.Y }

// MaterialType selects the constitutive model of a body.
type MaterialType uint32

const (
	MaterialFluid MaterialType = iota
	MaterialElastic
	MaterialSnow
	MaterialSand
)

var materialNames = [...]string{"fluid", "elastic", "snow", "sand"}

func (m MaterialType) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return fmt.Sprintf("MaterialType(%d)", uint32(m))
}

// ParseMaterialType maps a scene-file name to a MaterialType.
func ParseMaterialType(s string) (MaterialType, error) {
	for i, n := range materialNames {
		if n == s {
			return MaterialType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown material type %q", s)
}

// Material describes a body's physical properties.
type Material struct {
	Type          MaterialType
	Density       float32 // kg/m^3
	YoungsModulus float32 // MPa
	PoissonsRatio float32
}

// Mobility of a body, collider or trigger.
type Mobility uint32

const (
	MobilityStatic Mobility = iota
	MobilityKinematic
	MobilityDynamic
)

var mobilityNames = [...]string{"static", "kinematic", "dynamic"}

func (m Mobility) String() string {
	if int(m) < len(mobilityNames) {
		return mobilityNames[m]
	}
	return fmt.Sprintf("Mobility(%d)", uint32(m))
}

func ParseMobility(s string) (Mobility, error) {
	for i, n := range mobilityNames {
		if n == s {
			return Mobility(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mobility %q", s)
}

// Kinematics is the initial kinematic state of an object. For bodies it only
// seeds the particles; it has no meaning once the simulation starts.
type Kinematics struct {
	Center          Vec2
	Rotation        float32 // radians
	LinearVelocity  Vec2
	AngularVelocity float32 // radians per second
	Mobility        Mobility
}

// Template describes what an emitter creates. A Template is a value: the
// emitter stores its own copy and never changes it.
type Template struct {
	Material   Material
	Kinematics Kinematics
	Shape      Shape
	Tag        uint32
}

// NewTemplate returns a template owning a private copy of the shape data.
func NewTemplate(m Material, k Kinematics, s Shape, tag uint32) Template {
	return Template{Material: m, Kinematics: k, Shape: s.Clone(), Tag: tag}
}

// Handle is an opaque engine object reference. Zero is never a live object.
type Handle uint64

// InvalidHandle is the null handle.
const InvalidHandle Handle = 0

func (h Handle) Valid() bool { return h != InvalidHandle }

func (h Handle) String() string { return fmt.Sprintf("#%x", uint64(h)) }

// Particle is the view of a single particle handed to manipulation functions.
// Only Tag and Removed are writable; the engine ignores changes to the rest.
type Particle struct {
	ID       uint32
	Position Vec2
	Velocity Vec2
	Tag      uint32
	Removed  bool
}

// ParticleFunc maps a particle to its updated state.
type ParticleFunc func(Particle) Particle

// RemoveParticle marks every particle it sees for removal.
func RemoveParticle(p Particle) Particle {
	p.Removed = true
	return p
}
