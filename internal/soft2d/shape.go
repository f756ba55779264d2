package soft2d

import (
	"errors"
	"fmt"
	"math"
)

// ShapeType enumerates the predefined shapes.
type ShapeType uint32

const (
	ShapeBox ShapeType = iota
	ShapeCircle
	ShapeEllipse
	ShapeCapsule
	ShapePolygon
)

var shapeNames = [...]string{"box", "circle", "ellipse", "capsule", "polygon"}

func (s ShapeType) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("ShapeType(%d)", uint32(s))
}

func ParseShapeType(s string) (ShapeType, error) {
	for i, n := range shapeNames {
		if n == s {
			return ShapeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown shape type %q", s)
}

// ErrDegenerateShape is returned for shapes without area.
var ErrDegenerateShape = errors.New("degenerate shape")

// Shape is a tagged union of the predefined shapes. Only the fields that
// belong to Type are meaningful. Coordinates are in the shape's local frame.
type Shape struct {
	Type ShapeType

	HalfExtent Vec2 // box

	Radius float32 // circle

	RadiusX float32 // ellipse
	RadiusY float32

	RectHalfLength float32 // capsule, lying along the x-axis
	CapRadius      float32

	Vertices []Vec2 // polygon, counter-clockwise
}

func BoxShape(halfExtent Vec2) Shape {
	return Shape{Type: ShapeBox, HalfExtent: halfExtent}
}

func CircleShape(radius float32) Shape {
	return Shape{Type: ShapeCircle, Radius: radius}
}

func EllipseShape(rx, ry float32) Shape {
	return Shape{Type: ShapeEllipse, RadiusX: rx, RadiusY: ry}
}

func CapsuleShape(rectHalfLength, capRadius float32) Shape {
	return Shape{Type: ShapeCapsule, RectHalfLength: rectHalfLength, CapRadius: capRadius}
}

// PolygonShape copies vertices so later edits by the caller do not leak in.
func PolygonShape(vertices []Vec2) Shape {
	return Shape{Type: ShapePolygon, Vertices: append([]Vec2(nil), vertices...)}
}

// Clone returns a deep copy.
func (s Shape) Clone() Shape {
	if s.Vertices != nil {
		s.Vertices = append([]Vec2(nil), s.Vertices...)
	}
	return s
}

// Validate rejects shapes with no interior.
func (s Shape) Validate() error {
	switch s.Type {
	case ShapeBox:
		if s.HalfExtent.X <= 0 || s.HalfExtent.Y <= 0 {
			return fmt.Errorf("box half extent %v: %w", s.HalfExtent, ErrDegenerateShape)
		}
	case ShapeCircle:
		if s.Radius <= 0 {
			return fmt.Errorf("circle radius %g: %w", s.Radius, ErrDegenerateShape)
		}
	case ShapeEllipse:
		if s.RadiusX <= 0 || s.RadiusY <= 0 {
			return fmt.Errorf("ellipse radii %g,%g: %w", s.RadiusX, s.RadiusY, ErrDegenerateShape)
		}
	case ShapeCapsule:
		if s.CapRadius <= 0 || s.RectHalfLength < 0 {
			return fmt.Errorf("capsule %g,%g: %w", s.RectHalfLength, s.CapRadius, ErrDegenerateShape)
		}
	case ShapePolygon:
		if len(s.Vertices) < 3 || s.Area() <= 0 {
			return fmt.Errorf("polygon with %d vertices: %w", len(s.Vertices), ErrDegenerateShape)
		}
	default:
		return fmt.Errorf("shape type %v: %w", s.Type, ErrDegenerateShape)
	}
	return nil
}

// Area in square meters.
func (s Shape) Area() float32 {
	switch s.Type {
	case ShapeBox:
		return 4 * s.HalfExtent.X * s.HalfExtent.Y
	case ShapeCircle:
		return math.Pi * s.Radius * s.Radius
	case ShapeEllipse:
		return math.Pi * s.RadiusX * s.RadiusY
	case ShapeCapsule:
		return 4*s.RectHalfLength*s.CapRadius + math.Pi*s.CapRadius*s.CapRadius
	case ShapePolygon:
		// shoelace; positive for counter-clockwise winding
		var a float32
		n := len(s.Vertices)
		for i := 0; i < n; i++ {
			p, q := s.Vertices[i], s.Vertices[(i+1)%n]
			a += p.X*q.Y - q.X*p.Y
		}
		return a / 2
	}
	return 0
}

// HalfBounds returns the half size of the local axis-aligned bounding box,
// centred on the origin.
func (s Shape) HalfBounds() Vec2 {
	switch s.Type {
	case ShapeBox:
		return s.HalfExtent
	case ShapeCircle:
		return Vec2{s.Radius, s.Radius}
	case ShapeEllipse:
		return Vec2{s.RadiusX, s.RadiusY}
	case ShapeCapsule:
		return Vec2{s.RectHalfLength + s.CapRadius, s.CapRadius}
	case ShapePolygon:
		var b Vec2
		for _, v := range s.Vertices {
			b.X = max(b.X, abs32(v.X))
			b.Y = max(b.Y, abs32(v.Y))
		}
		return b
	}
	return Vec2{}
}

// Contains reports whether the local-frame point p lies inside the shape.
func (s Shape) Contains(p Vec2) bool {
	switch s.Type {
	case ShapeBox:
		return abs32(p.X) <= s.HalfExtent.X && abs32(p.Y) <= s.HalfExtent.Y
	case ShapeCircle:
		return p.Dot(p) <= s.Radius*s.Radius
	case ShapeEllipse:
		nx, ny := p.X/s.RadiusX, p.Y/s.RadiusY
		return nx*nx+ny*ny <= 1
	case ShapeCapsule:
		x := p.X
		if x > s.RectHalfLength {
			x -= s.RectHalfLength
		} else if x < -s.RectHalfLength {
			x += s.RectHalfLength
		} else {
			x = 0
		}
		return x*x+p.Y*p.Y <= s.CapRadius*s.CapRadius
	case ShapePolygon:
		return polygonContains(s.Vertices, p)
	}
	return false
}

// ContainsAt tests p against the shape placed at center with the given rotation.
func (s Shape) ContainsAt(center Vec2, rotation float32, p Vec2) bool {
	return s.Contains(Rotate(p.Sub(center), -rotation))
}

// Rotate rotates v counter-clockwise by angle radians.
func Rotate(v Vec2, angle float32) Vec2 {
	if angle == 0 {
		return v
	}
	sin, cos := math.Sincos(float64(angle))
	s, c := float32(sin), float32(cos)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

func polygonContains(vs []Vec2, p Vec2) bool {
	in := false
	for i, j := 0, len(vs)-1; i < len(vs); j, i = i, i+1 {
		a, b := vs[i], vs[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
