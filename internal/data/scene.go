package data

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/s2go/demos/internal/emitter"
	"github.com/s2go/demos/internal/soft2d"
)

// Vec is a 2D vector written as a two-element YAML sequence: [x, y].
type Vec soft2d.Vec2

func (v *Vec) UnmarshalYAML(n *yaml.Node) error {
	var xy []float32
	if err := n.Decode(&xy); err != nil {
		return fmt.Errorf("line %d: vector: %w", n.Line, err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("line %d: vector needs 2 components, got %d", n.Line, len(xy))
	}
	*v = Vec{X: xy[0], Y: xy[1]}
	return nil
}

func (v Vec) MarshalYAML() (any, error) { return []float32{v.X, v.Y}, nil }

func (v Vec) V2() soft2d.Vec2 { return soft2d.Vec2(v) }

// MaterialDef is the YAML form of soft2d.Material.
type MaterialDef struct {
	Type          string  `yaml:"type"`
	Density       float32 `yaml:"density"`
	YoungsModulus float32 `yaml:"youngs_modulus"`
	PoissonsRatio float32 `yaml:"poissons_ratio"`
}

// ShapeDef is the YAML form of soft2d.Shape. Only the fields of Type are read.
type ShapeDef struct {
	Type           string  `yaml:"type"`
	HalfExtent     Vec     `yaml:"half_extent,omitempty"`
	Radius         float32 `yaml:"radius,omitempty"`
	RadiusX        float32 `yaml:"radius_x,omitempty"`
	RadiusY        float32 `yaml:"radius_y,omitempty"`
	RectHalfLength float32 `yaml:"rect_half_length,omitempty"`
	CapRadius      float32 `yaml:"cap_radius,omitempty"`
	Vertices       []Vec   `yaml:"vertices,omitempty"`
}

// KinematicsDef is the YAML form of soft2d.Kinematics.
type KinematicsDef struct {
	Center          Vec     `yaml:"center"`
	Rotation        float32 `yaml:"rotation"`
	LinearVelocity  Vec     `yaml:"velocity"`
	AngularVelocity float32 `yaml:"angular_velocity"`
	Mobility        string  `yaml:"mobility"`
}

// EmitterDef describes one emitter of a scene. Unset end_frame, frequency
// and lifetime keep the values of emitter.DefaultOptions. An explicit zero is
// kept and rejected by validation.
type EmitterDef struct {
	Name       string        `yaml:"name"`
	Tag        uint32        `yaml:"tag"`
	Material   MaterialDef   `yaml:"material"`
	Shape      ShapeDef      `yaml:"shape"`
	Kinematics KinematicsDef `yaml:"kinematics"`
	BeginFrame int           `yaml:"begin_frame"`
	EndFrame   *int          `yaml:"end_frame"`
	Frequency  *int          `yaml:"frequency"`
	Lifetime   *int          `yaml:"lifetime"`
}

// ObjectDef is a collider or a trigger.
type ObjectDef struct {
	Name       string        `yaml:"name"`
	Shape      ShapeDef      `yaml:"shape"`
	Kinematics KinematicsDef `yaml:"kinematics"`
}

// Trigger actions.
const (
	ActionWatch       = "watch"
	ActionRemove      = "remove"
	ActionRemoveByTag = "remove_by_tag"
	ActionScript      = "script"
)

// TriggerDef is a trigger plus what to do with it each frame.
type TriggerDef struct {
	ObjectDef `yaml:",inline"`
	Action    string `yaml:"action"`
	Tag       uint32 `yaml:"tag"`
	Mask      uint32 `yaml:"mask"`
	Function  string `yaml:"function"` // Lua function for ActionScript
}

// WorldDef overrides parts of the configured world. Nil fields keep the
// configured value.
type WorldDef struct {
	Gravity          *Vec    `yaml:"gravity"`
	Offset           *Vec    `yaml:"offset"`
	Extent           *Vec    `yaml:"extent"`
	GridResolution   *uint32 `yaml:"grid_resolution"`
	OutWorldBoundary *string `yaml:"out_world_boundary"`
	EnableWorldQuery *bool   `yaml:"enable_world_query"`
}

// Scene is one runnable demo.
type Scene struct {
	Name      string       `yaml:"name"`
	Frames    int          `yaml:"frames"`
	Dt        float32      `yaml:"dt"`
	World     WorldDef     `yaml:"world"`
	Emitters  []EmitterDef `yaml:"emitters"`
	Colliders []ObjectDef  `yaml:"colliders"`
	Triggers  []TriggerDef `yaml:"triggers"`
	FrameHook string       `yaml:"frame_hook"` // Lua function called every frame
}

type sceneListFile struct {
	Scenes []Scene `yaml:"scenes"`
}

// SceneTable holds every scene of a scene file indexed by name.
type SceneTable struct {
	scenes      map[string]*Scene
	fingerprint string
}

// LoadSceneTable loads and validates scenes from a YAML file.
func LoadSceneTable(path string) (*SceneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene list: %w", err)
	}
	return ParseSceneTable(raw)
}

// ParseSceneTable parses and validates a scene file already in memory.
func ParseSceneTable(raw []byte) (*SceneTable, error) {
	var f sceneListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse scene list: %w", err)
	}
	sum := blake2b.Sum256(raw)
	t := &SceneTable{
		scenes:      make(map[string]*Scene, len(f.Scenes)),
		fingerprint: hex.EncodeToString(sum[:]),
	}
	for i := range f.Scenes {
		s := &f.Scenes[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scene %q: %w", s.Name, err)
		}
		if _, dup := t.scenes[s.Name]; dup {
			return nil, fmt.Errorf("duplicate scene %q", s.Name)
		}
		t.scenes[s.Name] = s
	}
	return t, nil
}

// Get returns a scene by name, or nil if not found.
func (t *SceneTable) Get(name string) *Scene {
	return t.scenes[name]
}

// Names returns the scene names in sorted order.
func (t *SceneTable) Names() []string {
	out := make([]string, 0, len(t.scenes))
	for n := range t.scenes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (t *SceneTable) Count() int {
	return len(t.scenes)
}

// Fingerprint is the hex BLAKE2b-256 digest of the source file.
func (t *SceneTable) Fingerprint() string {
	return t.fingerprint
}

// Validate checks everything that can be checked without a world.
func (s *Scene) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Frames < 0 {
		return fmt.Errorf("frames %d is negative", s.Frames)
	}
	if s.Dt < 0 {
		return fmt.Errorf("dt %g is negative", s.Dt)
	}
	if _, err := s.World.Apply(soft2d.DefaultWorldConfig()); err != nil {
		return err
	}
	names := make(map[string]struct{}, len(s.Emitters))
	for i := range s.Emitters {
		e := &s.Emitters[i]
		if e.Name == "" {
			e.Name = fmt.Sprintf("emitter-%d", i)
		}
		if _, dup := names[e.Name]; dup {
			return fmt.Errorf("duplicate emitter %q", e.Name)
		}
		names[e.Name] = struct{}{}
		if _, err := e.Template(); err != nil {
			return fmt.Errorf("emitter %q: %w", e.Name, err)
		}
		if err := e.Options().Validate(); err != nil {
			return fmt.Errorf("emitter %q: %w", e.Name, err)
		}
	}
	for _, c := range s.Colliders {
		if _, _, err := c.Object(); err != nil {
			return fmt.Errorf("collider %q: %w", c.Name, err)
		}
	}
	for _, tr := range s.Triggers {
		if _, _, err := tr.Object(); err != nil {
			return fmt.Errorf("trigger %q: %w", tr.Name, err)
		}
		switch tr.Action {
		case ActionWatch, ActionRemove, ActionRemoveByTag:
		case ActionScript:
			if tr.Function == "" {
				return fmt.Errorf("trigger %q: script action without function", tr.Name)
			}
		default:
			return fmt.Errorf("trigger %q: unknown action %q", tr.Name, tr.Action)
		}
	}
	return nil
}

// Apply returns base with the scene's overrides.
func (d WorldDef) Apply(base soft2d.WorldConfig) (soft2d.WorldConfig, error) {
	if d.Gravity != nil {
		base.Gravity = d.Gravity.V2()
	}
	if d.Offset != nil {
		base.Offset = d.Offset.V2()
	}
	if d.Extent != nil {
		base.Extent = d.Extent.V2()
	}
	if d.GridResolution != nil {
		base.GridResolution = *d.GridResolution
	}
	if d.OutWorldBoundary != nil {
		p, err := soft2d.ParseBoundaryPolicy(*d.OutWorldBoundary)
		if err != nil {
			return base, err
		}
		base.OutWorldBoundary = p
	}
	if d.EnableWorldQuery != nil {
		base.EnableWorldQuery = *d.EnableWorldQuery
	}
	return base, base.Validate()
}

// Shape converts the definition and validates it.
func (d ShapeDef) Shape() (soft2d.Shape, error) {
	st, err := soft2d.ParseShapeType(d.Type)
	if err != nil {
		return soft2d.Shape{}, err
	}
	var s soft2d.Shape
	switch st {
	case soft2d.ShapeBox:
		s = soft2d.BoxShape(d.HalfExtent.V2())
	case soft2d.ShapeCircle:
		s = soft2d.CircleShape(d.Radius)
	case soft2d.ShapeEllipse:
		s = soft2d.EllipseShape(d.RadiusX, d.RadiusY)
	case soft2d.ShapeCapsule:
		s = soft2d.CapsuleShape(d.RectHalfLength, d.CapRadius)
	case soft2d.ShapePolygon:
		vs := make([]soft2d.Vec2, len(d.Vertices))
		for i, v := range d.Vertices {
			vs[i] = v.V2()
		}
		s = soft2d.PolygonShape(vs)
	}
	return s, s.Validate()
}

// Kinematics converts the definition. An empty mobility means static.
func (d KinematicsDef) Kinematics() (soft2d.Kinematics, error) {
	k := soft2d.Kinematics{
		Center:          d.Center.V2(),
		Rotation:        d.Rotation,
		LinearVelocity:  d.LinearVelocity.V2(),
		AngularVelocity: d.AngularVelocity,
	}
	if d.Mobility != "" {
		m, err := soft2d.ParseMobility(d.Mobility)
		if err != nil {
			return k, err
		}
		k.Mobility = m
	}
	return k, nil
}

// Template converts the emitter's body description.
func (e *EmitterDef) Template() (soft2d.Template, error) {
	mt, err := soft2d.ParseMaterialType(e.Material.Type)
	if err != nil {
		return soft2d.Template{}, err
	}
	shape, err := e.Shape.Shape()
	if err != nil {
		return soft2d.Template{}, err
	}
	kin, err := e.Kinematics.Kinematics()
	if err != nil {
		return soft2d.Template{}, err
	}
	mat := soft2d.Material{
		Type:          mt,
		Density:       e.Material.Density,
		YoungsModulus: e.Material.YoungsModulus,
		PoissonsRatio: e.Material.PoissonsRatio,
	}
	return soft2d.NewTemplate(mat, kin, shape, e.Tag), nil
}

// Options converts the emission settings, filling unset values from
// emitter.DefaultOptions.
func (e *EmitterDef) Options() emitter.Options {
	o := emitter.DefaultOptions()
	o.BeginFrame = e.BeginFrame
	if e.EndFrame != nil {
		o.EndFrame = *e.EndFrame
	}
	if e.Frequency != nil {
		o.Frequency = *e.Frequency
	}
	if e.Lifetime != nil {
		o.Lifetime = *e.Lifetime
	}
	return o
}

// Object converts a collider or trigger definition.
func (d ObjectDef) Object() (soft2d.Kinematics, soft2d.Shape, error) {
	k, err := d.Kinematics.Kinematics()
	if err != nil {
		return k, soft2d.Shape{}, err
	}
	s, err := d.Shape.Shape()
	return k, s, err
}
