package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s2go/demos/internal/emitter"
	"github.com/s2go/demos/internal/soft2d"
)

const sceneYAML = `
scenes:
  - name: drop
    frames: 120
    dt: 0.004
    world:
      offset: [-0.5, -0.5]
      out_world_boundary: deactivation
    emitters:
      - tag: 3
        material: { type: elastic, density: 1000, youngs_modulus: 10000, poissons_ratio: 0.2 }
        shape: { type: box, half_extent: [0.02, 0.03] }
        kinematics: { center: [0.1, 0.2], velocity: [1, 0], mobility: dynamic }
        begin_frame: 10
        frequency: 5
        lifetime: 30
      - name: plain
        material: { type: fluid }
        shape: { type: circle, radius: 0.01 }
    colliders:
      - name: floor
        shape: { type: box, half_extent: [0.5, 0.01] }
    triggers:
      - name: drain
        shape: { type: circle, radius: 0.1 }
        action: remove_by_tag
        tag: 1
        mask: 0xff
  - name: empty
`

func writeScenes(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSceneTable(t *testing.T) {
	tbl, err := LoadSceneTable(writeScenes(t, sceneYAML))
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Count())
	assert.Equal(t, []string{"drop", "empty"}, tbl.Names())
	assert.Nil(t, tbl.Get("missing"))

	s := tbl.Get("drop")
	require.NotNil(t, s)
	assert.Equal(t, 120, s.Frames)
	require.Len(t, s.Emitters, 2)
	assert.Equal(t, "emitter-0", s.Emitters[0].Name)
	assert.Equal(t, "plain", s.Emitters[1].Name)

	cfg, err := s.World.Apply(soft2d.DefaultWorldConfig())
	require.NoError(t, err)
	assert.Equal(t, soft2d.V2(-0.5, -0.5), cfg.Offset)
	assert.Equal(t, soft2d.BoundaryDeactivation, cfg.OutWorldBoundary)
	assert.Equal(t, soft2d.DefaultWorldConfig().Gravity, cfg.Gravity)

	require.Len(t, s.Triggers, 1)
	assert.Equal(t, uint32(0xff), s.Triggers[0].Mask)
}

func TestEmitterDefConversion(t *testing.T) {
	tbl, err := ParseSceneTable([]byte(sceneYAML))
	require.NoError(t, err)
	s := tbl.Get("drop")

	tmpl, err := s.Emitters[0].Template()
	require.NoError(t, err)
	assert.Equal(t, soft2d.MaterialElastic, tmpl.Material.Type)
	assert.Equal(t, soft2d.ShapeBox, tmpl.Shape.Type)
	assert.Equal(t, soft2d.V2(0.02, 0.03), tmpl.Shape.HalfExtent)
	assert.Equal(t, soft2d.MobilityDynamic, tmpl.Kinematics.Mobility)
	assert.Equal(t, uint32(3), tmpl.Tag)

	opts := s.Emitters[0].Options()
	assert.Equal(t, emitter.Options{BeginFrame: 10, EndFrame: 1000, Frequency: 5, Lifetime: 30}, opts)

	// Unset settings keep the emitter defaults, including an infinite lifetime.
	assert.Equal(t, emitter.DefaultOptions(), s.Emitters[1].Options())

	plain, err := s.Emitters[1].Template()
	require.NoError(t, err)
	assert.Equal(t, soft2d.MobilityStatic, plain.Kinematics.Mobility)
}

func TestFingerprint(t *testing.T) {
	a, err := ParseSceneTable([]byte(sceneYAML))
	require.NoError(t, err)
	b, err := ParseSceneTable([]byte(sceneYAML))
	require.NoError(t, err)
	c, err := ParseSceneTable([]byte(sceneYAML + "\n# edited\n"))
	require.NoError(t, err)

	assert.Len(t, a.Fingerprint(), 64)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestSceneValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "scenes: [{frames: 1}]",
			want: "missing name",
		},
		{
			name: "duplicate scene",
			yaml: "scenes: [{name: a}, {name: a}]",
			want: `duplicate scene "a"`,
		},
		{
			name: "zero frequency",
			yaml: `scenes: [{name: a, emitters: [{material: {type: fluid}, shape: {type: circle, radius: 1}, frequency: 0}]}]`,
			want: emitter.ErrInvalidFrequency.Error(),
		},
		{
			name: "empty window",
			yaml: `scenes: [{name: a, emitters: [{material: {type: fluid}, shape: {type: circle, radius: 1}, begin_frame: 5, end_frame: 5}]}]`,
			want: emitter.ErrEmptyWindow.Error(),
		},
		{
			name: "zero lifetime",
			yaml: `scenes: [{name: a, emitters: [{material: {type: fluid}, shape: {type: circle, radius: 1}, lifetime: 0}]}]`,
			want: emitter.ErrInvalidLifetime.Error(),
		},
		{
			name: "degenerate shape",
			yaml: `scenes: [{name: a, emitters: [{material: {type: fluid}, shape: {type: circle}}]}]`,
			want: soft2d.ErrDegenerateShape.Error(),
		},
		{
			name: "unknown material",
			yaml: `scenes: [{name: a, emitters: [{material: {type: goo}, shape: {type: circle, radius: 1}}]}]`,
			want: `unknown material type "goo"`,
		},
		{
			name: "duplicate emitter",
			yaml: `scenes: [{name: a, emitters: [{name: e, material: {type: fluid}, shape: {type: circle, radius: 1}}, {name: e, material: {type: fluid}, shape: {type: circle, radius: 1}}]}]`,
			want: `duplicate emitter "e"`,
		},
		{
			name: "unknown action",
			yaml: `scenes: [{name: a, triggers: [{name: t, shape: {type: circle, radius: 1}, action: explode}]}]`,
			want: `unknown action "explode"`,
		},
		{
			name: "script without function",
			yaml: `scenes: [{name: a, triggers: [{name: t, shape: {type: circle, radius: 1}, action: script}]}]`,
			want: "script action without function",
		},
		{
			name: "bad boundary policy",
			yaml: `scenes: [{name: a, world: {out_world_boundary: bounce}}]`,
			want: `unknown out-of-world policy "bounce"`,
		},
		{
			name: "short vector",
			yaml: `scenes: [{name: a, world: {offset: [1]}}]`,
			want: "vector needs 2 components",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSceneTable([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShippedScenes(t *testing.T) {
	tbl, err := LoadSceneTable(filepath.Join("..", "..", "data", "yaml", "scenes.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"collision_types", "emitters", "particle_tag", "world_offset"}, tbl.Names())
}
