package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/s2go/demos/internal/core/event"
	coresys "github.com/s2go/demos/internal/core/system"
	"github.com/s2go/demos/internal/data"
	"github.com/s2go/demos/internal/emitter"
	"github.com/s2go/demos/internal/persist"
	"github.com/s2go/demos/internal/scripting"
	"github.com/s2go/demos/internal/soft2d"
	"github.com/s2go/demos/internal/world"
)

type countingFactory struct {
	next      soft2d.Handle
	destroyed []soft2d.Handle
	createErr error
}

func (f *countingFactory) CreateBody(soft2d.Template) (soft2d.Handle, error) {
	if f.createErr != nil {
		return soft2d.InvalidHandle, f.createErr
	}
	f.next++
	return f.next, nil
}

func (f *countingFactory) DestroyBody(h soft2d.Handle) error {
	f.destroyed = append(f.destroyed, h)
	return nil
}

func testTemplate(center soft2d.Vec2, tag uint32) soft2d.Template {
	return soft2d.NewTemplate(
		soft2d.Material{Type: soft2d.MaterialFluid, Density: 1000},
		soft2d.Kinematics{Center: center, Mobility: soft2d.MobilityDynamic},
		soft2d.BoxShape(soft2d.V2(0.01, 0.01)),
		tag,
	)
}

func newEmitter(t *testing.T, f emitter.Factory, opts emitter.Options) *emitter.Emitter {
	t.Helper()
	e, err := emitter.New(f, testTemplate(soft2d.V2(0.5, 0.5), 1), opts)
	require.NoError(t, err)
	return e
}

func TestEmitterSystemCountsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewEmitterSystem(zap.New(core))

	ok := &countingFactory{}
	bad := &countingFactory{createErr: errors.New("out of particles")}
	require.NoError(t, s.Add("ok", newEmitter(t, ok, emitter.Options{EndFrame: 100, Frequency: 2, Lifetime: 3})))
	require.NoError(t, s.Add("bad", newEmitter(t, bad, emitter.Options{EndFrame: 100, Frequency: 2, Lifetime: 3})))
	assert.Error(t, s.Add("ok", newEmitter(t, ok, emitter.DefaultOptions())))
	assert.Equal(t, []string{"ok", "bad"}, s.Names())

	for f := 0; f < 6; f++ {
		require.NoError(t, s.Update(f))
	}

	// Spawns at 0, 2 and 4; lifetime 3 expires them at 2 and 4.
	totals := s.Totals()
	assert.Equal(t, EmitterTotals{Spawned: 3, Expired: 2, Live: 1, Errors: 3}, totals)
	assert.Len(t, ok.destroyed, 2)
	assert.Equal(t, 3, logs.FilterMessage("emitter factory call failed").Len())
}

func TestEmitterSystemFrameOrder(t *testing.T) {
	s := NewEmitterSystem(zap.NewNop())
	require.NoError(t, s.Add("a", newEmitter(t, &countingFactory{}, emitter.DefaultOptions())))
	require.NoError(t, s.Update(5))
	err := s.Update(5)
	assert.ErrorIs(t, err, emitter.ErrFrameOrder)
}

func TestEmitterSystemWarnsOnceAboutInfiniteLifetime(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewEmitterSystem(zap.New(core))
	require.NoError(t, s.Add("forever", newEmitter(t, &countingFactory{}, emitter.Options{EndFrame: 50, Frequency: 1, Lifetime: emitter.Infinite})))

	for f := 0; f < 10; f++ {
		require.NoError(t, s.Update(f))
	}
	assert.Equal(t, 10, s.Totals().Immortal)
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "forever", logs.All()[0].ContextMap()["emitter"])
}

func intp(n int) *int { return &n }

func TestScriptSystemAppliesChanges(t *testing.T) {
	emitters := NewEmitterSystem(zap.NewNop())
	e := newEmitter(t, &countingFactory{}, emitter.DefaultOptions())
	require.NoError(t, emitters.Add("a", e))

	var changes []scripting.EmitterChange
	hook := func(int) ([]scripting.EmitterChange, error) { return changes, nil }
	s := NewScriptSystem(hook, emitters, zaptest.NewLogger(t))

	changes = []scripting.EmitterChange{{Emitter: "a", Frequency: intp(10), Lifetime: intp(30)}}
	require.NoError(t, s.Update(0))
	assert.Equal(t, emitter.Options{BeginFrame: 0, EndFrame: 1000, Frequency: 10, Lifetime: 30}, e.Options())

	// Both bounds move together even though each alone would empty the window.
	changes = []scripting.EmitterChange{{Emitter: "a", BeginFrame: intp(2000), EndFrame: intp(3000)}}
	require.NoError(t, s.Update(1))
	assert.Equal(t, 2000, e.Options().BeginFrame)
	assert.Equal(t, 3000, e.Options().EndFrame)

	// Invalid values are rejected and the previous settings stay.
	changes = []scripting.EmitterChange{
		{Emitter: "a", Frequency: intp(0)},
		{Emitter: "missing", Frequency: intp(5)},
	}
	err := s.Update(2)
	assert.ErrorIs(t, err, emitter.ErrInvalidFrequency)
	assert.ErrorContains(t, err, `unknown emitter "missing"`)
	assert.Equal(t, 10, e.Options().Frequency)
	assert.Equal(t, 2, s.Applied())

	s = NewScriptSystem(func(int) ([]scripting.EmitterChange, error) { return nil, errors.New("lua died") }, emitters, zap.NewNop())
	assert.ErrorContains(t, s.Update(3), "lua died")
}

type fakeTriggerWorld struct {
	inside  map[soft2d.Handle]bool
	removed map[soft2d.Handle]int
	calls   []string
	err     error
}

func (w *fakeTriggerWorld) ManipulateParticlesInTrigger(h soft2d.Handle, fn soft2d.ParticleFunc) (int, error) {
	w.calls = append(w.calls, "manipulate")
	if fn(soft2d.Particle{Tag: 1}).Removed {
		return w.removed[h], w.err
	}
	return 0, w.err
}

func (w *fakeTriggerWorld) RemoveParticlesInTrigger(h soft2d.Handle) (int, error) {
	w.calls = append(w.calls, "remove")
	return w.removed[h], w.err
}

func (w *fakeTriggerWorld) RemoveParticlesInTriggerByTag(h soft2d.Handle, want, mask uint32) (int, error) {
	w.calls = append(w.calls, "remove_by_tag")
	if want != 1 || mask != 0xff {
		return 0, nil
	}
	return w.removed[h], w.err
}

func (w *fakeTriggerWorld) TriggerOverlapped(h soft2d.Handle) (bool, error) {
	w.calls = append(w.calls, "overlapped")
	return w.inside[h], w.err
}

func TestTriggerSystem(t *testing.T) {
	fw := &fakeTriggerWorld{
		inside:  map[soft2d.Handle]bool{1: true},
		removed: map[soft2d.Handle]int{2: 4, 3: 2, 4: 1},
	}
	s := NewTriggerSystem(fw, zaptest.NewLogger(t))
	require.NoError(t, s.Add(TriggerAction{Name: "sensor", Handle: 1, Action: data.ActionWatch}))
	require.NoError(t, s.Add(TriggerAction{Name: "drain", Handle: 2, Action: data.ActionRemove}))
	require.NoError(t, s.Add(TriggerAction{Name: "red", Handle: 3, Action: data.ActionRemoveByTag, Tag: 1, Mask: 0xff}))
	require.NoError(t, s.Add(TriggerAction{Name: "lua", Handle: 4, Action: data.ActionScript, Fn: soft2d.RemoveParticle}))

	assert.Error(t, s.Add(TriggerAction{Name: "sensor", Action: data.ActionWatch}))
	assert.Error(t, s.Add(TriggerAction{Name: "x", Action: data.ActionScript}))
	assert.Error(t, s.Add(TriggerAction{Name: "y", Action: "explode"}))

	require.NoError(t, s.Update(0))
	require.NoError(t, s.Update(1))
	assert.Equal(t, []string{
		"overlapped", "remove", "remove_by_tag", "manipulate",
		"overlapped", "remove", "remove_by_tag", "manipulate",
	}, fw.calls)

	sensor, ok := s.Stats("sensor")
	require.True(t, ok)
	assert.Equal(t, TriggerStats{FramesInside: 2}, sensor)
	drain, _ := s.Stats("drain")
	assert.Equal(t, 8, drain.Removed)
	assert.Equal(t, 2*(4+2+1), s.Removed())

	_, ok = s.Stats("nope")
	assert.False(t, ok)

	fw.err = world.ErrWorldQueryDisabled
	err := s.Update(2)
	assert.ErrorIs(t, err, world.ErrWorldQueryDisabled)
	assert.ErrorContains(t, err, `trigger "drain"`)
}

type fakeWriter struct {
	batches [][]persist.BodyEvent
	err     error
}

func (w *fakeWriter) WriteEvents(_ context.Context, runID int64, events []persist.BodyEvent) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, append([]persist.BodyEvent(nil), events...))
	return nil
}

func TestJournalSystem(t *testing.T) {
	bus := event.NewBus()
	w := &fakeWriter{}
	j := NewJournalSystem(bus, w, 7, 2, zaptest.NewLogger(t))
	events := NewEventDispatchSystem(bus)

	event.Emit(bus, event.BodyCreated{Frame: 0, Handle: 1, Tag: 3, Particles: 9})
	require.NoError(t, events.Update(1))
	require.NoError(t, j.Update(1))
	assert.Equal(t, 1, j.Buffered())
	assert.Empty(t, w.batches)

	event.Emit(bus, event.BodyDestroyed{Frame: 1, Handle: 1, Tag: 3})
	event.Emit(bus, event.BodyEmptied{Frame: 1, Handle: 2, Cause: event.CauseTrigger})
	require.NoError(t, events.Update(2))
	require.NoError(t, j.Update(2))

	require.Len(t, w.batches, 1)
	assert.ElementsMatch(t, []persist.BodyEvent{
		{Frame: 0, Kind: persist.KindCreated, Handle: 1, Tag: 3, Particles: 9},
		{Frame: 1, Kind: persist.KindDestroyed, Handle: 1, Tag: 3},
		{Frame: 1, Kind: persist.KindEmptied, Handle: 2, Cause: "trigger"},
	}, w.batches[0])
	assert.Equal(t, 3, j.Written())
	assert.Zero(t, j.Buffered())
}

func TestJournalKeepsEventsOnFailure(t *testing.T) {
	bus := event.NewBus()
	w := &fakeWriter{err: errors.New("connection reset")}
	core, logs := observer.New(zap.ErrorLevel)
	j := NewJournalSystem(bus, w, 1, 1, zap.New(core))

	event.Emit(bus, event.BodyCreated{Frame: 0, Handle: 1})
	NewEventDispatchSystem(bus).Flush()

	require.NoError(t, j.Update(0), "a failed write does not fail the frame")
	assert.Equal(t, 1, j.Buffered())
	assert.Equal(t, 1, j.Failures())
	assert.Equal(t, 1, logs.FilterMessage("journal write failed").Len())
	assert.ErrorContains(t, j.Flush(context.Background()), "connection reset")
	assert.Equal(t, 2, j.Failures())

	w.err = nil
	require.NoError(t, j.Flush(context.Background()))
	assert.Zero(t, j.Buffered())
	assert.Equal(t, 1, j.Written())
}

type fakeFlusher struct{ n int }

func (f *fakeFlusher) FlushDestroyed() int { return f.n }

type fakeStepper struct{ dts []float32 }

func (s *fakeStepper) Step(dt float32) error {
	s.dts = append(s.dts, dt)
	return nil
}

func TestStepAndCleanup(t *testing.T) {
	st := &fakeStepper{}
	step := NewStepSystem(st, 0.004)
	clean := NewCleanupSystem(&fakeFlusher{n: 2})
	for f := 0; f < 3; f++ {
		require.NoError(t, step.Update(f))
		require.NoError(t, clean.Update(f))
	}
	assert.Equal(t, []float32{0.004, 0.004, 0.004}, st.dts)
	assert.Equal(t, 6, clean.Released())
	assert.Equal(t, coresys.PhaseStep, step.Phase())
	assert.Equal(t, coresys.PhaseCleanup, clean.Phase())
}

// A full frame pipeline on the headless world: bodies spawned every 10
// frames with lifetime 15 are journaled as created and destroyed.
func TestFramePipeline(t *testing.T) {
	bus := event.NewBus()
	w, err := world.New(soft2d.DefaultWorldConfig(), bus, zaptest.NewLogger(t))
	require.NoError(t, err)

	emitters := NewEmitterSystem(zaptest.NewLogger(t))
	e, err := emitter.New(w, testTemplate(soft2d.V2(0.5, 0.5), 1), emitter.Options{EndFrame: 40, Frequency: 10, Lifetime: 15})
	require.NoError(t, err)
	require.NoError(t, emitters.Add("drip", e))

	writer := &fakeWriter{}
	dispatch := NewEventDispatchSystem(bus)
	journal := NewJournalSystem(bus, writer, 1, 5, zap.NewNop())

	r := coresys.NewRunner()
	r.Register(NewCleanupSystem(w))
	r.Register(journal)
	r.Register(NewStepSystem(w, 0.001))
	r.Register(emitters)
	r.Register(dispatch)

	for f := 0; f < 60; f++ {
		require.NoError(t, r.Tick(f))
	}
	dispatch.Flush()
	require.NoError(t, journal.Flush(context.Background()))

	var created, destroyed []persist.BodyEvent
	for _, b := range writer.batches {
		for _, ev := range b {
			switch ev.Kind {
			case persist.KindCreated:
				created = append(created, ev)
			case persist.KindDestroyed:
				destroyed = append(destroyed, ev)
			}
		}
	}
	require.Len(t, created, 4)
	require.Len(t, destroyed, 4)
	for i := range created {
		assert.Equal(t, i*10, created[i].Frame)
		assert.Equal(t, created[i].Frame+14, destroyed[i].Frame)
	}
	assert.Equal(t, EmitterTotals{Spawned: 4, Expired: 4}, emitters.Totals())
	assert.Zero(t, w.Stats().Bodies)
}
