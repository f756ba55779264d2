package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/s2go/demos/internal/soft2d"
)

// Engine wraps a single gopher-lua VM for scene scripts.
// Single-goroutine access only (frame loop).
type Engine struct {
	vm     *lua.LState
	log    *zap.Logger
	files  int
	failed map[string]int // function name -> calls that raised an error
}

// NewEngine creates a Lua engine and loads every .lua file in dir. A missing
// directory yields an engine without functions.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log, failed: make(map[string]int)}
	if err := e.loadDir(dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.files++
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Files is the number of script files loaded.
func (e *Engine) Files() int { return e.files }

// Has reports whether a global Lua function with the given name exists.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

func (e *Engine) function(name string) (*lua.LFunction, error) {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("lua function %q not found", name)
	}
	return fn, nil
}

// ParticleFunc adapts the Lua function name to a soft2d.ParticleFunc. The
// function gets {id, x, y, vx, vy, tag} and returns {tag, removed}; a nil tag
// keeps the current one. A call that fails leaves the particle unchanged.
func (e *Engine) ParticleFunc(name string) (soft2d.ParticleFunc, error) {
	fn, err := e.function(name)
	if err != nil {
		return nil, err
	}
	return func(p soft2d.Particle) soft2d.Particle {
		t := e.vm.NewTable()
		t.RawSetString("id", lua.LNumber(p.ID))
		t.RawSetString("x", lua.LNumber(p.Position.X))
		t.RawSetString("y", lua.LNumber(p.Position.Y))
		t.RawSetString("vx", lua.LNumber(p.Velocity.X))
		t.RawSetString("vy", lua.LNumber(p.Velocity.Y))
		t.RawSetString("tag", lua.LNumber(p.Tag))

		rt, ok := e.call(name, fn, t)
		if !ok {
			return p
		}
		if v := rt.RawGetString("tag"); v != lua.LNil {
			tag, err := toTag(v)
			if err != nil {
				e.fail(name, err)
				return p
			}
			p.Tag = tag
		}
		p.Removed = lua.LVAsBool(rt.RawGetString("removed"))
		return p
	}, nil
}

// EmitterChange is one adjustment requested by a frame hook. Nil fields keep
// the emitter's current setting.
type EmitterChange struct {
	Emitter    string
	BeginFrame *int
	EndFrame   *int
	Frequency  *int
	Lifetime   *int
}

// FrameHook is called once per frame and returns the emitter adjustments to
// apply before the emitters run.
type FrameHook func(frame int) ([]EmitterChange, error)

// FrameHook adapts the Lua function name. The function gets the frame index
// and returns a list of {emitter, begin_frame, end_frame, frequency, lifetime}
// tables.
func (e *Engine) FrameHook(name string) (FrameHook, error) {
	fn, err := e.function(name)
	if err != nil {
		return nil, err
	}
	return func(frame int) ([]EmitterChange, error) {
		if err := e.vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, lua.LNumber(frame)); err != nil {
			return nil, fmt.Errorf("lua %s(%d): %w", name, frame, err)
		}
		result := e.vm.Get(-1)
		e.vm.Pop(1)

		switch rt := result.(type) {
		case *lua.LNilType:
			return nil, nil
		case *lua.LTable:
			var changes []EmitterChange
			var bad error
			rt.ForEach(func(_, v lua.LValue) {
				row, ok := v.(*lua.LTable)
				if !ok {
					bad = fmt.Errorf("lua %s(%d): change is a %s, not a table", name, frame, v.Type())
					return
				}
				c := EmitterChange{
					Emitter:    lStr(row, "emitter"),
					BeginFrame: lOptInt(row, "begin_frame"),
					EndFrame:   lOptInt(row, "end_frame"),
					Frequency:  lOptInt(row, "frequency"),
					Lifetime:   lOptInt(row, "lifetime"),
				}
				if c.Emitter == "" {
					bad = fmt.Errorf("lua %s(%d): change without emitter", name, frame)
					return
				}
				changes = append(changes, c)
			})
			if bad != nil {
				return nil, bad
			}
			return changes, nil
		default:
			return nil, fmt.Errorf("lua %s(%d) returned %s", name, frame, result.Type())
		}
	}, nil
}

// call runs fn with one argument and expects a table back. Failures are
// logged once per function and counted.
func (e *Engine) call(name string, fn *lua.LFunction, arg lua.LValue) (*lua.LTable, bool) {
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, arg); err != nil {
		e.fail(name, err)
		return nil, false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.fail(name, fmt.Errorf("returned %s, not a table", result.Type()))
		return nil, false
	}
	return rt, true
}

func (e *Engine) fail(name string, err error) {
	e.failed[name]++
	if e.failed[name] == 1 {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
	}
}

// Failures returns how many calls of each function failed, by function name.
func (e *Engine) Failures() map[string]int {
	out := make(map[string]int, len(e.failed))
	for k, v := range e.failed {
		out[k] = v
	}
	return out
}

// Functions lists the global Lua functions defined by the loaded scripts.
func (e *Engine) Functions() []string {
	var out []string
	e.vm.G.Global.ForEach(func(k, v lua.LValue) {
		if f, ok := v.(*lua.LFunction); ok && !f.IsG {
			out = append(out, k.String())
		}
	})
	sort.Strings(out)
	return out
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// toTag converts a Lua value to a particle tag. Only whole numbers in
// [0, 2^32) are tags.
func toTag(v lua.LValue) (uint32, error) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("tag is a %s, not a number", v.Type())
	}
	f := float64(n)
	if f < 0 || f >= 1<<32 || f != math.Trunc(f) {
		return 0, fmt.Errorf("tag %v is not a whole number in [0, 2^32)", f)
	}
	return uint32(f), nil
}

// lOptInt reads a number field, or nil when it is absent.
func lOptInt(t *lua.LTable, key string) *int {
	n, ok := t.RawGetString(key).(lua.LNumber)
	if !ok {
		return nil
	}
	v := int(n)
	return &v
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
