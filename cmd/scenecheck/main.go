// scenecheck validates a scene file and prints the spawn/expire schedule of
// every emitter as YAML, without stepping any physics. Frame hooks are run
// against the Lua scripts in -scripts so the schedule matches s2demo.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/s2go/demos/internal/data"
	"github.com/s2go/demos/internal/emitter"
	"github.com/s2go/demos/internal/scripting"
	"github.com/s2go/demos/internal/soft2d"
	"github.com/s2go/demos/internal/system"
)

// maxListed caps the frame lists printed per emitter.
const maxListed = 8

type EmitterReport struct {
	Name        string `yaml:"name"`
	BeginFrame  int    `yaml:"begin_frame"`
	EndFrame    int    `yaml:"end_frame"`
	Frequency   int    `yaml:"frequency"`
	Lifetime    int    `yaml:"lifetime"`
	Spawned     int    `yaml:"spawned"`
	Expired     int    `yaml:"expired"`
	LiveAtEnd   int    `yaml:"live_at_end"`
	PeakLive    int    `yaml:"peak_live"`
	FirstSpawn  []int  `yaml:"first_spawns,flow"`
	FirstExpiry []int  `yaml:"first_expiries,flow"`
	Warning     string `yaml:"warning,omitempty"`
}

type SceneReport struct {
	Scene         string          `yaml:"scene"`
	Frames        int             `yaml:"frames"`
	FrameHook     string          `yaml:"frame_hook,omitempty"`
	ScriptChanges int             `yaml:"script_changes,omitempty"`
	Warning       string          `yaml:"warning,omitempty"`
	Emitters      []EmitterReport `yaml:"emitters"`
}

type Report struct {
	File        string        `yaml:"file"`
	Fingerprint string        `yaml:"fingerprint"`
	Scenes      []SceneReport `yaml:"scenes"`
}

// scheduleFactory hands out handles and records the frame of every call.
type scheduleFactory struct {
	frame    int
	next     soft2d.Handle
	spawns   []int
	expiries []int
}

func (f *scheduleFactory) CreateBody(soft2d.Template) (soft2d.Handle, error) {
	f.next++
	f.spawns = append(f.spawns, f.frame)
	return f.next, nil
}

func (f *scheduleFactory) DestroyBody(soft2d.Handle) error {
	f.expiries = append(f.expiries, f.frame)
	return nil
}

func main() {
	fs := flag.NewFlagSet("scenecheck", flag.ExitOnError)
	scriptsDir := fs.String("scripts", "scripts", "Lua script directory for frame hooks")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scenecheck [-scripts dir] <scenes.yaml> [scene] [frames]")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	if err := run(fs.Args(), *scriptsDir); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, scriptsDir string) error {
	tbl, err := data.LoadSceneTable(args[0])
	if err != nil {
		return err
	}
	names := tbl.Names()
	if len(args) > 1 {
		if tbl.Get(args[1]) == nil {
			return fmt.Errorf("scene %q not found", args[1])
		}
		names = []string{args[1]}
	}
	frames := 0
	if len(args) > 2 {
		if frames, err = strconv.Atoi(args[2]); err != nil || frames <= 0 {
			return fmt.Errorf("frames %q: must be a positive integer", args[2])
		}
	}

	scripts, err := scripting.NewEngine(scriptsDir, zap.NewNop())
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()

	rep := Report{File: args[0], Fingerprint: tbl.Fingerprint()}
	for _, name := range names {
		sr, err := checkScene(tbl.Get(name), frames, scripts)
		if err != nil {
			return fmt.Errorf("scene %q: %w", name, err)
		}
		rep.Scenes = append(rep.Scenes, sr)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(rep)
}

type tracked struct {
	def     *data.EmitterDef
	factory *scheduleFactory
	peak    int
}

// checkScene runs the scene's emitters, and its frame hook when scripts has
// it, against recording factories. scripts may be nil.
func checkScene(s *data.Scene, frames int, scripts *scripting.Engine) (SceneReport, error) {
	if frames == 0 {
		frames = s.Frames
	}
	sr := SceneReport{Scene: s.Name, Frames: frames, FrameHook: s.FrameHook}

	nop := zap.NewNop()
	emitters := system.NewEmitterSystem(nop)
	byName := make(map[string]*tracked, len(s.Emitters))
	for i := range s.Emitters {
		ed := &s.Emitters[i]
		tmpl, err := ed.Template()
		if err != nil {
			return sr, fmt.Errorf("emitter %q: %w", ed.Name, err)
		}
		f := &scheduleFactory{}
		e, err := emitter.New(f, tmpl, ed.Options())
		if err != nil {
			return sr, fmt.Errorf("emitter %q: %w", ed.Name, err)
		}
		if err := emitters.Add(ed.Name, e); err != nil {
			return sr, err
		}
		byName[ed.Name] = &tracked{def: ed, factory: f}
	}

	var script *system.ScriptSystem
	if s.FrameHook != "" {
		var hook scripting.FrameHook
		err := errors.New("no scripts loaded")
		if scripts != nil {
			hook, err = scripts.FrameHook(s.FrameHook)
		}
		if err != nil {
			sr.Warning = fmt.Sprintf("frame hook %q not run (%v): schedule ignores its changes", s.FrameHook, err)
		} else {
			script = system.NewScriptSystem(hook, emitters, nop)
		}
	}

	for frame := 0; frame < frames; frame++ {
		for _, t := range byName {
			t.factory.frame = frame
		}
		if script != nil {
			if err := script.Update(frame); err != nil {
				return sr, fmt.Errorf("frame %d: %w", frame, err)
			}
		}
		if err := emitters.Update(frame); err != nil {
			return sr, fmt.Errorf("frame %d: %w", frame, err)
		}
		for name, t := range byName {
			t.peak = max(t.peak, emitters.Get(name).Len())
		}
	}
	if script != nil {
		sr.ScriptChanges = script.Applied()
	}

	for _, name := range emitters.Names() {
		e, t := emitters.Get(name), byName[name]
		o := e.Options()
		r := EmitterReport{
			Name:        name,
			BeginFrame:  o.BeginFrame,
			EndFrame:    o.EndFrame,
			Frequency:   o.Frequency,
			Lifetime:    o.Lifetime,
			Spawned:     e.Spawned(),
			Expired:     e.Expired(),
			LiveAtEnd:   e.Len(),
			PeakLive:    t.peak,
			FirstSpawn:  head(t.factory.spawns),
			FirstExpiry: head(t.factory.expiries),
		}
		if e.Immortal() > 0 {
			r.Warning = "infinite lifetime: bodies are tracked for the whole run"
		}
		sr.Emitters = append(sr.Emitters, r)
	}
	return sr, nil
}

func head(frames []int) []int {
	if len(frames) > maxListed {
		frames = frames[:maxListed]
	}
	return append([]int{}, frames...)
}
