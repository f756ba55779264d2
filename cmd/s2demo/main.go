// s2demo runs a demo scene on the headless world and prints a run summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/pkg/profile"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/s2go/demos/internal/config"
	"github.com/s2go/demos/internal/data"
	"github.com/s2go/demos/internal/persist"
	"github.com/s2go/demos/internal/scene"
	"github.com/s2go/demos/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Display helpers ───────────────────────────────────────────────

var printer = message.NewPrinter(language.English)

func printBanner(sceneName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              s2demo  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       headless Soft2D demo harness        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscene:\033[0m %s\n\n", sceneName)
}

func printSection(title string) {
	lineLen := max(46-utf8.RuneCountInString(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := printer.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main logic ────────────────────────────────────────────────────

func run() error {
	cfgPath := "config/s2demo.toml"
	if p := os.Getenv("S2DEMO_CONFIG"); p != "" {
		cfgPath = p
	}
	fs := flag.NewFlagSet("s2demo", flag.ExitOnError)
	fs.StringVar(&cfgPath, "config", cfgPath, "config file")
	sceneName := fs.String("scene", "", "scene to run (overrides scene.name)")
	frames := fs.Int("frames", 0, "frames to run (overrides loop.max_frames)")
	fs.Parse(os.Args[1:])

	// 1. Load config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *sceneName != "" {
		cfg.Scene.Name = *sceneName
	}
	if *frames > 0 {
		cfg.Loop.MaxFrames = *frames
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if p := startProfile(cfg.Profile); p != nil {
		defer p.Stop()
	}

	printBanner(cfg.Scene.Name)

	// 3. Load scenes and scripts
	printSection("data")
	scenes, err := data.LoadSceneTable(cfg.Scene.Path)
	if err != nil {
		return fmt.Errorf("load scenes: %w", err)
	}
	printStat("scenes", scenes.Count())
	def := scenes.Get(cfg.Scene.Name)
	if def == nil {
		return fmt.Errorf("scene %q not found in %s (have %s)",
			cfg.Scene.Name, cfg.Scene.Path, strings.Join(scenes.Names(), ", "))
	}
	printStat("emitters", len(def.Emitters))
	printStat("colliders", len(def.Colliders))
	printStat("triggers", len(def.Triggers))

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer scripts.Close()
	printStat("lua scripts", scripts.Files())
	fmt.Println()

	// 4. Optional run journal
	deps := scene.Deps{Log: log, Scripts: scripts}
	var (
		journal *persist.JournalRepo
		runID   int64
	)
	if cfg.Database.DSN != "" {
		printSection("journal")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema version %d", version))

		journal = persist.NewJournalRepo(db)
		runID, err = journal.StartRun(ctx, def.Name, scenes.Fingerprint())
		if err != nil {
			return err
		}
		deps.Journal, deps.RunID = journal, runID
		printOK(fmt.Sprintf("run %d started", runID))
		fmt.Println()
	}

	// 5. Build the scene
	sc, err := scene.Build(def, cfg, deps)
	if err != nil {
		return fmt.Errorf("build scene %q: %w", def.Name, err)
	}

	// 6. Frame loop
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("running")
	if cfg.Loop.TickRate > 0 {
		printReady(fmt.Sprintf("frame loop started (tick: %s, frames: %d)", cfg.Loop.TickRate, sc.Frames))
	} else {
		printReady(fmt.Sprintf("frame loop started (unpaced, frames: %d)", sc.Frames))
	}
	fmt.Println()

	var ticks <-chan time.Time
	if cfg.Loop.TickRate > 0 {
		ticker := time.NewTicker(cfg.Loop.TickRate)
		defer ticker.Stop()
		ticks = ticker.C
	}

	start := time.Now()
	done, runErr := sc.Run(runCtx, ticks)
	elapsed := time.Since(start)
	frameErrors := len(multierr.Errors(runErr))
	if done < sc.Frames {
		log.Info("shutdown signal received", zap.Int("frame", done))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var closeErr error
	if err := sc.Close(closeCtx); err != nil {
		closeErr = fmt.Errorf("close scene: %w", err)
	}

	sum := sc.Summary(done)
	if journal != nil {
		if err := journal.FinishRun(closeCtx, runID, persist.RunSummary{
			Frames:        sum.Frames,
			BodiesCreated: sum.Emitters.Spawned,
			BodiesExpired: sum.Emitters.Expired,
			BodiesEmptied: sum.World.Emptied,
			LiveBodies:    sum.Emitters.Live,
			Errors:        sum.Emitters.Errors + frameErrors,
		}); err != nil {
			closeErr = multierr.Append(closeErr, err)
		}
	}

	printSummary(sum, frameErrors, elapsed)
	return closeErr
}

func printSummary(sum scene.Summary, frameErrors int, elapsed time.Duration) {
	printSection("summary")
	printStat("frames", sum.Frames)
	printStat("bodies spawned", sum.Emitters.Spawned)
	printStat("bodies expired", sum.Emitters.Expired)
	printStat("bodies tracked", sum.Emitters.Live)
	printStat("bodies with infinite lifetime", sum.Emitters.Immortal)
	printStat("bodies emptied", sum.World.Emptied)
	printStat("particles alive", sum.World.Particles)
	printStat("particles removed", sum.World.ParticlesRemoved)
	printStat("removed by triggers", sum.TriggerRemoved)
	printStat("objects released", sum.ObjectsReleased)
	printStat("script changes", sum.ScriptChanges)
	printStat("journal rows", sum.JournalWritten)
	printStat("journal write failures", sum.JournalFailures)
	printStat("factory errors", sum.Emitters.Errors)
	printStat("frame errors", frameErrors)
	if sum.Frames > 0 {
		printReady(printer.Sprintf("%d frames in %s (%.1f frames/s)",
			sum.Frames, elapsed.Round(time.Millisecond), float64(sum.Frames)/elapsed.Seconds()))
	}
	fmt.Println()
}

func startProfile(cfg config.ProfileConfig) interface{ Stop() } {
	switch cfg.Mode {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.Path), profile.NoShutdownHook)
	case "mem":
		return profile.Start(profile.MemProfileAllocs, profile.ProfilePath(cfg.Path), profile.NoShutdownHook)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
