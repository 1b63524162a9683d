package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yardsim/yard/internal/config"
	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/geom"
	"github.com/yardsim/yard/internal/path"
	"github.com/yardsim/yard/internal/persist"
	"github.com/yardsim/yard/internal/scripting"
	"github.com/yardsim/yard/internal/sim"
	"github.com/yardsim/yard/internal/system"
	"github.com/yardsim/yard/internal/task"
	"github.com/yardsim/yard/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

var numbers = message.NewPrinter(language.English)

func printBanner(configPath string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              yardsim  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       container yard simulation engine    \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mconfig:\033[0m %s\n\n", configPath)
}

func printSection(title string) {
	lineLen := 46 - utf8.RuneCountInString(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := numbers.Sprintf("%d", count)
	dotsLen := 42 - utf8.RuneCountInString(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main simulation logic ─────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/yard.toml"
	if p := os.Getenv("YARDSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfgPath)

	// 3. Load static tables
	printSection("yard data")
	routes, err := data.LoadRouteTable(cfg.Data.Routes)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}
	printStat("routes", routes.Count())

	var obstacles []path.Obstacle
	if cfg.Data.Obstacles != "" {
		obsTable, err := data.LoadObstacleTable(cfg.Data.Obstacles, log)
		if err != nil {
			return fmt.Errorf("load obstacles: %w", err)
		}
		obstacles = obsTable.Obstacles()
		printStat("obstacles", obsTable.Count())
		if n := len(obsTable.Invalid()); n > 0 {
			printStat("obstacles ignored", n)
		}
	}

	zones, err := data.LoadZoneTable(cfg.Data.Zones)
	if err != nil {
		return fmt.Errorf("load zones: %w", err)
	}
	printStat("zones", zones.Count())
	printStat("slots", zones.SlotCount())

	roster, err := data.LoadRoster(cfg.Data.Roster)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	specs, err := roster.Expand()
	if err != nil {
		return fmt.Errorf("expand roster: %w", err)
	}
	fmt.Println()

	// 4. Build world state and place actors
	printSection("world")
	ws := world.NewState(routes, zones, obstacles, world.Options{
		Exit:       geom.Pt(cfg.Yard.ExitX, cfg.Yard.ExitY),
		ExitZone:   cfg.Yard.ExitZone,
		ReturnZone: cfg.Yard.ReturnZone,
		Fallback:   world.Fallback{Y: cfg.Yard.FallbackY, Spacing: cfg.Yard.FallbackSpacing},
	}, log)
	if err := ws.Populate(specs); err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	printStat("actors", ws.ActorCount())
	for _, z := range ws.Pool.Zones() {
		printStat("zone "+z.ID+" occupied", ws.Pool.OccupiedCount(z.ID))
	}
	fmt.Println()

	pf := path.New(path.Config{
		Step:                  cfg.Pathfinding.Step,
		GoalTolerance:         cfg.Pathfinding.GoalTolerance,
		MaxIterations:         cfg.Pathfinding.MaxIterations,
		FallbackRadius:        cfg.Pathfinding.FallbackRadius,
		InterpolationSegments: cfg.Pathfinding.InterpolationSegments,
	}, log)

	driver := sim.NewDriver(ws, pf, sim.Options{
		Speed:              cfg.Sim.Speed,
		Loop:               cfg.Sim.Loop,
		DayLength:          cfg.Sim.DayLength,
		StartRunning:       cfg.Sim.StartRunning,
		MaxCommandsPerTick: cfg.Sim.MaxCommandsPerTick,
		CommandQueueSize:   cfg.Sim.CommandQueueSize,
		DigestEvery:        cfg.Sim.DigestEvery,
	}, log)

	// 5. Optional task journal in PostgreSQL
	var (
		journal *system.JournalSystem
		repo    *persist.JournalRepo
	)
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("schema at version %d", version))

		runID := time.Unix(cfg.Sim.StartTime, 0).UTC().Format("20060102T150405Z")
		repo = persist.NewJournalRepo(db, runID)
		journal = system.NewJournalSystem(ws.Bus, repo, log, cfg.Journal.FlushInterval)
		driver.Register(journal)
		printOK("task journal run " + repo.RunID())
		fmt.Println()
	}

	// 6. Lua setup and reaction hooks
	if cfg.Scripts.Dir != "" {
		printSection("scripts")
		engine, err := scripting.NewEngine(cfg.Scripts.Dir, ws, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		engine.BindHooks(ws.Bus)
		if err := engine.Setup(); err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		printStat("tasks created", engine.Created())
		fmt.Println()
	}

	// 7. Start the tick loop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pauseCh := make(chan os.Signal, 1)
	signal.Notify(pauseCh, syscall.SIGUSR1)
	defer signal.Stop(pauseCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pauseCh:
				on := !driver.Running()
				driver.SetRunning(on)
				log.Info("simulation running toggled", zap.Bool("running", on))
			}
		}
	}()

	printSection("ready")
	printReady(fmt.Sprintf("tick loop started (tick: %s, speed: %gx)", cfg.Sim.TickRate, cfg.Sim.Speed))
	if !cfg.Sim.StartRunning {
		printReady("paused, send SIGUSR1 to start")
	}
	fmt.Println()

	driver.Run(ctx, cfg.Sim.TickRate)

	// 8. Shutdown
	log.Info("shutdown signal received")
	driver.Drain()
	if journal != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		journal.Flush(flushCtx)
		if n, err := repo.CountRun(flushCtx); err != nil {
			log.Warn("count journal rows failed", zap.Error(err))
		} else {
			log.Info("task journal written", zap.String("run", repo.RunID()), zap.Int64("rows", n))
		}
		cancel()
	}
	logSummary(log, driver)
	log.Info("simulation stopped")
	return nil
}

// logSummary reports where the run ended up.
func logSummary(log *zap.Logger, d *sim.Driver) {
	ws := d.World()
	counts := ws.Tasks.CountByStatus()
	applied, failed := d.CommandStats()
	frame := d.Snapshot()
	log.Info("run summary",
		zap.Uint64("ticks", ws.Tick),
		zap.Float64("sim_seconds", ws.Now),
		zap.Float64("time_of_day", d.Clock().TimeOfDay()),
		zap.Int("tasks", ws.Tasks.Count()),
		zap.Int("completed", counts[task.StatusCompleted]),
		zap.Int("pending", counts[task.StatusPending]),
		zap.Int("waiting", counts[task.StatusWaitingForSlot]),
		zap.Uint64("commands_applied", applied),
		zap.Uint64("commands_failed", failed),
		zap.String("digest", frame.DigestHex()))
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
