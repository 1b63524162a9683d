package sim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	coresys "github.com/yardsim/yard/internal/core/system"
	"github.com/yardsim/yard/internal/path"
	"github.com/yardsim/yard/internal/system"
	"github.com/yardsim/yard/internal/world"
)

// ErrCommandQueueFull is returned by Submit when the inbox is full.
var ErrCommandQueueFull = errors.New("command queue full")

// Options configure a Driver.
type Options struct {
	Speed              float64
	Loop               bool
	DayLength          float64
	StartRunning       bool
	MaxCommandsPerTick int
	CommandQueueSize   int
	DigestEvery        int
}

// Driver owns the world state and advances it one tick at a time. Advance
// and Run must be called from a single goroutine. SetRunning, SetSpeed,
// Submit and Snapshot are safe from any goroutine.
type Driver struct {
	world    *world.State
	runner   *coresys.Runner
	clock    *Clock
	commands chan world.Command
	cmdSys   *system.CommandSystem

	running atomic.Bool
	speed   atomic.Uint64 // math.Float64bits
	frame   atomic.Pointer[world.Frame]
	log     *zap.Logger
}

// NewDriver builds the tick pipeline: commands, event dispatch, actors,
// snapshot. More systems (journal) can be added with Register.
func NewDriver(ws *world.State, pf *path.Pathfinder, opt Options, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.CommandQueueSize <= 0 {
		opt.CommandQueueSize = 1024
	}
	d := &Driver{
		world:    ws,
		runner:   coresys.NewRunner(),
		clock:    NewClock(opt.DayLength, opt.Loop),
		commands: make(chan world.Command, opt.CommandQueueSize),
		log:      log,
	}
	d.SetSpeed(opt.Speed)
	d.running.Store(opt.StartRunning)

	d.cmdSys = system.NewCommandSystem(ws, d.commands, opt.MaxCommandsPerTick, log)
	d.runner.Register(d.cmdSys)
	d.runner.Register(system.NewEventDispatchSystem(ws.Bus))
	d.runner.Register(system.NewActorSystem(ws, pf, log))
	d.runner.Register(system.NewSnapshotSystem(ws, d.frame.Store, opt.DigestEvery, log))

	d.frame.Store(ws.Snapshot())
	return d
}

// Register adds a system to the pipeline.
func (d *Driver) Register(s coresys.System) {
	d.runner.Register(s)
}

// World returns the owned state. Only the driver goroutine may touch it
// while the loop runs.
func (d *Driver) World() *world.State {
	return d.world
}

// Clock returns the simulation clock.
func (d *Driver) Clock() *Clock {
	return d.clock
}

// Advance runs one tick for realDelta seconds of wall time. The clock moves
// by realDelta × speed, clamped to the day boundary, and the whole pipeline
// runs exactly once. When stopped it does nothing and returns the last frame.
func (d *Driver) Advance(realDelta float64) *world.Frame {
	if !d.running.Load() {
		return d.frame.Load()
	}
	applied := d.clock.Advance(realDelta * d.Speed())
	d.world.Now = d.clock.Elapsed()
	d.world.Tick++
	d.runner.Tick(secondsToDuration(applied))
	return d.frame.Load()
}

// secondsToDuration converts simulated seconds, saturating at the largest
// Duration instead of wrapping negative.
func secondsToDuration(sec float64) time.Duration {
	ns := sec * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	if ns <= 0 {
		return 0
	}
	return time.Duration(ns)
}

// ApplyCommands drains queued commands without advancing time. Used during
// setup and while paused.
func (d *Driver) ApplyCommands() {
	d.runner.TickPhase(coresys.PhaseInput, 0)
}

// maxDrainRounds bounds Drain when handlers keep emitting.
const maxDrainRounds = 8

// Drain delivers events still waiting for the next tick, so subscribers see
// the last tick's transitions before shutdown. Call it after the loop has
// stopped.
func (d *Driver) Drain() {
	bus := d.world.Bus
	for i := 0; i < maxDrainRounds && bus.Pending() > 0; i++ {
		bus.SwapBuffers()
		bus.DispatchAll()
	}
	if n := bus.Pending(); n > 0 {
		d.log.Warn("events left undelivered at shutdown", zap.Int("events", n))
	}
}

// Run calls Advance every tickRate with the measured wall time until ctx is
// done.
func (d *Driver) Run(ctx context.Context, tickRate time.Duration) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Advance(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Submit queues a command for the next tick.
func (d *Driver) Submit(cmd world.Command) error {
	select {
	case d.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Snapshot returns the most recently published frame.
func (d *Driver) Snapshot() *world.Frame {
	return d.frame.Load()
}

func (d *Driver) SetRunning(on bool) {
	d.running.Store(on)
}

func (d *Driver) Running() bool {
	return d.running.Load()
}

// SetSpeed sets the speed multiplier. Negative values are clamped to 0.
func (d *Driver) SetSpeed(v float64) {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	d.speed.Store(math.Float64bits(v))
}

func (d *Driver) Speed() float64 {
	return math.Float64frombits(d.speed.Load())
}

// CommandStats returns how many commands were applied and rejected.
func (d *Driver) CommandStats() (applied, failed uint64) {
	return d.cmdSys.Stats()
}
