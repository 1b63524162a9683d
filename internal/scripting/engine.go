package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/core/event"
	"github.com/yardsim/yard/internal/task"
	"github.com/yardsim/yard/internal/world"
)

// Engine wraps a single gopher-lua VM holding the yard's setup and reaction
// scripts. Single-goroutine access only (tick loop): hooks run from the event
// dispatch phase and create tasks directly on the world state.
type Engine struct {
	vm      *lua.LState
	world   *world.State
	log     *zap.Logger
	created int
}

// NewEngine creates a Lua engine and loads every script under scriptsDir:
// top-level files first, then lib/, setup/ and hooks/. Missing directories are
// skipped.
func NewEngine(scriptsDir string, ws *world.State, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, world: ws, log: log}
	e.register()

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "lib"), filepath.Join(scriptsDir, "setup"), filepath.Join(scriptsDir, "hooks")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
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
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// Created returns how many tasks scripts have created so far.
func (e *Engine) Created() int {
	return e.created
}

// Setup calls the global setup() function if a script defined one. An error
// raised by the script is returned; tasks created before it stay queued.
func (e *Engine) Setup() error {
	fn := e.vm.GetGlobal("setup")
	if fn == lua.LNil {
		e.log.Debug("no lua setup function")
		return nil
	}
	before := e.created
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}); err != nil {
		return fmt.Errorf("lua setup: %w", err)
	}
	e.log.Info("lua setup done", zap.Int("tasks", e.created-before))
	return nil
}

// BindHooks subscribes on_task_completed(task) to completed tasks. The hook
// is looked up on every call so scripts may define it late.
func (e *Engine) BindHooks(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.TaskStatusChanged) {
		if ev.To != task.StatusCompleted {
			return
		}
		e.onTaskCompleted(ev)
	})
}

func (e *Engine) onTaskCompleted(ev event.TaskStatusChanged) {
	fn := e.vm.GetGlobal("on_task_completed")
	if fn == lua.LNil {
		return
	}
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LString(ev.TaskID))
	t.RawSetString("actor_id", lua.LString(ev.ActorID))
	t.RawSetString("kind", lua.LString(ev.Kind))
	t.RawSetString("route_id", lua.LString(ev.Payload.RouteID))
	t.RawSetString("target_zone", lua.LString(ev.Payload.TargetZone))
	t.RawSetString("target_slot_id", lua.LString(ev.Payload.TargetSlotID))
	t.RawSetString("at", lua.LNumber(ev.At))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua on_task_completed error", zap.String("task", ev.TaskID), zap.Error(err))
	}
}

// ---------- Lua API ----------

func (e *Engine) register() {
	e.vm.SetGlobal("create_task", e.vm.NewFunction(e.luaCreateTask))
	e.vm.SetGlobal("actors", e.vm.NewFunction(e.luaActors))
	e.vm.SetGlobal("routes", e.vm.NewFunction(e.luaRoutes))
	e.vm.SetGlobal("zones", e.vm.NewFunction(e.luaZones))
	e.vm.SetGlobal("now", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(e.world.Now))
		return 1
	}))
	e.vm.SetGlobal("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
}

// create_task(actor_id, kind, opts) returns the new task id, or nil plus an
// error message. opts keys: id, route_id, target_zone, target_slot_id,
// duration, priority, start_time, depends_on (array), extra (table).
func (e *Engine) luaCreateTask(L *lua.LState) int {
	actorID := L.CheckString(1)
	kind := task.Kind(L.CheckString(2))
	opts := L.OptTable(3, L.NewTable())

	p := task.Payload{
		RouteID:      lua.LVAsString(opts.RawGetString("route_id")),
		TargetZone:   lua.LVAsString(opts.RawGetString("target_zone")),
		TargetSlotID: lua.LVAsString(opts.RawGetString("target_slot_id")),
		Duration:     float64(lua.LVAsNumber(opts.RawGetString("duration"))),
	}
	if extra, ok := opts.RawGetString("extra").(*lua.LTable); ok {
		p.Extra = tableToMap(extra)
	}
	o := task.Options{
		ID:        lua.LVAsString(opts.RawGetString("id")),
		Priority:  int(lua.LVAsNumber(opts.RawGetString("priority"))),
		StartTime: float64(lua.LVAsNumber(opts.RawGetString("start_time"))),
	}
	if deps, ok := opts.RawGetString("depends_on").(*lua.LTable); ok {
		deps.ForEach(func(_, v lua.LValue) {
			if s, ok := v.(lua.LString); ok {
				o.DependsOn = append(o.DependsOn, string(s))
			}
		})
	}

	t, err := e.world.CreateTask(actorID, kind, p, o)
	if err != nil {
		e.log.Warn("lua create_task failed", zap.String("actor", actorID), zap.Error(err))
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	e.created++
	L.Push(lua.LString(t.ID))
	return 1
}

// actors() returns {id, kind, mode, slot, exited} for every actor in
// creation order.
func (e *Engine) luaActors(L *lua.LState) int {
	out := L.NewTable()
	for _, a := range e.world.Actors() {
		t := L.NewTable()
		t.RawSetString("id", lua.LString(a.ID))
		t.RawSetString("kind", lua.LString(a.Kind))
		if a.Mode != nil {
			t.RawSetString("mode", lua.LString(a.Mode.Name()))
		}
		if sl := e.world.Pool.Slot(a.HeldSlot()); sl != nil {
			t.RawSetString("slot", lua.LString(sl.ID))
		}
		t.RawSetString("exited", lua.LBool(a.Exited))
		out.Append(t)
	}
	L.Push(out)
	return 1
}

// routes() returns the route ids in table order.
func (e *Engine) luaRoutes(L *lua.LState) int {
	out := L.NewTable()
	for _, r := range e.world.Routes.Entries() {
		out.Append(lua.LString(r.ID))
	}
	L.Push(out)
	return 1
}

// zones() returns {id, slots, occupied} for every zone.
func (e *Engine) luaZones(L *lua.LState) int {
	out := L.NewTable()
	for _, z := range e.world.Pool.Zones() {
		t := L.NewTable()
		t.RawSetString("id", lua.LString(z.ID))
		t.RawSetString("slots", lua.LNumber(len(z.Slots)))
		t.RawSetString("occupied", lua.LNumber(e.world.Pool.OccupiedCount(z.ID)))
		out.Append(t)
	}
	L.Push(out)
	return 1
}

// tableToMap converts a Lua table with string keys into plain Go values.
// Nested tables become nested maps; functions and userdata are dropped.
func tableToMap(t *lua.LTable) map[string]any {
	out := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch v := v.(type) {
		case lua.LString:
			out[string(key)] = string(v)
		case lua.LNumber:
			out[string(key)] = float64(v)
		case lua.LBool:
			out[string(key)] = bool(v)
		case *lua.LTable:
			out[string(key)] = tableToMap(v)
		}
	})
	return out
}
