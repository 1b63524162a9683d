// Package path finds obstacle-avoiding routes across the normalized yard plane.
//
// The search is A* over an implicit lattice anchored at the start point: each
// node expands to its 8 neighbours at a fixed step, edge cost is Euclidean
// length and the heuristic is straight-line distance to the goal, which keeps
// it admissible and consistent. When the goal is within one diagonal step the
// goal itself is offered as a neighbour so paths end exactly on target.
package path

import (
	"container/heap"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/geom"
)

// ErrBudgetExceeded marks a search that ran out of iterations (or of open
// nodes) before reaching the goal.
var ErrBudgetExceeded = errors.New("pathfinding budget exceeded")

// Outcome tells how a path was produced.
type Outcome int

const (
	OutcomeDirect       Outcome = iota // trivial two-point path, no search
	OutcomeFound                       // A* reached the goal
	OutcomeBestEffort                  // budget spent, closest explored node was near the goal
	OutcomeInterpolated                // budget spent, eased straight line ignoring obstacles
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDirect:
		return "direct"
	case OutcomeFound:
		return "found"
	case OutcomeBestEffort:
		return "best_effort"
	case OutcomeInterpolated:
		return "interpolated"
	}
	return "unknown"
}

// Obstacle is a polygon with an influence radius around its vertices.
type Obstacle struct {
	ID      string
	Polygon geom.Polygon
	Radius  float64
}

// Blocks reports whether p is inside the polygon or within Radius of a vertex.
func (o Obstacle) Blocks(p geom.Point) bool {
	return o.Polygon.Contains(p) || o.Polygon.NearVertex(p, o.Radius)
}

// Config tunes the search.
type Config struct {
	Step                  float64 // lattice spacing
	GoalTolerance         float64 // success radius around the goal
	MaxIterations         int     // node expansions before giving up
	FallbackRadius        float64 // max goal distance for the best-effort fallback
	InterpolationSegments int     // segments of the eased fallback line (min 2)
}

// DefaultConfig returns the standard yard tuning.
func DefaultConfig() Config {
	return Config{
		Step:                  0.03,
		GoalTolerance:         0.02,
		MaxIterations:         5000,
		FallbackRadius:        0.1,
		InterpolationSegments: 20,
	}
}

// Result is a computed path plus diagnostics.
type Result struct {
	Points     []geom.Point
	Outcome    Outcome
	Iterations int
}

// Pathfinder is stateless between calls and safe to reuse.
type Pathfinder struct {
	cfg Config
	log *zap.Logger
}

// New returns a Pathfinder. Zero-valued config fields fall back to DefaultConfig.
func New(cfg Config, log *zap.Logger) *Pathfinder {
	def := DefaultConfig()
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.GoalTolerance <= 0 {
		cfg.GoalTolerance = def.GoalTolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.FallbackRadius <= 0 {
		cfg.FallbackRadius = def.FallbackRadius
	}
	if cfg.InterpolationSegments < 2 {
		cfg.InterpolationSegments = def.InterpolationSegments
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pathfinder{cfg: cfg, log: log}
}

// FindPath returns a path from start to goal. It never fails: exhausted
// searches degrade to the fallbacks described on Search.
func (pf *Pathfinder) FindPath(start, goal geom.Point, obstacles []Obstacle) []geom.Point {
	return pf.Search(start, goal, obstacles).Points
}

// Search runs the A* search. Without obstacles, or when start is already
// within tolerance of goal, it returns the direct segment. When the budget
// runs out it returns the path to the closest explored node (plus goal) if
// that node is within FallbackRadius, else an eased interpolation that
// ignores obstacles.
func (pf *Pathfinder) Search(start, goal geom.Point, obstacles []Obstacle) Result {
	if start.Dist(goal) <= pf.cfg.GoalTolerance || len(obstacles) == 0 {
		return Result{Points: []geom.Point{start, goal}, Outcome: OutcomeDirect}
	}

	s := &search{
		pf:        pf,
		start:     start,
		goal:      goal,
		obstacles: obstacles,
		nodes:     make([]node, 0, 256),
		best:      make(map[cell]int, 256),
		closed:    make(map[cell]bool, 256),
	}
	return s.run()
}

// ---------- search internals ----------

type cell struct {
	i, j int
	goal bool // the exact goal point, outside the lattice
}

type node struct {
	c      cell
	pos    geom.Point
	g      float64
	f      float64
	parent int
	seq    int
}

type search struct {
	pf        *Pathfinder
	start     geom.Point
	goal      geom.Point
	obstacles []Obstacle

	nodes  []node
	open   openSet
	best   map[cell]int // cell → index of cheapest known node
	closed map[cell]bool
}

var dirs = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

func (s *search) run() Result {
	cfg := s.pf.cfg
	s.push(node{c: cell{}, pos: s.start, g: 0, f: s.start.Dist(s.goal), parent: -1})

	closest, closestDist := 0, math.Inf(1)
	iterations := 0
	for s.open.Len() > 0 && iterations < cfg.MaxIterations {
		idx := heap.Pop(&s.open).(int)
		cur := s.nodes[idx]
		if s.closed[cur.c] {
			continue
		}
		s.closed[cur.c] = true
		iterations++

		d := cur.pos.Dist(s.goal)
		if d < closestDist {
			closest, closestDist = idx, d
		}
		if d <= cfg.GoalTolerance {
			return Result{Points: s.reconstruct(idx), Outcome: OutcomeFound, Iterations: iterations}
		}
		s.expand(idx)
	}

	if closestDist <= cfg.FallbackRadius {
		s.pf.log.Warn("path search exhausted, using closest explored node",
			zap.Error(ErrBudgetExceeded),
			zap.Int("iterations", iterations),
			zap.Float64("goal_dist", closestDist))
		return Result{Points: s.reconstruct(closest), Outcome: OutcomeBestEffort, Iterations: iterations}
	}

	s.pf.log.Warn("path search exhausted, interpolating without obstacle avoidance",
		zap.Error(ErrBudgetExceeded),
		zap.Int("iterations", iterations),
		zap.Float64("goal_dist", closestDist),
		zap.Float64("start_x", s.start.X), zap.Float64("start_y", s.start.Y),
		zap.Float64("goal_x", s.goal.X), zap.Float64("goal_y", s.goal.Y))
	return Result{Points: s.interpolate(), Outcome: OutcomeInterpolated, Iterations: iterations}
}

func (s *search) expand(idx int) {
	cur := s.nodes[idx]
	step := s.pf.cfg.Step
	for _, d := range dirs {
		c := cell{i: cur.c.i + d[0], j: cur.c.j + d[1]}
		if s.closed[c] {
			continue
		}
		pos := geom.Pt(s.start.X+float64(c.i)*step, s.start.Y+float64(c.j)*step)
		if !pos.InUnitSquare() || s.blocked(pos) {
			continue
		}
		s.relax(idx, c, pos)
	}
	// Offer the exact goal once it is within a diagonal step.
	gc := cell{goal: true}
	if !s.closed[gc] && cur.pos.Dist(s.goal) <= step*math.Sqrt2 && !s.blocked(s.goal) {
		s.relax(idx, gc, s.goal)
	}
}

func (s *search) relax(parent int, c cell, pos geom.Point) {
	g := s.nodes[parent].g + s.nodes[parent].pos.Dist(pos)
	if prev, ok := s.best[c]; ok && s.nodes[prev].g <= g {
		return
	}
	s.push(node{c: c, pos: pos, g: g, f: g + pos.Dist(s.goal), parent: parent})
}

func (s *search) push(n node) {
	n.seq = len(s.nodes)
	s.nodes = append(s.nodes, n)
	s.best[n.c] = n.seq
	heap.Push(&s.open, openEntry{idx: n.seq, f: n.f, h: n.f - n.g})
}

func (s *search) blocked(p geom.Point) bool {
	for _, o := range s.obstacles {
		if o.Blocks(p) {
			return true
		}
	}
	return false
}

// reconstruct walks parent links back from idx and appends the goal if the
// final node is not already exactly on it.
func (s *search) reconstruct(idx int) []geom.Point {
	var rev []geom.Point
	for i := idx; i >= 0; i = s.nodes[i].parent {
		rev = append(rev, s.nodes[i].pos)
	}
	out := make([]geom.Point, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	if out[len(out)-1] != s.goal {
		out = append(out, s.goal)
	}
	return out
}

func (s *search) interpolate() []geom.Point {
	n := s.pf.cfg.InterpolationSegments
	out := make([]geom.Point, n+1)
	for i := 0; i <= n; i++ {
		out[i] = geom.Lerp(s.start, s.goal, geom.SmoothStep(float64(i)/float64(n)))
	}
	out[0], out[n] = s.start, s.goal
	return out
}

// ---------- open set ----------

type openEntry struct {
	idx int
	f   float64
	h   float64
}

// openSet orders by f, then h (prefer nodes nearer the goal), then insertion
// order, so equal-cost frontiers always pop the same way.
type openSet []openEntry

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(a, b int) bool {
	if o[a].f != o[b].f {
		return o[a].f < o[b].f
	}
	if o[a].h != o[b].h {
		return o[a].h < o[b].h
	}
	return o[a].idx < o[b].idx
}
func (o openSet) Swap(a, b int) { o[a], o[b] = o[b], o[a] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(openEntry)) }
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	e := old[n-1]
	*o = old[:n-1]
	return e.idx
}
