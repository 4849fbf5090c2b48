// Package gridworld is a small deterministic-by-default grid environment used
// to exercise the learning engine: rectangular maps with walls, a start and a
// goal, step penalties, an optional stochastic action slip, and a step cutoff.
package gridworld

import (
	"errors"
	"math/rand"
)

// Action is a grid move. The numeric order is fixed; value tables and policy
// exports index actions by it.
type Action int

const (
	Up Action = iota
	Down
	Left
	Right
	NumActions = 4
)

func (a Action) String() string {
	switch a {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "?"
}

// Cell kinds.
const (
	CellEmpty = iota
	CellWall
	CellGoal
)

// StepResult is the outcome of one environment step.
type StepResult struct {
	NextState int
	Reward    float32
	Terminal  bool
	Valid     bool // false when the move hit a wall or the boundary
}

var ErrBadGridSize = errors.New("gridworld: width and height must be positive")

// World is a rectangular grid. Not safe for concurrent use.
type World struct {
	width  int
	height int
	cells  []int

	agentX, agentY int
	startX, startY int
	goalX, goalY   int

	stepPenalty float32
	goalReward  float32
	wallPenalty float32

	maxSteps int
	steps    int

	stochastic  bool
	actionNoise float64
	rng         *rand.Rand
}

// New creates an empty world with the agent starting top-left and the goal
// bottom-right, and the usual reward shape.
func New(width, height int) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrBadGridSize
	}
	w := &World{
		width:       width,
		height:      height,
		cells:       make([]int, width*height),
		goalX:       width - 1,
		goalY:       height - 1,
		stepPenalty: -0.01,
		goalReward:  1.0,
		wallPenalty: -0.1,
		maxSteps:    width * height * 4,
		rng:         rand.New(rand.NewSource(1)),
	}
	w.cells[w.goalY*width+w.goalX] = CellGoal
	w.Reset()
	return w, nil
}

// SetRewards overrides the reward shape.
func (w *World) SetRewards(stepPenalty, goalReward, wallPenalty float32) {
	w.stepPenalty = stepPenalty
	w.goalReward = goalReward
	w.wallPenalty = wallPenalty
}

// SetMaxSteps overrides the episode cutoff. Zero disables it.
func (w *World) SetMaxSteps(n int) { w.maxSteps = n }

// SetStochastic enables action slip: with probability noise the requested
// action is replaced by a uniformly random one.
func (w *World) SetStochastic(noise float64, rng *rand.Rand) {
	w.stochastic = noise > 0
	w.actionNoise = noise
	if rng != nil {
		w.rng = rng
	}
}

// SetStart moves the start position. Takes effect on the next Reset.
func (w *World) SetStart(x, y int) {
	w.startX, w.startY = x, y
}

// SetGoal moves the goal cell.
func (w *World) SetGoal(x, y int) {
	if !w.inBounds(x, y) {
		return
	}
	w.cells[w.goalY*w.width+w.goalX] = CellEmpty
	w.goalX, w.goalY = x, y
	w.cells[y*w.width+x] = CellGoal
}

// Width returns the grid width.
func (w *World) Width() int { return w.width }

// Height returns the grid height.
func (w *World) Height() int { return w.height }

// States returns the state-space size, one state per cell.
func (w *World) States() int { return w.width * w.height }

// Steps returns the step count of the running episode.
func (w *World) Steps() int { return w.steps }

func (w *World) inBounds(x, y int) bool {
	return x >= 0 && x < w.width && y >= 0 && y < w.height
}

// SetCell sets a cell kind. Out-of-bounds writes are ignored.
func (w *World) SetCell(x, y, kind int) {
	if !w.inBounds(x, y) {
		return
	}
	w.cells[y*w.width+x] = kind
}

// CellAt returns the cell kind, CellWall for out-of-bounds.
func (w *World) CellAt(x, y int) int {
	if !w.inBounds(x, y) {
		return CellWall
	}
	return w.cells[y*w.width+x]
}

// IsWalkable reports whether a cell can be entered.
func (w *World) IsWalkable(x, y int) bool {
	return w.inBounds(x, y) && w.cells[y*w.width+x] != CellWall
}

// PosToState maps a position to its flat state index.
func (w *World) PosToState(x, y int) int { return y*w.width + x }

// StateAt is PosToState under the name the policy export expects.
func (w *World) StateAt(x, y int) int { return w.PosToState(x, y) }

// StateToPos is the inverse of PosToState.
func (w *World) StateToPos(state int) (x, y int) {
	return state % w.width, state / w.width
}

// StateIndex returns the agent's current state.
func (w *World) StateIndex() int { return w.PosToState(w.agentX, w.agentY) }

// Reset moves the agent back to the start and zeroes the step counter.
// Returns the starting state.
func (w *World) Reset() int {
	w.agentX, w.agentY = w.startX, w.startY
	w.steps = 0
	return w.StateIndex()
}

// Step applies one action. Wall and boundary moves keep the agent in place
// with the wall penalty; reaching the goal pays the goal reward and ends the
// episode; any other move costs the step penalty. Hitting the step cutoff
// also ends the episode.
func (w *World) Step(a Action) StepResult {
	if w.stochastic && w.rng.Float64() < w.actionNoise {
		a = Action(w.rng.Intn(NumActions))
	}

	nx, ny := w.agentX, w.agentY
	switch a {
	case Up:
		ny--
	case Down:
		ny++
	case Left:
		nx--
	case Right:
		nx++
	}

	w.steps++
	cutoff := w.maxSteps > 0 && w.steps >= w.maxSteps

	if !w.IsWalkable(nx, ny) {
		return StepResult{
			NextState: w.StateIndex(),
			Reward:    w.wallPenalty,
			Terminal:  cutoff,
			Valid:     false,
		}
	}

	w.agentX, w.agentY = nx, ny
	if w.CellAt(nx, ny) == CellGoal {
		return StepResult{NextState: w.StateIndex(), Reward: w.goalReward, Terminal: true, Valid: true}
	}
	return StepResult{NextState: w.StateIndex(), Reward: w.stepPenalty, Terminal: cutoff, Valid: true}
}

// AtGoal reports whether the agent stands on the goal cell.
func (w *World) AtGoal() bool {
	return w.agentX == w.goalX && w.agentY == w.goalY
}

// GenerateSimpleMaze lays a wall across the middle row with a single gap,
// forcing a detour between start and goal. Grids shorter than 3 rows are
// left untouched.
func (w *World) GenerateSimpleMaze() {
	if w.height < 3 || w.width < 2 {
		return
	}
	row := w.height / 2
	gap := w.width / 2
	for x := 0; x < w.width; x++ {
		if x == gap {
			continue
		}
		if (x == w.startX && row == w.startY) || (x == w.goalX && row == w.goalY) {
			continue
		}
		w.cells[row*w.width+x] = CellWall
	}
}

// AddRandomWalls turns roughly density*cells empty cells into walls, never
// touching the start or goal. Density is clamped to [0,1].
func (w *World) AddRandomWalls(density float64, rng *rand.Rand) {
	if rng == nil {
		rng = w.rng
	}
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}
	for y := 0; y < w.height; y++ {
		for x := 0; x < w.width; x++ {
			if (x == w.startX && y == w.startY) || (x == w.goalX && y == w.goalY) {
				continue
			}
			if w.cells[y*w.width+x] == CellEmpty && rng.Float64() < density {
				w.cells[y*w.width+x] = CellWall
			}
		}
	}
}

// Manhattan returns the L1 distance between two states.
func (w *World) Manhattan(stateA, stateB int) int {
	ax, ay := w.StateToPos(stateA)
	bx, by := w.StateToPos(stateB)
	return abs(ax-bx) + abs(ay-by)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
