// Package replay implements a fixed-capacity prioritized experience buffer
// for off-policy reinforcement learning: circular storage, priority
// proportional sampling with importance-sampling correction, and beta
// annealing. Single-threaded by contract, like the rest of the engine.
package replay

import (
	"errors"
	"math"
	"math/rand"
)

// Experience is one stored transition plus its replay bookkeeping.
type Experience struct {
	State     int
	Action    int
	Reward    float32
	NextState int
	Terminal  bool

	TDError  float32
	Priority float32
	Order    uint64 // monotonically increasing insertion counter
}

// Config holds the prioritization parameters.
type Config struct {
	Alpha       float64 // priority exponent, 0 = uniform, 1 = full priority
	BetaStart   float64 // initial importance-sampling exponent
	BetaEnd     float64 // final importance-sampling exponent
	AnnealSteps int     // AnnealBeta calls to move from start to end
	MinPriority float64 // floor added to |td| so nothing samples at zero
	BatchSize   int     // advisory default batch size for callers
}

// DefaultConfig mirrors the usual prioritized-replay settings.
func DefaultConfig() Config {
	return Config{
		Alpha:       0.6,
		BetaStart:   0.4,
		BetaEnd:     1.0,
		AnnealSteps: 100000,
		MinPriority: 1e-6,
		BatchSize:   32,
	}
}

var ErrBadCapacity = errors.New("replay: capacity must be positive")

// Buffer is the priority replay buffer. It fills by appending until full,
// then overwrites circularly; it is reset only by recreation.
type Buffer struct {
	exps   []Experience
	h      *slotHeap
	cap    int
	size   int
	cursor int

	alpha       float64
	beta        float64
	betaInc     float64
	minPriority float64
	maxPriority float64

	order uint64
	rng   *rand.Rand
}

// NewBuffer creates a buffer with the given capacity. A nil rng gets a
// fixed-seed source, matching how the trainer seeds its own.
func NewBuffer(capacity int, cfg Config, rng *rand.Rand) (*Buffer, error) {
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	b := &Buffer{
		exps:        make([]Experience, capacity),
		h:           newSlotHeap(capacity),
		cap:         capacity,
		alpha:       cfg.Alpha,
		beta:        cfg.BetaStart,
		minPriority: cfg.MinPriority,
		maxPriority: cfg.MinPriority,
		rng:         rng,
	}
	if cfg.AnnealSteps > 0 {
		b.betaInc = (cfg.BetaEnd - cfg.BetaStart) / float64(cfg.AnnealSteps)
	}
	return b, nil
}

// Size returns the number of stored experiences.
func (b *Buffer) Size() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return b.cap }

// Beta returns the current importance-sampling exponent.
func (b *Buffer) Beta() float64 { return b.beta }

// MaxPriority returns the running maximum priority.
func (b *Buffer) MaxPriority() float64 { return b.maxPriority }

// priorityOf maps a TD error to a sampling priority. The minPriority term
// keeps every priority strictly positive.
func (b *Buffer) priorityOf(tdError float32) float64 {
	return math.Pow(math.Abs(float64(tdError))+b.minPriority, b.alpha)
}

// Add stores a transition, overwriting the oldest slot once the buffer is
// full. maxPriority grows when the new sample exceeds it; when the overwrite
// evicts the slot that held the maximum, it is re-derived from the heap.
func (b *Buffer) Add(state, action int, reward float32, nextState int, terminal bool, tdError float32) {
	p := b.priorityOf(tdError)
	slot := b.cursor

	evictedMax := b.size == b.cap && float64(b.exps[slot].Priority) >= b.maxPriority

	b.exps[slot] = Experience{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Terminal:  terminal,
		TDError:   tdError,
		Priority:  float32(p),
		Order:     b.order,
	}
	b.order++
	b.h.update(slot, float32(p))

	b.cursor = (b.cursor + 1) % b.cap
	if b.size < b.cap {
		b.size++
	}

	if p > b.maxPriority {
		b.maxPriority = p
	} else if evictedMax {
		if m, ok := b.h.peekMax(); ok {
			b.maxPriority = float64(m)
		}
	}
}

// SampleBatch draws n experiences with replacement, proportional to
// priority: each draw is uniform in [0, totalPriority) followed by a linear
// scan to the first slot whose cumulative priority exceeds it. Returns the
// experiences, their slot indices (for UpdatePriorities) and their
// importance-sampling weights. An empty buffer returns nils.
//
// The weight uses w = (p/maxPriority * size)^-beta. Normalizing by the
// running maximum instead of the total is a deliberate simplification kept
// from the system this engine derives from; it preserves the property that
// rarely-sampled low-priority experiences get boosted weights.
func (b *Buffer) SampleBatch(n int) ([]Experience, []int, []float64) {
	if b.size == 0 || n <= 0 {
		return nil, nil, nil
	}

	var total float64
	for i := 0; i < b.size; i++ {
		total += float64(b.exps[i].Priority)
	}

	exps := make([]Experience, n)
	indices := make([]int, n)
	weights := make([]float64, n)
	for k := 0; k < n; k++ {
		draw := b.rng.Float64() * total
		idx := b.size - 1
		var cum float64
		for i := 0; i < b.size; i++ {
			cum += float64(b.exps[i].Priority)
			if cum > draw {
				idx = i
				break
			}
		}
		exps[k] = b.exps[idx]
		indices[k] = idx
		weights[k] = b.importanceWeight(idx)
	}
	return exps, indices, weights
}

func (b *Buffer) importanceWeight(idx int) float64 {
	p := float64(b.exps[idx].Priority)
	return math.Pow(p/b.maxPriority*float64(b.size), -b.beta)
}

// UpdatePriorities recomputes priorities for the given slots after a replay
// pass, using the same formula as Add. maxPriority only grows here; it is
// never shrunk on update.
func (b *Buffer) UpdatePriorities(indices []int, tdErrors []float32) {
	n := len(indices)
	if len(tdErrors) < n {
		n = len(tdErrors)
	}
	for i := 0; i < n; i++ {
		idx := indices[i]
		if idx < 0 || idx >= b.size {
			continue
		}
		p := b.priorityOf(tdErrors[i])
		b.exps[idx].TDError = tdErrors[i]
		b.exps[idx].Priority = float32(p)
		b.h.update(idx, float32(p))
		if p > b.maxPriority {
			b.maxPriority = p
		}
	}
}

// AnnealBeta advances beta one step toward 1.0, clamped. Monotonically
// non-decreasing.
func (b *Buffer) AnnealBeta() {
	b.beta = math.Min(b.beta+b.betaInc, 1.0)
}

// Experiences exposes the live slots in insertion-slot order. Test and
// inspection hook.
func (b *Buffer) Experiences() []Experience {
	return b.exps[:b.size]
}
