// Package qtable implements a cache-optimized state/action value table for
// tabular reinforcement learning: a flat row-major float32 store with a
// per-state max/argmax cache, batched access paths and hit/miss counters.
//
// The table is single-threaded by contract. Embedders running multiple
// workers must either shard tables per worker or guard every call with an
// external mutex.
package qtable

import (
	"errors"
	"unsafe"
)

// AllocStrategy selects how the backing buffer is allocated.
type AllocStrategy int

const (
	// AllocStandard uses a plain slice allocation.
	AllocStandard AllocStrategy = iota
	// AllocAligned over-allocates and re-slices so the first element sits on
	// a 32-byte boundary, which qualifies the table for the lane-blocked
	// reduction path.
	AllocAligned
)

const (
	// States at or below this limit get a precomputed row-offset table.
	rowOffsetLimit = 256

	// Alignment (bytes) required by the lane reducer.
	laneAlignment = 32

	// Minimum row width for the lane reducer to be worth selecting.
	laneMinActions = 8
)

var ErrBadDimensions = errors.New("qtable: states and actions must be positive")

// Table is a flat states x actions value table. The buffer is owned by the
// table and never reallocated, so row views stay valid for its lifetime.
type Table struct {
	data    []float32
	states  int
	actions int
	stride  int

	// Row-offset fast path for small state spaces. Offsets, not pointers:
	// they stay correct no matter what happens to the backing array.
	rowOffsets []int

	// Reduction cache, parallel per-state arrays.
	maxQ    []float32
	bestAct []int32
	valid   []bool

	aligned bool
	reduce  reducer

	counters *Counters
}

// New creates a zero-initialized table. The counters argument lets the caller
// own the instrumentation state; pass nil to give the table a private set.
func New(states, actions int, strategy AllocStrategy, counters *Counters) (*Table, error) {
	if states <= 0 || actions <= 0 {
		return nil, ErrBadDimensions
	}
	if counters == nil {
		counters = &Counters{}
	}

	t := &Table{
		states:   states,
		actions:  actions,
		stride:   actions,
		maxQ:     make([]float32, states),
		bestAct:  make([]int32, states),
		valid:    make([]bool, states),
		counters: counters,
	}

	n := states * actions
	switch strategy {
	case AllocAligned:
		t.data, t.aligned = alignedSlice(n)
	default:
		t.data = make([]float32, n)
		t.aligned = uintptr(unsafe.Pointer(&t.data[0]))%laneAlignment == 0
	}

	if states <= rowOffsetLimit {
		t.rowOffsets = make([]int, states)
		for s := 0; s < states; s++ {
			t.rowOffsets[s] = s * t.stride
		}
	}

	// Reducer is picked once at construction. Both implementations resolve
	// ties by lowest action index and produce identical results.
	if t.aligned && actions >= laneMinActions {
		t.reduce = laneReducer{counters: counters}
	} else {
		t.reduce = scalarReducer{}
	}

	return t, nil
}

// alignedSlice allocates n float32 values starting on a laneAlignment
// boundary. Go's allocator aligns large slices to at least 16 bytes, so at
// most laneAlignment/4-1 leading elements are skipped.
func alignedSlice(n int) ([]float32, bool) {
	pad := laneAlignment / 4
	raw := make([]float32, n+pad)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := 0
	if rem := addr % laneAlignment; rem != 0 {
		off = int(laneAlignment-rem) / 4
	}
	return raw[off : off+n : off+n], true
}

// States returns the state dimension.
func (t *Table) States() int { return t.states }

// Actions returns the action dimension.
func (t *Table) Actions() int { return t.actions }

// Aligned reports whether the buffer qualified for the lane reducer alignment.
func (t *Table) Aligned() bool { return t.aligned }

func (t *Table) inRange(state, action int) bool {
	return state >= 0 && state < t.states && action >= 0 && action < t.actions
}

// Get returns Q(state, action), or 0 for out-of-range indices.
func (t *Table) Get(state, action int) float32 {
	if !t.inRange(state, action) {
		return 0
	}
	return t.data[state*t.stride+action]
}

// Set writes Q(state, action) and invalidates the cached reduction for the
// state. Out-of-range indices are a no-op.
func (t *Table) Set(state, action int, value float32) {
	if !t.inRange(state, action) {
		return
	}
	t.data[state*t.stride+action] = value
	t.valid[state] = false
}

// RowView returns the contiguous action values for a state. The slice aliases
// the table's buffer; callers must not hold it across a Set through other
// means than the table itself. Returns nil for out-of-range states.
func (t *Table) RowView(state int) []float32 {
	if state < 0 || state >= t.states {
		return nil
	}
	var start int
	if t.rowOffsets != nil {
		start = t.rowOffsets[state]
	} else {
		start = state * t.stride
	}
	return t.data[start : start+t.actions : start+t.actions]
}

// BatchSet applies Set across parallel index/value slices. Behavior is
// identical to calling Set in a loop; the grouping exists so replay batches
// touch the table with better locality.
func (t *Table) BatchSet(states, actions []int, values []float32) {
	t.counters.BatchOps++
	n := len(states)
	if len(actions) < n {
		n = len(actions)
	}
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		t.Set(states[i], actions[i], values[i])
	}
}

// BatchGet fills values with Q(states[i], actions[i]); out-of-range pairs
// yield 0.
func (t *Table) BatchGet(states, actions []int, values []float32) {
	t.counters.BatchOps++
	n := len(states)
	if len(actions) < n {
		n = len(actions)
	}
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		values[i] = t.Get(states[i], actions[i])
	}
}

// BatchGetMax fills maxValues with the cached row maximum of each state.
func (t *Table) BatchGetMax(states []int, maxValues []float32) {
	t.counters.BatchOps++
	n := len(states)
	if len(maxValues) < n {
		n = len(maxValues)
	}
	for i := 0; i < n; i++ {
		maxValues[i] = t.MaxValue(states[i])
	}
}

// Fill sets every cell to value. Used by tests and table seeding; invalidates
// all cached reductions.
func (t *Table) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
	t.InvalidateAll()
}
