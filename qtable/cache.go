package qtable

// MaxValue returns the maximum Q-value of a state's row, serving from the
// reduction cache when valid. Out-of-range states return 0.
func (t *Table) MaxValue(state int) float32 {
	if state < 0 || state >= t.states {
		return 0
	}

	t.counters.TotalAccesses++
	if t.valid[state] {
		t.counters.CacheHits++
		return t.maxQ[state]
	}
	t.counters.CacheMisses++

	t.fillCache(state)
	return t.maxQ[state]
}

// BestAction returns the lowest-index action attaining the row maximum,
// serving from the reduction cache when valid. Out-of-range states return 0.
func (t *Table) BestAction(state int) int {
	if state < 0 || state >= t.states {
		return 0
	}

	t.counters.TotalAccesses++
	if t.valid[state] {
		t.counters.CacheHits++
		return int(t.bestAct[state])
	}
	t.counters.CacheMisses++

	t.fillCache(state)
	return int(t.bestAct[state])
}

// fillCache recomputes both cached values together so a max query never
// leaves a stale best-action behind a valid flag.
func (t *Table) fillCache(state int) {
	max, arg := t.reduce.maxArg(t.RowView(state))
	t.maxQ[state] = max
	t.bestAct[state] = arg
	t.valid[state] = true
}

// Invalidate clears the cached reduction for one state.
func (t *Table) Invalidate(state int) {
	if state < 0 || state >= t.states {
		return
	}
	t.valid[state] = false
}

// InvalidateAll clears every cached reduction.
func (t *Table) InvalidateAll() {
	for i := range t.valid {
		t.valid[i] = false
	}
}

// ReplaceRow overwrites a state's entire row and invalidates its cache.
// Extra values are ignored; missing values leave the tail untouched.
func (t *Table) ReplaceRow(state int, values []float32) {
	if state < 0 || state >= t.states {
		return
	}
	copy(t.RowView(state), values)
	t.valid[state] = false
}

// Prefetch is a locality hint: it touches the state's row so the next real
// access finds it warm. It never changes observable results.
func (t *Table) Prefetch(state int) {
	row := t.RowView(state)
	if row != nil {
		_ = row[0]
	}
}

// WarmUp populates the reduction cache for the given states. Purely a
// performance hint; the cached values equal what a cold query would compute.
func (t *Table) WarmUp(states []int) {
	for _, s := range states {
		if s < 0 || s >= t.states {
			continue
		}
		t.Prefetch(s)
		t.MaxValue(s)
		t.BestAction(s)
	}
}
