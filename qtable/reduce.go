package qtable

// reducer computes the maximum value and its lowest-index position over a
// row. Implementations must agree bit-for-bit: a pure float32 max has no
// rounding, so scalar and lane-blocked paths return identical results as long
// as both resolve ties toward the lowest index.
type reducer interface {
	maxArg(row []float32) (float32, int32)
}

// scalarReducer is the plain running-max loop.
type scalarReducer struct{}

func (scalarReducer) maxArg(row []float32) (float32, int32) {
	best := row[0]
	arg := int32(0)
	for i := 1; i < len(row); i++ {
		if row[i] > best {
			best = row[i]
			arg = int32(i)
		}
	}
	return best, arg
}

// laneReducer processes the row in 8-wide blocks, keeping one running maximum
// per lane, then combines lanes horizontally. This is the data-parallel shape
// the compiler can vectorize; semantically it is still an exact max.
type laneReducer struct {
	counters *Counters
}

func (r laneReducer) maxArg(row []float32) (float32, int32) {
	n := len(row)
	if n < laneMinActions {
		return scalarReducer{}.maxArg(row)
	}
	r.counters.SIMDOps++

	var lane [8]float32
	var arg [8]int32
	for l := 0; l < 8; l++ {
		lane[l] = row[l]
		arg[l] = int32(l)
	}

	blockEnd := (n / 8) * 8
	for i := 8; i < blockEnd; i += 8 {
		b := row[i : i+8 : i+8]
		for l := 0; l < 8; l++ {
			// Strict > keeps the earliest index within each lane.
			if b[l] > lane[l] {
				lane[l] = b[l]
				arg[l] = int32(i + l)
			}
		}
	}

	// Horizontal combine. Lanes hold disjoint index classes, so on equal
	// values the smaller stored index wins the global tie-break.
	best := lane[0]
	bestArg := arg[0]
	for l := 1; l < 8; l++ {
		if lane[l] > best || (lane[l] == best && arg[l] < bestArg) {
			best = lane[l]
			bestArg = arg[l]
		}
	}

	// Scalar tail for the remainder.
	for i := blockEnd; i < n; i++ {
		if row[i] > best {
			best = row[i]
			bestArg = int32(i)
		}
	}

	return best, bestArg
}
