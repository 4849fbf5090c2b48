package visits

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestNewTrackerRejectsBadStateCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewTracker(n, DefaultOptions()); err == nil {
			t.Fatalf("state count %d accepted", n)
		}
	}
}

func TestInitialDefaults(t *testing.T) {
	tr, err := NewTracker(20, DefaultOptions())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	for s := 0; s < 20; s++ {
		if tr.VisitCount(s) != 0 {
			t.Fatalf("initial count[%d] = %d", s, tr.VisitCount(s))
		}
		if tr.ExplorationBonus(s) != 1.0 || tr.VisitPriority(s) != 1.0 {
			t.Fatalf("state %d not at neutral defaults", s)
		}
		if tr.EpsilonMultiplier(s) != 1.0 || tr.LearningRateMultiplier(s) != 1.0 {
			t.Fatalf("state %d multipliers not neutral", s)
		}
	}
	if tr.TotalVisits() != 0 {
		t.Fatalf("initial total visits = %d", tr.TotalVisits())
	}
}

func TestRecordVisitBonusFormula(t *testing.T) {
	tr, _ := NewTracker(10, DefaultOptions())

	for n := 1; n <= 20; n++ {
		tr.RecordVisit(3)
		want := math.Max(0.01, 1.0/math.Sqrt(float64(n+1)))
		if got := tr.ExplorationBonus(3); math.Abs(got-want) > eps {
			t.Fatalf("after %d visits bonus = %v, want %v", n, got, want)
		}
	}
	if tr.VisitCount(3) != 20 || tr.TotalVisits() != 20 {
		t.Fatalf("counts wrong: %d / %d", tr.VisitCount(3), tr.TotalVisits())
	}

	// Out-of-range visits are silent no-ops.
	tr.RecordVisit(-1)
	tr.RecordVisit(10)
	if tr.TotalVisits() != 20 {
		t.Fatalf("out-of-range visit counted")
	}
}

func TestAdaptiveMultipliers(t *testing.T) {
	tr, _ := NewTracker(10, DefaultOptions())

	tr.RecordVisit(5)
	bonus := tr.ExplorationBonus(5)
	if got := tr.EpsilonMultiplier(5); math.Abs(got-bonus) > eps {
		t.Fatalf("epsilon multiplier = %v, want bonus %v", got, bonus)
	}
	if got := tr.LearningRateMultiplier(5); math.Abs(got-math.Min(2.0, 1.0+bonus)) > eps {
		t.Fatalf("lr multiplier = %v", got)
	}

	base := 0.3
	if got := tr.StateEpsilon(5, base); math.Abs(got-base*bonus) > eps {
		t.Fatalf("StateEpsilon = %v, want %v", got, base*bonus)
	}
	if got := tr.StateLearningRate(5, 0.1); math.Abs(got-0.1*(1.0+bonus)) > eps {
		t.Fatalf("StateLearningRate = %v", got)
	}

	// Disabled adaptivity passes the base through.
	off, _ := NewTracker(10, Options{MinBonus: 0.01, BonusDecay: 0.99})
	off.RecordVisit(5)
	if off.StateEpsilon(5, base) != base {
		t.Fatalf("disabled adaptive epsilon still scaled")
	}
	if off.StateLearningRate(5, 0.1) != 0.1 {
		t.Fatalf("disabled adaptive lr still scaled")
	}
}

func TestPrioritiesFavorLessVisited(t *testing.T) {
	tr, _ := NewTracker(4, DefaultOptions())

	// State 0 heavily visited, 1 moderately, 2 lightly, 3 never.
	for i := 0; i < 30; i++ {
		tr.RecordVisit(0)
	}
	for i := 0; i < 10; i++ {
		tr.RecordVisit(1)
	}
	tr.RecordVisit(2)

	p := []float64{tr.VisitPriority(0), tr.VisitPriority(1), tr.VisitPriority(2), tr.VisitPriority(3)}
	if !(p[3] > p[2] && p[2] > p[1] && p[1] > p[0]) {
		t.Fatalf("priorities not ordered by inverse visits: %v", p)
	}
	if got := tr.SelectPriorityState(); got != 3 {
		t.Fatalf("SelectPriorityState = %d, want 3", got)
	}
}

func TestUniformVisitsUniformPriority(t *testing.T) {
	tr, _ := NewTracker(5, DefaultOptions())
	for s := 0; s < 5; s++ {
		tr.RecordVisit(s)
	}
	for s := 0; s < 5; s++ {
		if tr.VisitPriority(s) != 1.0 {
			t.Fatalf("all-equal counts priority[%d] = %v, want 1.0", s, tr.VisitPriority(s))
		}
	}
	// Lowest index wins the all-equal tie.
	if got := tr.SelectPriorityState(); got != 0 {
		t.Fatalf("tie-break SelectPriorityState = %d, want 0", got)
	}
}

func TestDecayBonusesFloor(t *testing.T) {
	opts := DefaultOptions()
	tr, _ := NewTracker(3, opts)
	tr.RecordVisit(0)

	initial := tr.ExplorationBonus(0)
	for i := 0; i < 10; i++ {
		tr.DecayBonuses()
	}
	decayed := tr.ExplorationBonus(0)
	if decayed >= initial {
		t.Fatalf("bonus did not decay: %v -> %v", initial, decayed)
	}
	if decayed < opts.MinBonus {
		t.Fatalf("bonus %v under the floor %v", decayed, opts.MinBonus)
	}

	for i := 0; i < 2000; i++ {
		tr.DecayBonuses()
	}
	if got := tr.ExplorationBonus(0); math.Abs(got-opts.MinBonus) > eps {
		t.Fatalf("bonus = %v, want floor %v", got, opts.MinBonus)
	}
}

func TestCoverageAndExtremes(t *testing.T) {
	tr, _ := NewTracker(10, DefaultOptions())
	tr.RecordVisit(1)
	tr.RecordVisit(1)
	tr.RecordVisit(4)
	tr.RecordVisit(7)
	tr.RecordVisit(9)

	if got := tr.ExplorationCoverage(); math.Abs(got-0.4) > eps {
		t.Fatalf("coverage = %v, want 0.4", got)
	}
	// States 0,2,3,5,6,8 all have zero visits; lowest index wins.
	if got := tr.LeastVisitedState(); got != 0 {
		t.Fatalf("least visited = %d, want 0", got)
	}
	if got := tr.MostVisitedState(); got != 1 {
		t.Fatalf("most visited = %d, want 1", got)
	}
}

func TestReset(t *testing.T) {
	tr, _ := NewTracker(6, DefaultOptions())
	for i := 0; i < 25; i++ {
		tr.RecordVisit(i % 6)
	}
	for i := 0; i < 40; i++ {
		tr.DecayBonuses()
	}

	tr.Reset()
	if tr.TotalVisits() != 0 {
		t.Fatalf("total visits after reset = %d", tr.TotalVisits())
	}
	for s := 0; s < 6; s++ {
		if tr.VisitCount(s) != 0 || tr.ExplorationBonus(s) != 1.0 ||
			tr.EpsilonMultiplier(s) != 1.0 || tr.LearningRateMultiplier(s) != 1.0 ||
			tr.VisitPriority(s) != 1.0 {
			t.Fatalf("state %d not restored to defaults", s)
		}
	}
}
