package agent

import (
	"bufio"
	"fmt"
	"os"

	"gridworld-rl/qtable"
	"gridworld-rl/visits"
)

// PolicyGrid is the slice of the environment the policy export needs:
// a rectangular layout with walkable cells mapped to state indices. The
// engine stays environment-agnostic; any grid-shaped world satisfies this.
type PolicyGrid interface {
	Width() int
	Height() int
	IsWalkable(x, y int) bool
	StateAt(x, y int) int
}

// writeAtomic runs the write function against a temp file, then renames it
// into place, so readers never observe a partial export.
func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// WritePerformanceCSV exports the per-episode performance log: a commented
// header, then one row per episode in the documented column order.
func WritePerformanceCSV(path string, stats *TrainingStats, metrics *Metrics) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		fmt.Fprintln(w, "# per-episode training performance")
		fmt.Fprintln(w, "# episode,reward,steps,success,movAvgReward,movAvgSteps,epsilon,qVariance")

		movR := metrics.MovingAvgReward()
		movS := metrics.MovingAvgSteps()
		qVar := metrics.QVariances()
		for i, ep := range stats.Episodes() {
			success := 0
			if ep.Success {
				success = 1
			}
			var mr, ms, qv float64
			if i < len(movR) {
				mr, ms, qv = movR[i], movS[i], qVar[i]
			}
			if _, err := fmt.Fprintf(w, "%d,%.4f,%d,%d,%.4f,%.4f,%.6f,%.6f\n",
				ep.Episode, ep.TotalReward, ep.Steps, success, mr, ms, ep.Epsilon, qv); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteVisitCSV exports the visit tracker's per-state signals.
func WriteVisitCSV(path string, tracker *visits.Tracker) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		fmt.Fprintln(w, "# per-state visit statistics")
		fmt.Fprintln(w, "# state,visits,priority,explorationBonus,stateEpsilon,stateLearningRate")

		for s := 0; s < tracker.States(); s++ {
			if _, err := fmt.Fprintf(w, "%d,%d,%.6f,%.6f,%.6f,%.6f\n",
				s, tracker.VisitCount(s), tracker.VisitPriority(s),
				tracker.ExplorationBonus(s), tracker.EpsilonMultiplier(s),
				tracker.LearningRateMultiplier(s)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WritePolicy exports the learned policy as text: one line per walkable
// state with the cell coordinates, the four action values in up/down/left/
// right order and the greedy action index.
func WritePolicy(path string, table *qtable.Table, grid PolicyGrid) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		fmt.Fprintln(w, "# x,y,q_up,q_down,q_left,q_right,best_action_index")
		for y := 0; y < grid.Height(); y++ {
			for x := 0; x < grid.Width(); x++ {
				if !grid.IsWalkable(x, y) {
					continue
				}
				s := grid.StateAt(x, y)
				if _, err := fmt.Fprintf(w, "%d,%d,%.4f,%.4f,%.4f,%.4f,%d\n",
					x, y,
					table.Get(s, 0), table.Get(s, 1), table.Get(s, 2), table.Get(s, 3),
					table.BestAction(s)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
