package agent

import (
	"fmt"
	"math"

	"gridworld-rl/qtable"
)

// EpisodeStats is one episode's outcome.
type EpisodeStats struct {
	Episode     int
	TotalReward float32
	Steps       int
	Success     bool
	Epsilon     float64
	AvgQ        float32
}

// TrainingStats accumulates per-episode outcomes and best/worst tracking.
type TrainingStats struct {
	episodes []EpisodeStats
	count    int

	bestReward  float32
	bestEpisode int
	worstReward float32
	worstEpisode int
	successes   int
}

// NewTrainingStats sizes the episode log up front.
func NewTrainingStats(maxEpisodes int) *TrainingStats {
	return &TrainingStats{
		episodes:    make([]EpisodeStats, 0, maxEpisodes),
		bestReward:  float32(math.Inf(-1)),
		worstReward: float32(math.Inf(1)),
	}
}

// Record appends an episode and updates the aggregates.
func (s *TrainingStats) Record(ep EpisodeStats) {
	s.episodes = append(s.episodes, ep)
	s.count++
	if ep.TotalReward > s.bestReward {
		s.bestReward = ep.TotalReward
		s.bestEpisode = ep.Episode
	}
	if ep.TotalReward < s.worstReward {
		s.worstReward = ep.TotalReward
		s.worstEpisode = ep.Episode
	}
	if ep.Success {
		s.successes++
	}
}

// Episodes returns the recorded log.
func (s *TrainingStats) Episodes() []EpisodeStats { return s.episodes }

// Count returns the number of recorded episodes.
func (s *TrainingStats) Count() int { return s.count }

// Best returns the highest-reward episode seen.
func (s *TrainingStats) Best() (episode int, reward float32) {
	return s.bestEpisode, s.bestReward
}

// Worst returns the lowest-reward episode seen.
func (s *TrainingStats) Worst() (episode int, reward float32) {
	return s.worstEpisode, s.worstReward
}

// SuccessRate returns the fraction of episodes that reached the goal.
func (s *TrainingStats) SuccessRate() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.count)
}

// AverageReward returns the mean total reward over all episodes.
func (s *TrainingStats) AverageReward() float64 {
	if s.count == 0 {
		return 0
	}
	var sum float64
	for _, ep := range s.episodes {
		sum += float64(ep.TotalReward)
	}
	return sum / float64(s.count)
}

// AverageSteps returns the mean step count over all episodes.
func (s *TrainingStats) AverageSteps() float64 {
	if s.count == 0 {
		return 0
	}
	var sum int
	for _, ep := range s.episodes {
		sum += ep.Steps
	}
	return float64(sum) / float64(s.count)
}

// Summary formats the aggregates for log output.
func (s *TrainingStats) Summary() string {
	return fmt.Sprintf("episodes=%d best=%d(%.2f) worst=%d(%.2f) avg_reward=%.2f avg_steps=%.1f success=%.1f%%",
		s.count, s.bestEpisode, s.bestReward, s.worstEpisode, s.worstReward,
		s.AverageReward(), s.AverageSteps(), s.SuccessRate()*100)
}

// Metrics derives convergence signals from the episode log: moving averages
// of reward and steps, epsilon and Q-variance histories, and a windowed
// stability check.
type Metrics struct {
	window    int
	threshold int

	movAvgReward []float64
	movAvgSteps  []float64
	epsilons     []float64
	qVariances   []float64

	converged   bool
	convergedAt int
}

// NewMetrics creates a metrics tracker. window is the moving-average width,
// threshold the number of consecutive stable windows that counts as
// convergence.
func NewMetrics(window, threshold int) *Metrics {
	if window <= 0 {
		window = 10
	}
	if threshold <= 0 {
		threshold = 20
	}
	return &Metrics{window: window, threshold: threshold}
}

// Update appends one episode's derived metrics. stats must already contain
// the episode.
func (m *Metrics) Update(stats *TrainingStats, qVariance float64) {
	eps := stats.Episodes()
	n := len(eps)
	if n == 0 {
		return
	}

	start := n - m.window
	if start < 0 {
		start = 0
	}
	var rewardSum, stepSum float64
	for _, ep := range eps[start:] {
		rewardSum += float64(ep.TotalReward)
		stepSum += float64(ep.Steps)
	}
	span := float64(n - start)
	m.movAvgReward = append(m.movAvgReward, rewardSum/span)
	m.movAvgSteps = append(m.movAvgSteps, stepSum/span)
	m.epsilons = append(m.epsilons, eps[n-1].Epsilon)
	m.qVariances = append(m.qVariances, qVariance)

	if !m.converged && m.stable() {
		m.converged = true
		m.convergedAt = eps[n-1].Episode
	}
}

// stable reports whether the moving-average reward held within a narrow
// relative band for the last threshold episodes.
func (m *Metrics) stable() bool {
	n := len(m.movAvgReward)
	if n < m.threshold {
		return false
	}
	window := m.movAvgReward[n-m.threshold:]
	lo, hi := window[0], window[0]
	for _, v := range window[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := math.Max(math.Abs(lo), math.Abs(hi))
	if scale < 1e-9 {
		return true
	}
	return (hi-lo)/scale < 0.05
}

// Converged reports whether and where convergence was detected.
func (m *Metrics) Converged() (bool, int) { return m.converged, m.convergedAt }

// MovingAvgReward returns the reward moving-average history.
func (m *Metrics) MovingAvgReward() []float64 { return m.movAvgReward }

// MovingAvgSteps returns the step moving-average history.
func (m *Metrics) MovingAvgSteps() []float64 { return m.movAvgSteps }

// QVariances returns the Q-variance history.
func (m *Metrics) QVariances() []float64 { return m.qVariances }

// Epsilons returns the epsilon history.
func (m *Metrics) Epsilons() []float64 { return m.epsilons }

// QVariance computes the population variance over every cell of the table.
// A flattening variance is one of the convergence signals.
func QVariance(t *qtable.Table) float64 {
	states, actions := t.States(), t.Actions()
	n := float64(states * actions)

	var mean float64
	for s := 0; s < states; s++ {
		for _, v := range t.RowView(s) {
			mean += float64(v)
		}
	}
	mean /= n

	var sq float64
	for s := 0; s < states; s++ {
		for _, v := range t.RowView(s) {
			d := float64(v) - mean
			sq += d * d
		}
	}
	return sq / n
}

// AvgQ computes the mean Q-value over the whole table, recorded per episode
// in the stats log.
func AvgQ(t *qtable.Table) float32 {
	states, actions := t.States(), t.Actions()
	var sum float64
	for s := 0; s < states; s++ {
		for _, v := range t.RowView(s) {
			sum += float64(v)
		}
	}
	return float32(sum / float64(states*actions))
}
