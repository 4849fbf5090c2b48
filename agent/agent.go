// Package agent implements the Q-learning update core on top of the value
// table, the replay buffer and the visit tracker: epsilon-greedy action
// selection, the plain / visit-adaptive / importance-weighted Bellman
// updates, and the training statistics built around them.
package agent

import (
	"math/rand"

	"gridworld-rl/qtable"
	"gridworld-rl/replay"
	"gridworld-rl/visits"
)

// Config carries the agent hyperparameters.
type Config struct {
	LearningRate   float64
	DiscountFactor float64
	Epsilon        float64
	EpsilonDecay   float64
	EpsilonMin     float64
}

// DefaultConfig matches the usual tabular Q-learning settings.
func DefaultConfig() Config {
	return Config{
		LearningRate:   0.1,
		DiscountFactor: 0.9,
		Epsilon:        1.0,
		EpsilonDecay:   0.995,
		EpsilonMin:     0.01,
	}
}

// Agent is a tabular Q-learning agent. It owns its value table; everything
// it learns goes through the table so cache invalidation always holds.
type Agent struct {
	table   *qtable.Table
	actions int

	learningRate   float64
	discount       float64
	epsilon        float64
	epsilonDecay   float64
	epsilonMin     float64

	rng *rand.Rand
}

// New creates an agent with a zeroed aligned value table. A nil counters
// pointer gives the table private instrumentation; a nil rng gets a
// fixed-seed source.
func New(states, actions int, cfg Config, counters *qtable.Counters, rng *rand.Rand) (*Agent, error) {
	table, err := qtable.New(states, actions, qtable.AllocAligned, counters)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Agent{
		table:        table,
		actions:      actions,
		learningRate: cfg.LearningRate,
		discount:     cfg.DiscountFactor,
		epsilon:      cfg.Epsilon,
		epsilonDecay: cfg.EpsilonDecay,
		epsilonMin:   cfg.EpsilonMin,
		rng:          rng,
	}, nil
}

// Table exposes the underlying value table.
func (a *Agent) Table() *qtable.Table { return a.table }

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 { return a.epsilon }

// SelectGreedy returns the best-known action for a state, ties resolved
// toward the lowest action index by the reduction cache.
func (a *Agent) SelectGreedy(state int) int {
	return a.table.BestAction(state)
}

// SelectAction picks epsilon-greedily with the agent's base epsilon.
func (a *Agent) SelectAction(state int) int {
	return a.selectWithEpsilon(state, a.epsilon)
}

// SelectActionAdaptive picks epsilon-greedily with the tracker's per-state
// epsilon, so familiar states explore less.
func (a *Agent) SelectActionAdaptive(state int, tracker *visits.Tracker) int {
	return a.selectWithEpsilon(state, tracker.StateEpsilon(state, a.epsilon))
}

func (a *Agent) selectWithEpsilon(state int, eps float64) int {
	if a.rng.Float64() < eps {
		return a.rng.Intn(a.actions)
	}
	return a.table.BestAction(state)
}

// Update applies the plain Q-learning Bellman update
//
//	Q(s,a) += lr * (r + gamma*maxQ(s') - Q(s,a))
//
// with the discounted term dropped on terminal transitions. Returns the TD
// error used.
func (a *Agent) Update(state, action int, reward float32, nextState int, terminal bool) float32 {
	return a.update(state, action, reward, nextState, terminal, a.learningRate)
}

// UpdateAdaptive is the visit-adaptive variant: the learning rate is scaled
// by the tracker's per-state multiplier and the reward is augmented with the
// state's exploration bonus before the target is formed.
func (a *Agent) UpdateAdaptive(state, action int, reward float32, nextState int, terminal bool, tracker *visits.Tracker) float32 {
	lr := tracker.StateLearningRate(state, a.learningRate)
	shaped := reward + float32(tracker.ExplorationBonus(state))
	return a.update(state, action, shaped, nextState, terminal, lr)
}

func (a *Agent) update(state, action int, reward float32, nextState int, terminal bool, lr float64) float32 {
	current := float64(a.table.Get(state, action))

	var nextMax float64
	if !terminal {
		nextMax = float64(a.table.MaxValue(nextState))
	}

	target := float64(reward) + a.discount*nextMax
	tdError := target - current
	a.table.Set(state, action, float32(current+lr*tdError))
	return float32(tdError)
}

// TDError computes the current TD error of a stored experience without
// mutating the table.
func (a *Agent) TDError(e replay.Experience) float32 {
	current := float64(a.table.Get(e.State, e.Action))
	var nextMax float64
	if !e.Terminal {
		nextMax = float64(a.table.MaxValue(e.NextState))
	}
	return float32(float64(e.Reward) + a.discount*nextMax - current)
}

// ReplayBatch replays sampled experiences, scaling the learning-rate term by
// each sample's importance weight: Q += (lr*w) * tdError. It returns the
// recomputed TD errors after the whole batch has been applied, ready for
// Buffer.UpdatePriorities.
func (a *Agent) ReplayBatch(batch []replay.Experience, weights []float64) []float32 {
	n := len(batch)
	if len(weights) < n {
		n = len(weights)
	}
	for i := 0; i < n; i++ {
		e := batch[i]
		a.update(e.State, e.Action, e.Reward, e.NextState, e.Terminal, a.learningRate*weights[i])
	}

	newErrors := make([]float32, n)
	for i := 0; i < n; i++ {
		newErrors[i] = a.TDError(batch[i])
	}
	return newErrors
}

// DecayEpsilon applies one episode's exploration decay:
// epsilon = max(epsilonMin, epsilon*epsilonDecay). The training loop calls
// this once per episode; nothing triggers it internally.
func (a *Agent) DecayEpsilon() {
	a.epsilon *= a.epsilonDecay
	if a.epsilon < a.epsilonMin {
		a.epsilon = a.epsilonMin
	}
}

// Params packages the live hyperparameters in the table-file header form.
func (a *Agent) Params() qtable.Params {
	return qtable.Params{
		LearningRate:   float32(a.learningRate),
		DiscountFactor: float32(a.discount),
		Epsilon:        float32(a.epsilon),
		EpsilonDecay:   float32(a.epsilonDecay),
		EpsilonMin:     float32(a.epsilonMin),
	}
}

// Save writes the agent's table and hyperparameters to the binary format.
func (a *Agent) Save(path string) error {
	return a.table.Save(path, a.Params())
}

// Load restores table values and hyperparameters from a file saved by Save.
// Dimensions must match; on error the agent is unchanged.
func (a *Agent) Load(path string) error {
	p, err := a.table.Load(path)
	if err != nil {
		return err
	}
	a.learningRate = float64(p.LearningRate)
	a.discount = float64(p.DiscountFactor)
	a.epsilon = float64(p.Epsilon)
	a.epsilonDecay = float64(p.EpsilonDecay)
	a.epsilonMin = float64(p.EpsilonMin)
	return nil
}
