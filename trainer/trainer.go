package trainer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"gridworld-rl/agent"
	"gridworld-rl/gridworld"
	"gridworld-rl/qtable"
	"gridworld-rl/replay"
	"gridworld-rl/visits"
)

// Trainer runs training episodes end to end. Not safe for concurrent use.
type Trainer struct {
	cfg Config
	log *logrus.Logger

	world    *gridworld.World
	agent    *agent.Agent
	buffer   *replay.Buffer
	tracker  *visits.Tracker
	counters *qtable.Counters

	stats   *agent.TrainingStats
	metrics *agent.Metrics

	archive *Archive
	runID   string
}

// New builds a trainer from a validated config. A nil logger gets a default
// logrus logger.
func New(cfg Config, log *logrus.Logger) (*Trainer, error) {
	if log == nil {
		log = logrus.New()
	}
	rng := rand.New(rand.NewSource(cfg.Run.Seed))

	world, err := gridworld.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return nil, err
	}
	world.SetRewards(cfg.Grid.StepPenalty, cfg.Grid.GoalReward, cfg.Grid.WallPenalty)
	world.SetMaxSteps(cfg.Grid.MaxSteps)
	if cfg.Grid.Stochastic {
		world.SetStochastic(cfg.Grid.ActionNoise, rng)
	}
	if cfg.Grid.SimpleMaze {
		world.GenerateSimpleMaze()
	}
	if cfg.Grid.WallDensity > 0 {
		world.AddRandomWalls(cfg.Grid.WallDensity, rng)
	}

	counters := &qtable.Counters{}
	ag, err := agent.New(world.States(), gridworld.NumActions, agent.Config{
		LearningRate:   cfg.Agent.LearningRate,
		DiscountFactor: cfg.Agent.DiscountFactor,
		Epsilon:        cfg.Agent.Epsilon,
		EpsilonDecay:   cfg.Agent.EpsilonDecay,
		EpsilonMin:     cfg.Agent.EpsilonMin,
	}, counters, rng)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		cfg:      cfg,
		log:      log,
		world:    world,
		agent:    ag,
		counters: counters,
		stats:    agent.NewTrainingStats(cfg.Run.Episodes),
		metrics:  agent.NewMetrics(10, 20),
	}

	if cfg.Replay.Enabled {
		t.buffer, err = replay.NewBuffer(cfg.Replay.Capacity, replay.Config{
			Alpha:       cfg.Replay.Alpha,
			BetaStart:   cfg.Replay.BetaStart,
			BetaEnd:     cfg.Replay.BetaEnd,
			AnnealSteps: cfg.Replay.AnnealSteps,
			MinPriority: cfg.Replay.MinPriority,
			BatchSize:   cfg.Replay.BatchSize,
		}, rng)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Visits.Enabled {
		t.tracker, err = visits.NewTracker(world.States(), visits.Options{
			AdaptiveEpsilon:      cfg.Visits.AdaptiveEpsilon,
			AdaptiveLearningRate: cfg.Visits.AdaptiveLearningRate,
			MinBonus:             cfg.Visits.MinBonus,
			BonusDecay:           cfg.Visits.BonusDecay,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Run.ArchivePath != "" {
		t.archive, err = OpenArchive(cfg.Run.ArchivePath)
		if err != nil {
			return nil, err
		}
		t.runID, err = t.archive.BeginRun(cfg)
		if err != nil {
			t.archive.Close()
			return nil, err
		}
	}
	return t, nil
}

// Stats exposes the accumulated episode log.
func (t *Trainer) Stats() *agent.TrainingStats { return t.stats }

// Metrics exposes the convergence metrics.
func (t *Trainer) Metrics() *agent.Metrics { return t.metrics }

// Agent exposes the trained agent.
func (t *Trainer) Agent() *agent.Agent { return t.agent }

// World exposes the environment.
func (t *Trainer) World() *gridworld.World { return t.world }

// RunID returns the archive run id, empty when archiving is off.
func (t *Trainer) RunID() string { return t.runID }

// Run executes the configured number of episodes, honoring ctx cancellation
// between episodes, then writes the final exports and closes the archive.
func (t *Trainer) Run(ctx context.Context) error {
	defer func() {
		if t.archive != nil {
			t.archive.Close()
		}
	}()

	steps := 0
	for episode := 0; episode < t.cfg.Run.Episodes; episode++ {
		select {
		case <-ctx.Done():
			t.log.WithField("episode", episode).Warn("training cancelled")
			return ctx.Err()
		default:
		}

		ep := t.runEpisode(episode, &steps)
		t.stats.Record(ep)
		t.metrics.Update(t.stats, agent.QVariance(t.agent.Table()))
		t.agent.DecayEpsilon()
		if t.tracker != nil {
			t.tracker.DecayBonuses()
		}

		if t.archive != nil {
			if err := t.archive.RecordEpisode(t.runID, ep); err != nil {
				t.log.WithError(err).Warn("archive episode write failed")
			}
		}
		if (episode+1)%t.cfg.Run.LogEvery == 0 {
			t.log.WithFields(logrus.Fields{
				"run_id":    t.runID,
				"episode":   episode,
				"reward":    ep.TotalReward,
				"steps":     ep.Steps,
				"epsilon":   t.agent.Epsilon(),
				"hit_ratio": t.counters.HitRatio(),
			}).Info("training progress")
		}
	}

	if t.archive != nil {
		convergedAt := -1
		if ok, at := t.metrics.Converged(); ok {
			convergedAt = at
		}
		if err := t.archive.FinishRun(t.runID, t.stats, t.agent.Epsilon(), convergedAt); err != nil {
			t.log.WithError(err).Warn("archive finish failed")
		}
	}

	t.log.WithField("run_id", t.runID).Info(t.stats.Summary())
	return t.writeOutputs()
}

// runEpisode plays one episode and returns its stats.
func (t *Trainer) runEpisode(episode int, steps *int) agent.EpisodeStats {
	state := t.world.Reset()
	var total float32
	success := false

	for {
		var action int
		if t.tracker != nil {
			action = t.agent.SelectActionAdaptive(state, t.tracker)
		} else {
			action = t.agent.SelectAction(state)
		}

		res := t.world.Step(gridworld.Action(action))
		total += res.Reward
		*steps++

		var td float32
		if t.tracker != nil {
			td = t.agent.UpdateAdaptive(state, action, res.Reward, res.NextState, res.Terminal, t.tracker)
			t.tracker.RecordVisit(state)
		} else {
			td = t.agent.Update(state, action, res.Reward, res.NextState, res.Terminal)
		}

		if t.buffer != nil {
			t.buffer.Add(state, action, res.Reward, res.NextState, res.Terminal, td)
			if *steps%t.cfg.Replay.Frequency == 0 {
				t.replayStep()
			}
		}

		state = res.NextState
		if res.Terminal {
			success = t.world.AtGoal()
			break
		}
	}

	return agent.EpisodeStats{
		Episode:     episode,
		TotalReward: total,
		Steps:       t.world.Steps(),
		Success:     success,
		Epsilon:     t.agent.Epsilon(),
		AvgQ:        agent.AvgQ(t.agent.Table()),
	}
}

// replayStep samples one batch, replays it with importance weighting, and
// feeds the recomputed TD errors back into the priorities.
func (t *Trainer) replayStep() {
	batch, indices, weights := t.buffer.SampleBatch(t.cfg.Replay.BatchSize)
	if batch == nil {
		return
	}
	newErrors := t.agent.ReplayBatch(batch, weights)
	t.buffer.UpdatePriorities(indices, newErrors)
	t.buffer.AnnealBeta()
}

// writeOutputs emits the performance CSV, visit CSV, policy text and a
// compressed table snapshot into the output directory.
func (t *Trainer) writeOutputs() error {
	dir := t.cfg.Run.OutDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := agent.WritePerformanceCSV(filepath.Join(dir, "performance.csv"), t.stats, t.metrics); err != nil {
		return err
	}
	if t.tracker != nil {
		if err := agent.WriteVisitCSV(filepath.Join(dir, "visits.csv"), t.tracker); err != nil {
			return err
		}
	}
	if err := agent.WritePolicy(filepath.Join(dir, "policy.txt"), t.agent.Table(), t.world); err != nil {
		return err
	}
	if err := t.agent.Table().SaveSnapshot(filepath.Join(dir, "qtable.zst"), t.agent.Params()); err != nil {
		return err
	}
	t.log.WithField("dir", dir).Info("outputs written")
	return nil
}
