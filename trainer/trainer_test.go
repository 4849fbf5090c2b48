package trainer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func smallConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Grid.Width = 4
	cfg.Grid.Height = 4
	cfg.Grid.MaxSteps = 60
	cfg.Run.Episodes = 50
	cfg.Run.Seed = 11
	cfg.Run.LogEvery = 1000
	cfg.Run.OutDir = filepath.Join(t.TempDir(), "out")
	cfg.Replay.Capacity = 500
	cfg.Replay.BatchSize = 8
	cfg.Replay.AnnealSteps = 100
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunProducesOutputs(t *testing.T) {
	cfg := smallConfig(t)
	tr, err := New(cfg, quietLogger())
	require.NoError(t, err)

	require.NoError(t, tr.Run(context.Background()))

	assert.Equal(t, cfg.Run.Episodes, tr.Stats().Count())
	for _, name := range []string{"performance.csv", "visits.csv", "policy.txt", "qtable.zst"} {
		_, err := os.Stat(filepath.Join(cfg.Run.OutDir, name))
		assert.NoError(t, err, name)
	}

	// Training on a small open grid should learn something: the epsilon
	// decayed and at least one episode reached the goal.
	assert.Less(t, tr.Agent().Epsilon(), cfg.Agent.Epsilon)
	assert.Greater(t, tr.Stats().SuccessRate(), 0.0)
}

func TestRunWithoutReplayOrVisits(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Replay.Enabled = false
	cfg.Visits.Enabled = false
	cfg.Run.Episodes = 10

	tr, err := New(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))
	assert.Equal(t, 10, tr.Stats().Count())

	// No tracker means no visit CSV.
	_, err = os.Stat(filepath.Join(cfg.Run.OutDir, "visits.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunArchivesEpisodes(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Run.Episodes = 5
	cfg.Run.ArchivePath = filepath.Join(t.TempDir(), "runs.db")

	tr, err := New(cfg, quietLogger())
	require.NoError(t, err)
	runID := tr.RunID()
	require.NotEmpty(t, runID)
	require.NoError(t, tr.Run(context.Background()))

	a, err := OpenArchive(cfg.Run.ArchivePath)
	require.NoError(t, err)
	defer a.Close()

	n, err := a.EpisodeCount(runID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	runs, err := a.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].Episodes)
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Run.Episodes = 100000

	tr, err := New(cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.Run(ctx), context.Canceled)
}
