package trainer

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gridworld-rl/agent"
)

// Archive records runs and their per-episode outcomes in sqlite, so training
// history survives across processes and can be queried afterwards.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the run archive at path.
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL suits the append-style episode writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, err
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			config_json TEXT NOT NULL,
			episodes INTEGER NOT NULL DEFAULT 0,
			success_rate REAL NOT NULL DEFAULT 0,
			avg_reward REAL NOT NULL DEFAULT 0,
			final_epsilon REAL NOT NULL DEFAULT 0,
			converged_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT NOT NULL,
			episode INTEGER NOT NULL,
			reward REAL NOT NULL,
			steps INTEGER NOT NULL,
			success INTEGER NOT NULL,
			epsilon REAL NOT NULL,
			PRIMARY KEY (run_id, episode)
		);`,
	}
	for _, s := range schema {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error { return a.db.Close() }

// BeginRun registers a new run and returns its id.
func (a *Archive) BeginRun(cfg Config) (string, error) {
	runID := uuid.NewString()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	_, err = a.db.Exec(
		`INSERT INTO runs (run_id, started_at, config_json) VALUES (?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339), string(cfgJSON))
	if err != nil {
		return "", err
	}
	return runID, nil
}

// RecordEpisode appends one episode row.
func (a *Archive) RecordEpisode(runID string, ep agent.EpisodeStats) error {
	success := 0
	if ep.Success {
		success = 1
	}
	_, err := a.db.Exec(
		`INSERT INTO episodes (run_id, episode, reward, steps, success, epsilon)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, ep.Episode, float64(ep.TotalReward), ep.Steps, success, ep.Epsilon)
	return err
}

// FinishRun fills in the run's final aggregates. convergedAt below zero
// stores NULL.
func (a *Archive) FinishRun(runID string, stats *agent.TrainingStats, finalEpsilon float64, convergedAt int) error {
	var converged any
	if convergedAt >= 0 {
		converged = convergedAt
	}
	_, err := a.db.Exec(
		`UPDATE runs SET finished_at = ?, episodes = ?, success_rate = ?,
		 avg_reward = ?, final_epsilon = ?, converged_at = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		stats.Count(), stats.SuccessRate(), stats.AverageReward(),
		finalEpsilon, converged, runID)
	return err
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID        string
	Episodes     int
	SuccessRate  float64
	AvgReward    float64
	FinalEpsilon float64
}

// Runs lists archived runs, newest first.
func (a *Archive) Runs() ([]RunSummary, error) {
	rows, err := a.db.Query(
		`SELECT run_id, episodes, success_rate, avg_reward, final_epsilon
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Episodes, &r.SuccessRate, &r.AvgReward, &r.FinalEpsilon); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EpisodeCount returns the number of archived episodes for a run.
func (a *Archive) EpisodeCount(runID string) (int, error) {
	var n int
	err := a.db.QueryRow(
		`SELECT COUNT(*) FROM episodes WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
