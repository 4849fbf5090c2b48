package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gridworld-rl/visits"
)

type fakeGrid struct {
	w, h  int
	walls map[[2]int]bool
}

func (g fakeGrid) Width() int  { return g.w }
func (g fakeGrid) Height() int { return g.h }
func (g fakeGrid) IsWalkable(x, y int) bool {
	return !g.walls[[2]int{x, y}]
}
func (g fakeGrid) StateAt(x, y int) int { return y*g.w + x }

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestWritePerformanceCSV(t *testing.T) {
	s := NewTrainingStats(3)
	m := NewMetrics(2, 100)
	s.Record(EpisodeStats{Episode: 0, TotalReward: 1.5, Steps: 10, Success: true, Epsilon: 0.9})
	m.Update(s, 0.25)
	s.Record(EpisodeStats{Episode: 1, TotalReward: -0.5, Steps: 30, Epsilon: 0.8})
	m.Update(s, 0.5)

	path := filepath.Join(t.TempDir(), "perf.csv")
	if err := WritePerformanceCSV(path, s, m); err != nil {
		t.Fatalf("WritePerformanceCSV: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "#") || !strings.HasPrefix(lines[1], "# episode,") {
		t.Fatalf("bad header: %v", lines[:2])
	}
	if !strings.HasPrefix(lines[2], "0,1.5000,10,1,") {
		t.Fatalf("row 0: %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "1,-0.5000,30,0,") {
		t.Fatalf("row 1: %q", lines[3])
	}
	if !strings.Contains(lines[3], "0.500000") {
		t.Fatalf("q variance missing: %q", lines[3])
	}
}

func TestWriteVisitCSV(t *testing.T) {
	tr, _ := visits.NewTracker(3, visits.DefaultOptions())
	tr.RecordVisit(1)
	tr.RecordVisit(1)

	path := filepath.Join(t.TempDir(), "visits.csv")
	if err := WriteVisitCSV(path, tr); err != nil {
		t.Fatalf("WriteVisitCSV: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 5 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[3], "1,2,") {
		t.Fatalf("state 1 row: %q", lines[3])
	}
	if !strings.HasPrefix(lines[2], "0,0,") || !strings.HasPrefix(lines[4], "2,0,") {
		t.Fatalf("unvisited rows: %q / %q", lines[2], lines[4])
	}
}

func TestWritePolicySkipsWalls(t *testing.T) {
	a := newTestAgent(t, 6, 4, DefaultConfig())
	a.Table().Set(4, 3, 2.0) // best at (1,1) is action 3

	grid := fakeGrid{w: 3, h: 2, walls: map[[2]int]bool{{2, 0}: true}}
	path := filepath.Join(t.TempDir(), "policy.txt")
	if err := WritePolicy(path, a.Table(), grid); err != nil {
		t.Fatalf("WritePolicy: %v", err)
	}

	lines := readLines(t, path)
	// Header plus 5 walkable cells out of 6.
	if len(lines) != 6 {
		t.Fatalf("got %d lines: %v", len(lines), lines)
	}
	for _, l := range lines[1:] {
		if strings.HasPrefix(l, "2,0,") {
			t.Fatalf("wall cell exported: %q", l)
		}
	}
	found := false
	for _, l := range lines[1:] {
		if strings.HasPrefix(l, "1,1,") {
			found = true
			if !strings.HasSuffix(l, ",3") {
				t.Fatalf("best action for (1,1): %q", l)
			}
		}
	}
	if !found {
		t.Fatalf("cell (1,1) missing")
	}
}

func TestExportsAreAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perf.csv")
	s := NewTrainingStats(1)
	m := NewMetrics(2, 100)
	if err := WritePerformanceCSV(path, s, m); err != nil {
		t.Fatalf("WritePerformanceCSV: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}
