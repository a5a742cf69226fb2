// Command simulate plays many headless matches with autopilot bots and
// prints a balance report: how long ships survive, what ends matches and
// how scores spread.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/room"
)

type options struct {
	matches   int
	players   int
	tickRate  int
	maxTicks  int
	fireEvery int
	timeLimit time.Duration
	prefix    string
	workers   int
}

func main() {
	var o options
	flag.IntVar(&o.matches, "matches", 2000, "number of matches to simulate")
	flag.IntVar(&o.players, "players", 4, "bots per match")
	flag.IntVar(&o.tickRate, "tick", 30, "simulated ticks per second")
	flag.IntVar(&o.maxTicks, "max-ticks", 0, "tick cap per match (0 = 5 minutes)")
	flag.IntVar(&o.fireEvery, "fire-every", 4, "bots shoot every n ticks (0 = never)")
	flag.DurationVar(&o.timeLimit, "time-limit", 0, "match time limit (0 = none)")
	flag.StringVar(&o.prefix, "room", "sim", "room id prefix; match i uses <prefix>-<i>")
	flag.IntVar(&o.workers, "workers", runtime.GOMAXPROCS(0), "parallel workers")
	flag.Parse()

	if o.matches < 1 || o.players < 1 || o.workers < 1 {
		fmt.Fprintln(os.Stderr, "matches, players and workers must be positive")
		os.Exit(2)
	}

	start := time.Now()
	results := make([]room.SimResult, o.matches)
	game := config.DefaultGame()

	var progress atomic.Int64
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range results {
		g.Go(func() error {
			results[i] = room.Simulate(room.SimConfig{
				RoomID:     fmt.Sprintf("%s-%d", o.prefix, i),
				Round:      1,
				Players:    o.players,
				Game:       game,
				TickRate:   o.tickRate,
				MaxTicks:   o.maxTicks,
				FireEvery:  o.fireEvery,
				TimeLimit:  o.timeLimit,
				SilentMode: true,
			})
			if n := progress.Add(1); o.matches >= 10 && n%int64(o.matches/10) == 0 {
				fmt.Printf("  ... %d/%d matches (%.0f%%)\n", n, o.matches, float64(n)/float64(o.matches)*100)
			}
			return nil
		})
	}
	g.Wait()

	printReport(o, results, time.Since(start))
}

func printReport(o options, results []room.SimResult, elapsed time.Duration) {
	var durations, scores, topScores []float64
	reasons := make(map[string]int)
	survivors := 0

	for _, r := range results {
		durations = append(durations, r.Elapsed)
		reasons[r.FinishReason]++
		survivors += r.Survivors
		top := 0
		for _, s := range r.Scores {
			scores = append(scores, float64(s))
			top = max(top, s)
		}
		topScores = append(topScores, float64(top))
	}
	sort.Float64s(durations)
	sort.Float64s(scores)
	sort.Float64s(topScores)

	fmt.Println()
	fmt.Println("  HEADLESS MATCH REPORT")
	fmt.Println()
	fmt.Printf("  Matches: %d  |  Bots/match: %d  |  Tick: %dHz  |  Fire every: %d ticks\n",
		o.matches, o.players, o.tickRate, o.fireEvery)
	fmt.Printf("  Elapsed: %v  |  Workers: %d\n", elapsed.Round(time.Millisecond), o.workers)
	fmt.Println()

	fmt.Println("  Match length (simulated seconds)")
	printDist(durations)
	fmt.Println()
	fmt.Println("  Score per bot")
	printDist(scores)
	fmt.Println()
	fmt.Println("  Best score per match")
	printDist(topScores)
	fmt.Println()

	fmt.Println("  Finish reasons")
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("    %-12s %6d  (%5.1f%%)\n", k, reasons[k], float64(reasons[k])/float64(len(results))*100)
	}
	fmt.Printf("  Bots alive at cap: %d of %d\n", survivors, len(results)*o.players)
}

func printDist(sorted []float64) {
	fmt.Printf("    mean %8.2f  p10 %8.2f  p50 %8.2f  p90 %8.2f  max %8.2f\n",
		mean(sorted), percentile(sorted, 10), percentile(sorted, 50), percentile(sorted, 90), percentile(sorted, 100))
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return sum(s) / float64(len(s))
}

func sum(s []float64) float64 {
	t := 0.0
	for _, v := range s {
		t += v
	}
	return t
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * pct / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
