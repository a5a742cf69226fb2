package room

import (
	"fmt"
	"math"
	"time"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/game"
	"github.com/driftline/driftline/internal/level"
)

// SimConfig fully describes a headless match. Nothing in a simulation reads
// the clock, so equal configs give equal results.
type SimConfig struct {
	RoomID  string
	Round   int
	Players int
	Game    config.Game

	TickRate   int           // ticks per simulated second; 0 means 30
	MaxTicks   int           // safety cap; 0 means 5 minutes of play
	FireEvery  int           // bots shoot every n ticks; 0 disables shooting
	TimeLimit  time.Duration // passed to the end policy; 0 means none
	SilentMode bool          // skip event recording for bulk runs
}

type SimEvent struct {
	Tick   int
	Type   string // "death", "powerup", "finish"
	Player string
	Detail string
}

type SimResult struct {
	Seed         uint32
	TotalTicks   int
	Elapsed      float64 // simulated seconds
	FinishReason string  // an end policy reason, or "max_ticks"
	Scores       map[string]int
	Survivors    int
	Events       []SimEvent
}

// Simulate runs a match with autopilot bots through the same world step as
// a live room.
//
// Each tick:
//  1. every living bot steers toward the gap of the next row ahead
//  2. bots fire on their schedule
//  3. the world advances one fixed dt
//  4. the end policy is evaluated
func Simulate(cfg SimConfig) SimResult {
	if cfg.Game.ViewportSize == 0 {
		cfg.Game = config.DefaultGame()
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = cfg.TickRate * 300
	}
	if cfg.Round < 1 {
		cfg.Round = 1
	}
	if cfg.Players <= 0 {
		cfg.Players = 1
	}

	w := newWorld(level.HashSeed(fmt.Sprintf("%s:%d", cfg.RoomID, cfg.Round)), cfg.Game)
	for i := 0; i < cfg.Players; i++ {
		id := fmt.Sprintf("bot-%02d", i+1)
		w.add(id, id, "", nil)
	}
	end := EndWhenAllDead(cfg.TimeLimit)
	dt := 1 / float64(cfg.TickRate)

	res := SimResult{Seed: w.seed, FinishReason: "max_ticks"}
	alive := make(map[string]bool, len(w.ids))
	boost := make(map[string]game.Boost, len(w.ids))
	for _, id := range w.ids {
		alive[id] = true
		boost[id] = game.BoostNone
	}

	for tick := 1; tick <= cfg.MaxTicks; tick++ {
		for _, id := range w.ids {
			p := w.members[id].player
			if !p.Alive {
				continue
			}
			in := game.Input{MoveX: steer(w, p, dt)}
			if cfg.FireEvery > 0 && tick%cfg.FireEvery == 0 {
				in.Shoot = true
				in.ShotID = fmt.Sprintf("%s-%d", id, tick)
			}
			w.applyInput(id, in)
		}

		w.step(dt)
		res.TotalTicks = tick

		if !cfg.SilentMode {
			for _, id := range w.ids {
				p := w.members[id].player
				if alive[id] && !p.Alive {
					res.Events = append(res.Events, SimEvent{Tick: tick, Type: "death", Player: id, Detail: fmt.Sprintf("score=%d", p.Score)})
				}
				if p.Boost != boost[id] && p.Boost != game.BoostNone {
					res.Events = append(res.Events, SimEvent{Tick: tick, Type: "powerup", Player: id, Detail: string(p.Boost)})
				}
				alive[id] = p.Alive
				boost[id] = p.Boost
			}
		}

		view := MatchView{
			Players: len(w.members),
			Alive:   w.alive(),
			Elapsed: time.Duration(w.elapsed * float64(time.Second)),
		}
		if done, reason := end(view); done {
			res.FinishReason = reason
			break
		}
	}

	if !cfg.SilentMode {
		res.Events = append(res.Events, SimEvent{Tick: res.TotalTicks, Type: "finish", Detail: res.FinishReason})
	}
	res.Elapsed = w.elapsed
	res.Scores = w.scores()
	res.Survivors = w.alive()
	return res
}

// steer returns the horizontal input that moves p toward the gap of the
// next obstacle row above it, saturating at full speed.
func steer(w *world, p *game.Player, dt float64) float64 {
	cfg := w.cfg
	next := int(math.Floor((w.scrollY-p.Y)/cfg.ObstacleGapHeight)) + 1
	if next < 0 {
		next = 0
	}
	gap := w.level.SegmentAt(next)
	step := cfg.PlayerSpeed * dt
	if step <= 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, (gap.GapCenterX-p.X)/step))
}
