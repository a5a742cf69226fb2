package room

import (
	"reflect"
	"testing"
	"time"
)

func TestSimulateDeterministic(t *testing.T) {
	cfg := SimConfig{RoomID: "sim", Round: 1, Players: 3, MaxTicks: 900, FireEvery: 5}
	a := Simulate(cfg)
	b := Simulate(cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same config diverged:\n%+v\n%+v", a, b)
	}
	if len(a.Scores) != 3 {
		t.Fatalf("scores = %v", a.Scores)
	}
}

func TestSimulateRoundChangesSeed(t *testing.T) {
	a := Simulate(SimConfig{RoomID: "sim", Round: 1, MaxTicks: 1, SilentMode: true})
	b := Simulate(SimConfig{RoomID: "sim", Round: 2, MaxTicks: 1, SilentMode: true})
	if a.Seed == b.Seed {
		t.Fatal("rounds share a seed")
	}
}

func TestSimulateWarmupIsSafe(t *testing.T) {
	res := Simulate(SimConfig{RoomID: "sim", Players: 3, MaxTicks: 10, SilentMode: true})
	if res.Survivors != 3 || res.FinishReason != "max_ticks" || res.TotalTicks != 10 {
		t.Fatalf("result = %+v", res)
	}
	if res.Events != nil {
		t.Fatal("silent mode recorded events")
	}
}

func TestSimulateTimeLimit(t *testing.T) {
	res := Simulate(SimConfig{RoomID: "sim", Players: 2, TickRate: 30, TimeLimit: 2 * time.Second})
	if res.TotalTicks > 61 {
		t.Fatalf("ran %d ticks past a 2s limit", res.TotalTicks)
	}
	if res.FinishReason != "time_limit" && res.FinishReason != "all_dead" {
		t.Fatalf("reason = %q", res.FinishReason)
	}
	if last := res.Events[len(res.Events)-1]; last.Type != "finish" {
		t.Fatalf("last event = %+v", last)
	}
}
