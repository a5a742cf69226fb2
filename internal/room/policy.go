package room

import "time"

// LobbyView is what a start policy sees.
type LobbyView struct {
	Players    int
	Ready      int
	MaxPlayers int
}

// MatchView is what an end policy sees once per tick.
type MatchView struct {
	Players int
	Alive   int
	Elapsed time.Duration
}

// StartPolicy decides when a lobby begins its match. It is evaluated after
// every join, leave and start request.
type StartPolicy func(v LobbyView) bool

// EndPolicy decides when a running match is over and why.
type EndPolicy func(v MatchView) (done bool, reason string)

// StartOnFirstRequest starts as soon as any player asks.
func StartOnFirstRequest(v LobbyView) bool {
	return v.Players > 0 && v.Ready > 0
}

// StartWhenAllReady waits for every connected player to ask.
func StartWhenAllReady(v LobbyView) bool {
	return v.Players > 0 && v.Ready == v.Players
}

// EndWhenAllDead ends the match when no ship is left alive, or when limit
// has elapsed. A zero limit means no time limit.
func EndWhenAllDead(limit time.Duration) EndPolicy {
	return func(v MatchView) (bool, string) {
		if v.Players > 0 && v.Alive == 0 {
			return true, "all_dead"
		}
		if limit > 0 && v.Elapsed >= limit {
			return true, "time_limit"
		}
		return false, ""
	}
}
