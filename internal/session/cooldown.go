package session

import "time"

// Cooldown enforces a minimum interval between accepted actions. Timing is
// wall-clock so it holds regardless of tick rate.
type Cooldown struct {
	minInterval time.Duration
	last        time.Time
}

func NewCooldown(minInterval time.Duration) *Cooldown {
	return &Cooldown{minInterval: minInterval}
}

// Allow reports whether an action at now is accepted, and records it if so.
func (c *Cooldown) Allow(now time.Time) bool {
	if !c.last.IsZero() && now.Sub(c.last) < c.minInterval {
		return false
	}
	c.last = now
	return true
}
