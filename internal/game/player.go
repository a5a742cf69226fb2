package game

import "github.com/driftline/driftline/internal/config"

// Move applies horizontal input for dt seconds. A client-reported x, when
// present, replaces the integrated position. The result is clamped to the
// viewport and a trail sample is appended.
func Move(p *Player, moveX float64, clientX *float64, dt float64, cfg config.Game) {
	if clientX != nil {
		p.X = *clientX
	} else {
		speed := cfg.PlayerSpeed
		if p.Invincible {
			speed *= cfg.InvincibleSpeedFactor
		}
		p.X += clampUnit(moveX) * speed * dt
	}
	p.X = ClampX(p.X, cfg)
	pushTrail(p, cfg.TrailCap)
}

// ClampX keeps a ship fully inside the viewport.
func ClampX(x float64, cfg config.Game) float64 {
	lo := cfg.PlayerRadius
	hi := cfg.ViewportSize - cfg.PlayerRadius
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func pushTrail(p *Player, capacity int) {
	if capacity <= 0 {
		return
	}
	if len(p.Trail) >= capacity {
		drop := len(p.Trail) - capacity + 1
		copy(p.Trail, p.Trail[drop:])
		p.Trail = p.Trail[:len(p.Trail)-drop]
	}
	p.Trail = append(p.Trail, TrailSample{X: p.X, Y: p.Y, Life: 1})
}

// DecayTimers counts invincibility down and fades the trail.
func DecayTimers(p *Player, dt float64, cfg config.Game) {
	if p.Invincible {
		p.InvincibleLeft -= dt
		if p.InvincibleLeft <= 0 {
			p.InvincibleLeft = 0
			p.Invincible = false
			p.Boost = BoostNone
		}
	}

	n := 0
	for _, s := range p.Trail {
		s.Life -= cfg.TrailDecay * dt
		if s.Life > 0 {
			p.Trail[n] = s
			n++
		}
	}
	p.Trail = p.Trail[:n]
}

// ActivatePowerup grants the boost and its invincibility window.
func ActivatePowerup(p *Player, kind PowerupKind, cfg config.Game) {
	switch kind {
	case PowerupSuper:
		p.Boost = BoostSuper
		p.InvincibleLeft = cfg.SuperBoostDuration
	default:
		p.Boost = BoostSpeed
		p.InvincibleLeft = cfg.SpeedBoostDuration
	}
	p.Invincible = true
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
