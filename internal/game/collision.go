package game

import (
	"math"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/level"
)

// Hitbox fairness factors: collisions are judged on slightly smaller shapes
// than what clients draw.
const (
	playerHitboxScale   = 0.8
	asteroidHitboxScale = 0.9
)

func CirclesOverlap(x1, y1, r1, x2, y2, r2 float64) bool {
	dx, dy := x2-x1, y2-y1
	rr := r1 + r2
	return dx*dx+dy*dy < rr*rr
}

func PointInRect(px, py, rx, ry, rw, rh float64) bool {
	return px >= rx && px <= rx+rw && py >= ry && py <= ry+rh
}

func RectsOverlap(ax, ay, aw, ah, bx, by, bw, bh float64) bool {
	return ax < bx+bw && ax+aw > bx && ay < by+bh && ay+ah > by
}

// RowY is the screen y of obstacle row index at the given scroll position.
// Rows enter at the top and move down as scrollY grows.
func RowY(index int, scrollY float64, cfg config.Game) float64 {
	return scrollY - float64(index)*cfg.ObstacleGapHeight
}

// HitsObstacle reports whether the player overlaps the wall of any row near
// its vertical position. Only the few rows around the player are checked.
func HitsObstacle(p *Player, scrollY float64, lvl *level.Level, cfg config.Game) bool {
	if !p.Alive || p.Invincible || cfg.ObstacleGapHeight <= 0 {
		return false
	}
	reach := cfg.ObstacleThickness/2 + cfg.PlayerRadius
	center := (scrollY - p.Y) / cfg.ObstacleGapHeight
	lo := int(math.Floor(center)) - 1
	hi := int(math.Ceil(center)) + 1
	if lo < 0 {
		lo = 0
	}
	for i := lo; i <= hi; i++ {
		if math.Abs(RowY(i, scrollY, cfg)-p.Y) >= reach {
			continue
		}
		gap := lvl.SegmentAt(i)
		if gap.Open {
			continue
		}
		left := gap.GapCenterX - gap.GapWidth/2
		right := gap.GapCenterX + gap.GapWidth/2
		if p.X-cfg.PlayerRadius < left || p.X+cfg.PlayerRadius > right {
			return true
		}
	}
	return false
}

// HitsAsteroid uses shrunken hitboxes on both sides.
func HitsAsteroid(p *Player, a *Asteroid, cfg config.Game) bool {
	if !p.Alive || p.Invincible {
		return false
	}
	return CirclesOverlap(p.X, p.Y, cfg.PlayerRadius*playerHitboxScale, a.X, a.Y, a.Radius*asteroidHitboxScale)
}

// BulletHitsAsteroid approximates the bullet as a circle at its midpoint
// whose radius is its larger dimension.
func BulletHitsAsteroid(b *Bullet, a *Asteroid) bool {
	cx := b.X + b.Width/2
	cy := b.Y + b.Height/2
	return CirclesOverlap(cx, cy, math.Max(b.Width, b.Height), a.X, a.Y, a.Radius)
}

func CollectsPowerup(p *Player, pu *Powerup, cfg config.Game) bool {
	if !p.Alive {
		return false
	}
	return CirclesOverlap(p.X, p.Y, cfg.PlayerRadius, pu.X, pu.Y, pu.Radius)
}

// PassedRows is the index of the last row fully below the player, or -1.
func PassedRows(p *Player, scrollY float64, cfg config.Game) int {
	if cfg.ObstacleGapHeight <= 0 {
		return -1
	}
	k := (scrollY - p.Y - cfg.PlayerRadius - cfg.ObstacleThickness/2) / cfg.ObstacleGapHeight
	if k <= 0 {
		return -1
	}
	return int(math.Ceil(k)) - 1
}
