package room

import (
	"math"
	"sort"

	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/game"
	"github.com/driftline/driftline/internal/level"
	"github.com/driftline/driftline/internal/protocol"
)

// spawnSalt separates the spawn stream from the level generator stream that
// shares the room seed.
const spawnSalt = 0x9E3779B9

// world is the simulated state of one match. It has no clock; step advances
// it by an explicit dt.
type world struct {
	cfg   config.Game
	seed  uint32
	level *level.Level
	rng   *level.Rand

	members map[string]*member
	ids     []string // sorted member ids

	asteroids []*game.Asteroid
	bullets   []*game.Bullet
	powerups  []*game.Powerup
	nextID    uint64

	scrollY     float64
	scrollSpeed float64
	elapsed     float64
}

func newWorld(seed uint32, cfg config.Game) *world {
	if seed == 0 {
		seed = 1
	}
	return &world{
		cfg:         cfg,
		seed:        seed,
		level:       level.Generate(seed, cfg),
		rng:         level.NewRand(seed ^ spawnSalt),
		members:     make(map[string]*member),
		scrollSpeed: cfg.ScrollSpeedBase,
	}
}

func (w *world) add(id, name, color string, conn Conn) *member {
	x := w.spawnX(len(w.ids))
	m := &member{player: game.NewPlayer(id, name, color, x, w.cfg.PlayerY), conn: conn}
	w.members[id] = m
	i := sort.SearchStrings(w.ids, id)
	w.ids = append(w.ids, "")
	copy(w.ids[i+1:], w.ids[i:])
	w.ids[i] = id
	return m
}

func (w *world) remove(id string) {
	delete(w.members, id)
	i := sort.SearchStrings(w.ids, id)
	if i < len(w.ids) && w.ids[i] == id {
		w.ids = append(w.ids[:i], w.ids[i+1:]...)
	}
}

// spawnX staggers ships around the center so they do not start stacked.
func (w *world) spawnX(slot int) float64 {
	offset := float64((slot+1)/2) * w.cfg.PlayerRadius * 3
	if slot%2 == 1 {
		offset = -offset
	}
	return game.ClampX(w.cfg.ViewportSize/2+offset, w.cfg)
}

func (w *world) alive() int {
	n := 0
	for _, m := range w.members {
		if m.player.Alive {
			n++
		}
	}
	return n
}

func (w *world) newID() uint64 {
	w.nextID++
	return w.nextID
}

// applyInput records the latest intent of a player. A shot is latched until
// the next step consumes it, so a later plain move cannot cancel it.
func (w *world) applyInput(id string, in game.Input) {
	m, ok := w.members[id]
	if !ok {
		return
	}
	m.input.MoveX = in.MoveX
	if in.X != nil {
		x := *in.X
		m.input.X = &x
	}
	if in.Shoot && !m.pendingShot {
		m.pendingShot = true
		m.pendingShotID = in.ShotID
	}
}

// step advances the match by dt seconds. The order is fixed: scroll, ships,
// spawns, entity motion, collisions, scoring.
func (w *world) step(dt float64) {
	cfg := w.cfg
	dt = math.Max(0, math.Min(dt, cfg.MaxTickDelta))

	w.elapsed += dt
	ramp := 1.0
	if cfg.ScrollRampSeconds > 0 {
		ramp = math.Min(w.elapsed/cfg.ScrollRampSeconds, 1)
	}
	w.scrollSpeed = cfg.ScrollSpeedBase + (cfg.ScrollSpeedMax-cfg.ScrollSpeedBase)*ramp
	w.scrollY += w.scrollSpeed * dt

	for _, id := range w.ids {
		m := w.members[id]
		p := m.player
		if p.Alive {
			game.Move(p, m.input.MoveX, m.input.X, dt, cfg)
			m.input.X = nil
			if m.pendingShot {
				w.fire(p, m.pendingShotID)
			}
		}
		m.pendingShot = false
		m.pendingShotID = ""
		game.DecayTimers(p, dt, cfg)
	}

	if w.rng.Float64() < cfg.SpawnRates.Asteroid {
		w.spawnAsteroid()
	}
	if w.rng.Float64() < cfg.SpawnRates.Powerup {
		w.spawnPowerup()
	}

	w.moveEntities(dt, ramp)
	w.collide()
	w.score()

	w.asteroids = game.Compact(w.asteroids)
	w.bullets = game.Compact(w.bullets)
	w.powerups = game.Compact(w.powerups)
}

func (w *world) fire(p *game.Player, shotID string) {
	width, height := w.cfg.BulletWidth, w.cfg.BulletHeight
	w.bullets = append(w.bullets, &game.Bullet{
		ID:      w.newID(),
		OwnerID: p.ID,
		ShotID:  shotID,
		X:       p.X - width/2,
		Y:       p.Y - w.cfg.PlayerRadius - height,
		Width:   width,
		Height:  height,
	})
}

func (w *world) spawnAsteroid() {
	cfg := w.cfg
	r := w.rng.Range(cfg.AsteroidMinRadius, cfg.AsteroidMaxRadius)
	a := &game.Asteroid{
		ID:            w.newID(),
		Radius:        r,
		X:             w.rng.Range(r, cfg.ViewportSize-r),
		Y:             -r,
		Speed:         w.rng.Range(cfg.AsteroidMinSpeed, cfg.AsteroidMaxSpeed),
		RotationSpeed: w.rng.Range(-cfg.AsteroidMaxSpin, cfg.AsteroidMaxSpin),
		Rotation:      w.rng.Float64() * 2 * math.Pi,
		ShapeSeed:     w.rng.Uint32(),
	}
	a.HitPoints = 1 + int(r/20)
	w.asteroids = append(w.asteroids, a)
}

func (w *world) spawnPowerup() {
	cfg := w.cfg
	kind := game.PowerupSpeed
	if w.rng.Float64() < cfg.SuperPowerupShare {
		kind = game.PowerupSuper
	}
	r := cfg.PowerupRadius
	w.powerups = append(w.powerups, &game.Powerup{
		ID:     w.newID(),
		X:      w.rng.Range(r, cfg.ViewportSize-r),
		Y:      -r,
		Kind:   kind,
		Radius: r,
	})
}

func (w *world) moveEntities(dt, ramp float64) {
	bottom := w.cfg.ViewportSize
	extra := w.cfg.DifficultyMaxAdd * ramp
	for _, a := range w.asteroids {
		a.Y += (a.Speed + extra) * dt
		a.Rotation += a.RotationSpeed * dt
		if a.Y-a.Radius > bottom {
			a.Remove()
		}
	}
	for _, b := range w.bullets {
		b.Y -= w.cfg.BulletSpeed * dt
		if b.Y+b.Height < 0 {
			b.Remove()
		}
	}
	for _, pu := range w.powerups {
		pu.Y += w.scrollSpeed * dt
		if pu.Y-pu.Radius > bottom {
			pu.Remove()
		}
	}
}

// collide resolves, in order: ships against obstacle rows, ships against
// asteroids, bullets against asteroids, ships against powerups.
func (w *world) collide() {
	cfg := w.cfg
	for _, id := range w.ids {
		p := w.members[id].player
		if p.Alive && game.HitsObstacle(p, w.scrollY, w.level, cfg) {
			p.Alive = false
		}
	}

	for _, id := range w.ids {
		p := w.members[id].player
		if !p.Alive {
			continue
		}
		for _, a := range w.asteroids {
			if !a.IsRemoved() && game.HitsAsteroid(p, a, cfg) {
				p.Alive = false
				break
			}
		}
	}

	for _, b := range w.bullets {
		if b.IsRemoved() {
			continue
		}
		for _, a := range w.asteroids {
			if a.IsRemoved() || !game.BulletHitsAsteroid(b, a) {
				continue
			}
			b.Remove()
			a.HitPoints--
			if a.HitPoints <= 0 {
				a.Remove()
				if owner, ok := w.members[b.OwnerID]; ok {
					owner.player.Score += cfg.AsteroidScore
				}
			}
			break
		}
	}

	for _, pu := range w.powerups {
		for _, id := range w.ids {
			p := w.members[id].player
			if game.CollectsPowerup(p, pu, cfg) {
				game.ActivatePowerup(p, pu.Kind, cfg)
				pu.Remove()
				break
			}
		}
	}
}

// score credits every living ship for obstacle rows it has newly passed.
func (w *world) score() {
	for _, id := range w.ids {
		p := w.members[id].player
		if !p.Alive {
			continue
		}
		passed := game.PassedRows(p, w.scrollY, w.cfg)
		if passed > p.PassedSegment {
			p.Score += (passed - p.PassedSegment) * w.cfg.SegmentScore
			p.PassedSegment = passed
		}
	}
}

func (w *world) scores() map[string]int {
	out := make(map[string]int, len(w.members))
	for id, m := range w.members {
		out[id] = m.player.Score
	}
	return out
}

// snapshot projects the world onto the wire model. Every slice is ordered
// by id.
func (w *world) snapshot() protocol.WorldSnapshot {
	s := protocol.WorldSnapshot{
		Seed:        w.seed,
		ScrollY:     w.scrollY,
		ScrollSpeed: w.scrollSpeed,
		Elapsed:     w.elapsed,
		Asteroids:   make([]protocol.AsteroidState, 0, len(w.asteroids)),
		Powerups:    make([]protocol.PowerupState, 0, len(w.powerups)),
		Bullets:     make([]protocol.BulletState, 0, len(w.bullets)),
		Players:     make([]protocol.PlayerState, 0, len(w.ids)),
	}
	for _, a := range w.asteroids {
		s.Asteroids = append(s.Asteroids, protocol.AsteroidState{
			ID: a.ID, X: a.X, Y: a.Y, Radius: a.Radius,
			Rotation: a.Rotation, ShapeSeed: a.ShapeSeed, HitPoints: a.HitPoints,
		})
	}
	for _, pu := range w.powerups {
		s.Powerups = append(s.Powerups, protocol.PowerupState{
			ID: pu.ID, X: pu.X, Y: pu.Y, Kind: string(pu.Kind), Radius: pu.Radius,
		})
	}
	for _, b := range w.bullets {
		s.Bullets = append(s.Bullets, protocol.BulletState{
			ID: b.ID, OwnerID: b.OwnerID, ShotID: b.ShotID,
			X: b.X, Y: b.Y, Width: b.Width, Height: b.Height,
		})
	}
	for _, id := range w.ids {
		p := w.members[id].player
		trail := make([]protocol.TrailPoint, len(p.Trail))
		for i, t := range p.Trail {
			trail[i] = protocol.TrailPoint{X: t.X, Y: t.Y, Life: t.Life}
		}
		s.Players = append(s.Players, protocol.PlayerState{
			ID: p.ID, Name: p.Name, Color: p.Color,
			X: p.X, Y: p.Y, Score: p.Score, Alive: p.Alive,
			Invincible: p.Invincible, InvincibleLeft: p.InvincibleLeft,
			Boost: string(p.Boost), PassedSegment: p.PassedSegment,
			Trail: trail,
		})
	}
	return s
}
