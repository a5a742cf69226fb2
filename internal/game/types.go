package game

type Boost string

const (
	BoostNone  Boost = "none"
	BoostSpeed Boost = "speed"
	BoostSuper Boost = "super"
)

type PowerupKind string

const (
	PowerupSpeed PowerupKind = "speed"
	PowerupSuper PowerupKind = "super"
)

// TrailSample is one fading point of a ship's exhaust trail.
type TrailSample struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Life float64 `json:"life"`
}

// Player is the authoritative state of one participant. It is owned by its
// room and only touched from the room's loop.
type Player struct {
	ID    string
	Name  string
	Color string

	X, Y  float64
	Score int
	Alive bool

	Invincible     bool
	InvincibleLeft float64 // seconds
	Boost          Boost

	PassedSegment int // -1 until the first row is cleared
	Trail         []TrailSample
}

func NewPlayer(id, name, color string, x, y float64) *Player {
	return &Player{
		ID:            id,
		Name:          name,
		Color:         color,
		X:             x,
		Y:             y,
		Alive:         true,
		Boost:         BoostNone,
		PassedSegment: -1,
	}
}

// Slot marks an entity for removal. Removal happens in one Compact pass per
// tick so collections are never spliced while being scanned.
type Slot struct {
	removed bool
}

func (s *Slot) Remove()         { s.removed = true }
func (s *Slot) IsRemoved() bool { return s.removed }

type Asteroid struct {
	Slot
	ID            uint64
	X, Y          float64
	Radius        float64
	Rotation      float64
	RotationSpeed float64
	Speed         float64 // own fall speed, before the difficulty add
	ShapeSeed     uint32
	HitPoints     int
}

type Bullet struct {
	Slot
	ID            uint64
	OwnerID       string
	ShotID        string
	X, Y          float64 // top-left corner
	Width, Height float64
}

type Powerup struct {
	Slot
	ID     uint64
	X, Y   float64
	Kind   PowerupKind
	Radius float64
}

type removable interface {
	IsRemoved() bool
}

// Compact drops removed entities in place, preserving order.
func Compact[T removable](items []T) []T {
	n := 0
	for _, it := range items {
		if !it.IsRemoved() {
			items[n] = it
			n++
		}
	}
	var zero T
	for i := n; i < len(items); i++ {
		items[i] = zero
	}
	return items[:n]
}

// Input is a validated player intent as forwarded by a session. Shoot is
// only true for shots that passed the cooldown.
type Input struct {
	MoveX  float64
	X      *float64
	Shoot  bool
	ShotID string
}
