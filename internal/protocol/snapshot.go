package protocol

// WorldSnapshot is the per-tick projection of a room. Entity slices are
// sorted by id.
type WorldSnapshot struct {
	ServerTime  int64           `json:"serverTime"`
	RoomID      string          `json:"roomId"`
	Round       int             `json:"round"`
	Status      string          `json:"status"`
	Seed        uint32          `json:"seed"`
	ScrollY     float64         `json:"scrollY"`
	ScrollSpeed float64         `json:"scrollSpeed"`
	Elapsed     float64         `json:"elapsed"`
	Asteroids   []AsteroidState `json:"asteroids"`
	Powerups    []PowerupState  `json:"powerups"`
	Bullets     []BulletState   `json:"bullets"`
	Players     []PlayerState   `json:"players"`
}

type AsteroidState struct {
	ID        uint64  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	Rotation  float64 `json:"rotation"`
	ShapeSeed uint32  `json:"shapeSeed"`
	HitPoints int     `json:"hitPoints"`
}

type PowerupState struct {
	ID     uint64  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Kind   string  `json:"kind"`
	Radius float64 `json:"radius"`
}

type BulletState struct {
	ID      uint64  `json:"id"`
	OwnerID string  `json:"ownerId"`
	ShotID  string  `json:"shotId,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

type PlayerState struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Color          string       `json:"color"`
	X              float64      `json:"x"`
	Y              float64      `json:"y"`
	Score          int          `json:"score"`
	Alive          bool         `json:"alive"`
	Invincible     bool         `json:"invincible"`
	InvincibleLeft float64      `json:"invincibleLeft"`
	Boost          string       `json:"boost"`
	PassedSegment  int          `json:"passedSegment"`
	Trail          []TrailPoint `json:"trail"`
}

type TrailPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Life float64 `json:"life"`
}
