package config

import "time"

// Game holds the gameplay tunables shared by every room. It is loaded once
// and passed by value; nothing mutates it at runtime.
type Game struct {
	ViewportSize float64

	PlayerRadius float64
	PlayerY      float64 // screen row the ships fly on
	PlayerSpeed  float64 // px/s at full horizontal input

	ScrollSpeedBase   float64
	ScrollSpeedMax    float64
	ScrollRampSeconds float64

	ObstacleGapHeight float64 // vertical distance between obstacle rows
	ObstacleThickness float64
	GapWidth          float64
	LevelSegments     int
	WarmupSegments    int

	BulletSpeed  float64
	BulletWidth  float64
	BulletHeight float64
	ShotCooldown time.Duration

	AsteroidMinRadius   float64
	AsteroidMaxRadius   float64
	AsteroidMinSpeed    float64
	AsteroidMaxSpeed    float64
	AsteroidMaxSpin     float64
	DifficultyMaxAdd    float64
	AsteroidShapePoints int

	SpawnRates SpawnRates

	PowerupRadius         float64
	SuperPowerupShare     float64
	SpeedBoostDuration    float64 // seconds
	SuperBoostDuration    float64 // seconds
	InvincibleSpeedFactor float64

	TrailCap   int
	TrailDecay float64 // life units per second

	SegmentScore  int
	AsteroidScore int

	MaxTickDelta float64 // seconds
}

// SpawnRates are per-tick spawn probabilities.
type SpawnRates struct {
	Asteroid float64
	Powerup  float64
}

func DefaultGame() Game {
	return Game{
		ViewportSize: 600,

		PlayerRadius: 14,
		PlayerY:      480,
		PlayerSpeed:  420,

		ScrollSpeedBase:   180,
		ScrollSpeedMax:    360,
		ScrollRampSeconds: 90,

		ObstacleGapHeight: 220,
		ObstacleThickness: 24,
		GapWidth:          170,
		LevelSegments:     48,
		WarmupSegments:    3,

		BulletSpeed:  900,
		BulletWidth:  4,
		BulletHeight: 14,
		ShotCooldown: 120 * time.Millisecond,

		AsteroidMinRadius:   16,
		AsteroidMaxRadius:   40,
		AsteroidMinSpeed:    90,
		AsteroidMaxSpeed:    170,
		AsteroidMaxSpin:     2.5,
		DifficultyMaxAdd:    120,
		AsteroidShapePoints: 10,

		SpawnRates: SpawnRates{
			Asteroid: 0.025,
			Powerup:  0.004,
		},

		PowerupRadius:         14,
		SuperPowerupShare:     0.25,
		SpeedBoostDuration:    4.0,
		SuperBoostDuration:    8.0,
		InvincibleSpeedFactor: 1.5,

		TrailCap:   20,
		TrailDecay: 5,

		SegmentScore:  1,
		AsteroidScore: 5,

		MaxTickDelta: 0.1,
	}
}
