// Package level builds the procedurally generated obstacle course and the
// per-asteroid polygon shapes. Everything here is a pure function of a seed
// and the game config.
package level

import (
	"fmt"
	"math"

	"github.com/driftline/driftline/internal/config"
)

const edgeMargin = 20

// Segment is one obstacle row: a wall spanning the viewport with a gap.
type Segment struct {
	GapCenterX float64 `json:"gapCenterX"`
	ColorTag   string  `json:"colorTag"`
}

// Gap describes the opening a player must fly through at a segment index.
type Gap struct {
	GapCenterX float64
	GapWidth   float64
	ColorTag   string
	Open       bool // warmup rows have no wall at all
}

// Level is the generated course of one room. It is immutable after Generate.
type Level struct {
	Seed     uint32
	Segments []Segment

	viewport float64
	gapWidth float64
	warmup   int
}

// MaxDelta is the largest horizontal move allowed between consecutive gaps:
// what a ship can cover between two rows at top scroll speed, kept within
// [120, 260].
func MaxDelta(cfg config.Game) float64 {
	if cfg.ScrollSpeedMax <= 0 {
		return 120
	}
	secondsPerRow := cfg.ObstacleGapHeight / cfg.ScrollSpeedMax
	reach := cfg.PlayerSpeed * secondsPerRow * 0.75
	return clamp(reach, 120, 260)
}

// GapBounds returns the allowed range for a gap center.
func GapBounds(cfg config.Game) (min, max float64) {
	min = cfg.GapWidth/2 + edgeMargin
	max = cfg.ViewportSize - cfg.GapWidth/2 - edgeMargin
	if max < min {
		mid := cfg.ViewportSize / 2
		return mid, mid
	}
	return min, max
}

// Generate builds the segment sequence for seed. The result is rotated so the
// seam between the last and first segment is the smoothest adjacent pair.
func Generate(seed uint32, cfg config.Game) *Level {
	n := cfg.LevelSegments
	if n < 1 {
		n = 1
	}
	rng := NewRand(seed)
	lo, hi := GapBounds(cfg)
	maxDelta := MaxDelta(cfg)

	segs := make([]Segment, n)
	prev := cfg.ViewportSize / 2
	for i := range segs {
		offset := (rng.Float64()*2 - 1) * maxDelta
		x := clamp(prev+offset, lo, hi)
		hue := int(math.Floor(rng.Float64() * 360))
		segs[i] = Segment{GapCenterX: x, ColorTag: colorTag(hue)}
		prev = x
	}

	return &Level{
		Seed:     seed,
		Segments: rotateSmoothest(segs),
		viewport: cfg.ViewportSize,
		gapWidth: cfg.GapWidth,
		warmup:   max(cfg.WarmupSegments, 0),
	}
}

// GenerateFromString hashes a string seed before generating.
func GenerateFromString(seed string, cfg config.Game) *Level {
	return Generate(HashSeed(seed), cfg)
}

// SegmentAt returns the gap a player meets at a passed-segment index. The
// first warmup indices are fully open; after that indices wrap around the
// generated sequence.
func (l *Level) SegmentAt(index int) Gap {
	if index < l.warmup {
		return Gap{
			GapCenterX: l.viewport / 2,
			GapWidth:   l.viewport,
			ColorTag:   l.Segments[0].ColorTag,
			Open:       true,
		}
	}
	i := (index - l.warmup) % len(l.Segments)
	s := l.Segments[i]
	return Gap{GapCenterX: s.GapCenterX, GapWidth: l.gapWidth, ColorTag: s.ColorTag}
}

// SeamDelta is the horizontal jump at the loop boundary.
func (l *Level) SeamDelta() float64 {
	return math.Abs(l.Segments[0].GapCenterX - l.Segments[len(l.Segments)-1].GapCenterX)
}

// rotateSmoothest finds the adjacent pair (wrap included) with the smallest
// horizontal delta and rotates so that pair becomes last/first. Ties go to
// the first index found.
func rotateSmoothest(segs []Segment) []Segment {
	n := len(segs)
	if n < 2 {
		return segs
	}
	best := 0
	bestDelta := math.Inf(1)
	for i := 0; i < n; i++ {
		d := math.Abs(segs[(i+1)%n].GapCenterX - segs[i].GapCenterX)
		if d < bestDelta {
			best, bestDelta = i, d
		}
	}
	start := (best + 1) % n
	out := make([]Segment, 0, n)
	out = append(out, segs[start:]...)
	out = append(out, segs[:start]...)
	return out
}

func colorTag(hue int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 55%%)", hue)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
