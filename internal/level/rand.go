package level

import "hash/fnv"

// Rand is the mulberry32 generator. Its output matches the browser client's
// implementation bit for bit, which is what lets both sides build the same
// level from a shared seed.
type Rand struct {
	state uint32
}

// NewRand seeds a generator. Zero is not a usable state and is coerced to 1.
func NewRand(seed uint32) *Rand {
	if seed == 0 {
		seed = 1
	}
	return &Rand{state: seed}
}

// Uint32 advances the generator and returns the raw 32-bit output.
func (r *Rand) Uint32() uint32 {
	r.state += 0x6D2B79F5
	t := r.state
	t = (t ^ (t >> 15)) * (t | 1)
	t = (t + (t^(t>>7))*(t|61)) ^ t
	return t ^ (t >> 14)
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint32()) / 4294967296
}

// Range returns a value in [min, max).
func (r *Rand) Range(min, max float64) float64 {
	return min + r.Float64()*(max-min)
}

// HashSeed maps a string seed to a uint32 with 32-bit FNV-1a.
func HashSeed(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
