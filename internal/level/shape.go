package level

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AsteroidShape returns a closed polygon around the origin with the given
// number of points, each at radius jittered by ±20%. The same seed always
// yields the same outline on server and client.
func AsteroidShape(seed uint32, radius float64, points int) []Point {
	if points < 3 {
		points = 3
	}
	rng := NewRand(seed)
	out := make([]Point, points)
	for i := range out {
		angle := float64(i) / float64(points) * 2 * math.Pi
		r := radius * (0.8 + rng.Float64()*0.4)
		out[i] = Point{X: math.Cos(angle) * r, Y: math.Sin(angle) * r}
	}
	return out
}
