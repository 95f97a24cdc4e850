package components

import "math"

// Position represents an entity's world position.
type Position struct {
	X, Y float64
}

// Velocity represents an entity's velocity in world units per second.
type Velocity struct {
	X, Y float64
}

// Speed returns the velocity magnitude.
func (v Velocity) Speed() float64 {
	return math.Hypot(v.X, v.Y)
}

// Heading returns the velocity direction in radians.
func (v Velocity) Heading() float64 {
	return math.Atan2(v.Y, v.X)
}
