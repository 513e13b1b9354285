package core

import "math"

// Rejection reasons sent back in movement-rejected frames.
const (
	ReasonNotFinite   = "coordinates must be finite numbers"
	ReasonNotInteger  = "coordinates must be integers"
	ReasonNotAdjacent = "move must be exactly one step along one axis"
	ReasonOutOfBounds = "target is outside the space"
)

// validateMove checks a requested move from the current position. It returns
// the target cell, or a non-empty reason when the move is refused.
func validateMove(from Position, x, y float64, bounds Bounds) (Position, string) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return from, ReasonNotFinite
	}
	if x != math.Trunc(x) || y != math.Trunc(y) {
		return from, ReasonNotInteger
	}

	dx := math.Abs(x - float64(from.X))
	dy := math.Abs(y - float64(from.Y))
	if !(dx == 1 && dy == 0) && !(dx == 0 && dy == 1) {
		return from, ReasonNotAdjacent
	}

	target := Position{X: int(x), Y: int(y)}
	if !bounds.Contains(target) {
		return from, ReasonOutOfBounds
	}
	return target, ""
}
