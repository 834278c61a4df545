package emg

import "math"

// SymmetryScore compares a paired bilateral metric (nominally the left and
// right MVC estimates) and returns a bounded [0,100] balance score:
// 100 - |a-b| / max(a,b) x 50, clamped. The clamp matters: with near-zero
// denominators the raw formula can leave [0,100]. Two silent sides compare
// as perfectly symmetric. Invalid input (NaN or negative) scores 0; callers
// that need to distinguish "asymmetric" from "not comparable" should use
// CompareSides.
func SymmetryScore(a, b float64) float64 {
	score, _ := CompareSides(a, b)
	return score
}

// CompareSides is SymmetryScore plus a flag reporting whether both sides
// carried comparable data.
func CompareSides(a, b float64) (score float64, comparable bool) {
	if math.IsNaN(a) || math.IsNaN(b) || a < 0 || b < 0 {
		return 0, false
	}
	m := math.Max(a, b)
	if m == 0 {
		return 100, true
	}
	return clamp(100-math.Abs(a-b)/m*50, 0, 100), true
}
