// Package anomaly scores hit-volume observations against their historical
// series using a population z-score.
package anomaly

import "math"

// DegenerateScore is substituted when the z-score is undefined: a series with
// zero variance, or a single data point. It guarantees the alert comparison
// stays well-defined and never fires for any realistic positive threshold.
const DegenerateScore = -9999

// Score computes the population z-score of the newest (last) value in the
// series. The whole series is recomputed each call; cost is O(n) and the
// retention window bounds n.
func Score(series []float64) float64 {
	if len(series) == 0 {
		return DegenerateScore
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))

	var sq float64
	for _, v := range series {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(series)))
	if std == 0 {
		return DegenerateScore
	}

	z := (series[len(series)-1] - mean) / std
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return DegenerateScore
	}
	return z
}

// Flag reports whether the score crosses the analytic's sensitivity threshold.
// Thresholds range 0..3; higher is less sensitive.
func Flag(score float64, threshold int) bool {
	return score > float64(threshold)
}

// Evaluate scores the series and flags the newest value in one call.
func Evaluate(series []float64, threshold int) (float64, bool) {
	score := Score(series)
	return score, Flag(score, threshold)
}
