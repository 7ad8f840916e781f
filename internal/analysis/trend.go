package analysis

import (
	"time"

	"activity-tracker/internal/domain"
)

const DefaultWindow = 5

// RollingMean returns the trailing mean of values over window points. The
// leading points average over however many values precede them.
func RollingMean(values []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// TrendPoint is one sample paired with its smoothed active count.
type TrendPoint struct {
	ObservedAt  time.Time `json:"observed_at"`
	ActiveCount int64     `json:"active_count"`
	Trend       float64   `json:"trend"`
}

// Trend smooths an ascending series of samples.
func Trend(samples []domain.Sample, window int) []TrendPoint {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = float64(s.ActiveCount)
	}
	smoothed := RollingMean(values, window)

	points := make([]TrendPoint, len(samples))
	for i, s := range samples {
		points[i] = TrendPoint{ObservedAt: s.ObservedAt, ActiveCount: s.ActiveCount, Trend: smoothed[i]}
	}
	return points
}
