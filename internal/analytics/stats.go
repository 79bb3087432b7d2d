package analytics

import (
	"math"
	"time"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/analytics/entity"
)

// trendThreshold is the percent change between window halves below which a
// price is considered stable.
const trendThreshold = 5.0

// summarize computes min/max/mean and the population standard deviation.
func summarize(values []float64) entity.Stats {
	s := entity.Stats{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Min, s.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Avg = sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - s.Avg
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(len(values)))
	return s
}

// classifyTrend compares the mean of records dated on or after split with
// the mean of those before it.
func classifyTrend(records []entity.PriceRecord, split time.Time) entity.Trend {
	var recentSum, olderSum float64
	var recentN, olderN int
	for _, r := range records {
		p := r.Price.InexactFloat64()
		if r.Date.Before(split) {
			olderSum += p
			olderN++
		} else {
			recentSum += p
			recentN++
		}
	}
	if recentN == 0 || olderN == 0 {
		return entity.TrendUnknown
	}
	older := olderSum / float64(olderN)
	if older == 0 {
		return entity.TrendUnknown
	}
	change := (recentSum/float64(recentN) - older) * 100 / older
	switch {
	case change > trendThreshold:
		return entity.TrendIncreasing
	case change < -trendThreshold:
		return entity.TrendDecreasing
	default:
		return entity.TrendStable
	}
}

// movingAverage smooths values over a trailing window; the first window-1
// points average everything seen so far.
func movingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := min(i+1, window)
		out[i] = sum / float64(n)
	}
	return out
}
