package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/analytics/entity"
)

var day0 = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

func rec(daysAgo int, price int64) entity.PriceRecord {
	return entity.PriceRecord{Date: day0.AddDate(0, 0, -daysAgo), Price: decimal.NewFromInt(price)}
}

func TestSummarize(t *testing.T) {
	s := summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 5.0, s.Avg)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)

	one := summarize([]float64{42})
	assert.Equal(t, 42.0, one.Min)
	assert.Zero(t, one.StdDev)
}

func TestClassifyTrend(t *testing.T) {
	split := day0.AddDate(0, 0, -15)
	tests := []struct {
		name    string
		records []entity.PriceRecord
		want    entity.Trend
	}{
		{"constant", []entity.PriceRecord{rec(20, 100), rec(18, 100), rec(3, 100), rec(1, 100)}, entity.TrendStable},
		{"rising", []entity.PriceRecord{rec(20, 100), rec(19, 100), rec(18, 100), rec(3, 150), rec(2, 150), rec(1, 150)}, entity.TrendIncreasing},
		{"falling", []entity.PriceRecord{rec(20, 200), rec(2, 150)}, entity.TrendDecreasing},
		{"exactly five percent", []entity.PriceRecord{rec(20, 100), rec(2, 105)}, entity.TrendStable},
		{"just over five percent", []entity.PriceRecord{rec(20, 100), rec(2, 106)}, entity.TrendIncreasing},
		{"no older half", []entity.PriceRecord{rec(3, 100), rec(1, 120)}, entity.TrendUnknown},
		{"no recent half", []entity.PriceRecord{rec(20, 100), rec(16, 120)}, entity.TrendUnknown},
		{"zero older average", []entity.PriceRecord{rec(20, 0), rec(2, 10)}, entity.TrendUnknown},
		{"split day counts as recent", []entity.PriceRecord{rec(16, 100), rec(15, 200)}, entity.TrendIncreasing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTrend(tt.records, split))
		})
	}
}

func TestMovingAverage(t *testing.T) {
	got := movingAverage([]float64{1, 2, 3, 4, 5, 6}, 3)
	assert.Equal(t, []float64{1, 1.5, 2, 3, 4, 5}, got)

	// shorter than the window: every point averages all prior points
	assert.Equal(t, []float64{10, 15}, movingAverage([]float64{10, 20}, 7))
	assert.Empty(t, movingAverage(nil, 7))
}
