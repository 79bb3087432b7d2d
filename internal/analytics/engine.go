package analytics

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/analytics/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/authz"
	identity "github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

// ErrNoData marks a query window that matched no price records.
var ErrNoData = errors.New("no price data in window")

const (
	DefaultWindowDays       = 30
	DefaultSeriesWindowDays = 60
	DefaultSmoothing        = 7
	DefaultRankingLimit     = 10
	DefaultSeasonalMonths   = 12
)

// Repository is the read-only price access the engine needs.
type Repository interface {
	Window(ctx context.Context, productID, marketID int64, from, to time.Time) ([]entity.PriceRecord, error)
	Current(ctx context.Context, f entity.Filter) ([]entity.PriceRecord, error)
	Activity(ctx context.Context, from time.Time) ([]entity.MarketActivity, error)
	TopProducts(ctx context.Context, from time.Time, limit int) ([]entity.ProductVolume, error)
	Volatile(ctx context.Context, from time.Time, limit int) ([]entity.Volatility, error)
	Monthly(ctx context.Context, productID int64, from time.Time) ([]entity.MonthlyPrice, error)
}

// Engine derives price statistics for principals holding view_analytics.
// It never writes.
type Engine struct {
	repo   Repository
	logger *zap.SugaredLogger

	// configuration knobs
	Clock    clockwork.Clock
	Location *time.Location // calendar used for "today"; defaults to UTC
}

func NewEngine(r Repository, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		repo:     r,
		logger:   utilities.OrNop(logger),
		Clock:    clockwork.NewRealClock(),
		Location: time.UTC,
	}
}

func (e *Engine) today() time.Time {
	now := e.Clock.Now().In(e.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.Location)
}

// CurrentPrices returns the latest record(s) per (product, market) pair.
// Records sharing the latest date are all returned.
func (e *Engine) CurrentPrices(ctx context.Context, actor identity.Principal, f entity.Filter) ([]entity.PriceRecord, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	out, err := e.repo.Current(ctx, f)
	metrics.ObserveAnalytics("current", err)
	return out, err
}

// CompareAcrossMarkets returns the product's current prices, cheapest first.
func (e *Engine) CompareAcrossMarkets(ctx context.Context, actor identity.Principal, productID int64) ([]entity.PriceRecord, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	out, err := e.repo.Current(ctx, entity.Filter{ProductID: productID})
	metrics.ObserveAnalytics("compare", err)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b entity.PriceRecord) int {
		return a.Price.Cmp(b.Price)
	})
	return out, nil
}

// Extremes picks the cheapest and most expensive records of a comparison.
// ok is false for an empty slice.
func Extremes(records []entity.PriceRecord) (cheapest, dearest entity.PriceRecord, ok bool) {
	if len(records) == 0 {
		return cheapest, dearest, false
	}
	cheapest, dearest = records[0], records[0]
	for _, r := range records[1:] {
		if r.Price.LessThan(cheapest.Price) {
			cheapest = r
		}
		if r.Price.GreaterThan(dearest.Price) {
			dearest = r
		}
	}
	return cheapest, dearest, true
}

// Statistics aggregates the product's prices dated within
// [today-windowDays, today] and classifies the trend by comparing the halves
// either side of today-windowDays/2.
func (e *Engine) Statistics(ctx context.Context, actor identity.Principal, productID, marketID int64, windowDays int) (*entity.Stats, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	to := e.today()
	from := to.AddDate(0, 0, -windowDays)
	records, err := e.repo.Window(ctx, productID, marketID, from, to)
	metrics.ObserveAnalytics("statistics", err)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Price.InexactFloat64()
	}
	s := summarize(values)
	s.Trend = classifyTrend(records, to.AddDate(0, 0, -windowDays/2))
	s.From, s.To = from, to
	e.logger.Debugw("price statistics", "product_id", productID, "market_id", marketID,
		"window_days", windowDays, "count", s.Count, "trend", s.Trend)
	return &s, nil
}

// MovingAverage returns the product's price series over windowDays with a
// trailing mean of window records, one point per record. Records of one day
// are ordered by market name.
func (e *Engine) MovingAverage(ctx context.Context, actor identity.Principal, productID, marketID int64, windowDays, window int) ([]entity.SeriesPoint, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		windowDays = DefaultSeriesWindowDays
	}
	if window <= 0 {
		window = DefaultSmoothing
	}
	to := e.today()
	records, err := e.repo.Window(ctx, productID, marketID, to.AddDate(0, 0, -windowDays), to)
	metrics.ObserveAnalytics("moving_average", err)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoData
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Price.InexactFloat64()
	}
	smoothed := movingAverage(values, window)
	out := make([]entity.SeriesPoint, len(records))
	for i, r := range records {
		out[i] = entity.SeriesPoint{
			Date:       r.Date,
			MarketID:   r.MarketID,
			MarketName: r.MarketName,
			Price:      values[i],
			MovingAvg:  smoothed[i],
		}
	}
	return out, nil
}

// MarketActivity lists markets with at least one price entry in the window,
// busiest first.
func (e *Engine) MarketActivity(ctx context.Context, actor identity.Principal, windowDays int) ([]entity.MarketActivity, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	out, err := e.repo.Activity(ctx, e.today().AddDate(0, 0, -windowDays))
	metrics.ObserveAnalytics("activity", err)
	return out, err
}

// TopProducts ranks products by the number of price entries in the last
// windowDays, most tracked first.
func (e *Engine) TopProducts(ctx context.Context, actor identity.Principal, windowDays, limit int) ([]entity.ProductVolume, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	out, err := e.repo.TopProducts(ctx, e.today().AddDate(0, 0, -windowDays), limit)
	metrics.ObserveAnalytics("top_products", err)
	return out, err
}

// MostVolatile ranks products by (max - min) / avg over the last windowDays.
// Products with fewer than three entries are left out.
func (e *Engine) MostVolatile(ctx context.Context, actor identity.Principal, windowDays, limit int) ([]entity.Volatility, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	out, err := e.repo.Volatile(ctx, e.today().AddDate(0, 0, -windowDays), limit)
	metrics.ObserveAnalytics("volatility", err)
	return out, err
}

// SeasonalPatterns returns the product's monthly price aggregates over the
// last months calendar months.
func (e *Engine) SeasonalPatterns(ctx context.Context, actor identity.Principal, productID int64, months int) ([]entity.MonthlyPrice, error) {
	if err := authz.Require(actor, authz.ActionViewAnalytics, nil); err != nil {
		return nil, err
	}
	if months <= 0 {
		months = DefaultSeasonalMonths
	}
	out, err := e.repo.Monthly(ctx, productID, e.today().AddDate(0, -months, 0))
	metrics.ObserveAnalytics("seasonal", err)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
