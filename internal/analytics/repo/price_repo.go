package repo

import (
	"context"
	"time"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/analytics/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
)

// NOTE: expected table schema (Postgres example):
// CREATE TABLE prices (
//   id BIGSERIAL PRIMARY KEY,
//   product_id BIGINT NOT NULL REFERENCES products(id),
//   market_id BIGINT NOT NULL REFERENCES markets(id),
//   price NUMERIC(12,2) NOT NULL,
//   date DATE NOT NULL,
//   recorded_by BIGINT REFERENCES identities(id)
// );
// CREATE INDEX idx_prices_product_market_date ON prices (product_id, market_id, date);
// Rows are append-only; see catalog/repo for the writer.

type PriceRepo struct {
	store *database.Store
}

func NewPriceRepo(store *database.Store) *PriceRepo {
	return &PriceRepo{store: store}
}

// Window returns the product's records dated within [from, to], oldest first
// and by market name within a day. marketID 0 means every market.
func (r *PriceRepo) Window(ctx context.Context, productID, marketID int64, from, to time.Time) ([]entity.PriceRecord, error) {
	const q = `SELECT p.id, p.product_id, p.market_id, p.price, p.date, p.recorded_by, m.name AS market_name
FROM prices p
JOIN markets m ON m.id = p.market_id
WHERE p.product_id = $1
  AND p.date BETWEEN $2::date AND $3::date
  AND ($4::bigint = 0 OR p.market_id = $4)
ORDER BY p.date, m.name, p.id`
	var out []entity.PriceRecord
	if err := r.store.Select(ctx, &out, q, productID, from, to, marketID); err != nil {
		return nil, err
	}
	return out, nil
}

// Current returns, per (product, market) pair, every record carrying the
// pair's latest date.
func (r *PriceRepo) Current(ctx context.Context, f entity.Filter) ([]entity.PriceRecord, error) {
	const q = `SELECT p.id, p.product_id, p.market_id, p.price, p.date, p.recorded_by,
       pr.name AS product_name, m.name AS market_name
FROM prices p
JOIN products pr ON pr.id = p.product_id
JOIN markets m ON m.id = p.market_id
WHERE p.date = (
    SELECT MAX(p2.date) FROM prices p2
    WHERE p2.product_id = p.product_id AND p2.market_id = p.market_id
)
  AND ($1::bigint = 0 OR p.product_id = $1)
  AND ($2::bigint = 0 OR p.market_id = $2)
ORDER BY pr.name, m.name, p.id`
	var out []entity.PriceRecord
	if err := r.store.Select(ctx, &out, q, f.ProductID, f.MarketID); err != nil {
		return nil, err
	}
	return out, nil
}

// Activity aggregates price entries per market since from. Markets without
// entries are absent.
func (r *PriceRepo) Activity(ctx context.Context, from time.Time) ([]entity.MarketActivity, error) {
	const q = `SELECT m.id AS market_id, m.name AS market_name, COALESCE(m.location, '') AS location,
       COUNT(DISTINCT p.product_id) AS unique_products,
       COUNT(*) AS total_entries,
       AVG(p.price) AS avg_price
FROM markets m
JOIN prices p ON p.market_id = m.id
WHERE p.date >= $1::date
GROUP BY m.id, m.name, m.location
ORDER BY total_entries DESC, m.id`
	rows, err := r.store.Query(ctx, q, from)
	if err != nil {
		return nil, err
	}
	out := make([]entity.MarketActivity, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.MarketActivity{
			MarketID:       row.Int64("market_id"),
			MarketName:     row.String("market_name"),
			Location:       row.String("location"),
			UniqueProducts: row.Int64("unique_products"),
			TotalEntries:   row.Int64("total_entries"),
			AvgPrice:       row.Float64("avg_price"),
		})
	}
	return out, nil
}

// TopProducts ranks products by number of price entries since from.
func (r *PriceRepo) TopProducts(ctx context.Context, from time.Time, limit int) ([]entity.ProductVolume, error) {
	const q = `SELECT pr.id AS product_id, pr.name AS product_name, COALESCE(pr.category, '') AS category,
       COUNT(*) AS entries, AVG(p.price) AS avg_price
FROM prices p
JOIN products pr ON pr.id = p.product_id
WHERE p.date >= $1::date
GROUP BY pr.id, pr.name, pr.category
ORDER BY entries DESC, pr.id
LIMIT $2`
	rows, err := r.store.Query(ctx, q, from, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entity.ProductVolume, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.ProductVolume{
			ProductID:   row.Int64("product_id"),
			ProductName: row.String("product_name"),
			Category:    row.String("category"),
			Entries:     row.Int64("entries"),
			AvgPrice:    row.Float64("avg_price"),
		})
	}
	return out, nil
}

// Volatile ranks products with at least three entries since from by
// relative price spread.
func (r *PriceRepo) Volatile(ctx context.Context, from time.Time, limit int) ([]entity.Volatility, error) {
	const q = `SELECT pr.id AS product_id, pr.name AS product_name, COALESCE(pr.category, '') AS category,
       COALESCE(pr.unit, '') AS unit,
       MIN(p.price) AS min_price, MAX(p.price) AS max_price, AVG(p.price) AS avg_price,
       STDDEV_POP(p.price) AS std_dev,
       COALESCE((MAX(p.price) - MIN(p.price)) / NULLIF(AVG(p.price), 0) * 100, 0) AS volatility_percent
FROM prices p
JOIN products pr ON pr.id = p.product_id
WHERE p.date >= $1::date
GROUP BY pr.id, pr.name, pr.category, pr.unit
HAVING COUNT(*) >= 3
ORDER BY volatility_percent DESC, pr.id
LIMIT $2`
	rows, err := r.store.Query(ctx, q, from, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Volatility, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.Volatility{
			ProductID:   row.Int64("product_id"),
			ProductName: row.String("product_name"),
			Category:    row.String("category"),
			Unit:        row.String("unit"),
			Min:         row.Float64("min_price"),
			Max:         row.Float64("max_price"),
			Avg:         row.Float64("avg_price"),
			StdDev:      row.Float64("std_dev"),
			Percent:     row.Float64("volatility_percent"),
		})
	}
	return out, nil
}

// Monthly groups the product's prices since from by calendar month, oldest
// first.
func (r *PriceRepo) Monthly(ctx context.Context, productID int64, from time.Time) ([]entity.MonthlyPrice, error) {
	const q = `SELECT EXTRACT(YEAR FROM p.date)::int AS year, EXTRACT(MONTH FROM p.date)::int AS month,
       AVG(p.price) AS avg_price, MIN(p.price) AS min_price, MAX(p.price) AS max_price,
       COUNT(*) AS data_points
FROM prices p
WHERE p.product_id = $1 AND p.date >= $2::date
GROUP BY 1, 2
ORDER BY 1, 2`
	rows, err := r.store.Query(ctx, q, productID, from)
	if err != nil {
		return nil, err
	}
	out := make([]entity.MonthlyPrice, 0, len(rows))
	for _, row := range rows {
		out = append(out, entity.MonthlyPrice{
			Year:     int(row.Int64("year")),
			Month:    time.Month(row.Int64("month")),
			AvgPrice: row.Float64("avg_price"),
			MinPrice: row.Float64("min_price"),
			MaxPrice: row.Float64("max_price"),
			Count:    row.Int64("data_points"),
		})
	}
	return out, nil
}
