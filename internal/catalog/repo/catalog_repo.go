package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
)

// NOTE: expected table schema (Postgres example):
// CREATE TABLE markets (
//   id BIGSERIAL PRIMARY KEY,
//   name VARCHAR(100) NOT NULL UNIQUE,
//   location VARCHAR(200) NOT NULL,
//   owner_id BIGINT REFERENCES identities(id),
//   created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
// );
// CREATE TABLE products (
//   id BIGSERIAL PRIMARY KEY,
//   name VARCHAR(100) NOT NULL UNIQUE,
//   category VARCHAR(50) NOT NULL,
//   unit VARCHAR(20) NOT NULL,
//   owner_id BIGINT REFERENCES identities(id),
//   created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
// );
// prices is described in analytics/repo.

var (
	// ErrDuplicate is returned when a market or product name is taken.
	ErrDuplicate = errors.New("name already exists")
	// ErrNotFound is returned when the referenced market does not exist.
	ErrNotFound = errors.New("not found")
)

const uniqueViolation = "23505"

type CatalogRepo struct {
	store *database.Store
}

func NewCatalogRepo(store *database.Store) *CatalogRepo {
	return &CatalogRepo{store: store}
}

func nullableOwner(owner int64) any {
	if owner == 0 {
		return nil
	}
	return owner
}

func mapUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// InsertMarket creates a market; owner 0 leaves it unowned.
func (r *CatalogRepo) InsertMarket(ctx context.Context, name, location string, owner int64) (int64, error) {
	const q = `INSERT INTO markets (name, location, owner_id) VALUES ($1, $2, $3) RETURNING id`
	var id int64
	if err := r.store.Get(ctx, &id, q, name, location, nullableOwner(owner)); err != nil {
		return 0, mapUnique(err)
	}
	return id, nil
}

// InsertProduct creates a product; owner 0 leaves it unowned.
func (r *CatalogRepo) InsertProduct(ctx context.Context, name, category, unit string, owner int64) (int64, error) {
	const q = `INSERT INTO products (name, category, unit, owner_id) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	if err := r.store.Get(ctx, &id, q, name, category, unit, nullableOwner(owner)); err != nil {
		return 0, mapUnique(err)
	}
	return id, nil
}

// MarketOwner returns the market's owning identity (0 when unowned), or
// ErrNotFound.
func (r *CatalogRepo) MarketOwner(ctx context.Context, marketID int64) (int64, error) {
	var owner int64
	err := r.store.Get(ctx, &owner, `SELECT COALESCE(owner_id, 0) FROM markets WHERE id = $1`, marketID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return owner, err
}

func (r *CatalogRepo) InsertPrice(ctx context.Context, p entity.Price) (int64, error) {
	const q = `INSERT INTO prices (product_id, market_id, price, date, recorded_by)
VALUES ($1, $2, $3, $4::date, $5) RETURNING id`
	var id int64
	if err := r.store.Get(ctx, &id, q, p.ProductID, p.MarketID, p.Price, p.Date, nullableOwner(p.RecordedBy)); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *CatalogRepo) Markets(ctx context.Context) ([]entity.Market, error) {
	var out []entity.Market
	if err := r.store.Select(ctx, &out, `SELECT id, name, location, owner_id, created_at FROM markets ORDER BY name`); err != nil {
		return nil, err
	}
	return out, nil
}

// Products lists products by category then name; an empty category lists
// every product.
func (r *CatalogRepo) Products(ctx context.Context, category string) ([]entity.Product, error) {
	const q = `SELECT id, name, category, unit, owner_id, created_at FROM products
WHERE ($1::text = '' OR category = $1)
ORDER BY category, name`
	var out []entity.Product
	if err := r.store.Select(ctx, &out, q, category); err != nil {
		return nil, err
	}
	return out, nil
}
