package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market represents a row in the `markets` table. OwnerID is nil for markets
// run by the platform.
type Market struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Location  string    `db:"location"`
	OwnerID   *int64    `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Product represents a row in the `products` table.
type Product struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Category  string    `db:"category"`
	Unit      string    `db:"unit"`
	OwnerID   *int64    `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Price is a new observation written to the `prices` table.
type Price struct {
	ProductID  int64
	MarketID   int64
	Price      decimal.Decimal
	Date       time.Time
	RecordedBy int64
}
