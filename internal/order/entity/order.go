package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the six recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Final reports whether no further transition is allowed out of s.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Order represents a row in the `orders` table. MarketName and CustomerName
// are filled only by the list queries.
type Order struct {
	ID              int64           `db:"id"`
	CustomerID      int64           `db:"customer_id"`
	MarketID        int64           `db:"market_id"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	Status          Status          `db:"status"`
	DeliveryAddress string          `db:"delivery_address"`
	DeliveryPhone   string          `db:"delivery_phone"`
	Notes           string          `db:"notes"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
	MarketName      string          `db:"market_name"`
	CustomerName    string          `db:"customer_name"`

	Items []Item `db:"-"`
}

// Item is an immutable order line.
type Item struct {
	OrderID   int64           `db:"order_id"`
	ProductID int64           `db:"product_id"`
	Quantity  int64           `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal"`
}

// Stats summarizes a set of orders. Revenue and AverageValue cover every
// order in the set, cancelled ones included.
type Stats struct {
	Total        int64
	ByStatus     map[Status]int64
	Revenue      decimal.Decimal
	AverageValue decimal.Decimal
}
