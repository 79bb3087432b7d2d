package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/order/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/database"
)

// NOTE: expected table schema (Postgres example):
// CREATE TABLE orders (
//   id BIGINT PRIMARY KEY,
//   customer_id BIGINT NOT NULL REFERENCES identities(id),
//   market_id BIGINT NOT NULL REFERENCES markets(id),
//   total_amount NUMERIC(12,2) NOT NULL,
//   status VARCHAR(16) NOT NULL DEFAULT 'pending',
//   delivery_address TEXT NOT NULL DEFAULT '',
//   delivery_phone VARCHAR(20) NOT NULL DEFAULT '',
//   notes TEXT NOT NULL DEFAULT '',
//   created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
//   updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
// );
// CREATE TABLE order_items (
//   order_id BIGINT NOT NULL REFERENCES orders(id),
//   product_id BIGINT NOT NULL REFERENCES products(id),
//   quantity BIGINT NOT NULL CHECK (quantity > 0),
//   unit_price NUMERIC(12,2) NOT NULL,
//   subtotal NUMERIC(12,2) NOT NULL
// );
// markets(id, name, location, owner_id) is owned by the reference-data layer.

// ErrNotFound is returned when no order matches.
var ErrNotFound = errors.New("order not found")

const orderCols = `id, customer_id, market_id, total_amount, status, delivery_address, delivery_phone, notes, created_at, updated_at`

const joinedOrderCols = `o.id, o.customer_id, o.market_id, o.total_amount, o.status, o.delivery_address, o.delivery_phone, o.notes, o.created_at, o.updated_at`

type OrderRepo struct {
	store *database.Store
}

func NewOrderRepo(store *database.Store) *OrderRepo {
	return &OrderRepo{store: store}
}

// Insert writes the order and its lines in one transaction.
func (r *OrderRepo) Insert(ctx context.Context, o *entity.Order, items []entity.Item) error {
	return r.store.InTx(ctx, func(tx *sqlx.Tx) error {
		const qo = `INSERT INTO orders (` + orderCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.ExecContext(ctx, qo, o.ID, o.CustomerID, o.MarketID, o.TotalAmount, o.Status,
			o.DeliveryAddress, o.DeliveryPhone, o.Notes, o.CreatedAt, o.UpdatedAt); err != nil {
			return err
		}
		const qi = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal) VALUES ($1, $2, $3, $4, $5)`
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, qi, o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *OrderRepo) Get(ctx context.Context, id int64) (*entity.Order, error) {
	var o entity.Order
	if err := r.store.Get(ctx, &o, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) Items(ctx context.Context, orderID int64) ([]entity.Item, error) {
	const q = `SELECT order_id, product_id, quantity, unit_price, subtotal FROM order_items WHERE order_id = $1 ORDER BY product_id`
	var items []entity.Item
	if err := r.store.Select(ctx, &items, q, orderID); err != nil {
		return nil, err
	}
	return items, nil
}

// MarketOwner returns the owning identity of the market, or 0 when the
// market has no owner or does not exist.
func (r *OrderRepo) MarketOwner(ctx context.Context, marketID int64) (int64, error) {
	var owner int64
	err := r.store.Get(ctx, &owner, `SELECT COALESCE(owner_id, 0) FROM markets WHERE id = $1`, marketID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return owner, err
}

// UpdateStatus moves a non-final order to status. It reports false when the
// order is missing or already completed/cancelled at write time.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, status entity.Status, at time.Time) (bool, error) {
	const q = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`
	n, err := r.store.Execute(ctx, q, id, status, at)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByCustomer returns the customer's orders, newest first, with the market
// name. An empty status lists every status.
func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID int64, status entity.Status) ([]entity.Order, error) {
	const q = `SELECT ` + joinedOrderCols + `, m.name AS market_name
FROM orders o
JOIN markets m ON m.id = o.market_id
WHERE o.customer_id = $1 AND ($2::text = '' OR o.status = $2)
ORDER BY o.created_at DESC, o.id DESC`
	var out []entity.Order
	if err := r.store.Select(ctx, &out, q, customerID, status); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByMarket returns the market's orders, newest first, with the
// customer's display name.
func (r *OrderRepo) ListByMarket(ctx context.Context, marketID int64, status entity.Status) ([]entity.Order, error) {
	const q = `SELECT ` + joinedOrderCols + `, i.full_name AS customer_name
FROM orders o
JOIN identities i ON i.id = o.customer_id
WHERE o.market_id = $1 AND ($2::text = '' OR o.status = $2)
ORDER BY o.created_at DESC, o.id DESC`
	var out []entity.Order
	if err := r.store.Select(ctx, &out, q, marketID, status); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats counts orders per status and sums their totals. Zero ids match
// every market or customer.
func (r *OrderRepo) Stats(ctx context.Context, marketID, customerID int64) (*entity.Stats, error) {
	const q = `SELECT status, COUNT(*) AS orders, COALESCE(SUM(total_amount), 0) AS revenue
FROM orders
WHERE ($1::bigint = 0 OR market_id = $1)
  AND ($2::bigint = 0 OR customer_id = $2)
GROUP BY status`
	rows, err := r.store.Query(ctx, q, marketID, customerID)
	if err != nil {
		return nil, err
	}
	st := &entity.Stats{ByStatus: map[entity.Status]int64{}, Revenue: decimal.Zero, AverageValue: decimal.Zero}
	for _, row := range rows {
		rev, err := decimal.NewFromString(row.String("revenue"))
		if err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		n := row.Int64("orders")
		st.ByStatus[entity.Status(row.String("status"))] = n
		st.Total += n
		st.Revenue = st.Revenue.Add(rev)
	}
	if st.Total > 0 {
		st.AverageValue = st.Revenue.Div(decimal.NewFromInt(st.Total)).Round(2)
	}
	return st, nil
}
