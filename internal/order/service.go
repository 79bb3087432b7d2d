package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/authz"
	identity "github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/order/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/order/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

var (
	ErrEmptyOrder        = errors.New("order has no items")
	ErrMixedMarket       = errors.New("order items span more than one market")
	ErrInvalidItem       = errors.New("invalid order item")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status cannot change")
	ErrAlreadyFinal      = errors.New("order already completed or cancelled")
	ErrOrderNotFound     = errors.New("order not found")
)

// Repository is the persistence the manager needs.
type Repository interface {
	Insert(ctx context.Context, o *entity.Order, items []entity.Item) error
	Get(ctx context.Context, id int64) (*entity.Order, error)
	Items(ctx context.Context, orderID int64) ([]entity.Item, error)
	MarketOwner(ctx context.Context, marketID int64) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status entity.Status, at time.Time) (bool, error)
	ListByCustomer(ctx context.Context, customerID int64, status entity.Status) ([]entity.Order, error)
	ListByMarket(ctx context.Context, marketID int64, status entity.Status) ([]entity.Order, error)
	Stats(ctx context.Context, marketID, customerID int64) (*entity.Stats, error)
}

// IDGenerator hands out order ids.
type IDGenerator interface {
	Next() int64
}

// ItemInput is one requested line. MarketID 0 means the order's market.
type ItemInput struct {
	ProductID int64 `validate:"required,gt=0"`
	MarketID  int64 `validate:"gte=0"`
	Quantity  int64 `validate:"gt=0"`
	UnitPrice decimal.Decimal
}

// Delivery carries the free-form delivery fields.
type Delivery struct {
	Address string `validate:"max=500"`
	Phone   string `validate:"max=20"`
	Notes   string `validate:"max=1000"`
}

// CreateInput describes an order to place. CustomerID 0 means the actor.
type CreateInput struct {
	CustomerID int64
	MarketID   int64 `validate:"required,gt=0"`
	Items      []ItemInput
	Delivery   Delivery
}

// Manager creates orders and drives their status.
type Manager struct {
	repo     Repository
	ids      IDGenerator
	validate *validator.Validate
	logger   *zap.SugaredLogger

	// configuration knobs
	Clock clockwork.Clock
}

func NewManager(r Repository, ids IDGenerator, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		repo:     r,
		ids:      ids,
		validate: validator.New(),
		logger:   utilities.OrNop(logger),
		Clock:    clockwork.NewRealClock(),
	}
}

// CreateOrder places a pending order. The total is always computed here from
// quantity × unit price per line.
func (m *Manager) CreateOrder(ctx context.Context, actor identity.Principal, in CreateInput) (int64, error) {
	if in.CustomerID == 0 {
		in.CustomerID = actor.ID
	}
	if err := authz.Require(actor, authz.ActionPlaceOrder, &authz.Resource{CustomerID: in.CustomerID}); err != nil {
		return 0, err
	}
	if len(in.Items) == 0 {
		return 0, ErrEmptyOrder
	}
	if err := m.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}

	now := m.Clock.Now()
	o := &entity.Order{
		ID:              m.ids.Next(),
		CustomerID:      in.CustomerID,
		MarketID:        in.MarketID,
		Status:          entity.StatusPending,
		DeliveryAddress: in.Delivery.Address,
		DeliveryPhone:   in.Delivery.Phone,
		Notes:           in.Delivery.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		TotalAmount:     decimal.Zero,
	}
	items := make([]entity.Item, 0, len(in.Items))
	for i, it := range in.Items {
		if it.MarketID != 0 && it.MarketID != in.MarketID {
			return 0, fmt.Errorf("%w: item %d is from market %d, order is for market %d", ErrMixedMarket, i, it.MarketID, in.MarketID)
		}
		if err := m.validate.Struct(it); err != nil {
			return 0, fmt.Errorf("%w: item %d: %v", ErrInvalidItem, i, err)
		}
		if it.UnitPrice.IsNegative() {
			return 0, fmt.Errorf("%w: item %d has negative price", ErrInvalidItem, i)
		}
		sub := it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
		items = append(items, entity.Item{
			OrderID:   o.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  sub,
		})
		o.TotalAmount = o.TotalAmount.Add(sub)
	}

	if err := m.repo.Insert(ctx, o, items); err != nil {
		return 0, err
	}
	metrics.ObserveOrderCreated()
	m.logger.Infow("order created", "order_id", o.ID, "customer_id", o.CustomerID, "market_id", o.MarketID,
		"total", o.TotalAmount.StringFixed(2), "items", len(items))
	return o.ID, nil
}

// UpdateStatus moves the order to status on behalf of an admin or the seller
// owning the order's market.
//
// Any non-final order may move to any status, including backwards. Concurrent
// updates are last-writer-wins; only a move out of completed/cancelled is
// refused, and that check is repeated in the UPDATE itself.
func (m *Manager) UpdateStatus(ctx context.Context, orderID int64, status entity.Status, actor identity.Principal) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	o, err := m.load(ctx, orderID)
	if err != nil {
		return err
	}
	res, err := m.resource(ctx, o)
	if err != nil {
		return err
	}
	if err := authz.Require(actor, authz.ActionManageOrder, res); err != nil {
		return err
	}
	if o.Status.Final() {
		return fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, orderID, o.Status)
	}
	if err := m.transition(ctx, o, status, actor); err != nil {
		if errors.Is(err, errFinalAtWrite) {
			return fmt.Errorf("%w: order %d", ErrInvalidTransition, orderID)
		}
		return err
	}
	return nil
}

// Cancel cancels the order for an admin or its own customer.
func (m *Manager) Cancel(ctx context.Context, orderID int64, actor identity.Principal) error {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return err
	}
	// ownership first; the final-state refusal is reported as ErrAlreadyFinal
	if err := authz.Require(actor, authz.ActionCancelOrder, &authz.Resource{CustomerID: o.CustomerID}); err != nil {
		return err
	}
	if o.Status.Final() {
		return fmt.Errorf("%w: order %d is %s", ErrAlreadyFinal, orderID, o.Status)
	}
	if err := m.transition(ctx, o, entity.StatusCancelled, actor); err != nil {
		if errors.Is(err, errFinalAtWrite) {
			return fmt.Errorf("%w: order %d", ErrAlreadyFinal, orderID)
		}
		return err
	}
	return nil
}

// Get returns the order with its items.
func (m *Manager) Get(ctx context.Context, orderID int64, actor identity.Principal) (*entity.Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res, err := m.resource(ctx, o)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionViewOrder, res); err != nil {
		return nil, err
	}
	items, err := m.repo.Items(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// ListByCustomer returns a customer's orders, newest first. An empty status
// lists every status.
func (m *Manager) ListByCustomer(ctx context.Context, actor identity.Principal, customerID int64, status entity.Status) ([]entity.Order, error) {
	if customerID == 0 {
		customerID = actor.ID
	}
	if err := authz.Require(actor, authz.ActionViewOrder, &authz.Resource{CustomerID: customerID}); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return m.repo.ListByCustomer(ctx, customerID, status)
}

// ListByMarket returns a market's orders, newest first, for an admin or the
// market's owner.
func (m *Manager) ListByMarket(ctx context.Context, actor identity.Principal, marketID int64, status entity.Status) ([]entity.Order, error) {
	owner, err := m.repo.MarketOwner(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(actor, authz.ActionViewOrder, &authz.Resource{OwnerID: owner}); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return m.repo.ListByMarket(ctx, marketID, status)
}

// Statistics summarizes orders narrowed by market and/or customer (0 matches
// any). Sellers must name a market they own; customers see only their own
// orders.
func (m *Manager) Statistics(ctx context.Context, actor identity.Principal, marketID, customerID int64) (*entity.Stats, error) {
	if customerID == 0 && actor.Role == identity.RoleCustomer {
		customerID = actor.ID
	}
	res := &authz.Resource{CustomerID: customerID}
	if marketID != 0 {
		owner, err := m.repo.MarketOwner(ctx, marketID)
		if err != nil {
			return nil, err
		}
		res.OwnerID = owner
	}
	if err := authz.Require(actor, authz.ActionViewOrder, res); err != nil {
		return nil, err
	}
	return m.repo.Stats(ctx, marketID, customerID)
}

var errFinalAtWrite = errors.New("order became final before update")

func (m *Manager) transition(ctx context.Context, o *entity.Order, status entity.Status, actor identity.Principal) error {
	ok, err := m.repo.UpdateStatus(ctx, o.ID, status, m.Clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return errFinalAtWrite
	}
	metrics.ObserveOrderTransition(string(status))
	m.logger.Infow("order status changed", "order_id", o.ID, "from", o.Status, "to", status, "by", actor.ID)
	return nil
}

func (m *Manager) load(ctx context.Context, orderID int64) (*entity.Order, error) {
	o, err := m.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	return o, nil
}

// resource describes the order for authorization; sellers own orders through
// the order's market.
func (m *Manager) resource(ctx context.Context, o *entity.Order) (*authz.Resource, error) {
	owner, err := m.repo.MarketOwner(ctx, o.MarketID)
	if err != nil {
		return nil, err
	}
	return &authz.Resource{OwnerID: owner, CustomerID: o.CustomerID, OrderStatus: string(o.Status)}, nil
}
