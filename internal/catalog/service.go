package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/authz"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/catalog/repo"
	identity "github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

var (
	ErrInvalidInput   = errors.New("invalid catalog input")
	ErrInvalidPrice   = errors.New("price must not be negative")
	ErrMarketNotFound = errors.New("market not found")
	ErrDuplicate      = repo.ErrDuplicate
)

// Repository is the persistence the catalog needs.
type Repository interface {
	InsertMarket(ctx context.Context, name, location string, owner int64) (int64, error)
	InsertProduct(ctx context.Context, name, category, unit string, owner int64) (int64, error)
	MarketOwner(ctx context.Context, marketID int64) (int64, error)
	InsertPrice(ctx context.Context, p entity.Price) (int64, error)
	Markets(ctx context.Context) ([]entity.Market, error)
	Products(ctx context.Context, category string) ([]entity.Product, error)
}

// MarketInput describes a market to add. OwnerID 0 means the acting seller,
// or no owner when an admin adds it.
type MarketInput struct {
	Name     string `validate:"required,max=100"`
	Location string `validate:"required,max=200"`
	OwnerID  int64  `validate:"gte=0"`
}

// ProductInput describes a product to add. OwnerID follows MarketInput.
type ProductInput struct {
	Name     string `validate:"required,max=100"`
	Category string `validate:"required,max=50"`
	Unit     string `validate:"required,max=20"`
	OwnerID  int64  `validate:"gte=0"`
}

// PriceInput is one observed price. A zero Date means today.
type PriceInput struct {
	ProductID int64 `validate:"required,gt=0"`
	MarketID  int64 `validate:"required,gt=0"`
	Price     decimal.Decimal
	Date      time.Time
}

// Service maintains markets, products and price observations.
type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *zap.SugaredLogger

	// configuration knobs
	Clock    clockwork.Clock
	Location *time.Location // calendar used for "today"; defaults to UTC
}

func NewService(r Repository, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:     r,
		validate: validator.New(),
		logger:   utilities.OrNop(logger),
		Clock:    clockwork.NewRealClock(),
		Location: time.UTC,
	}
}

func ownerFor(actor identity.Principal, requested int64) int64 {
	if requested == 0 && actor.Role == identity.RoleSeller {
		return actor.ID
	}
	return requested
}

// AddMarket creates a market. Sellers may only add markets they own.
func (s *Service) AddMarket(ctx context.Context, actor identity.Principal, in MarketInput) (int64, error) {
	in.OwnerID = ownerFor(actor, in.OwnerID)
	if err := authz.Require(actor, authz.ActionManageMarket, &authz.Resource{OwnerID: in.OwnerID}); err != nil {
		return 0, err
	}
	in.Name, in.Location = strings.TrimSpace(in.Name), strings.TrimSpace(in.Location)
	if err := s.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	id, err := s.repo.InsertMarket(ctx, in.Name, in.Location, in.OwnerID)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("market added", "id", id, "name", in.Name, "owner_id", in.OwnerID, "by", actor.ID)
	return id, nil
}

// AddProduct creates a product. Sellers may only add products they own.
func (s *Service) AddProduct(ctx context.Context, actor identity.Principal, in ProductInput) (int64, error) {
	in.OwnerID = ownerFor(actor, in.OwnerID)
	if err := authz.Require(actor, authz.ActionManageProduct, &authz.Resource{OwnerID: in.OwnerID}); err != nil {
		return 0, err
	}
	in.Name, in.Category, in.Unit = strings.TrimSpace(in.Name), strings.TrimSpace(in.Category), strings.TrimSpace(in.Unit)
	if err := s.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	id, err := s.repo.InsertProduct(ctx, in.Name, in.Category, in.Unit, in.OwnerID)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("product added", "id", id, "name", in.Name, "owner_id", in.OwnerID, "by", actor.ID)
	return id, nil
}

// RecordPrice appends a price observation. Sellers may record prices only in
// markets they own; the record is attributed to the actor.
func (s *Service) RecordPrice(ctx context.Context, actor identity.Principal, in PriceInput) (int64, error) {
	if err := s.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Price.IsNegative() {
		return 0, ErrInvalidPrice
	}
	owner, err := s.repo.MarketOwner(ctx, in.MarketID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, fmt.Errorf("%w: %d", ErrMarketNotFound, in.MarketID)
	}
	if err != nil {
		return 0, err
	}
	if err := authz.Require(actor, authz.ActionRecordPrice, &authz.Resource{OwnerID: owner}); err != nil {
		return 0, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.Clock.Now()
	}
	date = date.In(s.Location)
	p := entity.Price{
		ProductID:  in.ProductID,
		MarketID:   in.MarketID,
		Price:      in.Price,
		Date:       time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.Location),
		RecordedBy: actor.ID,
	}
	id, err := s.repo.InsertPrice(ctx, p)
	if err != nil {
		return 0, err
	}
	metrics.ObservePriceRecorded()
	s.logger.Debugw("price recorded", "id", id, "product_id", p.ProductID, "market_id", p.MarketID,
		"price", p.Price.String(), "date", p.Date.Format(time.DateOnly), "by", actor.ID)
	return id, nil
}

func (s *Service) Markets(ctx context.Context) ([]entity.Market, error) {
	return s.repo.Markets(ctx)
}

// Products lists products, optionally narrowed to one category.
func (s *Service) Products(ctx context.Context, category string) ([]entity.Product, error) {
	return s.repo.Products(ctx, strings.TrimSpace(category))
}
