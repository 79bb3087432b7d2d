package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord represents a row in the `prices` table. ProductName and
// MarketName are filled by the queries that join reference data.
type PriceRecord struct {
	ID          int64           `db:"id"`
	ProductID   int64           `db:"product_id"`
	MarketID    int64           `db:"market_id"`
	Price       decimal.Decimal `db:"price"`
	Date        time.Time       `db:"date"`
	RecordedBy  *int64          `db:"recorded_by"`
	ProductName string          `db:"product_name"`
	MarketName  string          `db:"market_name"`
}

// Filter narrows a query; zero fields match everything.
type Filter struct {
	ProductID int64
	MarketID  int64
}

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
	TrendUnknown    Trend = "unknown"
)

// Stats summarizes the prices of one product over a window.
type Stats struct {
	Min    float64
	Max    float64
	Avg    float64
	Count  int
	StdDev float64
	Trend  Trend
	From   time.Time
	To     time.Time
}

// SeriesPoint is one record of a price series with its smoothed value.
type SeriesPoint struct {
	Date       time.Time
	MarketID   int64
	MarketName string
	Price      float64
	MovingAvg  float64
}

// MarketActivity counts the price entries a market received in a window.
type MarketActivity struct {
	MarketID       int64
	MarketName     string
	Location       string
	UniqueProducts int64
	TotalEntries   int64
	AvgPrice       float64
}

// ProductVolume counts how often a product was priced in a window.
type ProductVolume struct {
	ProductID   int64
	ProductName string
	Category    string
	Entries     int64
	AvgPrice    float64
}

// Volatility describes the spread of a product's prices in a window.
// Percent is (max - min) / avg * 100.
type Volatility struct {
	ProductID   int64
	ProductName string
	Category    string
	Unit        string
	Min         float64
	Max         float64
	Avg         float64
	StdDev      float64
	Percent     float64
}

// MonthlyPrice aggregates one product's prices for a calendar month.
type MonthlyPrice struct {
	Year     int
	Month    time.Month
	AvgPrice float64
	MinPrice float64
	MaxPrice float64
	Count    int64
}
