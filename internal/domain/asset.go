package domain

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// Asset is a market snapshot of a single coin. Identity is ID; every other
// field is replaced wholesale on reload.
type Asset struct {
	ID          string  `json:"id"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Change24h   float64 `json:"change24h"` // percent
	Volume24h   float64 `json:"volume24h"`
	MarketCap   float64 `json:"marketCap"`
	LastUpdated int64   `json:"lastUpdated"` // unix millis
	Image       string  `json:"image,omitempty"`
}

// PriceUpdate is the partial asset delivered by the price poller.
type PriceUpdate struct {
	ID          string  `json:"id"`
	Price       float64 `json:"price"`
	Change24h   float64 `json:"change24h"`
	LastUpdated int64   `json:"lastUpdated"`
}

// Apply merges the update into a copy of a.
func (u PriceUpdate) Apply(a Asset) Asset {
	a.Price = u.Price
	a.Change24h = u.Change24h
	a.LastUpdated = u.LastUpdated
	return a
}

// Field returns the numeric value used for sorting by f.
func (a Asset) Field(f SortField) float64 {
	switch f {
	case SortByPrice:
		return a.Price
	case SortByChange24h:
		return a.Change24h
	case SortByVolume24h:
		return a.Volume24h
	default:
		return a.MarketCap
	}
}

// PortfolioStats aggregates the selected assets. It is derived, never stored.
type PortfolioStats struct {
	TotalAssets    int             `json:"totalAssets"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	AvgChange      decimal.Decimal `json:"avgChange"`
	TopPerformer   Asset           `json:"topPerformer"`
	WorstPerformer Asset           `json:"worstPerformer"`
}

// MarshalJSON writes the decimal aggregates as JSON numbers instead of the
// quoted strings decimal uses by default.
func (p PortfolioStats) MarshalJSON() ([]byte, error) {
	type plain PortfolioStats
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		plain
		TotalValue jsoniter.Number `json:"totalValue"`
		AvgChange  jsoniter.Number `json:"avgChange"`
	}{
		plain:      plain(p),
		TotalValue: jsoniter.Number(p.TotalValue.String()),
		AvgChange:  jsoniter.Number(p.AvgChange.String()),
	})
}

// ChartSeries is an index-aligned price history.
type ChartSeries struct {
	Prices []float64 `json:"prices"`
	Labels []string  `json:"labels"`
}
