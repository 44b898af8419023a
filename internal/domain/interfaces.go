package domain

import "context"

// AssetFetcher is the market-data boundary. Implementations surface
// *APIError for HTTP failures and *NetworkError for transport failures.
type AssetFetcher interface {
	FetchAssets(ctx context.Context) ([]Asset, error)
	FetchPriceUpdates(ctx context.Context) ([]PriceUpdate, error)
	FetchChart(ctx context.Context, assetID string, days int) (ChartSeries, error)
	// SearchAssets returns at most 10 matches and an empty slice on no match.
	SearchAssets(ctx context.Context, query string) ([]Asset, error)
}

// ChartFetcher is the subset of AssetFetcher the chart service needs.
type ChartFetcher interface {
	FetchChart(ctx context.Context, assetID string, days int) (ChartSeries, error)
}
