package domain

import "fmt"

// SortField names the asset column the list is ordered by.
type SortField string

const (
	SortByPrice     SortField = "price"
	SortByChange24h SortField = "change24h"
	SortByVolume24h SortField = "volume24h"
	SortByMarketCap SortField = "marketCap"
)

// SortOrder is the direction of the list ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortField validates a column name coming from outside the core.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortByPrice, SortByChange24h, SortByVolume24h, SortByMarketCap:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// ParseSortOrder validates a direction coming from outside the core.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case SortAsc, SortDesc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// State is the single dashboard aggregate. Only the reducer produces new
// values; nobody mutates one in place.
type State struct {
	Assets         []Asset   `json:"assets"`
	SelectedAssets []string  `json:"selectedAssets"`
	Loading        bool      `json:"loading"`
	Error          string    `json:"error,omitempty"`
	SearchQuery    string    `json:"searchQuery"`
	SortBy         SortField `json:"sortBy"`
	SortOrder      SortOrder `json:"sortOrder"`
}

// InitialState is the value the store starts from.
func InitialState() State {
	return State{
		Assets:         []Asset{},
		SelectedAssets: []string{},
		SortBy:         SortByMarketCap,
		SortOrder:      SortDesc,
	}
}

// IsSelected reports whether id is part of the selection.
func (s State) IsSelected(id string) bool {
	for _, sel := range s.SelectedAssets {
		if sel == id {
			return true
		}
	}
	return false
}
