package event

import "crypto_dash/internal/domain"

// Type names an action. The values double as wire names in the codec.
type Type string

const (
	TypeLoadRequested         Type = "[Crypto] Load Data"
	TypeLoadSucceeded         Type = "[Crypto] Load Data Success"
	TypeLoadFailed            Type = "[Crypto] Load Data Failure"
	TypePricesUpdated         Type = "[Crypto] Update Prices"
	TypeSearchQuerySet        Type = "[Crypto] Set Search Query"
	TypeAssetSelectionToggled Type = "[Crypto] Toggle Asset Selection"
	TypeSortingSet            Type = "[Crypto] Set Sorting"
	TypeRetryRequested        Type = "[Crypto] Retry Failed Request"

	// Informational: the reducer ignores these, clients may not.
	TypePriceUpdateFailed Type = "[Crypto] Price Update Failed"
	TypeSearchTooShort    Type = "[Crypto] Search Too Short"
	TypeSearchResults     Type = "[Crypto] Search Results"
	TypeSearchFailed      Type = "[Crypto] Search Failed"
)

// Action is an immutable description of something that happened.
type Action interface {
	ActionType() Type
}

type LoadRequested struct{}

func (LoadRequested) ActionType() Type { return TypeLoadRequested }

type LoadSucceeded struct {
	Assets []domain.Asset `json:"assets"`
}

func (LoadSucceeded) ActionType() Type { return TypeLoadSucceeded }

type LoadFailed struct {
	Error string `json:"error"`
}

func (LoadFailed) ActionType() Type { return TypeLoadFailed }

type PricesUpdated struct {
	Updates []domain.PriceUpdate `json:"updates"`
}

func (PricesUpdated) ActionType() Type { return TypePricesUpdated }

type SearchQuerySet struct {
	Query string `json:"query"`
}

func (SearchQuerySet) ActionType() Type { return TypeSearchQuerySet }

type AssetSelectionToggled struct {
	AssetID string `json:"assetId"`
}

func (AssetSelectionToggled) ActionType() Type { return TypeAssetSelectionToggled }

// SortingSet carries the requested column and order. The reducer decides
// the effective order.
type SortingSet struct {
	SortBy    domain.SortField `json:"sortBy"`
	SortOrder domain.SortOrder `json:"sortOrder"`
}

func (SortingSet) ActionType() Type { return TypeSortingSet }

type RetryRequested struct{}

func (RetryRequested) ActionType() Type { return TypeRetryRequested }

type PriceUpdateFailed struct {
	Reason string `json:"reason"`
}

func (PriceUpdateFailed) ActionType() Type { return TypePriceUpdateFailed }

type SearchTooShort struct {
	Query string `json:"query"`
}

func (SearchTooShort) ActionType() Type { return TypeSearchTooShort }

type SearchResults struct {
	Query   string         `json:"query"`
	Results []domain.Asset `json:"results"`
}

func (SearchResults) ActionType() Type { return TypeSearchResults }

type SearchFailed struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

func (SearchFailed) ActionType() Type { return TypeSearchFailed }

// IsUserAction reports whether a UI is allowed to dispatch t directly.
func IsUserAction(t Type) bool {
	switch t {
	case TypeLoadRequested, TypeRetryRequested, TypeSearchQuerySet,
		TypeAssetSelectionToggled, TypeSortingSet:
		return true
	}
	return false
}
