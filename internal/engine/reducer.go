package engine

import (
	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
)

// Reduce is the only way a new State comes into existence. It is pure: the
// input is never modified and any slice that changes is freshly allocated.
// Unrecognized actions return s unchanged.
func Reduce(s domain.State, a event.Action) domain.State {
	switch act := a.(type) {
	case event.LoadRequested, event.RetryRequested:
		s.Loading = true
		s.Error = ""

	case event.LoadSucceeded:
		s.Assets = cloneAssets(act.Assets)
		s.Loading = false
		s.Error = ""

	case event.LoadFailed:
		s.Loading = false
		s.Error = act.Error

	case event.PricesUpdated:
		s.Assets = applyPriceUpdates(s.Assets, act.Updates)

	case event.SearchQuerySet:
		s.SearchQuery = act.Query

	case event.AssetSelectionToggled:
		s.SelectedAssets = toggle(s.SelectedAssets, act.AssetID)

	case event.SortingSet:
		s.SortOrder = nextSortOrder(s, act)
		s.SortBy = act.SortBy
	}
	return s
}

// nextSortOrder: clicking the current column while it is desc flips it to
// asc; a new column always starts desc; the current column while asc takes
// the requested order.
func nextSortOrder(s domain.State, act event.SortingSet) domain.SortOrder {
	if act.SortBy != s.SortBy {
		return domain.SortDesc
	}
	if s.SortOrder == domain.SortDesc {
		return domain.SortAsc
	}
	if act.SortOrder == "" {
		return domain.SortDesc
	}
	return act.SortOrder
}

func applyPriceUpdates(assets []domain.Asset, updates []domain.PriceUpdate) []domain.Asset {
	if len(updates) == 0 || len(assets) == 0 {
		return assets
	}
	byID := make(map[string]domain.PriceUpdate, len(updates))
	for _, u := range updates {
		byID[u.ID] = u
	}

	out := make([]domain.Asset, len(assets))
	for i, a := range assets {
		if u, ok := byID[a.ID]; ok {
			out[i] = u.Apply(a)
			continue
		}
		out[i] = a
	}
	return out
}

func toggle(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, sel := range ids {
		if sel == id {
			found = true
			continue
		}
		out = append(out, sel)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func cloneAssets(assets []domain.Asset) []domain.Asset {
	out := make([]domain.Asset, len(assets))
	copy(out, assets)
	return out
}
