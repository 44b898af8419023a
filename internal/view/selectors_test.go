package view

import (
	"testing"

	"crypto_dash/internal/domain"

	"github.com/shopspring/decimal"
)

func mockAssets() []domain.Asset {
	return []domain.Asset{
		{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Price: 45000, Change24h: 2, Volume24h: 30e9, MarketCap: 900e9},
		{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Price: 3000, Change24h: 3, Volume24h: 15e9, MarketCap: 360e9},
		{ID: "cardano", Symbol: "ADA", Name: "Cardano", Price: 0.5, Change24h: 0.5, Volume24h: 1e9, MarketCap: 50e9},
	}
}

func ids(assets []domain.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilteredSortedAssets(t *testing.T) {
	assets := mockAssets()

	tests := []struct {
		name  string
		query string
		by    domain.SortField
		order domain.SortOrder
		want  []string
	}{
		{"no query market cap desc", "", domain.SortByMarketCap, domain.SortDesc, []string{"bitcoin", "ethereum", "cardano"}},
		{"price asc", "", domain.SortByPrice, domain.SortAsc, []string{"cardano", "ethereum", "bitcoin"}},
		{"change desc", "", domain.SortByChange24h, domain.SortDesc, []string{"ethereum", "bitcoin", "cardano"}},
		{"symbol match is case-insensitive", "eth", domain.SortByMarketCap, domain.SortDesc, []string{"ethereum"}},
		{"name match", "CARD", domain.SortByPrice, domain.SortDesc, []string{"cardano"}},
		{"no match", "doge", domain.SortByPrice, domain.SortDesc, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().FilteredSortedAssets(assets, tt.query, tt.by, tt.order)
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("got %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestFilteredSortedAssets_StableOnTies(t *testing.T) {
	assets := []domain.Asset{
		{ID: "a", Price: 1},
		{ID: "b", Price: 1},
		{ID: "c", Price: 2},
		{ID: "d", Price: 1},
	}

	got := New().FilteredSortedAssets(assets, "", domain.SortByPrice, domain.SortDesc)
	if want := []string{"c", "a", "b", "d"}; !equalIDs(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
}

func TestFilteredSortedAssets_DoesNotReorderInput(t *testing.T) {
	assets := mockAssets()
	New().FilteredSortedAssets(assets, "", domain.SortByPrice, domain.SortAsc)

	if want := []string{"bitcoin", "ethereum", "cardano"}; !equalIDs(ids(assets), want) {
		t.Errorf("Input reordered: %v", ids(assets))
	}
}

func TestSelectedAssetDetails(t *testing.T) {
	got := New().SelectedAssetDetails(mockAssets(), []string{"cardano", "missing", "bitcoin"})

	// Asset-list order, unknown ids skipped.
	if want := []string{"bitcoin", "cardano"}; !equalIDs(ids(got), want) {
		t.Errorf("got %v, want %v", ids(got), want)
	}
}

func TestPortfolioStats(t *testing.T) {
	s := New()
	details := s.SelectedAssetDetails(mockAssets(), []string{"bitcoin", "cardano"})

	stats := s.PortfolioStats(details)
	if stats == nil {
		t.Fatal("Expected stats for a non-empty selection")
	}
	if stats.TotalAssets != 2 {
		t.Errorf("TotalAssets = %d", stats.TotalAssets)
	}
	if !stats.TotalValue.Equal(decimal.NewFromFloat(950e9)) {
		t.Errorf("TotalValue = %s", stats.TotalValue)
	}
	if !stats.AvgChange.Equal(decimal.NewFromFloat(1.25)) {
		t.Errorf("AvgChange = %s", stats.AvgChange)
	}
	if stats.TopPerformer.ID != "bitcoin" || stats.WorstPerformer.ID != "cardano" {
		t.Errorf("top=%s worst=%s", stats.TopPerformer.ID, stats.WorstPerformer.ID)
	}
}

func TestPortfolioStats_ThreeAssets(t *testing.T) {
	s := New()
	stats := s.PortfolioStats(mockAssets())

	if stats.TopPerformer.ID != "ethereum" || stats.WorstPerformer.ID != "cardano" {
		t.Errorf("top=%s worst=%s", stats.TopPerformer.ID, stats.WorstPerformer.ID)
	}
	if want := decimal.NewFromFloat(1310e9); !stats.TotalValue.Equal(want) {
		t.Errorf("TotalValue = %s, want %s", stats.TotalValue, want)
	}
}

func TestPortfolioStats_TiesKeepLeftmost(t *testing.T) {
	stats := New().PortfolioStats([]domain.Asset{
		{ID: "first", Change24h: 1},
		{ID: "second", Change24h: 1},
	})
	if stats.TopPerformer.ID != "first" || stats.WorstPerformer.ID != "first" {
		t.Errorf("top=%s worst=%s", stats.TopPerformer.ID, stats.WorstPerformer.ID)
	}
}

func TestPortfolioStats_EmptySelection(t *testing.T) {
	if stats := New().PortfolioStats(nil); stats != nil {
		t.Errorf("Expected nil stats, got %+v", stats)
	}
}

func TestSelectors_Memoization(t *testing.T) {
	s := New()
	st := domain.InitialState()
	st.Assets = mockAssets()
	st.SelectedAssets = []string{"bitcoin"}

	first := s.ViewModel(st)
	before := s.computations

	second := s.ViewModel(st)
	if s.computations != before {
		t.Errorf("Unchanged inputs recomputed: %d -> %d", before, s.computations)
	}
	if &first.Assets[0] != &second.Assets[0] || first.PortfolioStats != second.PortfolioStats {
		t.Error("Expected cached outputs to be returned")
	}

	st.SearchQuery = "bit"
	third := s.ViewModel(st)
	if s.computations != before+2 {
		t.Errorf("Only the filter and its rows should recompute, got %d extra", s.computations-before)
	}
	if len(third.Assets) != 1 || third.PortfolioStats != first.PortfolioStats {
		t.Errorf("Unexpected view after query change: %+v", third)
	}

	st.Assets = append([]domain.Asset(nil), st.Assets...)
	s.ViewModel(st)
	if s.computations != before+2+4 {
		t.Errorf("New asset slice should invalidate every selector, got %d", s.computations-before)
	}
}

func TestViewModel_Flags(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*domain.State)
		wantHasData bool
		wantIsEmpty bool
	}{
		{"initial", func(*domain.State) {}, false, true},
		{"loading", func(s *domain.State) { s.Loading = true }, false, false},
		{"error", func(s *domain.State) { s.Error = "boom" }, false, false},
		{"data", func(s *domain.State) { s.Assets = mockAssets() }, true, false},
		{"filtered to nothing", func(s *domain.State) { s.Assets = mockAssets(); s.SearchQuery = "zzz" }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := domain.InitialState()
			tt.mutate(&st)

			vm := New().ViewModel(st)
			if vm.HasData != tt.wantHasData || vm.IsEmpty != tt.wantIsEmpty {
				t.Errorf("hasData=%v isEmpty=%v", vm.HasData, vm.IsEmpty)
			}
			if vm.Sorting.SortBy != st.SortBy || vm.Sorting.SortOrder != st.SortOrder {
				t.Errorf("Sorting = %+v", vm.Sorting)
			}
		})
	}
}

func TestViewModel_RendersRowsAndStats(t *testing.T) {
	st := domain.InitialState()
	st.Assets = mockAssets()
	st.Assets[2].Change24h = -1.25
	st.SelectedAssets = []string{"bitcoin", "cardano"}

	vm := New().ViewModel(st)
	if len(vm.Assets) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(vm.Assets))
	}

	btc := vm.Assets[0]
	if btc.ID != "bitcoin" || btc.PriceDisplay != "$45,000.00" || btc.MarketCapDisplay != "$900.00B" ||
		btc.VolumeDisplay != "$30.00B" || btc.ChangeDisplay != "+2.00%" || btc.ChangeClass != "positive" || !btc.IsSelected {
		t.Errorf("Unexpected bitcoin row: %+v", btc)
	}
	if vm.Assets[1].ID != "ethereum" || vm.Assets[1].IsSelected {
		t.Errorf("Ethereum should be unselected: %+v", vm.Assets[1])
	}
	ada := vm.Assets[2]
	if ada.PriceDisplay != "$0.50" || ada.ChangeDisplay != "-1.25%" || ada.ChangeClass != "negative" || !ada.IsSelected {
		t.Errorf("Unexpected cardano row: %+v", ada)
	}

	if vm.StatsDisplay == nil {
		t.Fatal("Expected stats display for a non-empty selection")
	}
	want := StatsDisplay{TotalValue: "$950.00B", AvgChange: "+0.38%", AvgChangeClass: "positive"}
	if *vm.StatsDisplay != want {
		t.Errorf("StatsDisplay = %+v, want %+v", *vm.StatsDisplay, want)
	}
}

func TestViewModel_NoStatsDisplayWithoutSelection(t *testing.T) {
	st := domain.InitialState()
	st.Assets = mockAssets()
	if vm := New().ViewModel(st); vm.StatsDisplay != nil {
		t.Errorf("Expected no stats display, got %+v", vm.StatsDisplay)
	}
}
