package view

import (
	"sort"
	"strings"
	"sync"

	"crypto_dash/internal/domain"

	"github.com/shopspring/decimal"
)

// Sorting is the current list ordering as exposed to clients.
type Sorting struct {
	SortBy    domain.SortField `json:"sortBy"`
	SortOrder domain.SortOrder `json:"sortOrder"`
}

// AssetRow is one list entry with its columns already rendered.
type AssetRow struct {
	domain.Asset
	PriceDisplay     string `json:"priceDisplay"`
	MarketCapDisplay string `json:"marketCapDisplay"`
	VolumeDisplay    string `json:"volumeDisplay"`
	ChangeDisplay    string `json:"changeDisplay"`
	ChangeClass      string `json:"changeClass"`
	IsSelected       bool   `json:"isSelected"`
}

// StatsDisplay is PortfolioStats rendered for a summary card.
type StatsDisplay struct {
	TotalValue     string `json:"totalValueDisplay"`
	AvgChange      string `json:"avgChangeDisplay"`
	AvgChangeClass string `json:"avgChangeClass"`
}

// ViewModel is everything a dashboard needs to render one frame.
type ViewModel struct {
	Assets         []AssetRow             `json:"assets"`
	Loading        bool                   `json:"loading"`
	Error          string                 `json:"error,omitempty"`
	SearchQuery    string                 `json:"searchQuery"`
	SelectedAssets []string               `json:"selectedAssets"`
	PortfolioStats *domain.PortfolioStats `json:"portfolioStats"`
	StatsDisplay   *StatsDisplay          `json:"statsDisplay,omitempty"`
	Sorting        Sorting                `json:"sorting"`
	HasData        bool                   `json:"hasData"`
	IsEmpty        bool                   `json:"isEmpty"`
}

// Selectors memoizes the derived views of one store. Each selector keeps
// only its last inputs and output; repeated calls with the same slices and
// scalars return the cached value without recomputing.
//
// A Selectors is safe for concurrent use.
type Selectors struct {
	mu sync.Mutex

	filtered struct {
		valid  bool
		assets []domain.Asset
		query  string
		by     domain.SortField
		order  domain.SortOrder
		out    []domain.Asset
	}
	selected struct {
		valid  bool
		assets []domain.Asset
		ids    []string
		out    []domain.Asset
	}
	stats struct {
		valid   bool
		details []domain.Asset
		out     *domain.PortfolioStats
	}
	rows struct {
		valid  bool
		assets []domain.Asset
		ids    []string
		out    []AssetRow
	}

	// computations counts cache misses; tests read it.
	computations int
}

// New returns an empty selector set. Use one per store.
func New() *Selectors {
	return &Selectors{}
}

// FilteredSortedAssets keeps the assets whose name or symbol contains query
// (case-insensitive) and orders them stably by the given column.
func (s *Selectors) FilteredSortedAssets(assets []domain.Asset, query string, by domain.SortField, order domain.SortOrder) []domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.filtered
	if c.valid && sameAssets(c.assets, assets) && c.query == query && c.by == by && c.order == order {
		return c.out
	}
	s.computations++

	out := filterAssets(assets, query)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Field(by), out[j].Field(by)
		if order == domain.SortAsc {
			return a < b
		}
		return a > b
	})

	c.valid, c.assets, c.query, c.by, c.order, c.out = true, assets, query, by, order, out
	return out
}

func filterAssets(assets []domain.Asset, query string) []domain.Asset {
	out := make([]domain.Asset, 0, len(assets))
	if query == "" {
		return append(out, assets...)
	}
	q := strings.ToLower(query)
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), q) || strings.Contains(strings.ToLower(a.Symbol), q) {
			out = append(out, a)
		}
	}
	return out
}

// SelectedAssetDetails returns the assets whose id is selected, in asset
// list order. Selected ids with no matching asset are skipped.
func (s *Selectors) SelectedAssetDetails(assets []domain.Asset, selected []string) []domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.selected
	if c.valid && sameAssets(c.assets, assets) && sameIDs(c.ids, selected) {
		return c.out
	}
	s.computations++

	set := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		set[id] = struct{}{}
	}
	out := make([]domain.Asset, 0, len(selected))
	for _, a := range assets {
		if _, ok := set[a.ID]; ok {
			out = append(out, a)
		}
	}

	c.valid, c.assets, c.ids, c.out = true, assets, selected, out
	return out
}

// PortfolioStats aggregates details. It returns nil for an empty selection.
// On ties the leftmost asset is the top or worst performer.
func (s *Selectors) PortfolioStats(details []domain.Asset) *domain.PortfolioStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.stats
	if c.valid && sameAssets(c.details, details) {
		return c.out
	}
	s.computations++

	out := computeStats(details)
	c.valid, c.details, c.out = true, details, out
	return out
}

func computeStats(details []domain.Asset) *domain.PortfolioStats {
	if len(details) == 0 {
		return nil
	}

	total := decimal.Zero
	changes := decimal.Zero
	top, worst := details[0], details[0]
	for _, a := range details {
		total = total.Add(decimal.NewFromFloat(a.MarketCap))
		changes = changes.Add(decimal.NewFromFloat(a.Change24h))
		if a.Change24h > top.Change24h {
			top = a
		}
		if a.Change24h < worst.Change24h {
			worst = a
		}
	}

	return &domain.PortfolioStats{
		TotalAssets:    len(details),
		TotalValue:     total,
		AvgChange:      changes.Div(decimal.NewFromInt(int64(len(details)))),
		TopPerformer:   top,
		WorstPerformer: worst,
	}
}

// Rows renders the visible assets of st, flagging the selected ones.
func (s *Selectors) Rows(assets []domain.Asset, st domain.State) []AssetRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.rows
	if c.valid && sameAssets(c.assets, assets) && sameIDs(c.ids, st.SelectedAssets) {
		return c.out
	}
	s.computations++

	out := make([]AssetRow, len(assets))
	for i, a := range assets {
		out[i] = AssetRow{
			Asset:            a,
			PriceDisplay:     FormatPrice(a.Price),
			MarketCapDisplay: FormatLargeNumber(a.MarketCap),
			VolumeDisplay:    FormatLargeNumber(a.Volume24h),
			ChangeDisplay:    FormatChange(a.Change24h),
			ChangeClass:      ChangeClass(a.Change24h),
			IsSelected:       st.IsSelected(a.ID),
		}
	}

	c.valid, c.assets, c.ids, c.out = true, assets, st.SelectedAssets, out
	return out
}

func statsDisplay(stats *domain.PortfolioStats) *StatsDisplay {
	if stats == nil {
		return nil
	}
	avg := stats.AvgChange.InexactFloat64()
	return &StatsDisplay{
		TotalValue:     FormatLargeNumber(stats.TotalValue.InexactFloat64()),
		AvgChange:      FormatChange(avg),
		AvgChangeClass: ChangeClass(avg),
	}
}

// ViewModel composes the selectors for st.
func (s *Selectors) ViewModel(st domain.State) ViewModel {
	assets := s.FilteredSortedAssets(st.Assets, st.SearchQuery, st.SortBy, st.SortOrder)
	details := s.SelectedAssetDetails(st.Assets, st.SelectedAssets)
	stats := s.PortfolioStats(details)

	return ViewModel{
		Assets:         s.Rows(assets, st),
		Loading:        st.Loading,
		Error:          st.Error,
		SearchQuery:    st.SearchQuery,
		SelectedAssets: st.SelectedAssets,
		PortfolioStats: stats,
		StatsDisplay:   statsDisplay(stats),
		Sorting:        Sorting{SortBy: st.SortBy, SortOrder: st.SortOrder},
		HasData:        len(assets) > 0,
		IsEmpty:        !st.Loading && len(assets) == 0 && st.Error == "",
	}
}

// sameAssets reports slice identity. State slices are never written after
// the reducer publishes them, so identity implies equal contents.
func sameAssets(a, b []domain.Asset) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func sameIDs(a, b []string) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}
