package coingecko

import (
	"strconv"
	"strings"
	"time"

	"crypto_dash/internal/domain"
)

// marketCoin is one element of /coins/markets. Numeric fields are pointers
// because CoinGecko returns null for coins without enough history.
type marketCoin struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	TotalVolume              *float64 `json:"total_volume"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// marketChart is the body of /coins/{id}/market_chart. Each point is
// [unix millis, value].
type marketChart struct {
	Prices [][]float64 `json:"prices"`
}

// apiErrorBody covers the two error shapes CoinGecko uses.
type apiErrorBody struct {
	Error  string `json:"error"`
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func (b apiErrorBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Status.ErrorMessage
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (c marketCoin) toAsset(now time.Time) domain.Asset {
	return domain.Asset{
		ID:          c.ID,
		Symbol:      strings.ToUpper(c.Symbol),
		Name:        c.Name,
		Price:       orZero(c.CurrentPrice),
		Change24h:   orZero(c.PriceChangePercentage24h),
		Volume24h:   orZero(c.TotalVolume),
		MarketCap:   orZero(c.MarketCap),
		LastUpdated: now.UnixMilli(),
		Image:       c.Image,
	}
}

func (c marketCoin) toPriceUpdate(now time.Time) domain.PriceUpdate {
	return domain.PriceUpdate{
		ID:          c.ID,
		Price:       orZero(c.CurrentPrice),
		Change24h:   orZero(c.PriceChangePercentage24h),
		LastUpdated: now.UnixMilli(),
	}
}

func (c marketCoin) matches(lowerQuery string) bool {
	return strings.Contains(strings.ToLower(c.Name), lowerQuery) ||
		strings.Contains(strings.ToLower(c.Symbol), lowerQuery)
}

// toSeries keeps well-formed points only; labels are M/D in UTC.
func (m marketChart) toSeries() domain.ChartSeries {
	s := domain.ChartSeries{
		Prices: make([]float64, 0, len(m.Prices)),
		Labels: make([]string, 0, len(m.Prices)),
	}
	for _, p := range m.Prices {
		if len(p) < 2 {
			continue
		}
		t := time.UnixMilli(int64(p[0])).UTC()
		s.Prices = append(s.Prices, p[1])
		s.Labels = append(s.Labels, formatLabel(t))
	}
	return s
}

func formatLabel(t time.Time) string {
	return strconv.Itoa(int(t.Month())) + "/" + strconv.Itoa(t.Day())
}
