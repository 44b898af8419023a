package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crypto_dash/internal/domain"

	"go.uber.org/zap"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":45000,"price_change_percentage_24h":2.5,"total_volume":25000000000,"market_cap":880000000000,"image":"btc-logo.png"},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3200,"price_change_percentage_24h":-1.2,"total_volume":15000000000,"market_cap":380000000000,"image":"eth-logo.png"},
  {"id":"cardano","symbol":"ada","name":"Cardano","current_price":1.2,"price_change_percentage_24h":null,"market_cap":40000000000}
]`

var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, zap.NewNop())
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestFetchAssets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("vs_currency") != "usd" || q.Get("per_page") != "20" || q.Get("order") != "market_cap_desc" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, marketsBody)
	})

	assets, err := c.FetchAssets(context.Background())
	if err != nil {
		t.Fatalf("FetchAssets failed: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}

	btc := assets[0]
	if btc.Symbol != "BTC" || btc.Price != 45000 || btc.Change24h != 2.5 || btc.MarketCap != 880e9 || btc.Image != "btc-logo.png" {
		t.Errorf("unexpected mapping: %+v", btc)
	}
	if btc.LastUpdated != fixedNow.UnixMilli() {
		t.Errorf("lastUpdated = %d", btc.LastUpdated)
	}

	ada := assets[2]
	if ada.Change24h != 0 || ada.Volume24h != 0 {
		t.Errorf("missing numbers should default to 0: %+v", ada)
	}
}

func TestFetchPriceUpdates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, marketsBody)
	})

	updates, err := c.FetchPriceUpdates(context.Background())
	if err != nil {
		t.Fatalf("FetchPriceUpdates failed: %v", err)
	}
	if len(updates) != 3 || updates[1].ID != "ethereum" || updates[1].Price != 3200 || updates[1].Change24h != -1.2 {
		t.Errorf("unexpected updates: %+v", updates)
	}
}

func TestSearchAssets(t *testing.T) {
	var page strings.Builder
	page.WriteString("[")
	for i := 0; i < 15; i++ {
		if i > 0 {
			page.WriteString(",")
		}
		fmt.Fprintf(&page, `{"id":"coin-%d","symbol":"c%d","name":"Coin %d","current_price":%d}`, i, i, i, i)
	}
	page.WriteString(`,{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3200}]`)
	body := page.String()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("search should scan 100 coins, got per_page=%s", got)
		}
		fmt.Fprint(w, body)
	})
	ctx := context.Background()

	t.Run("capped at ten", func(t *testing.T) {
		res, err := c.SearchAssets(ctx, "COIN")
		if err != nil {
			t.Fatalf("SearchAssets failed: %v", err)
		}
		if len(res) != 10 {
			t.Errorf("expected 10 results, got %d", len(res))
		}
	})

	t.Run("symbol match", func(t *testing.T) {
		res, err := c.SearchAssets(ctx, "eth")
		if err != nil {
			t.Fatalf("SearchAssets failed: %v", err)
		}
		if len(res) != 1 || res[0].ID != "ethereum" || res[0].Symbol != "ETH" {
			t.Errorf("unexpected results: %+v", res)
		}
	})

	t.Run("no match is empty not nil", func(t *testing.T) {
		res, err := c.SearchAssets(ctx, "zzz")
		if err != nil {
			t.Fatalf("SearchAssets failed: %v", err)
		}
		if res == nil || len(res) != 0 {
			t.Errorf("expected empty slice, got %#v", res)
		}
	})
}

func TestFetchChart(t *testing.T) {
	day := int64(24 * time.Hour / time.Millisecond)
	start := time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC).UnixMilli()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("days") != "7" {
			t.Errorf("unexpected days %s", r.URL.Query().Get("days"))
		}
		fmt.Fprintf(w, `{"prices":[[%d,44000],[%d,44500],[%d],[%d,45000]]}`, start, start+day, start+2*day, start+2*day)
	})

	series, err := c.FetchChart(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("FetchChart failed: %v", err)
	}
	if len(series.Prices) != 3 || len(series.Labels) != 3 {
		t.Fatalf("expected 3 aligned points, got %d/%d", len(series.Prices), len(series.Labels))
	}
	wantLabels := []string{"3/4", "3/5", "3/6"}
	for i, want := range wantLabels {
		if series.Labels[i] != want {
			t.Errorf("label %d = %s, want %s", i, series.Labels[i], want)
		}
	}
	if series.Prices[2] != 45000 {
		t.Errorf("unexpected last price %v", series.Prices[2])
	}
}

func TestClient_Errors(t *testing.T) {
	t.Run("server error is retriable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"Internal Server Error"}`)
		})
		_, err := c.FetchAssets(context.Background())

		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != 500 || apiErr.Message != "Internal Server Error" || !domain.IsRetriable(err) {
			t.Errorf("unexpected error: %+v", apiErr)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit."}}`)
		})
		_, err := c.FetchPriceUpdates(context.Background())

		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != 429 || !domain.IsRetriable(err) {
			t.Fatalf("expected retriable 429, got %v", err)
		}
		if !strings.Contains(apiErr.Message, "Rate Limit") {
			t.Errorf("unexpected message %q", apiErr.Message)
		}
	})

	t.Run("unknown chart id", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"coin not found"}`)
		})
		_, err := c.FetchChart(context.Background(), "nope", 7)
		if !errors.Is(err, domain.ErrUnknownAsset) {
			t.Fatalf("expected ErrUnknownAsset, got %v", err)
		}
		if domain.IsRetriable(err) {
			t.Error("404 must not be retriable")
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"unexpected":"object"}`)
		})
		_, err := c.FetchAssets(context.Background())
		if !errors.Is(err, domain.ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got %v", err)
		}
	})

	t.Run("network unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		base := srv.URL
		srv.Close()

		c := NewClient(Config{BaseURL: base, Timeout: time.Second}, zap.NewNop())
		_, err := c.FetchAssets(context.Background())

		var netErr *domain.NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected NetworkError, got %v", err)
		}
		if netErr.Op != opMarkets || !netErr.IsRetriable() {
			t.Errorf("unexpected network error: %+v", netErr)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not be sent")
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := c.FetchAssets(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
