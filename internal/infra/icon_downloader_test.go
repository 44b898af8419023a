package infra

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"crypto_dash/internal/domain"

	"github.com/disintegration/imaging"
)

func iconServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		img := imaging.New(64, 64, color.NRGBA{R: 247, G: 147, B: 26, A: 255})
		if err := imaging.Encode(w, img, imaging.PNG); err != nil {
			t.Errorf("encode failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIconCache_DownloadResizesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := iconServer(t, &hits)

	c, err := NewIconCache(t.TempDir(), 24, 2)
	if err != nil {
		t.Fatalf("NewIconCache failed: %v", err)
	}
	asset := domain.Asset{ID: "bitcoin", Image: srv.URL + "/btc.png"}

	path, err := c.Download(context.Background(), asset)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("cached icon unreadable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 24 {
		t.Errorf("expected 24x24, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := c.Download(context.Background(), asset); err != nil {
		t.Fatalf("second Download failed: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected cache hit on second call, got %d requests", n)
	}

	if p, ok := c.Path("bitcoin"); !ok || p != path {
		t.Errorf("Path() = %q, %v", p, ok)
	}
}

func TestIconCache_SyncAssets(t *testing.T) {
	var hits atomic.Int32
	srv := iconServer(t, &hits)

	c, err := NewIconCache(t.TempDir(), 24, 2)
	if err != nil {
		t.Fatalf("NewIconCache failed: %v", err)
	}

	err = c.SyncAssets(context.Background(), []domain.Asset{
		{ID: "bitcoin", Image: srv.URL + "/btc.png"},
		{ID: "ethereum", Image: srv.URL + "/eth.png"},
		{ID: "no-image"},
		{ID: "broken", Image: srv.URL + "/missing.png"},
	})
	if err == nil {
		t.Error("expected the broken icon to be reported")
	}
	for _, id := range []string{"bitcoin", "ethereum"} {
		if _, ok := c.Path(id); !ok {
			t.Errorf("%s icon not cached", id)
		}
	}
	if _, ok := c.Path("broken"); ok {
		t.Error("broken icon should not be cached")
	}
}

func TestSanitizeID(t *testing.T) {
	tests := map[string]string{
		"bitcoin":          "bitcoin",
		"usd-coin":         "usd-coin",
		"../../etc/passwd": "etcpasswd",
		"Wrapped BTC":      "wrappedbtc",
	}
	for in, want := range tests {
		if got := sanitizeID(in); got != want {
			t.Errorf("sanitizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIconCache_ConcurrentDownloadsLeaveOneCompleteFile(t *testing.T) {
	var hits atomic.Int32
	srv := iconServer(t, &hits)

	dir := t.TempDir()
	c, err := NewIconCache(dir, 24, 4)
	if err != nil {
		t.Fatalf("NewIconCache failed: %v", err)
	}
	asset := domain.Asset{ID: "ethereum", Image: srv.URL + "/eth.png"}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Download(context.Background(), asset)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("download %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one cached icon, got %d entries", len(entries))
	}

	path, ok := c.Path("ethereum")
	if !ok {
		t.Fatal("icon not cached")
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("cached icon unreadable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 24 {
		t.Errorf("expected 24px wide icon, got %d", b.Dx())
	}
}
