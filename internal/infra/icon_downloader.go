package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crypto_dash/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

// IconCache downloads asset icons once and keeps square PNG copies on disk.
type IconCache struct {
	dir         string
	size        int
	concurrency int
	timeout     time.Duration
	client      *fasthttp.Client
	logger      *slog.Logger
}

// NewIconCache creates the cache directory if needed.
func NewIconCache(dir string, size, concurrency int) (*IconCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icon directory: %w", err)
	}
	if size <= 0 {
		size = 24
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &IconCache{
		dir:         dir,
		size:        size,
		concurrency: concurrency,
		timeout:     10 * time.Second,
		client: &fasthttp.Client{
			Name:            DefaultUserAgent,
			MaxConnsPerHost: 10,
		},
		logger: slog.Default().With("module", "icons"),
	}, nil
}

// SyncAssets downloads missing icons with bounded concurrency. One failing
// icon does not stop the others; all failures are returned joined.
func (c *IconCache) SyncAssets(ctx context.Context, assets []domain.Asset) error {
	var g errgroup.Group
	g.SetLimit(c.concurrency)

	errs := make([]error, len(assets))
	for i, a := range assets {
		if a.Image == "" {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			if _, err := c.Download(ctx, a); err != nil {
				errs[i] = fmt.Errorf("%s: %w", a.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err == nil {
		c.logger.Debug("Icon sync complete", slog.Int("assets", len(assets)))
	}
	return err
}

// Download fetches a.Image if the icon is not cached yet and returns the
// local path. Images are resized to size x size pixels.
func (c *IconCache) Download(ctx context.Context, a domain.Asset) (string, error) {
	name := sanitizeID(a.ID)
	if name == "" {
		return "", fmt.Errorf("invalid asset id: %q", a.ID)
	}
	filePath := filepath.Join(c.dir, name+".png")

	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	status, body, err := c.client.GetDeadline(nil, a.Image, deadline)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("bad status: %d", status)
	}

	srcImg, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	resizedImg := imaging.Resize(srcImg, c.size, c.size, imaging.Lanczos)

	if err := c.writeAtomic(filePath, resizedImg); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// writeAtomic encodes img next to filePath and renames it into place, so
// readers never see a partial PNG even when two syncs race on one icon.
func (c *IconCache) writeAtomic(filePath string, img image.Image) error {
	tmp, err := os.CreateTemp(c.dir, filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

// Path returns the cached icon of id, if present.
func (c *IconCache) Path(id string) (string, bool) {
	name := sanitizeID(id)
	if name == "" {
		return "", false
	}
	p := filepath.Join(c.dir, name+".png")
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// sanitizeID keeps CoinGecko id characters only, preventing path traversal.
func sanitizeID(id string) string {
	res := make([]rune, 0, len(id))
	for _, r := range strings.ToLower(id) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			res = append(res, r)
		}
	}
	return string(res)
}
