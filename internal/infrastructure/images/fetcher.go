package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"pos-shopify-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxImageBytes bounds a single download so a misbehaving host cannot fill
// the disk.
const maxImageBytes = 10 << 20

// HTTPFetcher downloads product images to local storage and returns the
// stored file name. Sync callers treat failures as non-fatal.
type HTTPFetcher struct {
	dir        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPFetcher creates a fetcher storing images under dir.
func NewHTTPFetcher(dir string, logger zerolog.Logger) ports.ImageFetcher {
	return &HTTPFetcher{
		dir:        dir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Fetch downloads the image and returns its stored file name.
func (f *HTTPFetcher) Fetch(ctx context.Context, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image host returned %s", resp.Status)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	ext := ".jpg"
	if u, err := url.Parse(imageURL); err == nil {
		if e := filepath.Ext(u.Path); e != "" && len(e) <= 5 {
			ext = e
		}
	}
	name := uuid.NewString() + ext
	path := filepath.Join(f.dir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	f.logger.Debug().Str("url", imageURL).Str("file", name).Msg("image downloaded")
	return name, nil
}
