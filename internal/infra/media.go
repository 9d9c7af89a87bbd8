package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"auction_go/internal/domain"
)

// MediaFetcher downloads and caches thumbnail images for auctioned assets,
// for discovery surfaces. Images come from a configured CDN URL template and
// are resized to a fixed square thumbnail.
type MediaFetcher struct {
	basePath    string
	urlTemplate string // expects (collection-hex, token-id)
	thumbSize   int
	client      *http.Client
}

// NewMediaFetcher creates a fetcher caching under basePath.
func NewMediaFetcher(basePath, urlTemplate string, thumbSize int) (*MediaFetcher, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media cache directory: %w", err)
	}
	if thumbSize <= 0 {
		thumbSize = 256
	}

	// Bounded transport to avoid connection leaks on flaky CDNs
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &MediaFetcher{
		basePath:    basePath,
		urlTemplate: urlTemplate,
		thumbSize:   thumbSize,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// Fetch downloads the asset's image if not already cached and returns the
// local thumbnail path.
func (f *MediaFetcher) Fetch(asset domain.Asset) (string, error) {
	fileName := fmt.Sprintf("%s-%d.png", strings.ToLower(asset.Collection.Hex()), asset.TokenID)
	filePath := filepath.Join(f.basePath, fileName)

	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // cache hit
	}

	url := fmt.Sprintf(f.urlTemplate, strings.ToLower(asset.Collection.Hex()), asset.TokenID)

	resp, err := f.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Resize(srcImg, f.thumbSize, f.thumbSize, imaging.Lanczos)
	if err := imaging.Save(thumb, filePath); err != nil {
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	return filePath, nil
}
