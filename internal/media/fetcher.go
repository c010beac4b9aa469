package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/questhold/questhold/pkg/interfaces"
)

// FetchedImage is downloaded image content with its detected type.
type FetchedImage struct {
	Data     []byte
	MimeType string
}

// Fetcher downloads image content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedImage, error)
}

// FetcherConfig configures HTTPFetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	RateLimit float64 // requests per second, 0 disables
	UserAgent string
}

// HTTPFetcher downloads images over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *rate.Limiter
	logger    interfaces.Logger
}

// NewHTTPFetcher creates a new HTTP image fetcher
func NewHTTPFetcher(cfg FetcherConfig, logger interfaces.Logger) *HTTPFetcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		limiter:   limiter,
		logger:    logger,
	}
}

// WithClient replaces the HTTP client.
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

// Fetch downloads url and checks the content is an image.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchedImage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", url, f.maxBytes)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("content at %s is %s, not an image", url, mime.String())
	}

	f.logger.Debug("Downloaded image",
		interfaces.String("url", url),
		interfaces.String("mime_type", mime.String()),
		interfaces.Int("size", len(data)))

	return &FetchedImage{Data: data, MimeType: mime.String()}, nil
}
