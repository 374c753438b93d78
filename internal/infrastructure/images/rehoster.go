// Package images rehosts remote product images into the application's
// own blob storage so imported catalogs do not depend on third-party
// image hosts staying alive.
package images

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// userAgent is sent on image downloads; some CDNs reject the Go default
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// BlobStorage persists a blob and returns its public URL
type BlobStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Rehoster downloads remote images and re-serves them from blob
// storage. Rehost never fails: on any error at any stage it degrades to
// returning the original URL, logging a warning. An image failure must
// never abort product creation.
type Rehoster struct {
	storage       BlobStorage
	client        *http.Client
	backendHost   string
	backendOrigin string
	maxBytes      int64
	logger        *zap.Logger
	now           func() time.Time
}

// RehosterOption configures a Rehoster
type RehosterOption func(*Rehoster)

// WithHTTPClient overrides the HTTP client used for downloads
func WithHTTPClient(client *http.Client) RehosterOption {
	return func(r *Rehoster) { r.client = client }
}

// WithClock overrides the rehoster's clock
func WithClock(now func() time.Time) RehosterOption {
	return func(r *Rehoster) { r.now = now }
}

// NewRehoster creates a rehoster. backendBaseURL is the externally
// resolvable origin of this backend; it is used both to skip URLs that
// are already self-hosted and to rewrite localhost storage URLs.
func NewRehoster(storage BlobStorage, backendBaseURL string, maxBytes int64, timeout time.Duration, logger *zap.Logger, opts ...RehosterOption) *Rehoster {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := &Rehoster{
		storage:  storage,
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
	if parsed, err := url.Parse(backendBaseURL); err == nil && parsed.Host != "" {
		r.backendHost = parsed.Host
		r.backendOrigin = parsed.Scheme + "://" + parsed.Host
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rehost downloads the image at rawURL, stores it, and returns the
// rewritten URL. It returns rawURL unchanged when the URL is empty,
// relative, points at localhost, is already self-hosted, or when any
// download/storage step fails.
func (r *Rehoster) Rehost(ctx context.Context, rawURL string) (result string) {
	result = rawURL

	// The whole pipeline treats rehosting as infallible
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("image rehost panicked, keeping original URL",
				zap.String("url", rawURL),
				zap.Any("panic", rec),
			)
			result = rawURL
		}
	}()

	if rawURL == "" {
		return rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		// Relative or malformed path, leave as-is
		return rawURL
	}
	if isLocalhost(parsed.Hostname()) {
		return rawURL
	}
	if r.backendHost != "" && parsed.Host == r.backendHost {
		// Already self-hosted
		return rawURL
	}

	data, contentType, err := r.download(ctx, rawURL)
	if err != nil {
		r.logger.Warn("image download failed, keeping original URL",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return rawURL
	}

	key := r.objectKey(parsed.Path, contentType)
	hosted, err := r.storage.Put(ctx, key, data, contentType)
	if err != nil {
		r.logger.Warn("image upload failed, keeping original URL",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return rawURL
	}

	return r.rewriteLocalhost(hosted)
}

// download fetches the image with a bounded size and timeout
func (r *Rehoster) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d byte limit", r.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image body")
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// objectKey builds a collision-avoiding storage key from a timestamp
// and a random suffix. Content addressing is deliberately not used: two
// imports of the same image may store it twice.
func (r *Rehoster) objectKey(urlPath, contentType string) string {
	ext := extensionFor(contentType, urlPath)
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	now := r.now()
	return fmt.Sprintf("products/%s/%d-%s%s",
		now.Format("20060102"), now.UnixNano(), hex.EncodeToString(suffix), ext)
}

// rewriteLocalhost swaps a localhost storage origin for the public
// backend origin so stored references stay externally resolvable.
func (r *Rehoster) rewriteLocalhost(hosted string) string {
	parsed, err := url.Parse(hosted)
	if err != nil || !isLocalhost(parsed.Hostname()) || r.backendOrigin == "" {
		return hosted
	}
	return r.backendOrigin + parsed.RequestURI()
}

// extensionFor picks a file extension from the Content-Type header,
// falling back to the URL's path extension, defaulting to .jpg.
func extensionFor(contentType, urlPath string) string {
	switch {
	case strings.Contains(contentType, "image/jpeg"), strings.Contains(contentType, "image/jpg"):
		return ".jpg"
	case strings.Contains(contentType, "image/png"):
		return ".png"
	case strings.Contains(contentType, "image/webp"):
		return ".webp"
	case strings.Contains(contentType, "image/gif"):
		return ".gif"
	case strings.Contains(contentType, "image/avif"):
		return ".avif"
	case strings.Contains(contentType, "image/svg"):
		return ".svg"
	}
	if ext := path.Ext(urlPath); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}

func isLocalhost(hostname string) bool {
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}
