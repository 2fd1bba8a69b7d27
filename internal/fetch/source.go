// Package fetch retrieves and decodes slippy-map tiles.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"

	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/pkg/tile"
)

// DefaultUserAgent identifies tile requests.
const DefaultUserAgent = "globestitch/1.0.0"

// Source produces the decoded pixels of one tile.
type Source interface {
	FetchTile(ctx context.Context, c tile.Coordinate) (*image.RGBA, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, c tile.Coordinate) (*image.RGBA, error)

func (f SourceFunc) FetchTile(ctx context.Context, c tile.Coordinate) (*image.RGBA, error) {
	return f(ctx, c)
}

// Options configures an HTTPSource.
type Options struct {
	UserAgent         string
	Headers           map[string]string
	Timeout           time.Duration // per request, default 30s
	Retries           int           // extra attempts after the first, default 0
	RetryDelay        time.Duration // pause between attempts, default 500ms
	RequestsPerSecond float64       // 0 disables rate limiting
	CacheSize         int           // encoded tiles kept in memory, 0 disables caching
	Client            *http.Client
}

// HTTPSource downloads tiles from a templated tile service.
type HTTPSource struct {
	client     *http.Client
	template   *tile.Template
	userAgent  string
	headers    map[string]string
	retries    int
	retryDelay time.Duration
	limiter    *rate.Limiter
	cache      *lru.Cache[string, []byte]
}

// NewHTTPSource creates a source for the given template.
func NewHTTPSource(tmpl *tile.Template, opts *Options) (*HTTPSource, error) {
	if opts == nil {
		opts = &Options{}
	}

	s := &HTTPSource{
		client:     opts.Client,
		template:   tmpl,
		userAgent:  opts.UserAgent,
		headers:    opts.Headers,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
	}
	if s.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		s.client = &http.Client{Timeout: timeout}
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.retries < 0 {
		s.retries = 0
	}
	if s.retryDelay <= 0 {
		s.retryDelay = 500 * time.Millisecond
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []byte](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create tile cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Template returns the template tiles are resolved against.
func (s *HTTPSource) Template() *tile.Template {
	return s.template
}

// FetchTile downloads and decodes one tile, retrying transient failures.
func (s *HTTPSource) FetchTile(ctx context.Context, c tile.Coordinate) (*image.RGBA, error) {
	url, err := s.template.URL(c)
	if err != nil {
		return nil, &FetchError{Coord: c, Err: err}
	}

	if s.cache != nil {
		if data, ok := s.cache.Get(url); ok {
			if img, err := decodeTile(data); err == nil {
				return img, nil
			}
			s.cache.Remove(url)
		}
	}

	var fe *FetchError
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			logging.Logger().Debug("retrying tile", "tile", c.String(), "attempt", attempt, "err", fe)
			select {
			case <-ctx.Done():
				return nil, &FetchError{Coord: c, URL: url, Err: ctx.Err()}
			case <-time.After(s.retryDelay):
			}
		}

		var img *image.RGBA
		img, fe = s.fetchOnce(ctx, c, url)
		if fe == nil {
			return img, nil
		}
		if ctx.Err() != nil || !fe.retryable() {
			break
		}
	}
	return nil, fe
}

func (s *HTTPSource) fetchOnce(ctx context.Context, c tile.Coordinate, url string) (*image.RGBA, *FetchError) {
	data, status, err := s.downloadTile(ctx, url)
	if err != nil {
		return nil, &FetchError{Coord: c, URL: url, StatusCode: status, Err: err}
	}

	img, err := decodeTile(data)
	if err != nil {
		return nil, &FetchError{Coord: c, URL: url, Err: err}
	}

	if s.cache != nil {
		s.cache.Add(url, data)
	}
	return img, nil
}

// downloadTile downloads a single tile
func (s *HTTPSource) downloadTile(ctx context.Context, url string) ([]byte, int, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("User-Agent", s.userAgent)
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, 0, nil
}

// decodeTile decodes PNG, JPEG or WebP bytes into a 256x256 RGBA tile.
func decodeTile(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, &decodeError{err: fmt.Errorf("unrecognized image format")}
		}
		return nil, &decodeError{err: err}
	}

	b := img.Bounds()
	if b.Dx() != tile.Size || b.Dy() != tile.Size {
		return nil, &decodeError{err: fmt.Errorf("wrong tile size: got %dx%d, expected %dx%d",
			b.Dx(), b.Dy(), tile.Size, tile.Size)}
	}

	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst, nil
}
