package mapview

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads remote resources for layers. Implementations must be safe
// for concurrent use.
type Fetcher interface {
	FetchImage(ctx context.Context, url string) (image.Image, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches resources with plain HTTP GET requests. Concurrent
// requests for the same URL share one round trip. Images may be PNG, JPEG
// or WebP.
type HTTPFetcher struct {
	client *http.Client
	group  singleflight.Group
}

const defaultFetchTimeout = 30 * time.Second

// NewHTTPFetcher returns a fetcher using client, or a client with a 30s
// timeout when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPFetcher{client: client}
}

// FetchImage implements Fetcher.
func (f *HTTPFetcher) FetchImage(ctx context.Context, url string) (image.Image, error) {
	v, err := f.shared(ctx, "img:"+url, url, func(ctx context.Context) (any, error) {
		data, err := f.get(ctx, url, "image/webp,image/*")
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrFetch, url, err)
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// FetchBytes implements Fetcher.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	v, err := f.shared(ctx, "raw:"+url, url, func(ctx context.Context) (any, error) {
		return f.get(ctx, url, "*/*")
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// shared runs fn once for all concurrent callers of key. The request runs
// on a context detached from any single caller, bounded by
// defaultFetchTimeout, so one caller giving up does not fail the others.
// Each caller stops waiting when its own ctx is done.
func (f *HTTPFetcher) shared(ctx context.Context, key, url string, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}
	ch := f.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultFetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, ctx.Err())
	}
}

func (f *HTTPFetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	req.Header.Set("Accept", accept)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: %s", ErrFetch, url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, url, err)
	}
	return data, nil
}
