// Package fetch downloads candidate images with a bounded timeout.
// Failures are soft: the caller only ever learns that no image was
// available, never why.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"imgseekbot/core/logger"
)

const (
	// FetchTimeout bounds a single image download.
	FetchTimeout = 15 * time.Second

	// maxImageBytes caps a download so a hostile URL cannot exhaust memory.
	maxImageBytes = 20 << 20
)

// Client downloads images over HTTP.
type Client struct {
	http *http.Client
}

// NewClient builds a fetch client with transport settings tuned the same
// way as the Telegram API client.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   FetchTimeout,
			Transport: transport,
		},
	}
}

// NewClientWith wraps an existing http.Client, used by tests.
func NewClientWith(hc *http.Client) *Client {
	return &Client{http: hc}
}

// Fetch downloads one image. Any transport error or non-200 status is a
// soft failure reported as ok=false.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug(ctx, "fetch", "image.fetch.fail",
			slog.String("status", "fail"),
			slog.String("url", logger.SanitizeLimit(url, 256)),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug(ctx, "fetch", "image.fetch.fail",
			slog.String("status", "fail"),
			slog.String("url", logger.SanitizeLimit(url, 256)),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil || len(data) == 0 {
		return nil, false
	}

	logger.Debug(ctx, "fetch", "image.fetch.ok",
		slog.String("status", "ok"),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", logger.Took(start)),
	)
	return data, true
}

// FetchAll downloads every URL concurrently and returns the successful
// payloads once all fetches settle. The result order does not correspond
// to the input order.
func (c *Client) FetchAll(ctx context.Context, urls []string) [][]byte {
	if len(urls) == 0 {
		return nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out [][]byte
	)
	wg.Add(len(urls))
	for _, url := range urls {
		go func(u string) {
			defer wg.Done()
			if data, ok := c.Fetch(ctx, u); ok {
				mu.Lock()
				out = append(out, data)
				mu.Unlock()
			}
		}(url)
	}
	wg.Wait()
	return out
}
