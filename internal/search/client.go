package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"imgseekbot/core/logger"
	"imgseekbot/internal/engine"
)

// maxResultBytes caps the result body read from the backend.
const maxResultBytes = 4 << 20

// ClientOptions configure the HTTP search client.
type ClientOptions struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client bridges to the search backend over HTTP: the engine id and the
// image are posted as a multipart form and the response body is the
// textual result.
type Client struct {
	opts ClientOptions
	http *http.Client
}

// NewClient builds a search client. A zero timeout defaults to 60s to
// accommodate slow upstream engines.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
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
		opts: opts,
		http: &http.Client{Timeout: opts.Timeout, Transport: transport},
	}
}

// NewClientWith wraps an existing http.Client, used by tests.
func NewClientWith(opts ClientOptions, hc *http.Client) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{opts: opts, http: hc}
}

// Search uploads the image and returns the backend's textual result.
func (c *Client) Search(ctx context.Context, eng engine.ID, image []byte) (string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	if err := form.WriteField("engine", string(eng)); err != nil {
		return "", fmt.Errorf("search: build form: %w", err)
	}
	part, err := form.CreateFormFile("image", "upload.jpg")
	if err != nil {
		return "", fmt.Errorf("search: build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("search: build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("search: build form: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.opts.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error(ctx, "search", "backend.fail",
			slog.String("status", "fail"),
			slog.String("engine", string(eng)),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return "", fmt.Errorf("search: backend request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return "", fmt.Errorf("search: read result: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Error(ctx, "search", "backend.fail",
			slog.String("status", "fail"),
			slog.String("engine", string(eng)),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
		)
		return "", fmt.Errorf("search: backend status %s", resp.Status)
	}

	logger.Info(ctx, "search", "backend.ok",
		slog.String("status", "ok"),
		slog.String("engine", string(eng)),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", logger.Took(start)),
	)
	return string(data), nil
}
