// Package raster talks to a browserless-compatible screenshot service.
package raster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout     = 20 * time.Second
	defaultSettleDelay = 300 * time.Millisecond
	maxImageBytes      = 16 << 20
	fontsReadyFn       = "() => document.fonts.ready.then(() => true)"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var (
	// ErrNotConfigured is returned when no endpoint is set.
	ErrNotConfigured = errors.New("raster: endpoint not configured")
	// ErrNotPNG is returned when the service answers with something else.
	ErrNotPNG = errors.New("raster: response is not a PNG image")
)

// Job describes one screenshot.
type Job struct {
	HTML   string
	Width  int
	Height int
	Scale  float64
}

// Client posts markup to the screenshot endpoint.
type Client struct {
	endpoint    string
	token       string
	settleDelay time.Duration
	httpClient  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSettleDelay sets the pause after fonts are ready.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.settleDelay = delay
		}
	}
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// NewClient builds a Client for endpoint, e.g. https://chrome.example.com.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:    strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		settleDelay: defaultSettleDelay,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type screenshotRequest struct {
	HTML            string            `json:"html"`
	Options         screenshotOptions `json:"options"`
	Viewport        viewport          `json:"viewport"`
	WaitForFunction waitForFunction   `json:"waitForFunction"`
	WaitForTimeout  int64             `json:"waitForTimeout,omitempty"`
}

type screenshotOptions struct {
	Type           string `json:"type"`
	FullPage       bool   `json:"fullPage"`
	OmitBackground bool   `json:"omitBackground"`
}

type viewport struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
}

type waitForFunction struct {
	Fn      string `json:"fn"`
	Polling string `json:"polling"`
}

// Screenshot renders job and returns PNG bytes.
func (c *Client) Screenshot(ctx context.Context, job Job) ([]byte, error) {
	if c == nil || c.endpoint == "" {
		return nil, ErrNotConfigured
	}
	if job.Width <= 0 || job.Height <= 0 {
		return nil, fmt.Errorf("raster: invalid viewport %dx%d", job.Width, job.Height)
	}
	scale := job.Scale
	if scale <= 0 {
		scale = 1
	}

	body, err := json.Marshal(screenshotRequest{
		HTML:            job.HTML,
		Options:         screenshotOptions{Type: "png"},
		Viewport:        viewport{Width: job.Width, Height: job.Height, DeviceScaleFactor: scale},
		WaitForFunction: waitForFunction{Fn: fontsReadyFn, Polling: "raf"},
		WaitForTimeout:  c.settleDelay.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("raster: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/screenshot", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("raster: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raster: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("raster: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raster: status %d: %s", resp.StatusCode, strings.TrimSpace(string(truncate(data, 200))))
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("raster: image exceeds %d bytes", maxImageBytes)
	}
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, ErrNotPNG
	}
	return data, nil
}

// Ping checks the service answers at all.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.endpoint == "" {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("raster: ping: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("raster: ping status %d", resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
