// Package matchclient is a small client for the match server's HTTP and WebSocket
// surface, used by probes and smoke checks.
package matchclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-match-server/pkg/matchdto"
	"github.com/valyala/fasthttp"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client
	origin  string

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithOrigin sets the Origin header sent with every request.
func WithOrigin(origin string) Option {
	return func(c *Client) { c.origin = strings.TrimSpace(origin) }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("match api error: status=%d body=%s", e.Status, e.Body)
}

func (c *Client) Status(ctx context.Context) (*matchdto.StatusResponse, error) {
	var out matchdto.StatusResponse
	if err := c.getJSON(ctx, "/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Rooms(ctx context.Context) (*matchdto.RoomsResponse, error) {
	var out matchdto.RoomsResponse
	if err := c.getJSON(ctx, "/api/rooms", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClusterRooms lists rooms from the Redis mirror; the server answers 503 when it has none.
func (c *Client) ClusterRooms(ctx context.Context) (*matchdto.RoomsResponse, error) {
	var out matchdto.RoomsResponse
	if err := c.getJSON(ctx, "/api/cluster/rooms", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BoardPNG downloads the board image of a room.
func (c *Client) BoardPNG(ctx context.Context, roomID string, secondView bool) ([]byte, error) {
	path := "/api/rooms/" + strings.TrimSpace(roomID) + "/board.png"
	if secondView {
		path += "?view=second"
	}
	return c.get(ctx, path)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get retries transport errors and 5xx except 503, which means "not configured".
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = &StatusError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if !shouldRetryStatus(status) {
				return nil, lastErr
			}
		} else {
			return append([]byte(nil), resp.Body()...), nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return nil, lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
