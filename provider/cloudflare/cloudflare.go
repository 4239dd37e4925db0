// Package cloudflare is a thin client for the Cloudflare v4 DNS records API.
// It decodes the raw response envelope so callers can classify provider
// errors by code and message instead of trusting a failed payload.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/flaresync/flaresync/faults"
	"github.com/flaresync/flaresync/provider"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	callTimeout    = 30 * time.Second
)

type Client struct {
	baseURL string
	token   string
	zoneID  string
	http    *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at a different API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func New(token, zoneID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("cloudflare api token empty")
	}
	if zoneID == "" {
		return nil, fmt.Errorf("cloudflare zone id empty")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		zoneID:  zoneID,
		http:    &http.Client{Timeout: callTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope wraps every Cloudflare API response. Result must not be used when
// Success is false.
type envelope struct {
	Success  bool              `json:"success"`
	Errors   []faults.Detail   `json:"errors"`
	Messages []json.RawMessage `json:"messages"`
	Result   json.RawMessage   `json:"result"`
}

func (c *Client) Records(ctx context.Context, name string) ([]provider.Record, error) {
	q := url.Values{}
	q.Set("type", "A")
	q.Set("name", name)
	endpoint := fmt.Sprintf("%s/zones/%s/dns_records?%s", c.baseURL, c.zoneID, q.Encode())

	env, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var records []provider.Record
	if err := json.Unmarshal(env.Result, &records); err != nil {
		return nil, fmt.Errorf("decode record list: %w", err)
	}
	return records, nil
}

func (c *Client) UpdateRecord(ctx context.Context, record provider.Record) (provider.Record, error) {
	endpoint := fmt.Sprintf("%s/zones/%s/dns_records/%s", c.baseURL, c.zoneID, record.ID)

	body, err := json.Marshal(map[string]any{
		"type":    record.Type,
		"name":    record.Name,
		"content": record.Content,
		"ttl":     record.TTL,
		"proxied": record.Proxied,
	})
	if err != nil {
		return provider.Record{}, fmt.Errorf("encode update payload: %w", err)
	}

	env, err := c.do(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Record{}, err
	}

	var updated provider.Record
	if err := json.Unmarshal(env.Result, &updated); err != nil {
		return provider.Record{}, fmt.Errorf("decode updated record: %w", err)
	}
	return updated, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &faults.StatusError{Code: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode cloudflare response: %w", err)
	}
	if !env.Success {
		return nil, &faults.APIError{Errors: env.Errors}
	}
	return &env, nil
}
