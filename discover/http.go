package discover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/flaresync/flaresync/faults"
)

// lookupTimeout bounds a single attempt against one source.
const lookupTimeout = 10 * time.Second

// HTTPSource is a plain-text IP echo endpoint: GET returns the caller's
// address as the response body, possibly with surrounding whitespace.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{url: url, client: &http.Client{}}
}

func (s *HTTPSource) String() string {
	return s.url
}

func (s *HTTPSource) Lookup(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, &faults.StatusError{Code: resp.StatusCode}
	}

	// An IP address fits in a fraction of this; anything longer is garbage.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read body from %s: %w", s.url, err)
	}
	return parseIPv4(strings.TrimSpace(string(body)))
}
