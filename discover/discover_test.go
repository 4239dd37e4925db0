package discover

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/flaresync/flaresync/metrics"
	"github.com/flaresync/flaresync/retry"
)

// fastRetry keeps source retries from sleeping for real in tests.
func fastRetry() []retry.Option {
	return []retry.Option{
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(2 * time.Millisecond),
	}
}

func echoServer(t *testing.T, body string) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewHTTPSource(srv.URL)
}

func newDiscoverer(t *testing.T, sources ...Source) *Discoverer {
	t.Helper()
	d, err := New(sources, metrics.New(), fastRetry()...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestDiscoverQuorumMajority(t *testing.T) {
	d := newDiscoverer(t,
		echoServer(t, "203.0.113.7\n"),
		echoServer(t, "203.0.113.7"),
		echoServer(t, "198.51.100.2"),
	)

	addr, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if want := netip.MustParseAddr("203.0.113.7"); addr != want {
		t.Errorf("expected %v, got %v", want, addr)
	}
}

func TestDiscoverThreeWaySplitFails(t *testing.T) {
	d := newDiscoverer(t,
		echoServer(t, "203.0.113.7"),
		echoServer(t, "198.51.100.2"),
		echoServer(t, "192.0.2.33"),
	)

	_, err := d.Discover(context.Background())
	if !errors.Is(err, ErrNoQuorum) {
		t.Fatalf("expected ErrNoQuorum, got %v", err)
	}
}

func TestDiscoverSurvivesOneFailure(t *testing.T) {
	d := newDiscoverer(t,
		echoServer(t, "203.0.113.7"),
		echoServer(t, "definitely not an ip"),
		echoServer(t, "203.0.113.7"),
	)

	addr, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if want := netip.MustParseAddr("203.0.113.7"); addr != want {
		t.Errorf("expected %v, got %v", want, addr)
	}
}

func TestDiscoverAllFailuresFail(t *testing.T) {
	d := newDiscoverer(t,
		echoServer(t, "nope"),
		echoServer(t, "nope"),
		echoServer(t, "nope"),
	)

	_, err := d.Discover(context.Background())
	if !errors.Is(err, ErrNoQuorum) {
		t.Fatalf("expected ErrNoQuorum, got %v", err)
	}
}

func TestHTTPSourceRetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "203.0.113.7")
	}))
	defer srv.Close()

	d := newDiscoverer(t, NewHTTPSource(srv.URL), echoServer(t, "203.0.113.7"))

	addr, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if want := netip.MustParseAddr("203.0.113.7"); addr != want {
		t.Errorf("expected %v, got %v", want, addr)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 3 {
		t.Errorf("expected 3 hits on the flaky source, got %d", hits)
	}
}

func TestHTTPSourceParseFailureNotRetried(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		io.WriteString(w, "<html>hello</html>")
	}))
	defer srv.Close()

	d := newDiscoverer(t,
		NewHTTPSource(srv.URL),
		echoServer(t, "203.0.113.7"),
		echoServer(t, "203.0.113.7"),
	)

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Errorf("parse failure is permanent, expected 1 hit, got %d", hits)
	}
}

func TestNewRequiresTwoSources(t *testing.T) {
	_, err := New([]Source{echoServer(t, "203.0.113.7")}, metrics.New())
	if err == nil {
		t.Fatal("expected error for a single source")
	}
}

func TestParseIPv4Strict(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{input: "203.0.113.7", ok: true},
		{input: "0.0.0.0", ok: true},
		{input: "2001:db8::1", ok: false},
		{input: "::ffff:203.0.113.7", ok: false},
		{input: "203.0.113", ok: false},
		{input: "", ok: false},
		{input: "203.0.113.7 extra", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseIPv4(tt.input)
			if tt.ok && err != nil {
				t.Errorf("parseIPv4(%q) failed: %v", tt.input, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("parseIPv4(%q) should have failed", tt.input)
			}
		})
	}
}
