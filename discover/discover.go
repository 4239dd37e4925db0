// Package discover determines the machine's public IPv4 address by querying
// several independent sources concurrently and requiring a quorum of them to
// agree. A single compromised or broken echo service can therefore never
// redirect DNS on its own.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/flaresync/flaresync/metrics"
	"github.com/flaresync/flaresync/retry"
)

// ErrNoQuorum means too few sources agreed on a single address. A 1-1-1
// split fails the same way zero successes do; there is no tie-breaking.
var ErrNoQuorum = errors.New("public IP quorum not reached")

// Source answers the question "what is my public IPv4 address".
type Source interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	String() string
}

type Discoverer struct {
	sources   []Source
	quorum    int
	metrics   *metrics.Metrics
	retryOpts []retry.Option
}

// New builds a Discoverer over the given sources. Quorum is a strict majority
// of the configured sources and never less than two, so a lone source can
// never decide the answer.
func New(sources []Source, m *metrics.Metrics, retryOpts ...retry.Option) (*Discoverer, error) {
	if len(sources) < 2 {
		return nil, fmt.Errorf("need at least 2 IP sources, got %d", len(sources))
	}
	quorum := len(sources)/2 + 1
	if quorum < 2 {
		quorum = 2
	}
	return &Discoverer{
		sources:   sources,
		quorum:    quorum,
		metrics:   m,
		retryOpts: retryOpts,
	}, nil
}

type outcome struct {
	addr netip.Addr
	err  error
}

// Discover fans out one lookup per source, waits for all of them, and returns
// the address the quorum agreed on. Discovery is all or nothing: below-quorum
// agreement is a failure, never a degraded answer.
func (d *Discoverer) Discover(ctx context.Context) (netip.Addr, error) {
	outcomes := make([]outcome, len(d.sources))

	var wg sync.WaitGroup
	for i, src := range d.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			addr, err := d.lookup(ctx, src)
			outcomes[i] = outcome{addr: addr, err: err}
		}(i, src)
	}
	wg.Wait()

	counts := make(map[netip.Addr]int)
	for i, out := range outcomes {
		src := d.sources[i].String()
		if out.err != nil {
			slog.Warn("IP source failed", "source", src, "error", out.err)
			d.metrics.IncIPSource(src, false)
			continue
		}
		slog.Debug("IP source answered", "source", src, "ip", out.addr)
		d.metrics.IncIPSource(src, true)
		counts[out.addr]++
	}

	var best netip.Addr
	bestCount := 0
	for addr, n := range counts {
		if n > bestCount {
			best, bestCount = addr, n
		}
	}

	if bestCount >= d.quorum {
		d.metrics.IncDiscovery(true)
		return best, nil
	}
	d.metrics.IncDiscovery(false)
	return netip.Addr{}, fmt.Errorf("%w: best agreement %d of %d sources, need %d",
		ErrNoQuorum, bestCount, len(d.sources), d.quorum)
}

func (d *Discoverer) lookup(ctx context.Context, src Source) (netip.Addr, error) {
	opts := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			d.metrics.IncRetry()
			slog.Warn("IP source request failed, retrying",
				"source", src.String(), "attempt", attempt, "wait", delay, "error", err)
		}),
	}, d.retryOpts...)

	return retry.Do(ctx, func() (netip.Addr, error) {
		return src.Lookup(ctx)
	}, opts...)
}

// parseIPv4 accepts only a dotted-quad IPv4 address. IPv6 and 4-in-6 forms
// are rejected so a misbehaving source fails loudly instead of slipping an
// unexpected answer into the tally.
func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not a dotted-quad IPv4 address: %q", s)
	}
	return addr, nil
}
