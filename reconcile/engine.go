// Package reconcile keeps provider-side A records pointed at the discovered
// public address: fetch, compare, snapshot, then update.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/flaresync/flaresync/backup"
	"github.com/flaresync/flaresync/metrics"
	"github.com/flaresync/flaresync/provider"
	"github.com/flaresync/flaresync/retry"
)

type Engine interface {
	ReconcileAll(ctx context.Context, addr netip.Addr, domains []string) Results
	CheckAndUpdate(ctx context.Context, domain string, addr netip.Addr) (bool, error)
}

type engine struct {
	dns       provider.Provider
	backups   *backup.Writer
	metrics   *metrics.Metrics
	retryOpts []retry.Option
}

func NewEngine(dns provider.Provider, backups *backup.Writer, m *metrics.Metrics, retryOpts ...retry.Option) *engine {
	return &engine{
		dns:       dns,
		backups:   backups,
		metrics:   m,
		retryOpts: retryOpts,
	}
}

// ReconcileAll runs CheckAndUpdate for every domain in configuration order.
// A failure on one domain never prevents attempting the rest.
func (e *engine) ReconcileAll(ctx context.Context, addr netip.Addr, domains []string) Results {
	var results Results
	for _, domain := range domains {
		updated, err := e.CheckAndUpdate(ctx, domain, addr)
		if err != nil {
			slog.Error("Failed to reconcile domain", "domain", domain, "error", err)
			results.Failures = append(results.Failures, Failure{Domain: domain, Error: err.Error()})
			continue
		}
		if updated {
			results.Updated = append(results.Updated, domain)
		} else {
			results.Unchanged = append(results.Unchanged, domain)
		}
	}
	return results
}

// CheckAndUpdate fetches the domain's A record fresh, compares it against the
// discovered address, and if they disagree snapshots the old record before
// pushing the new content. It reports whether an update was performed. A
// missing record is logged but is not an error; a misconfigured domain must
// not poison the rest of the cycle.
func (e *engine) CheckAndUpdate(ctx context.Context, domain string, addr netip.Addr) (bool, error) {
	slog.Info("Checking DNS record", "domain", domain)

	records, err := retry.Do(ctx, func() ([]provider.Record, error) {
		recs, err := e.dns.Records(ctx, domain)
		e.metrics.IncDNSRequest("lookup", err == nil)
		return recs, err
	}, e.opts("lookup")...)
	if err != nil {
		return false, fmt.Errorf("lookup record for %s: %w", domain, err)
	}

	if len(records) == 0 {
		slog.Warn("No matching DNS record", "domain", domain)
		return false, nil
	}

	record := records[0]
	want := addr.String()
	if record.Content == want {
		slog.Info("DNS record already current", "domain", domain, "ip", want)
		return false, nil
	}

	slog.Info("IP changed, updating DNS record", "domain", domain, "old", record.Content, "new", want)

	// Never mutate a record that was not snapshotted first.
	path, err := e.backups.Write(record)
	if err != nil {
		e.metrics.IncBackupWrite(false)
		return false, fmt.Errorf("backup record for %s: %w", domain, err)
	}
	e.metrics.IncBackupWrite(true)
	slog.Info("Backed up DNS record", "domain", domain, "path", path)

	record.Content = want
	_, err = retry.Do(ctx, func() (provider.Record, error) {
		updated, err := e.dns.UpdateRecord(ctx, record)
		e.metrics.IncDNSRequest("update", err == nil)
		return updated, err
	}, e.opts("update")...)
	if err != nil {
		return false, fmt.Errorf("update record for %s: %w", domain, err)
	}

	slog.Info("DNS record updated", "domain", domain, "ip", want)
	return true, nil
}

func (e *engine) opts(op string) []retry.Option {
	base := []retry.Option{
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			e.metrics.IncRetry()
			slog.Warn("DNS request failed, retrying",
				"operation", op, "attempt", attempt, "wait", delay, "error", err)
		}),
	}
	return append(base, e.retryOpts...)
}
