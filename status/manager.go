// Package status persists per-cycle run outcomes so operators can see what
// the daemon last did without scraping logs.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/flaresync/flaresync/metrics"
)

const (
	lastKey    = "run:last"
	runPrefix  = "run:t:"
	maxHistory = 100
)

// Run is the recorded outcome of one sync cycle.
type Run struct {
	Time    int64  `json:"time"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	IP      string `json:"ip,omitempty"`
	Updated int    `json:"updated"`
}

type Manager interface {
	RecordRun(ctx context.Context, run Run) error
	LastRun(ctx context.Context) (Run, bool, error)
	History(ctx context.Context) ([]Run, error)
	Close() error
}

type badgerManager struct {
	db      *badger.DB
	metrics *metrics.Metrics
}

func New(path string, m *metrics.Metrics) (Manager, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable Badger's internal logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &badgerManager{db: db, metrics: m}, nil
}

// RecordRun stores run as the latest outcome and appends it to the history,
// pruning history beyond the most recent entries. Runs landing in the same
// second overwrite each other, which is fine at minute-scale intervals.
func (m *badgerManager) RecordRun(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(lastKey), data); err != nil {
			return err
		}
		key := fmt.Sprintf("%s%020d", runPrefix, run.Time)
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		return pruneHistory(txn)
	})
	m.metrics.IncStatusRequest(err == nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func pruneHistory(txn *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	// Collect keys first, then delete; the iterator must be closed before
	// the transaction is mutated.
	var keys [][]byte
	it := txn.NewIterator(opts)
	prefix := []byte(runPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	// Keys sort oldest-first because timestamps are zero-padded.
	for len(keys) > maxHistory {
		if err := txn.Delete(keys[0]); err != nil {
			return err
		}
		keys = keys[1:]
	}
	return nil
}

func (m *badgerManager) LastRun(ctx context.Context) (Run, bool, error) {
	var run Run
	found := false

	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	m.metrics.IncStatusRequest(err == nil)
	if err != nil {
		return Run{}, false, fmt.Errorf("load last run: %w", err)
	}
	return run, found, nil
}

// History returns recorded runs oldest-first.
func (m *badgerManager) History(ctx context.Context) ([]Run, error) {
	var runs []Run

	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var run Run
				if err := json.Unmarshal(val, &run); err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	m.metrics.IncStatusRequest(err == nil)
	if err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}
	return runs, nil
}

func (m *badgerManager) Close() error {
	return m.db.Close()
}
