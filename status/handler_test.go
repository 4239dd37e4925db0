package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestHandlerEmptyStore(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "badger"))

	rec := httptest.NewRecorder()
	Handler(manager).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("expected json content type, got %q", got)
	}

	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Last != nil {
		t.Errorf("expected no last run for a fresh store, got %+v", resp.Last)
	}
	if len(resp.History) != 0 {
		t.Errorf("expected empty history, got %d entries", len(resp.History))
	}
}

func TestHandlerReturnsRuns(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "badger"))
	ctx := context.Background()

	first := Run{Time: 100, Success: false, Message: "discovery failed"}
	second := Run{Time: 200, Success: true, Message: "1 updated", IP: "203.0.113.9", Updated: 1}
	if err := manager.RecordRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := manager.RecordRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	Handler(manager).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Last == nil || *resp.Last != second {
		t.Errorf("expected last run %+v, got %+v", second, resp.Last)
	}
	if len(resp.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(resp.History))
	}
	if resp.History[0] != first || resp.History[1] != second {
		t.Errorf("expected history oldest-first, got %+v", resp.History)
	}
}

type failingManager struct {
	Manager
}

func (f *failingManager) LastRun(ctx context.Context) (Run, bool, error) {
	return Run{}, false, errors.New("store unavailable")
}

func TestHandlerStoreFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(&failingManager{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when the store fails, got %d", rec.Code)
	}
}
