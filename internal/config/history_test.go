package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/repolex/repolex/internal/model"
)

func TestHistoryRecordThenLookupRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	h, err := OpenHistory(dbPath)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer h.Close()

	repo := model.Repository{Org: "acme", Repo: "demo"}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := h.Record(ctx, repo, "v0.2.0", 1234, at); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec, err := h.Lookup(ctx, repo)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected a record, got nil")
	}
	if rec.Version != "v0.2.0" || rec.QuadCount != 1234 {
		t.Errorf("got %+v, want version v0.2.0 quad_count 1234", rec)
	}
	if !rec.IngestedAt.Equal(at) {
		t.Errorf("got ingested_at %v, want %v", rec.IngestedAt, at)
	}
}

func TestHistoryLookupUnknownRepoReturnsNil(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	h, err := OpenHistory(dbPath)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer h.Close()

	rec, err := h.Lookup(ctx, model.Repository{Org: "acme", Repo: "nope"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for an unrecorded repo, got %+v", rec)
	}
}

func TestHistoryRecordUpsertsOnSecondIngestion(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	h, err := OpenHistory(dbPath)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer h.Close()

	repo := model.Repository{Org: "acme", Repo: "demo"}
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := h.Record(ctx, repo, "v0.1.0", 100, first); err != nil {
		t.Fatalf("Record first: %v", err)
	}
	if err := h.Record(ctx, repo, "v0.2.0", 200, second); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	rec, err := h.Lookup(ctx, repo)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Version != "v0.2.0" || rec.QuadCount != 200 {
		t.Errorf("expected the second ingestion to win, got %+v", rec)
	}
	if !rec.IngestedAt.Equal(second) {
		t.Errorf("expected ingested_at from the second call, got %v", rec.IngestedAt)
	}
}
