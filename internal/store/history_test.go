package store

import (
	"context"
	"testing"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
)

func TestHistoryAddAndRecent(t *testing.T) {
	h, err := OpenHistory(t.TempDir())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	outputs := []*engine.AnalysisOutput{
		{Verdict: "accurate", Meta: engine.Meta{Fingerprint: "fp-1", Title: "First"}},
		{Verdict: "misleading", Meta: engine.Meta{Fingerprint: "fp-2", SourceURL: "https://example.com/a"}},
		{Verdict: "false", Meta: engine.Meta{Fingerprint: "fp-3"}},
	}
	for _, out := range outputs {
		if err := h.Add(ctx, engine.KindText, out); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	entries, err := h.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Most recent first
	if entries[0].Fingerprint != "fp-3" || entries[1].Fingerprint != "fp-2" {
		t.Errorf("wrong order: %q then %q", entries[0].Fingerprint, entries[1].Fingerprint)
	}
	if entries[1].SourceURL != "https://example.com/a" {
		t.Errorf("source_url = %q", entries[1].SourceURL)
	}
}

func TestHistoryReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	h, err := OpenHistory(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := h.Add(ctx, engine.KindLink, &engine.AnalysisOutput{
		Verdict: "accurate", Meta: engine.Meta{Fingerprint: "fp-persist"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	h.Close()

	h2, err := OpenHistory(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h2.Close()
	entries, err := h2.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Fingerprint != "fp-persist" {
		t.Errorf("entries after reopen = %+v", entries)
	}
}
