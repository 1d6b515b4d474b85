package log

import (
	"path/filepath"
	"testing"
	"time"

	"metaleague.ai/internal/sim/match"
)

func TestRoundLogger_RoundTrip(t *testing.T) {
	dir := MatchDir(t.TempDir(), "m1")
	l := NewRoundLogger(dir)
	for r := 1; r <= 3; r++ {
		l.Round(match.RoundLogEntry{MatchID: "m1", Seed: 9, Round: r, Digest: "d"})
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := ReadRounds(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(got))
	}
	for i, e := range got {
		if e.Round != i+1 || e.MatchID != "m1" || e.Seed != 9 {
			t.Fatalf("unexpected entry %d: %+v", i, e)
		}
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "results")
	base := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return base }
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	base = base.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := ListFiles(dir, "results")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v", files)
	}
	if filepath.Base(files[0]) != "results-2026-03-01-10.jsonl.zst" {
		t.Fatalf("unexpected first file %s", files[0])
	}
	lines := 0
	for _, f := range files {
		if err := ReadLines(f, func([]byte) error { lines++; return nil }); err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}
