package util

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestBusinessDateMarketLocal(t *testing.T) {
	sg := mustLoc(t, "Asia/Singapore")
	// 2026-01-10 23:30 UTC is already 2026-01-11 in Singapore.
	at := time.Date(2026, 1, 10, 23, 30, 0, 0, time.UTC)
	if got := BusinessDate(at, sg); got != "2026-01-11" {
		t.Fatalf("expected 2026-01-11, got %s", got)
	}
	if got := BusinessDate(at, time.UTC); got != "2026-01-10" {
		t.Fatalf("expected 2026-01-10 in UTC, got %s", got)
	}
}

func TestBusinessDateConsistentWithinRun(t *testing.T) {
	sg := mustLoc(t, "Asia/Singapore")
	at := time.Date(2026, 1, 10, 18, 5, 0, 0, sg)
	first := BusinessDate(at, sg)
	for i := 0; i < 10; i++ {
		if got := BusinessDate(at, sg); got != first {
			t.Fatalf("business date drifted: %s != %s", got, first)
		}
	}
}

func TestParseBusinessDate(t *testing.T) {
	sg := mustLoc(t, "Asia/Singapore")
	got, ok := ParseBusinessDate("2026-01-10", sg)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 10 {
		t.Fatalf("unexpected date %v", got)
	}
	if got.Location() != sg {
		t.Fatalf("expected market location, got %v", got.Location())
	}
	if _, ok := ParseBusinessDate("10/01/2026", sg); ok {
		t.Fatalf("expected parse failure for non-ISO date")
	}
}

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}
