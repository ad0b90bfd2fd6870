package schedule

import (
	"testing"
	"time"
)

func entry(id, date string) Entry {
	return Entry{
		EventID:  id,
		Date:     date,
		HomeTeam: "Denver Nuggets", HomeAbbr: "DEN",
		AwayTeam: "Boston Celtics", AwayAbbr: "BOS",
		StartTime: time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC),
	}
}

func TestUpsertAndRead(t *testing.T) {
	book := NewBook(t.TempDir())

	if err := book.Upsert([]Entry{entry("1001", "2026-01-15"), entry("1002", "2026-01-14")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := book.Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].EventID != "1002" {
		t.Errorf("entries not sorted by date: %s first", entries[0].EventID)
	}

	// Re-discovery with a moved start time updates in place.
	moved := entry("1001", "2026-01-15")
	moved.StartTime = moved.StartTime.Add(30 * time.Minute)
	if err := book.Upsert([]Entry{moved}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ = book.Entries()
	if len(entries) != 2 {
		t.Fatalf("upsert duplicated an entry: %d entries", len(entries))
	}
	if !entries[1].StartTime.Equal(moved.StartTime) {
		t.Errorf("start time not refreshed: %v", entries[1].StartTime)
	}
}

func TestRecordResult(t *testing.T) {
	book := NewBook(t.TempDir())

	if err := book.Upsert([]Entry{entry("1001", "2026-01-15")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := book.RecordResult("1001", 110, 112, "BOS", "1001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := book.EntriesForDate("2026-01-15")
	if len(entries) != 1 {
		t.Fatalf("got %d entries for date, want 1", len(entries))
	}

	e := entries[0]
	if !e.Played || e.Winner != "BOS" || e.HistoryKey != "1001" {
		t.Errorf("result not recorded: %+v", e)
	}
	if e.HomeScore == nil || *e.HomeScore != 110 || *e.AwayScore != 112 {
		t.Errorf("scores not recorded: %+v", e)
	}

	// A later re-discovery must not wipe the result.
	if err := book.Upsert([]Entry{entry("1001", "2026-01-15")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ = book.EntriesForDate("2026-01-15")
	if !entries[0].Played || entries[0].HistoryKey != "1001" {
		t.Error("upsert clobbered the recorded result")
	}
}

func TestRecordResultUnknownEvent(t *testing.T) {
	book := NewBook(t.TempDir())

	if err := book.RecordResult("9999", 100, 90, "DEN", "9999"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := book.Entries()
	if len(entries) != 1 || entries[0].EventID != "9999" || !entries[0].Played {
		t.Errorf("stub entry not created: %+v", entries)
	}
}

func TestEmptyBook(t *testing.T) {
	book := NewBook(t.TempDir())

	entries, err := book.Entries()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("fresh book has %d entries", len(entries))
	}
}
