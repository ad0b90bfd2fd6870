// Package schedule maintains the calendar book: one entry per known
// game, updated at discovery and cross-referenced to the durable
// historical record once the game is promoted.
package schedule

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jasper9/nbastats.fun/internal/fsatomic"
)

// Entry is one game on the calendar. Result fields stay empty until the
// game is played and promoted.
type Entry struct {
	EventID    string    `json:"event_id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	HomeTeam   string    `json:"home_team"`
	HomeAbbr   string    `json:"home_abbr"`
	AwayTeam   string    `json:"away_team"`
	AwayAbbr   string    `json:"away_abbr"`
	StartTime  time.Time `json:"start_time"`
	HomeScore  *int      `json:"home_score,omitempty"`
	AwayScore  *int      `json:"away_score,omitempty"`
	Winner     string    `json:"winner,omitempty"`      // winning side's abbreviation
	HistoryKey string    `json:"history_key,omitempty"` // durable record id once promoted
	Played     bool      `json:"played"`
}

type book struct {
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []Entry   `json:"entries"`
}

// Book is the schedule file. One writer process; reads and writes go
// through the same atomic-replace discipline as event records.
type Book struct {
	path string
	mu   sync.Mutex
}

// NewBook returns the schedule book stored under dataDir
func NewBook(dataDir string) *Book {
	return &Book{path: filepath.Join(dataDir, "schedule.json")}
}

// Upsert merges discovered games into the book. Identity and start time
// refresh on every discovery; result fields are never touched here.
func (b *Book) Upsert(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bk, err := b.load()
	if err != nil {
		return err
	}

	byID := make(map[string]int, len(bk.Entries))
	for i, e := range bk.Entries {
		byID[e.EventID] = i
	}

	for _, e := range entries {
		if i, ok := byID[e.EventID]; ok {
			existing := &bk.Entries[i]
			existing.Date = e.Date
			existing.HomeTeam, existing.HomeAbbr = e.HomeTeam, e.HomeAbbr
			existing.AwayTeam, existing.AwayAbbr = e.AwayTeam, e.AwayAbbr
			existing.StartTime = e.StartTime
			continue
		}
		bk.Entries = append(bk.Entries, e)
		byID[e.EventID] = len(bk.Entries) - 1
	}

	return b.save(bk)
}

// RecordResult writes a played game's outcome and the cross-reference
// to its historical record. An unknown event gets a stub entry so the
// result is never dropped.
func (b *Book) RecordResult(eventID string, homeScore, awayScore int, winnerAbbr, historyKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk, err := b.load()
	if err != nil {
		return err
	}

	idx := -1
	for i, e := range bk.Entries {
		if e.EventID == eventID {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Printf("[schedule] result for unknown event %s, adding a stub entry", eventID)
		bk.Entries = append(bk.Entries, Entry{EventID: eventID})
		idx = len(bk.Entries) - 1
	}

	entry := &bk.Entries[idx]
	entry.HomeScore = &homeScore
	entry.AwayScore = &awayScore
	entry.Winner = winnerAbbr
	entry.HistoryKey = historyKey
	entry.Played = true

	return b.save(bk)
}

// Entries returns the whole calendar, oldest date first
func (b *Book) Entries() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk, err := b.load()
	if err != nil {
		return nil, err
	}
	return bk.Entries, nil
}

// EntriesForDate returns the calendar entries for one date
func (b *Book) EntriesForDate(date string) ([]Entry, error) {
	all, err := b.Entries()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, e := range all {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Book) load() (*book, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &book{}, nil
		}
		return nil, fmt.Errorf("reading schedule: %w", err)
	}

	var bk book
	if err := json.Unmarshal(data, &bk); err != nil {
		return nil, fmt.Errorf("decoding schedule: %w", err)
	}
	return &bk, nil
}

func (b *Book) save(bk *book) error {
	sort.SliceStable(bk.Entries, func(i, j int) bool {
		if bk.Entries[i].Date != bk.Entries[j].Date {
			return bk.Entries[i].Date < bk.Entries[j].Date
		}
		return bk.Entries[i].StartTime.Before(bk.Entries[j].StartTime)
	})
	bk.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(bk)
	if err != nil {
		return fmt.Errorf("encoding schedule: %w", err)
	}
	if err := fsatomic.WriteFile(b.path, data); err != nil {
		return fmt.Errorf("persisting schedule: %w", err)
	}
	return nil
}
