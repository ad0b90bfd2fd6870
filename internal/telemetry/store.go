// Package telemetry owns the durable per-event record: an append-only
// snapshot sequence in one JSON file per event, replaced atomically on
// every write. The tracker process is the only writer; API readers read
// the same files with no locking, relying on the replace-on-success
// discipline in fsatomic.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jasper9/nbastats.fun/internal/fsatomic"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

const historyDir = "live_history"

// Store appends snapshots to and reads from per-event durable records.
// Appends to the same event are serialized; different events proceed
// independently.
type Store struct {
	dir string

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	appended map[string]int // successful appends this process, per event
}

// NewStore creates the history directory if needed and returns a store
// rooted there.
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, historyDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir %s: %w", dir, err)
	}

	return &Store{
		dir:      dir,
		locks:    make(map[string]*sync.Mutex),
		appended: make(map[string]int),
	}, nil
}

func (s *Store) recordPath(eventID string) string {
	return filepath.Join(s.dir, "event_"+eventID+".json")
}

// eventLock returns the mutex serializing writes for one event
func (s *Store) eventLock(eventID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[eventID] = lock
	}
	return lock
}

func (s *Store) appendCount(eventID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended[eventID]
}

func (s *Store) bumpAppendCount(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended[eventID]++
}

// Read returns the full durable record for an event. It takes no lock:
// records are only ever replaced whole, so a reader sees either the
// previous or the new complete state. Returns ErrNotFound when no
// record exists.
func (s *Store) Read(eventID string) (*models.EventRecord, error) {
	data, err := os.ReadFile(s.recordPath(eventID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
		}
		return nil, fmt.Errorf("reading record for event %s: %w", eventID, err)
	}

	var rec models.EventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record for event %s (%v): %w", eventID, err, ErrCorrupt)
	}
	return &rec, nil
}

// ListEventIDs returns the ids of every event with a durable record,
// in directory order.
func (s *Store) ListEventIDs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "event_*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		id := base[len("event_") : len(base)-len(".json")]
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Append adds one snapshot to the event's durable sequence.
//
// Rejected outright (errors.Is):
//   - ErrPrePeriodOne: the snapshot carries a score before period 1
//   - ErrOutOfOrder: the timestamp is not strictly after the last one
//   - ErrPromoted: the record was already promoted to history
//
// A missing or unreadable record for an event this process has already
// written is logged as a gap and a fresh sequence begins transparently.
func (s *Store) Append(ev models.TrackedEvent, snap models.Snapshot) (*models.EventRecord, error) {
	if snap.HasScore() && snap.Clock.Period < 1 {
		return nil, fmt.Errorf("event %s: %w", ev.EventID, ErrPrePeriodOne)
	}

	lock := s.eventLock(ev.EventID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Read(ev.EventID)
	switch {
	case err == nil:
		// existing sequence continues
	case isNotFound(err) && s.appendCount(ev.EventID) == 0:
		rec = s.freshRecord(ev, false)
	case isNotFound(err):
		log.Printf("[store] event %s: durable record missing after %d appends, starting fresh sequence",
			ev.EventID, s.appendCount(ev.EventID))
		rec = s.freshRecord(ev, true)
	case errors.Is(err, ErrCorrupt):
		log.Printf("[store] event %s: corrupt record (%v), starting fresh sequence", ev.EventID, err)
		rec = s.freshRecord(ev, true)
	default:
		// A real IO failure is not a gap; surface it so the caller
		// can treat the store as unavailable.
		return nil, err
	}

	if rec.Promoted {
		return nil, fmt.Errorf("event %s: %w", ev.EventID, ErrPromoted)
	}

	if n := len(rec.Snapshots); n > 0 {
		last := rec.Snapshots[n-1].Timestamp
		if !snap.Timestamp.After(last) {
			return nil, fmt.Errorf("event %s: snapshot at %s, last at %s: %w",
				ev.EventID, snap.Timestamp.Format(time.RFC3339), last.Format(time.RFC3339), ErrOutOfOrder)
		}
	}

	rec.Snapshots = append(rec.Snapshots, snap)
	if snap.Clock.Phase == models.PhaseFinal {
		rec.Terminal = true
		rec.Event.State = models.StateTerminal
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := s.write(ev.EventID, rec); err != nil {
		return nil, err
	}
	s.bumpAppendCount(ev.EventID)
	return rec, nil
}

// RecordMilestones persists newly fired milestones onto the event's
// record. Milestones already present under the same (subject, class,
// threshold) key are dropped, so replaying a detection pass is safe.
func (s *Store) RecordMilestones(eventID string, fired []models.Milestone) (*models.EventRecord, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Read(eventID)
	if err != nil {
		return nil, err
	}
	if rec.Promoted {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrPromoted)
	}

	added := 0
	for _, m := range fired {
		if hasMilestone(rec.Milestones, m) {
			continue
		}
		rec.Milestones = append(rec.Milestones, m)
		added++
	}
	if added == 0 {
		return rec, nil
	}

	rec.UpdatedAt = time.Now().UTC()
	if err := s.write(eventID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) freshRecord(ev models.TrackedEvent, gap bool) *models.EventRecord {
	ev.State = models.StateActive
	return &models.EventRecord{
		Event:       ev,
		GapDetected: gap,
	}
}

func (s *Store) write(eventID string, rec *models.EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record for event %s: %w", eventID, err)
	}
	if err := fsatomic.WriteFile(s.recordPath(eventID), data); err != nil {
		return fmt.Errorf("persisting record for event %s: %w", eventID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func hasMilestone(existing []models.Milestone, m models.Milestone) bool {
	for _, e := range existing {
		if e.Subject == m.Subject && e.Class == m.Class && e.Threshold == m.Threshold {
			return true
		}
	}
	return false
}
