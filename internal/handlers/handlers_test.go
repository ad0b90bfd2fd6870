package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jasper9/nbastats.fun/internal/hub"
	"github.com/jasper9/nbastats.fun/internal/schedule"
	"github.com/jasper9/nbastats.fun/internal/telemetry"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

type fakeStatusCache struct {
	status *models.EventStatus
	err    error
}

func (f *fakeStatusCache) ReadEventStatus(ctx context.Context, eventID string) (*models.EventStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

type fakePresence struct {
	count int
	err   error

	beats map[string][]string // eventID -> tokens seen
}

func (f *fakePresence) Heartbeat(ctx context.Context, eventID, viewerToken string) error {
	if f.err != nil {
		return f.err
	}
	if f.beats == nil {
		f.beats = make(map[string][]string)
	}
	f.beats[eventID] = append(f.beats[eventID], viewerToken)
	return nil
}

func (f *fakePresence) ActiveViewerCount(ctx context.Context, eventID string) (int, error) {
	return f.count, f.err
}

type fakeBook struct {
	entries []schedule.Entry
}

func (f *fakeBook) Entries() ([]schedule.Entry, error) {
	return f.entries, nil
}

func (f *fakeBook) EntriesForDate(date string) ([]schedule.Entry, error) {
	var out []schedule.Entry
	for _, e := range f.entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

func testRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/healthz", h.HealthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Get("/events/{eventID}/telemetry", h.GetTelemetry)
		r.Get("/events/{eventID}/consensus", h.GetConsensus)
		r.Get("/events/{eventID}/status", h.GetStatus)
		r.Post("/events/{eventID}/heartbeat", h.PostHeartbeat)
		r.Get("/events/{eventID}/viewers", h.GetViewers)
		r.Get("/schedule", h.GetSchedule)
	})
	return r
}

// seedEvent appends snapshots for event 1001 into a fresh store: one live
// reading, then optionally a final one.
func seedEvent(t *testing.T, final bool) *telemetry.Store {
	t.Helper()

	store, err := telemetry.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := models.TrackedEvent{
		EventID:  "1001",
		HomeTeam: "Denver Nuggets", HomeAbbr: "DEN", HomeTeamID: 7,
		AwayTeam: "Boston Celtics", AwayAbbr: "BOS", AwayTeamID: 2,
		Date:  "2026-01-15",
		State: models.StateActive,
	}

	base := time.Now().UTC().Add(-time.Minute)
	_, err = store.Append(ev, models.Snapshot{
		Timestamp: base,
		Clock:     models.GameClock{Phase: models.PhaseLive, Period: 2, Remaining: 454, Running: true},
		HomeScore: intPtr(55),
		AwayScore: intPtr(51),
		Consensus: &models.ConsensusPoint{Probability: 0.61, SourceCount: 2, Sources: []string{"draftkings", "fanduel"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if final {
		_, err = store.Append(ev, models.Snapshot{
			Timestamp: base.Add(time.Second),
			Clock:     models.GameClock{Phase: models.PhaseFinal, Period: 4},
			HomeScore: intPtr(110),
			AwayScore: intPtr(102),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return store
}

func newTestHandler(store RecordStore, cache StatusCache, presence PresenceTracker, book ScheduleBook) *Handler {
	return NewHandler(store, cache, presence, book, hub.NewHub(nil), 75*time.Second, 90*time.Second)
}

func TestGetTelemetryNotFound(t *testing.T) {
	store, err := telemetry.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := newTestHandler(store, nil, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/9999/telemetry", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	var resp models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Message, "no telemetry recorded yet") {
		t.Errorf("message = %q, want a no-data-yet explanation", resp.Message)
	}
}

func TestGetTelemetryLive(t *testing.T) {
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/telemetry", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Event     models.TrackedEvent `json:"event"`
		Snapshots []models.Snapshot   `json:"snapshots"`
		Terminal  bool                `json:"terminal"`
		Stale     bool                `json:"stale"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Event.EventID != "1001" {
		t.Errorf("event id = %q, want 1001", resp.Event.EventID)
	}
	if len(resp.Snapshots) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(resp.Snapshots))
	}
	if resp.Terminal {
		t.Error("live record reported terminal")
	}
	if resp.Stale {
		t.Error("freshly written record reported stale")
	}
}

func TestGetTelemetryTerminal(t *testing.T) {
	h := newTestHandler(seedEvent(t, true), nil, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/telemetry", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Snapshots []models.Snapshot `json:"snapshots"`
		Terminal  bool              `json:"terminal"`
		Stale     bool              `json:"stale"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Terminal {
		t.Error("final record not reported terminal")
	}
	if resp.Stale {
		t.Error("terminal record reported stale; history is never stale")
	}
	if len(resp.Snapshots) != 2 {
		t.Errorf("got %d snapshots, want 2", len(resp.Snapshots))
	}
}

func TestStaleFlagOnQuietLiveRecord(t *testing.T) {
	store := seedEvent(t, false)

	// Narrow staleness window so the seeded record has already gone quiet
	h := NewHandler(store, nil, &fakePresence{}, &fakeBook{}, hub.NewHub(nil), 75*time.Second, time.Millisecond)

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/telemetry", nil))

	var resp struct {
		Stale bool `json:"stale"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Stale {
		t.Error("quiet live record not reported stale")
	}
}

func TestGetConsensus(t *testing.T) {
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/consensus", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		EventID   string                 `json:"event_id"`
		Consensus *models.ConsensusPoint `json:"consensus"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Consensus == nil {
		t.Fatal("no consensus in response")
	}
	if resp.Consensus.Probability != 0.61 || resp.Consensus.SourceCount != 2 {
		t.Errorf("consensus = %+v, want 0.61 from 2 sources", resp.Consensus)
	}
}

func TestGetStatusPrefersCache(t *testing.T) {
	cached := &models.EventStatus{
		EventID:   "1001",
		HomeAbbr:  "DEN",
		AwayAbbr:  "BOS",
		Phase:     models.PhaseLive,
		Period:    3,
		UpdatedAt: time.Now().UTC(),
	}
	h := newTestHandler(seedEvent(t, false), &fakeStatusCache{status: cached}, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/status", nil))

	var resp struct {
		Status *models.EventStatus `json:"status"`
		Stale  bool                `json:"stale"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status == nil || resp.Status.Period != 3 {
		t.Errorf("status = %+v, want the cached period-3 card", resp.Status)
	}
}

func TestGetStatusFallsBackToRecord(t *testing.T) {
	h := newTestHandler(seedEvent(t, false),
		&fakeStatusCache{err: errors.New("redis down")}, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Status *models.EventStatus `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status == nil || resp.Status.EventID != "1001" {
		t.Fatalf("status = %+v, want the durable-record card for 1001", resp.Status)
	}
	if resp.Status.HomeScore == nil || *resp.Status.HomeScore != 55 {
		t.Errorf("home score = %v, want 55 from the record", resp.Status.HomeScore)
	}
}

func TestPostHeartbeatMintsToken(t *testing.T) {
	presence := &fakePresence{}
	h := newTestHandler(seedEvent(t, false), nil, presence, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/events/1001/heartbeat", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		EventID     string `json:"event_id"`
		ViewerToken string `json:"viewer_token"`
		TTLSeconds  int    `json:"ttl_seconds"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ViewerToken == "" {
		t.Fatal("no viewer token minted for a first beat")
	}
	if resp.TTLSeconds != 75 {
		t.Errorf("ttl = %d, want 75", resp.TTLSeconds)
	}
	if beats := presence.beats["1001"]; len(beats) != 1 || beats[0] != resp.ViewerToken {
		t.Errorf("presence saw beats %v, want the minted token", beats)
	}
}

func TestPostHeartbeatEchoesToken(t *testing.T) {
	presence := &fakePresence{}
	h := newTestHandler(seedEvent(t, false), nil, presence, &fakeBook{})

	body := strings.NewReader(`{"viewer_token":"tok-123"}`)
	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/events/1001/heartbeat", body))

	var resp struct {
		ViewerToken string `json:"viewer_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ViewerToken != "tok-123" {
		t.Errorf("viewer token = %q, want the echoed tok-123", resp.ViewerToken)
	}
}

func TestGetViewers(t *testing.T) {
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{count: 4}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/viewers", nil))

	var resp struct {
		ActiveViewers int `json:"active_viewers"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ActiveViewers != 4 {
		t.Errorf("active viewers = %d, want 4", resp.ActiveViewers)
	}
}

func TestGetViewersPresenceDown(t *testing.T) {
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{err: errors.New("redis down")}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events/1001/viewers", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestListEvents(t *testing.T) {
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	var resp struct {
		EventIDs []string `json:"event_ids"`
		Count    int      `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 1 || len(resp.EventIDs) != 1 || resp.EventIDs[0] != "1001" {
		t.Errorf("events = %+v, want exactly 1001", resp)
	}
}

func TestGetScheduleByDate(t *testing.T) {
	book := &fakeBook{entries: []schedule.Entry{
		{EventID: "1001", Date: "2026-01-15", HomeAbbr: "DEN", AwayAbbr: "BOS", Played: true, Winner: "DEN", HistoryKey: "1001"},
		{EventID: "1002", Date: "2026-01-16", HomeAbbr: "LAL", AwayAbbr: "GSW"},
	}}
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{}, book)

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/schedule?date=2026-01-15", nil))

	var resp struct {
		Entries []schedule.Entry `json:"entries"`
		Count   int              `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Count != 1 || resp.Entries[0].EventID != "1001" {
		t.Fatalf("entries = %+v, want only the 2026-01-15 game", resp.Entries)
	}
	if !resp.Entries[0].Played || resp.Entries[0].HistoryKey != "1001" {
		t.Errorf("entry = %+v, want a played result cross-referencing record 1001", resp.Entries[0])
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(seedEvent(t, false), nil, &fakePresence{}, &fakeBook{})

	rr := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
}
