// Package handlers implements the stats-api HTTP surface: the durable
// record read APIs, the viewer-presence endpoints, and the WebSocket
// upgrade. Handlers read only; the tracker process owns every write.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jasper9/nbastats.fun/internal/client"
	"github.com/jasper9/nbastats.fun/internal/hub"
	"github.com/jasper9/nbastats.fun/internal/schedule"
	"github.com/jasper9/nbastats.fun/internal/telemetry"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced by the router middleware
		return true
	},
}

// RecordStore reads durable event records
type RecordStore interface {
	Read(eventID string) (*models.EventRecord, error)
	ListEventIDs() ([]string, error)
}

// StatusCache serves the cheap status cards; a miss falls back to the
// durable record.
type StatusCache interface {
	ReadEventStatus(ctx context.Context, eventID string) (*models.EventStatus, error)
}

// PresenceTracker registers heartbeats and answers viewer counts
type PresenceTracker interface {
	Heartbeat(ctx context.Context, eventID, viewerToken string) error
	ActiveViewerCount(ctx context.Context, eventID string) (int, error)
}

// ScheduleBook reads the calendar
type ScheduleBook interface {
	Entries() ([]schedule.Entry, error)
	EntriesForDate(date string) ([]schedule.Entry, error)
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	store       RecordStore
	statusCache StatusCache
	presence    PresenceTracker
	book        ScheduleBook
	hub         *hub.Hub

	presenceTTL time.Duration
	staleAfter  time.Duration
}

// NewHandler creates a handler. statusCache may be nil (every status
// read then hits the durable record).
func NewHandler(store RecordStore, statusCache StatusCache, presence PresenceTracker, book ScheduleBook, h *hub.Hub, presenceTTL, staleAfter time.Duration) *Handler {
	return &Handler{
		store:       store,
		statusCache: statusCache,
		presence:    presence,
		book:        book,
		hub:         h,
		presenceTTL: presenceTTL,
		staleAfter:  staleAfter,
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        "stats-api",
		"active_clients": h.hub.ClientCount(),
		"timestamp":      time.Now().UTC(),
	})
}

// GetTelemetry returns the full snapshot sequence for an event, the same
// shape live and historical; the terminal flag distinguishes them. The
// response separates "no data yet" (404), "stale" (flag), and "gap
// detected" (record marker) so the front end can render an honest state.
func (h *Handler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	rec, err := h.readRecord(w, eventID)
	if rec == nil || err != nil {
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event":        rec.Event,
		"snapshots":    rec.Snapshots,
		"milestones":   rec.Milestones,
		"summary":      rec.Summary,
		"terminal":     rec.Terminal,
		"promoted":     rec.Promoted,
		"gap_detected": rec.GapDetected,
		"stale":        h.isStale(rec),
		"updated_at":   rec.UpdatedAt,
	})
}

// GetConsensus returns the latest consensus probability with provenance
func (h *Handler) GetConsensus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	rec, err := h.readRecord(w, eventID)
	if rec == nil || err != nil {
		return
	}

	point := rec.LatestConsensus()
	if point == nil {
		respondError(w, http.StatusNotFound, "no consensus observed yet for this event", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":  eventID,
		"consensus": point,
		"stale":     h.isStale(rec),
		"terminal":  rec.Terminal,
	})
}

// GetStatus returns the lightweight status card, preferring the cache
// and falling back to the durable record.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if h.statusCache != nil {
		if status, err := h.statusCache.ReadEventStatus(r.Context(), eventID); err == nil {
			respondStatus(w, status, h.staleAfter)
			return
		}
	}

	rec, err := h.readRecord(w, eventID)
	if rec == nil || err != nil {
		return
	}
	respondStatus(w, models.StatusFromRecord(rec), h.staleAfter)
}

func respondStatus(w http.ResponseWriter, status *models.EventStatus, staleAfter time.Duration) {
	stale := !status.Terminal && !status.UpdatedAt.IsZero() && time.Since(status.UpdatedAt) > staleAfter
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"stale":  stale,
	})
}

// ListEvents returns every event with a durable record
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListEventIDs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list events", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_ids": ids,
		"count":     len(ids),
	})
}

// GetSchedule returns the calendar, optionally narrowed to one date
// (?date=YYYY-MM-DD). Played entries carry the result and the history
// cross-reference.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	var (
		entries []schedule.Entry
		err     error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		entries, err = h.book.EntriesForDate(date)
	} else {
		entries, err = h.book.Entries()
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read schedule", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// heartbeatRequest is the POST body for viewer presence
type heartbeatRequest struct {
	ViewerToken string `json:"viewer_token"`
}

// PostHeartbeat registers or refreshes a viewer's presence on an event.
// A request without a token is issued one; the front end sends it back
// on every subsequent beat.
func (h *Handler) PostHeartbeat(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req heartbeatRequest
	if r.Body != nil {
		// An empty or malformed body just means a first beat
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.ViewerToken == "" {
		req.ViewerToken = uuid.New().String()
	}

	if err := h.presence.Heartbeat(r.Context(), eventID, req.ViewerToken); err != nil {
		respondError(w, http.StatusServiceUnavailable, "presence unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":     eventID,
		"viewer_token": req.ViewerToken,
		"ttl_seconds":  int(h.presenceTTL.Seconds()),
	})
}

// GetViewers returns the current active viewer count for an event
func (h *Handler) GetViewers(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	count, err := h.presence.ActiveViewerCount(r.Context(), eventID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "presence unavailable", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":      eventID,
		"active_viewers": count,
	})
}

// HandleWebSocket upgrades the connection and registers it with the hub
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[handlers] websocket upgrade failed: %v", err)
		return
	}

	c := client.NewClient(uuid.New().String(), conn, h.hub)
	h.hub.Register(c)

	go c.WritePump()
	go c.ReadPump()
}

// readRecord loads an event record, writing the error response itself.
// Returns nil when the caller should stop.
func (h *Handler) readRecord(w http.ResponseWriter, eventID string) (*models.EventRecord, error) {
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "event id is required", nil)
		return nil, nil
	}

	rec, err := h.store.Read(eventID)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, telemetry.ErrNotFound):
		respondError(w, http.StatusNotFound, "no telemetry recorded yet for this event", nil)
		return nil, err
	default:
		respondError(w, http.StatusInternalServerError, "failed to read event record", err)
		return nil, err
	}
}

// isStale reports whether a live record has gone quiet past the
// staleness window. Terminal records are history, never stale.
func (h *Handler) isStale(rec *models.EventRecord) bool {
	if rec.Terminal || len(rec.Snapshots) == 0 {
		return false
	}
	return time.Since(rec.UpdatedAt) > h.staleAfter
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[handlers] encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		log.Printf("[handlers] %s: %v", message, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[handlers] encoding error response: %v", err)
	}
}
