// Package scheduler drives the event lifecycle: it discovers the day's
// games, activates tracking inside the pre-game window, runs one
// tracker per active event, and recovers promotions that a previous
// process left unfinished. Lifecycle moves one way only; a terminal
// event is never reactivated.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jasper9/nbastats.fun/internal/adapters"
	"github.com/jasper9/nbastats.fun/internal/cache"
	"github.com/jasper9/nbastats.fun/internal/config"
	"github.com/jasper9/nbastats.fun/internal/milestone"
	"github.com/jasper9/nbastats.fun/internal/providers/balldontlie"
	"github.com/jasper9/nbastats.fun/internal/publisher"
	"github.com/jasper9/nbastats.fun/internal/schedule"
	"github.com/jasper9/nbastats.fun/internal/telemetry"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Pipeline bundles the collaborators every tracker shares
type Pipeline struct {
	Client    *balldontlie.Client
	Store     *telemetry.Store
	Book      *schedule.Book
	Cache     *cache.RedisWriter
	Publisher *publisher.StreamPublisher
	Detector  *milestone.Detector
	Emitter   *milestone.Emitter
	Stats     *Stats
}

// Scheduler owns the event state machine and the tracker pool
type Scheduler struct {
	cfg   *config.Config
	loc   *time.Location
	pipe  *Pipeline
	fatal chan<- error

	mu     sync.Mutex
	states map[string]models.EventState
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. fatal receives unrecoverable errors
// (a durable write failing); the main loop exits loudly on the first.
func NewScheduler(cfg *config.Config, loc *time.Location, pipe *Pipeline, fatal chan<- error) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		loc:    loc,
		pipe:   pipe,
		fatal:  fatal,
		states: make(map[string]models.EventState),
	}
}

// Run discovers games on every tick until the context ends, then waits
// for all trackers to stop.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[scheduler] starting discovery, tick %s, pregame window %s",
		s.cfg.Tracker.SchedulerTick, s.cfg.Tracker.PregameLead)

	ticker := time.NewTicker(s.cfg.Tracker.SchedulerTick)
	defer ticker.Stop()

	s.discoverOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] stopping, waiting for trackers")
			s.wg.Wait()
			log.Printf("[scheduler] all trackers stopped")
			return
		case <-ticker.C:
			s.discoverOnce(ctx)
		}
	}
}

// discoverOnce fetches today's and yesterday's games in the reference
// zone and routes each through the lifecycle. A fetch failure is logged
// and retried on the next tick.
func (s *Scheduler) discoverOnce(ctx context.Context) {
	now := time.Now().In(s.loc)
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	games, err := s.pipe.Client.GamesByDates(ctx, []string{yesterday, today}, s.cfg.Tracker.TeamID)
	if err != nil {
		log.Printf("[scheduler] discovery fetch failed: %v (retrying next tick)", err)
		return
	}
	log.Printf("[scheduler] discovered %d games for %s and %s", len(games), yesterday, today)

	entries := make([]schedule.Entry, 0, len(games))
	var todayIDs []string
	for i := range games {
		game := &games[i]
		ev := adapters.TrackedEventFrom(game, s.loc)
		entries = append(entries, scheduleEntry(ev))
		if ev.Date == today {
			todayIDs = append(todayIDs, ev.EventID)
		}
		s.consider(ctx, ev, game, now)
	}

	if err := s.pipe.Book.Upsert(entries); err != nil {
		log.Printf("[scheduler] schedule upsert failed: %v", err)
	}
	if err := s.pipe.Cache.WriteTodaysEvents(ctx, s.cfg.Sport, today, todayIDs); err != nil {
		log.Printf("[scheduler] caching today's events failed: %v", err)
	}
}

// consider routes one discovered game through the lifecycle
func (s *Scheduler) consider(ctx context.Context, ev models.TrackedEvent, game *balldontlie.Game, now time.Time) {
	phase := adapters.NormalizeScoreboard(game).Clock.Phase
	state := s.stateOf(ev.EventID)

	switch {
	case phase == models.PhaseFinal:
		s.considerFinal(ctx, ev, game, state)

	case phase == models.PhaseLive:
		if state == models.StateScheduled {
			s.activate(ctx, ev)
		}

	default: // pregame
		if state != models.StateScheduled {
			return
		}
		if ev.StartTime.IsZero() {
			// Window unknown; the live branch will catch it at tip-off
			return
		}
		if now.Add(s.cfg.Tracker.PregameLead).After(ev.StartTime) {
			s.activate(ctx, ev)
		}
	}
}

// considerFinal handles games the API already reports final: records
// results for games never tracked and finishes promotions a previous
// process did not complete.
func (s *Scheduler) considerFinal(ctx context.Context, ev models.TrackedEvent, game *balldontlie.Game, state models.EventState) {
	if state == models.StateActive {
		// The running tracker sees the final snapshot itself
		return
	}

	rec, err := s.pipe.Store.Read(ev.EventID)
	switch {
	case err == nil && rec.Promoted:
		s.setState(ev.EventID, models.StatePromoted)
		return

	case err == nil:
		log.Printf("[scheduler] event %s: found unpromoted record for a final game, recovering", ev.EventID)
		s.recoverPromotion(ctx, ev)
		return
	}

	// Never tracked (finished while we were down). Record the result
	// on the schedule so the calendar is complete; there is no
	// telemetry to promote.
	if game.HomeTeamScore == nil || game.VisitorTeamScore == nil {
		return
	}
	if s.resultRecorded(ev.EventID, ev.Date) {
		s.setState(ev.EventID, models.StateTerminal)
		return
	}

	winner := ev.HomeAbbr
	if *game.VisitorTeamScore > *game.HomeTeamScore {
		winner = ev.AwayAbbr
	}
	if err := s.pipe.Book.RecordResult(ev.EventID, *game.HomeTeamScore, *game.VisitorTeamScore, winner, ""); err != nil {
		log.Printf("[scheduler] recording untracked result for event %s failed: %v", ev.EventID, err)
		return
	}
	log.Printf("[scheduler] event %s: recorded untracked final %d-%d (%s)",
		ev.EventID, *game.HomeTeamScore, *game.VisitorTeamScore, winner)
	s.setState(ev.EventID, models.StateTerminal)
}

// recoverPromotion finishes a promotion left incomplete by a crash
func (s *Scheduler) recoverPromotion(ctx context.Context, ev models.TrackedEvent) {
	tracker := NewTracker(ev, s.cfg, s.loc, s.pipe, s.fatal)
	if tracker.promote(ctx) {
		s.setState(ev.EventID, models.StatePromoted)
	}
}

// activate transitions an event to Active and starts its tracker. An
// event whose durable record is already promoted is never reactivated.
func (s *Scheduler) activate(ctx context.Context, ev models.TrackedEvent) {
	rec, err := s.pipe.Store.Read(ev.EventID)
	if err == nil && rec.Promoted {
		log.Printf("[scheduler] refusing to reactivate promoted event %s", ev.EventID)
		s.setState(ev.EventID, models.StatePromoted)
		return
	}

	s.mu.Lock()
	current, ok := s.states[ev.EventID]
	if !ok {
		current = models.StateScheduled
	}
	if !canTransition(current, models.StateActive) {
		s.mu.Unlock()
		return
	}
	s.states[ev.EventID] = models.StateActive
	s.mu.Unlock()

	tracker := NewTracker(ev, s.cfg, s.loc, s.pipe, s.fatal)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		end := tracker.Run(ctx)
		s.setState(ev.EventID, end)
	}()

	log.Printf("[scheduler] activated event %s: %s at %s (tip-off %s)",
		ev.EventID, ev.AwayAbbr, ev.HomeAbbr, ev.StartTime.Format(time.RFC3339))
}

func (s *Scheduler) stateOf(eventID string) models.EventState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[eventID]; ok {
		return state
	}
	return models.StateScheduled
}

func (s *Scheduler) setState(eventID string, state models.EventState) {
	s.mu.Lock()
	s.states[eventID] = state
	s.mu.Unlock()
}

// resultRecorded reports whether the schedule already carries a played
// result for the event
func (s *Scheduler) resultRecorded(eventID, date string) bool {
	entries, err := s.pipe.Book.EntriesForDate(date)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.EventID == eventID {
			return e.Played
		}
	}
	return false
}

// canTransition is the lifecycle table. Scheduled events activate,
// active events terminate, terminal events promote. Nothing moves
// backward, so reactivating a finished event is structurally impossible.
func canTransition(from, to models.EventState) bool {
	switch from {
	case models.StateScheduled:
		return to == models.StateActive
	case models.StateActive:
		return to == models.StateTerminal
	case models.StateTerminal:
		return to == models.StatePromoted
	default:
		return false
	}
}

func scheduleEntry(ev models.TrackedEvent) schedule.Entry {
	return schedule.Entry{
		EventID:   ev.EventID,
		Date:      ev.Date,
		HomeTeam:  ev.HomeTeam,
		HomeAbbr:  ev.HomeAbbr,
		AwayTeam:  ev.AwayTeam,
		AwayAbbr:  ev.AwayAbbr,
		StartTime: ev.StartTime,
	}
}
