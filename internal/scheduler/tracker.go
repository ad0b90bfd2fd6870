package scheduler

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jasper9/nbastats.fun/internal/adapters"
	"github.com/jasper9/nbastats.fun/internal/config"
	"github.com/jasper9/nbastats.fun/internal/consensus"
	"github.com/jasper9/nbastats.fun/internal/milestone"
	"github.com/jasper9/nbastats.fun/internal/telemetry"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Stats counts pipeline activity across all trackers for the periodic
// reporter.
type Stats struct {
	Polled     atomic.Int64
	Appended   atomic.Int64
	Milestones atomic.Int64
	Forwarded  atomic.Int64
	Suppressed atomic.Int64
}

// Report logs the counters on the given interval until the context ends
func (s *Stats) Report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("[stats] polled=%d appended=%d milestones=%d forwarded=%d suppressed=%d",
				s.Polled.Load(), s.Appended.Load(), s.Milestones.Load(),
				s.Forwarded.Load(), s.Suppressed.Load())
		}
	}
}

// Tracker polls one active event until it goes final, appending a
// snapshot per tick and running milestone detection on the result. Each
// tracker runs in its own goroutine with its own ticker; a slow upstream
// response here never delays another event.
type Tracker struct {
	ev     models.TrackedEvent
	gameID int
	cfg    *config.Config
	loc    *time.Location
	pipe   *Pipeline
	fatal  chan<- error
}

// NewTracker creates a tracker for one event
func NewTracker(ev models.TrackedEvent, cfg *config.Config, loc *time.Location, pipe *Pipeline, fatal chan<- error) *Tracker {
	gameID, err := strconv.Atoi(ev.EventID)
	if err != nil {
		log.Printf("[tracker] event %s: non-numeric id, upstream fetches will fail", ev.EventID)
	}

	return &Tracker{
		ev:     ev,
		gameID: gameID,
		cfg:    cfg,
		loc:    loc,
		pipe:   pipe,
		fatal:  fatal,
	}
}

// Run polls the event on the live cadence until it reaches terminal
// state, then promotes it to history. Returns the end state: Promoted on
// a clean finish, Terminal when promotion could not complete, Active
// when shutdown interrupted the game (the next process resumes it).
func (t *Tracker) Run(ctx context.Context) models.EventState {
	log.Printf("[tracker] event %s: polling every %s (%s at %s)",
		t.ev.EventID, t.cfg.Tracker.LivePollInterval, t.ev.AwayAbbr, t.ev.HomeAbbr)

	ticker := time.NewTicker(t.cfg.Tracker.LivePollInterval)
	defer ticker.Stop()

	if t.pollOnce(ctx) {
		return t.finish(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			log.Printf("[tracker] event %s: stopping at tick boundary (shutdown)", t.ev.EventID)
			return models.StateActive
		case <-ticker.C:
			if t.pollOnce(ctx) {
				return t.finish(ctx)
			}
		}
	}
}

func (t *Tracker) finish(ctx context.Context) models.EventState {
	if t.promote(ctx) {
		return models.StatePromoted
	}
	return models.StateTerminal
}

// pollOnce runs one tick: fetch, normalize, fold consensus, append,
// detect. Returns true once the event is terminal. Upstream failures log
// and leave the tick to retry; only an unwritable store escalates.
func (t *Tracker) pollOnce(ctx context.Context) bool {
	t.pipe.Stats.Polled.Add(1)

	game, err := t.pipe.Client.Game(ctx, t.gameID)
	if err != nil {
		log.Printf("[tracker] event %s: scoreboard fetch failed: %v (retrying next tick)", t.ev.EventID, err)
		return false
	}
	sb := adapters.NormalizeScoreboard(game)

	rec, err := t.pipe.Store.Read(t.ev.EventID)
	if err != nil && !errors.Is(err, telemetry.ErrNotFound) && !errors.Is(err, telemetry.ErrCorrupt) {
		log.Printf("[tracker] event %s: record read failed: %v (retrying next tick)", t.ev.EventID, err)
		return false
	}

	point := consensus.ForTick(rec, sb.Clock.Phase, t.fetchQuotes(ctx))

	// During pre-game the frozen line only hits the record when it
	// actually changes; appending the same estimate every tick would
	// bloat the sequence with noise.
	if sb.Clock.Phase == models.PhasePregame && rec != nil && len(rec.Snapshots) > 0 {
		if !consensus.Changed(rec.LatestConsensus(), point) {
			return false
		}
	}

	snap := models.Snapshot{
		Timestamp: time.Now().UTC(),
		Clock:     sb.Clock,
		HomeScore: sb.HomeScore,
		AwayScore: sb.AwayScore,
		Missing:   sb.Missing,
		Consensus: point,
	}
	if point == nil && sb.Clock.Phase != models.PhasePregame {
		snap.Missing = append(snap.Missing, "consensus")
	}

	rec, err = t.pipe.Store.Append(t.ev, snap)
	switch {
	case err == nil:
		t.pipe.Stats.Appended.Add(1)
	case errors.Is(err, telemetry.ErrOutOfOrder) || errors.Is(err, telemetry.ErrPrePeriodOne):
		log.Printf("[tracker] event %s: snapshot rejected: %v", t.ev.EventID, err)
		return false
	case errors.Is(err, telemetry.ErrPromoted):
		log.Printf("[tracker] event %s: record already promoted, stopping", t.ev.EventID)
		return true
	default:
		t.storeFailure(err)
		return false
	}

	t.publish(ctx, rec, snap)

	if sb.Clock.Phase != models.PhasePregame {
		t.detect(ctx, rec)
	}
	return sb.Clock.Phase == models.PhaseFinal
}

// fetchQuotes pulls the day's market odds and narrows them to this game.
// An odds outage degrades to an absent consensus, never a fabricated one.
func (t *Tracker) fetchQuotes(ctx context.Context) []models.MarketQuote {
	odds, err := t.pipe.Client.Odds(ctx, t.ev.Date)
	if err != nil {
		log.Printf("[tracker] event %s: odds fetch failed: %v", t.ev.EventID, err)
		return nil
	}
	return adapters.NormalizeOdds(odds, t.gameID)
}

// publish fans the appended snapshot out to the stream and refreshes the
// status cache. Both are best-effort; the durable record already holds
// the truth.
func (t *Tracker) publish(ctx context.Context, rec *models.EventRecord, snap models.Snapshot) {
	update := &models.SnapshotUpdate{
		EventID:     t.ev.EventID,
		HomeTeam:    t.ev.HomeTeam,
		AwayTeam:    t.ev.AwayTeam,
		Snapshot:    snap,
		Terminal:    rec.Terminal,
		PublishedAt: time.Now().UTC(),
	}
	if err := t.pipe.Publisher.PublishSnapshot(ctx, update); err != nil {
		log.Printf("[tracker] event %s: snapshot publish failed: %v", t.ev.EventID, err)
	}
	if err := t.pipe.Cache.WriteEventStatus(ctx, models.StatusFromRecord(rec)); err != nil {
		log.Printf("[tracker] event %s: status cache write failed: %v", t.ev.EventID, err)
	}
}

// detect runs milestone detection over the updated record and forwards
// any new milestones through the activation gate. The fired set is
// recorded on the durable record whether or not anyone was watching, so
// thresholds stay idempotent across restarts.
func (t *Tracker) detect(ctx context.Context, rec *models.EventRecord) {
	lines := t.fetchLines(ctx)

	fired := t.pipe.Detector.Evaluate(ctx, rec, lines)
	if len(fired) == 0 {
		return
	}
	t.pipe.Stats.Milestones.Add(int64(len(fired)))

	for i := range fired {
		m := &fired[i]

		var baseline *models.BaselineContext
		if m.Class != models.ClassLargestLead {
			baseline = t.pipe.Detector.Baseline(ctx, m.SubjectID, t.ev.Date)
		}

		fact := milestone.NewFact(*m, rec, baseline)
		forwarded, err := t.pipe.Emitter.Forward(ctx, fact)
		if err != nil {
			log.Printf("[tracker] event %s: forwarding %s %s@%d: %v",
				t.ev.EventID, m.Subject, m.Class, m.Threshold, err)
		}
		if forwarded {
			t.pipe.Stats.Forwarded.Add(1)
		} else {
			t.pipe.Stats.Suppressed.Add(1)
		}
		m.Emitted = forwarded
	}

	if _, err := t.pipe.Store.RecordMilestones(t.ev.EventID, fired); err != nil {
		if errors.Is(err, telemetry.ErrNotFound) || errors.Is(err, telemetry.ErrPromoted) {
			log.Printf("[tracker] event %s: milestones not recorded: %v", t.ev.EventID, err)
			return
		}
		t.storeFailure(err)
	}
}

// fetchLines pulls current per-player box-score lines. Lead milestones
// work without them; player milestones just wait for the next tick.
func (t *Tracker) fetchLines(ctx context.Context) []models.PlayerLine {
	stats, err := t.pipe.Client.GameStats(ctx, t.gameID)
	if err != nil {
		log.Printf("[tracker] event %s: box score fetch failed: %v", t.ev.EventID, err)
		return nil
	}
	return adapters.NormalizeLines(stats)
}

// promote finalizes the event's record as permanent history and writes
// the schedule cross-reference. Safe to call more than once; the store
// keeps the existing history.
func (t *Tracker) promote(ctx context.Context) bool {
	var lines []models.PlayerLine
	stats, err := t.pipe.Client.GameStats(ctx, t.gameID)
	if err != nil {
		log.Printf("[tracker] event %s: final box score fetch failed: %v (history keeps no player lines)",
			t.ev.EventID, err)
	} else {
		lines = adapters.NormalizeLines(stats)
	}

	rec, err := t.pipe.Store.Promote(t.ev.EventID, telemetry.PromotionInput{PlayerLines: lines})
	if err != nil {
		if errors.Is(err, telemetry.ErrNotFound) || errors.Is(err, telemetry.ErrCorrupt) {
			log.Printf("[tracker] event %s: nothing to promote: %v", t.ev.EventID, err)
			return false
		}
		t.storeFailure(err)
		return false
	}

	if rec.Summary != nil {
		winner := t.ev.HomeAbbr
		if rec.Summary.FinalAwayScore > rec.Summary.FinalHomeScore {
			winner = t.ev.AwayAbbr
		}
		if err := t.pipe.Book.RecordResult(t.ev.EventID,
			rec.Summary.FinalHomeScore, rec.Summary.FinalAwayScore, winner, t.ev.EventID); err != nil {
			t.storeFailure(err)
		}
	}

	if err := t.pipe.Cache.WriteEventStatus(ctx, models.StatusFromRecord(rec)); err != nil {
		log.Printf("[tracker] event %s: status cache write failed: %v", t.ev.EventID, err)
	}

	log.Printf("[tracker] event %s: tracking complete", t.ev.EventID)
	return true
}

// storeFailure escalates an unwritable durable store. The process must
// not keep serving as if writes were landing.
func (t *Tracker) storeFailure(err error) {
	log.Printf("[tracker] event %s: durable write failed: %v", t.ev.EventID, err)
	select {
	case t.fatal <- err:
	default:
	}
}
