// Package milestone detects in-game achievements from the durable
// snapshot sequence and forwards them as facts when someone is
// watching. Detection never trusts in-memory running values: leads and
// fired thresholds are always recomputed from the event record, so a
// restart cannot double-fire or miss a record.
package milestone

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Roster freshness window. Lineups change between games, not mid-game.
const rosterTTL = time.Hour

// StatsProvider supplies roster membership and season baselines. The
// balldontlie-backed adapter implements it; tests substitute fakes.
type StatsProvider interface {
	ActiveRoster(ctx context.Context, teamID int) ([]models.Player, error)
	SeasonBaseline(ctx context.Context, season, playerID int) (*models.BaselineContext, error)
}

type rosterEntry struct {
	players   map[int]models.Player
	fetchedAt time.Time
}

// Detector evaluates an event record against the achievement tables.
type Detector struct {
	stats StatsProvider

	mu        sync.Mutex
	rosters   map[int]rosterEntry
	baselines map[int]*models.BaselineContext
	baselined map[int]bool
}

// NewDetector creates a detector backed by the given stats provider.
func NewDetector(stats StatsProvider) *Detector {
	return &Detector{
		stats:     stats,
		rosters:   make(map[int]rosterEntry),
		baselines: make(map[int]*models.BaselineContext),
		baselined: make(map[int]bool),
	}
}

// Evaluate inspects the latest snapshot plus current box-score lines
// and returns newly crossed milestones. Milestones already recorded on
// the event at the same or a higher threshold never fire again. Subjects
// that fail roster validation are suppressed; a roster fetch failure
// suppresses that team's candidates for this pass only, since nothing is
// recorded they are re-evaluated on the next tick.
func (d *Detector) Evaluate(ctx context.Context, rec *models.EventRecord, lines []models.PlayerLine) []models.Milestone {
	if rec == nil || len(rec.Snapshots) == 0 {
		return nil
	}
	current := rec.Snapshots[len(rec.Snapshots)-1]

	fired := make([]models.Milestone, 0, 4)
	fired = append(fired, d.playerMilestones(ctx, rec, current, lines)...)
	fired = append(fired, leadMilestones(rec, current)...)
	return fired
}

func (d *Detector) playerMilestones(ctx context.Context, rec *models.EventRecord, current models.Snapshot, lines []models.PlayerLine) []models.Milestone {
	var fired []models.Milestone

	for _, line := range lines {
		for _, cand := range lineCandidates(line) {
			if cand.threshold <= maxFired(rec.Milestones, line.Name, cand.class) {
				continue
			}
			if !d.onRoster(ctx, rec, line) {
				continue
			}
			fired = append(fired, models.Milestone{
				EventID:   rec.Event.EventID,
				Subject:   line.Name,
				SubjectID: line.PlayerID,
				Class:     cand.class,
				Threshold: cand.threshold,
				Magnitude: cand.magnitude,
				Timestamp: current.Timestamp,
			})
		}
	}
	return fired
}

type candidate struct {
	class     models.MilestoneClass
	threshold int
	magnitude int
}

// lineCandidates maps one box-score line onto the achievement tables
func lineCandidates(line models.PlayerLine) []candidate {
	var cands []candidate

	if th := highestCrossed(scoringThresholds, line.Points); th > 0 {
		cands = append(cands, candidate{models.ClassScoring, th, line.Points})
	}

	cats := 0
	for _, v := range []int{line.Points, line.Rebounds, line.Assists, line.Steals, line.Blocks} {
		if v >= doubleCategoryFloor {
			cats++
		}
	}
	if th := highestCrossed(doubleThresholds, cats); th > 0 {
		cands = append(cands, candidate{models.ClassDouble, th, cats})
	}

	stocks := line.Steals + line.Blocks
	if th := highestCrossed(stocksThresholds, stocks); th > 0 {
		cands = append(cands, candidate{models.ClassStocks, th, stocks})
	}

	return cands
}

// leadMilestones fires when a side's current lead strictly exceeds its
// true maximum over the entire stored sequence. The prior maximum comes
// from the durable snapshots, never a counter.
func leadMilestones(rec *models.EventRecord, current models.Snapshot) []models.Milestone {
	if !current.HasScore() {
		return nil
	}

	priorHome, priorAway := 0, 0
	for _, snap := range rec.Snapshots[:len(rec.Snapshots)-1] {
		if !snap.HasScore() {
			continue
		}
		lead := snap.Lead()
		if lead > priorHome {
			priorHome = lead
		}
		if -lead > priorAway {
			priorAway = -lead
		}
	}

	var fired []models.Milestone
	lead := current.Lead()

	if lead >= minLeadMagnitude && lead > priorHome && lead > maxFired(rec.Milestones, rec.Event.HomeAbbr, models.ClassLargestLead) {
		fired = append(fired, teamLead(rec, current, rec.Event.HomeAbbr, rec.Event.HomeTeamID, lead))
	}
	if -lead >= minLeadMagnitude && -lead > priorAway && -lead > maxFired(rec.Milestones, rec.Event.AwayAbbr, models.ClassLargestLead) {
		fired = append(fired, teamLead(rec, current, rec.Event.AwayAbbr, rec.Event.AwayTeamID, -lead))
	}
	return fired
}

func teamLead(rec *models.EventRecord, current models.Snapshot, abbr string, teamID, lead int) models.Milestone {
	return models.Milestone{
		EventID:   rec.Event.EventID,
		Subject:   abbr,
		SubjectID: teamID,
		Class:     models.ClassLargestLead,
		Threshold: lead,
		Magnitude: lead,
		Timestamp: current.Timestamp,
	}
}

// maxFired returns the highest threshold already recorded for a subject
// and class
func maxFired(recorded []models.Milestone, subject string, class models.MilestoneClass) int {
	highest := 0
	for _, m := range recorded {
		if m.Subject == subject && m.Class == class && m.Threshold > highest {
			highest = m.Threshold
		}
	}
	return highest
}

// onRoster validates the subject against the team's active roster. A
// missing team id falls back to checking both teams in the event.
func (d *Detector) onRoster(ctx context.Context, rec *models.EventRecord, line models.PlayerLine) bool {
	teamIDs := []int{line.TeamID}
	if line.TeamID == 0 {
		teamIDs = []int{rec.Event.HomeTeamID, rec.Event.AwayTeamID}
	}

	sawRoster := false
	for _, teamID := range teamIDs {
		roster, err := d.roster(ctx, teamID)
		if err != nil {
			log.Printf("[detector] roster fetch failed for team %d: %v (suppressing this pass)", teamID, err)
			continue
		}
		sawRoster = true
		if _, ok := roster[line.PlayerID]; ok {
			return true
		}
	}

	if sawRoster {
		log.Printf("[detector] suppressing milestone for %s (player %d): not on an active roster",
			line.Name, line.PlayerID)
	}
	return false
}

func (d *Detector) roster(ctx context.Context, teamID int) (map[int]models.Player, error) {
	d.mu.Lock()
	entry, ok := d.rosters[teamID]
	d.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < rosterTTL {
		return entry.players, nil
	}

	players, err := d.stats.ActiveRoster(ctx, teamID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]models.Player, len(players))
	for _, p := range players {
		byID[p.PlayerID] = p
	}

	d.mu.Lock()
	d.rosters[teamID] = rosterEntry{players: byID, fetchedAt: time.Now()}
	d.mu.Unlock()
	return byID, nil
}

// Baseline returns the subject's season baseline for framing, or nil
// when the historical collaborator has nothing. Failures log and return
// nil; a fact without framing beats no fact.
func (d *Detector) Baseline(ctx context.Context, playerID int, gameDate string) *models.BaselineContext {
	if playerID == 0 {
		return nil
	}

	d.mu.Lock()
	if d.baselined[playerID] {
		cached := d.baselines[playerID]
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	baseline, err := d.stats.SeasonBaseline(ctx, SeasonForDate(gameDate), playerID)
	if err != nil {
		log.Printf("[detector] baseline fetch failed for player %d: %v", playerID, err)
		return nil
	}

	d.mu.Lock()
	d.baselines[playerID] = baseline
	d.baselined[playerID] = true
	d.mu.Unlock()
	return baseline
}

// SeasonForDate maps a game date (YYYY-MM-DD) to its NBA season start
// year. Seasons begin in October; a January 2026 game belongs to the
// 2025 season.
func SeasonForDate(date string) int {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		t = time.Now()
	}
	if t.Month() >= time.October {
		return t.Year()
	}
	return t.Year() - 1
}
