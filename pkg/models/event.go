package models

import "time"

// EventState represents where a tracked event sits in its lifecycle
type EventState string

const (
	StateScheduled EventState = "scheduled"
	StateActive    EventState = "active"
	StateTerminal  EventState = "terminal"
	StatePromoted  EventState = "promoted"
)

// TrackedEvent identifies one game observed end-to-end
type TrackedEvent struct {
	EventID    string     `json:"event_id"`
	HomeTeam   string     `json:"home_team"`      // Full team name
	HomeAbbr   string     `json:"home_abbr"`      // "DEN"
	HomeTeamID int        `json:"home_team_id"`   // Upstream team id
	AwayTeam   string     `json:"away_team"`
	AwayAbbr   string     `json:"away_abbr"`
	AwayTeamID int        `json:"away_team_id"`
	StartTime  time.Time  `json:"start_time"`     // Reference time zone, never server-local
	Date       string     `json:"date"`           // Game date as reported upstream (YYYY-MM-DD)
	State      EventState `json:"state"`
}

// EventRecord is the durable per-event record: the ordered snapshot
// sequence plus summary fields. One JSON file per event, replaced
// atomically on every write.
type EventRecord struct {
	Event       TrackedEvent `json:"event"`
	Snapshots   []Snapshot   `json:"snapshots"`
	Milestones  []Milestone  `json:"milestones,omitempty"`
	Summary     *Summary     `json:"summary,omitempty"`
	Terminal    bool         `json:"terminal"`
	Promoted    bool         `json:"promoted"`
	GapDetected bool         `json:"gap_detected,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// LatestConsensus returns the most recent consensus estimate in the
// stored sequence, or nil if none has been observed yet.
func (r *EventRecord) LatestConsensus() *ConsensusPoint {
	if r == nil {
		return nil
	}
	for i := len(r.Snapshots) - 1; i >= 0; i-- {
		if c := r.Snapshots[i].Consensus; c != nil {
			return c
		}
	}
	return nil
}

// EventStatus is the lightweight status card cached in Redis and served
// by the read API without touching the durable record.
type EventStatus struct {
	EventID     string          `json:"event_id"`
	HomeTeam    string          `json:"home_team"`
	HomeAbbr    string          `json:"home_abbr"`
	AwayTeam    string          `json:"away_team"`
	AwayAbbr    string          `json:"away_abbr"`
	State       EventState      `json:"state"`
	Phase       GamePhase       `json:"phase"`
	Period      int             `json:"period"`
	HomeScore   *int            `json:"home_score,omitempty"`
	AwayScore   *int            `json:"away_score,omitempty"`
	Consensus   *ConsensusPoint `json:"consensus,omitempty"`
	Terminal    bool            `json:"terminal"`
	GapDetected bool            `json:"gap_detected,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StatusFromRecord derives the status card from a durable record
func StatusFromRecord(rec *EventRecord) *EventStatus {
	status := &EventStatus{
		EventID:     rec.Event.EventID,
		HomeTeam:    rec.Event.HomeTeam,
		HomeAbbr:    rec.Event.HomeAbbr,
		AwayTeam:    rec.Event.AwayTeam,
		AwayAbbr:    rec.Event.AwayAbbr,
		State:       rec.Event.State,
		Consensus:   rec.LatestConsensus(),
		Terminal:    rec.Terminal,
		GapDetected: rec.GapDetected,
		UpdatedAt:   rec.UpdatedAt,
	}

	for i := len(rec.Snapshots) - 1; i >= 0; i-- {
		snap := rec.Snapshots[i]
		if status.Phase == "" {
			status.Phase = snap.Clock.Phase
			status.Period = snap.Clock.Period
		}
		if snap.HasScore() {
			status.HomeScore = snap.HomeScore
			status.AwayScore = snap.AwayScore
			break
		}
	}
	if status.Phase == "" {
		status.Phase = PhasePregame
	}
	return status
}

// Summary holds fields recomputed at history promotion
type Summary struct {
	FinalHomeScore int          `json:"final_home_score"`
	FinalAwayScore int          `json:"final_away_score"`
	MaxHomeLead    int          `json:"max_home_lead"`
	MaxAwayLead    int          `json:"max_away_lead"`
	SnapshotCount  int          `json:"snapshot_count"`
	SourceCounts   map[string]int `json:"source_counts,omitempty"` // vendor -> contributed ticks
	PlayerLines    []PlayerLine `json:"player_lines,omitempty"`
	PromotedAt     time.Time    `json:"promoted_at"`
}

// PlayerLine is one player's box-score line
type PlayerLine struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name"`
	TeamID   int    `json:"team_id"`
	TeamAbbr string `json:"team_abbr"`
	Minutes  string `json:"minutes,omitempty"`
	Points   int    `json:"points"`
	Rebounds int    `json:"rebounds"`
	Assists  int    `json:"assists"`
	Steals   int    `json:"steals"`
	Blocks   int    `json:"blocks"`
}

// Player is an entry from a team's active roster
type Player struct {
	PlayerID  int    `json:"player_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	TeamID    int    `json:"team_id"`
	Position  string `json:"position,omitempty"`
}

// FullName returns the player's display name
func (p Player) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}
