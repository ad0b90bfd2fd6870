package models

import "time"

// MilestoneClass classifies a detected achievement
type MilestoneClass string

const (
	ClassScoring     MilestoneClass = "scoring"      // Point thresholds (30, 40)
	ClassDouble      MilestoneClass = "double"       // Double-double, triple-double
	ClassStocks      MilestoneClass = "stocks"       // Steals+blocks thresholds
	ClassLargestLead MilestoneClass = "largest_lead" // New largest lead for a side
)

// Milestone is a detected fact recorded in the event's durable record.
// The (Subject, Class, Threshold) tuple is the idempotence key: once
// recorded, the same or a lower threshold never fires again.
type Milestone struct {
	EventID   string         `json:"event_id"`
	Subject   string         `json:"subject"` // Player name or team abbreviation
	SubjectID int            `json:"subject_id,omitempty"`
	Class     MilestoneClass `json:"class"`
	Threshold int            `json:"threshold"`
	Magnitude int            `json:"magnitude"` // Actual value when detected
	Timestamp time.Time      `json:"timestamp"` // Triggering snapshot's timestamp
	Emitted   bool           `json:"emitted"`   // Forwarded to the commentary stream
}

// Fact is the outbound payload handed to the commentary collaborator.
// It carries everything needed to write about the milestone without
// another round trip.
type Fact struct {
	FactID    string          `json:"fact_id"`
	EventID   string          `json:"event_id"`
	Subject   string          `json:"subject"`
	SubjectID int             `json:"subject_id,omitempty"`
	Class     MilestoneClass  `json:"class"`
	Threshold int             `json:"threshold"`
	Magnitude int             `json:"magnitude"`
	Baseline  *BaselineContext `json:"baseline,omitempty"`
	Game      FactGameContext `json:"game"`
	FiredAt   time.Time       `json:"fired_at"`
}

// FactGameContext situates a fact in the game it fired from
type FactGameContext struct {
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Period    int    `json:"period"`
}

// BaselineContext is the subject's season baseline for framing, from the
// historical-stats collaborator. Absent when the lookup fails; fields are
// never fabricated.
type BaselineContext struct {
	Season      int     `json:"season"`
	GamesPlayed int     `json:"games_played"`
	PointsAvg   float64 `json:"points_avg"`
	ReboundsAvg float64 `json:"rebounds_avg"`
	AssistsAvg  float64 `json:"assists_avg"`
	StealsAvg   float64 `json:"steals_avg"`
	BlocksAvg   float64 `json:"blocks_avg"`
}
