package models

import "time"

// GamePhase is the coarse game state carried on every snapshot
type GamePhase string

const (
	PhasePregame GamePhase = "pregame"
	PhaseLive    GamePhase = "live"
	PhaseFinal   GamePhase = "final"
)

// GameClock is the normalized game-clock reading. Period stays 0 until
// tip-off; Phase carries the not-started/final sentinels so the period
// number itself is never overloaded.
type GameClock struct {
	Phase     GamePhase `json:"phase"`
	Period    int       `json:"period"`            // 0 = not started, 5+ = overtime
	Remaining float64   `json:"remaining_seconds"` // Seconds left in the period
	Running   bool      `json:"running"`           // False during stoppages, halftime, pregame
}

// Snapshot is one immutable point-in-time record of a tracked event.
// Scores are pointers so "unknown" is distinguishable from a real zero.
type Snapshot struct {
	Timestamp    time.Time       `json:"timestamp"`
	Clock        GameClock       `json:"clock"`
	HomeScore    *int            `json:"home_score,omitempty"`
	AwayScore    *int            `json:"away_score,omitempty"`
	PeriodScores []PeriodScore   `json:"period_scores,omitempty"`
	Consensus    *ConsensusPoint `json:"consensus,omitempty"`
	Missing      []string        `json:"missing,omitempty"` // Upstream fields absent this tick
}

// PeriodScore is the per-period score breakdown
type PeriodScore struct {
	Period    int `json:"period"`
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`
}

// ConsensusPoint is the probability estimate derived for one tick, with
// its provenance. Probability is always the home side's win probability.
type ConsensusPoint struct {
	Probability float64  `json:"probability"`
	SourceCount int      `json:"source_count"`
	Sources     []string `json:"sources,omitempty"`
	Frozen      bool     `json:"frozen"` // Pre-game estimate, fixed once observed
}

// HasScore reports whether the snapshot carries a real score reading
func (s Snapshot) HasScore() bool {
	return s.HomeScore != nil && s.AwayScore != nil
}

// Lead returns the current lead from the home side's perspective
// (positive = home leads). Zero when scores are unknown.
func (s Snapshot) Lead() int {
	if !s.HasScore() {
		return 0
	}
	return *s.HomeScore - *s.AwayScore
}
