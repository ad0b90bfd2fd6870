// Package adapters normalizes heterogeneous upstream payloads into the
// shapes the rest of the pipeline consumes. This is the only package that
// tolerates upstream schema variance; everything past it works with
// explicit normalized types.
package adapters

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jasper9/nbastats.fun/internal/providers/balldontlie"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Scoreboard is the normalized scoreboard reading for one tick
type Scoreboard struct {
	Clock     models.GameClock
	HomeScore *int
	AwayScore *int
	Missing   []string // Upstream fields absent this tick
}

// NormalizeScoreboard converts a raw game payload into the normalized
// scoreboard shape. Null scores stay nil; they are never turned into
// zeros.
func NormalizeScoreboard(game *balldontlie.Game) Scoreboard {
	sb := Scoreboard{
		HomeScore: game.HomeTeamScore,
		AwayScore: game.VisitorTeamScore,
	}

	phase := classifyPhase(game)
	remaining, clockKnown := parseClock(game.Time)

	sb.Clock = models.GameClock{
		Phase:     phase,
		Period:    game.Period,
		Remaining: remaining,
		Running:   clockRunning(game, phase, remaining, clockKnown),
	}

	if phase == models.PhasePregame {
		// Pre-tip-off placeholder scores must never look like real readings
		sb.HomeScore = nil
		sb.AwayScore = nil
		sb.Clock.Period = 0
	}

	if phase == models.PhaseLive {
		if game.HomeTeamScore == nil || game.VisitorTeamScore == nil {
			sb.Missing = append(sb.Missing, "score")
		}
		if !clockKnown {
			sb.Missing = append(sb.Missing, "clock")
		}
	}

	return sb
}

// classifyPhase maps the upstream status to the coarse game phase
func classifyPhase(game *balldontlie.Game) models.GamePhase {
	if game.Status == "Final" || game.Time == "Final" {
		return models.PhaseFinal
	}

	// Scheduled games report their tip-off time as the status
	if strings.Contains(game.Status, "PM") || strings.Contains(game.Status, "AM") {
		return models.PhasePregame
	}

	if game.Period > 0 {
		return models.PhaseLive
	}

	return models.PhasePregame
}

// parseClock converts the upstream clock string ("7:34", "Q4 5:32", or
// "") into remaining seconds. The second return reports whether a clock
// reading was present at all.
func parseClock(clock string) (float64, bool) {
	clock = strings.TrimSpace(clock)
	if clock == "" || clock == "Final" {
		return 0, false
	}

	// Strip a leading quarter label like "Q4"
	if strings.Contains(clock, " ") {
		parts := strings.Fields(clock)
		clock = parts[len(parts)-1]
	}

	if strings.Contains(clock, ":") {
		parts := strings.SplitN(clock, ":", 2)
		mins, err1 := strconv.Atoi(parts[0])
		secs, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return float64(mins)*60 + secs, true
	}

	// Some feeds report bare seconds under a minute ("42.3")
	secs, err := strconv.ParseFloat(clock, 64)
	if err != nil {
		return 0, false
	}
	return secs, true
}

// clockRunning distinguishes a running clock from stoppages. Halftime,
// period breaks, and a zeroed clock all count as stopped so wall-clock
// driven consumers never advance through a stoppage.
func clockRunning(game *balldontlie.Game, phase models.GamePhase, remaining float64, clockKnown bool) bool {
	if phase != models.PhaseLive {
		return false
	}

	status := strings.ToLower(game.Status)
	if strings.Contains(status, "halftime") || strings.Contains(status, "end of") {
		return false
	}

	return clockKnown && remaining > 0
}

// ElapsedSeconds returns seconds of game time elapsed for a clock
// reading, counting regulation periods at 12 minutes.
func ElapsedSeconds(clock models.GameClock) float64 {
	if clock.Period < 1 {
		return 0
	}
	elapsed := float64(clock.Period-1)*720 + (720 - clock.Remaining)
	return math.Max(elapsed, 0)
}

// StartTime resolves a game's tip-off instant in the reference zone.
// Prefers the RFC3339 datetime field; falls back to parsing the status
// string ("7:00 PM ET") against the game date.
func StartTime(game *balldontlie.Game, ref *time.Location) (time.Time, error) {
	if game.Datetime != "" {
		t, err := time.Parse(time.RFC3339, game.Datetime)
		if err == nil {
			return t.In(ref), nil
		}
	}

	t, err := parseStatusTime(game.Status, game.Date)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(ref), nil
}

// US broadcast zone abbreviations as they appear in status strings
var statusZones = map[string]string{
	"ET": "America/New_York",
	"CT": "America/Chicago",
	"MT": "America/Denver",
	"PT": "America/Los_Angeles",
}

// parseStatusTime parses a "7:00 PM ET" status against a YYYY-MM-DD date
func parseStatusTime(status, date string) (time.Time, error) {
	if !strings.Contains(status, "PM") && !strings.Contains(status, "AM") {
		return time.Time{}, fmt.Errorf("status %q is not a tip-off time", status)
	}
	if date == "" {
		return time.Time{}, fmt.Errorf("no game date to anchor status time %q", status)
	}

	zoneName := "America/New_York"
	timeStr := status
	for abbr, name := range statusZones {
		if strings.Contains(status, " "+abbr) {
			zoneName = name
			timeStr = strings.TrimSpace(strings.Replace(status, " "+abbr, "", 1))
			break
		}
	}

	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading zone %s: %w", zoneName, err)
	}

	t, err := time.ParseInLocation("2006-01-02 3:04 PM", date+" "+timeStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing tip-off %q on %s: %w", status, date, err)
	}
	return t, nil
}

// TrackedEventFrom builds an event identity from a raw game payload
func TrackedEventFrom(game *balldontlie.Game, ref *time.Location) models.TrackedEvent {
	start, err := StartTime(game, ref)
	if err != nil {
		// Identity stays usable without a resolvable tip-off; the
		// scheduler treats a zero start as "window unknown"
		start = time.Time{}
	}

	return models.TrackedEvent{
		EventID:    strconv.Itoa(game.ID),
		HomeTeam:   game.HomeTeam.FullName,
		HomeAbbr:   game.HomeTeam.Abbreviation,
		HomeTeamID: game.HomeTeam.ID,
		AwayTeam:   game.VisitorTeam.FullName,
		AwayAbbr:   game.VisitorTeam.Abbreviation,
		AwayTeamID: game.VisitorTeam.ID,
		StartTime:  start,
		Date:       game.Date,
		State:      models.StateScheduled,
	}
}
