package adapters

import (
	"context"
	"log"
	"math"

	"github.com/jasper9/nbastats.fun/internal/providers/balldontlie"
	"github.com/jasper9/nbastats.fun/pkg/models"
)

// NormalizeOdds filters a date's odds entries down to one game and
// converts them into moneyline quotes. Entries without both moneylines
// are skipped; a vendor with a partial line contributes nothing.
func NormalizeOdds(odds []balldontlie.GameOdds, gameID int) []models.MarketQuote {
	var quotes []models.MarketQuote

	for _, o := range odds {
		if o.GameID != gameID {
			continue
		}
		if o.MoneylineHome == nil || o.MoneylineAway == nil {
			continue
		}

		source := o.Vendor
		if source == "" {
			source = "unknown"
		}

		quotes = append(quotes, models.MarketQuote{
			Source:    source,
			HomePrice: int(math.Round(*o.MoneylineHome)),
			AwayPrice: int(math.Round(*o.MoneylineAway)),
		})
	}

	return quotes
}

// NormalizeLines converts raw stat rows into box-score lines
func NormalizeLines(stats []balldontlie.Stat) []models.PlayerLine {
	lines := make([]models.PlayerLine, 0, len(stats))
	for _, s := range stats {
		lines = append(lines, models.PlayerLine{
			PlayerID: s.Player.ID,
			Name:     s.Player.FirstName + " " + s.Player.LastName,
			TeamID:   s.Team.ID,
			TeamAbbr: s.Team.Abbreviation,
			Minutes:  s.Min,
			Points:   s.Pts,
			Rebounds: s.Reb,
			Assists:  s.Ast,
			Steals:   s.Stl,
			Blocks:   s.Blk,
		})
	}
	return lines
}

// StatsSource adapts the balldontlie client to the roster and baseline
// lookups the milestone detector needs, converting raw payloads at the
// boundary.
type StatsSource struct {
	client *balldontlie.Client
}

// NewStatsSource wraps a balldontlie client
func NewStatsSource(client *balldontlie.Client) *StatsSource {
	return &StatsSource{client: client}
}

// ActiveRoster returns a team's current active players
func (s *StatsSource) ActiveRoster(ctx context.Context, teamID int) ([]models.Player, error) {
	raw, err := s.client.ActivePlayers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	players := make([]models.Player, 0, len(raw))
	for _, p := range raw {
		players = append(players, models.Player{
			PlayerID:  p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			TeamID:    p.TeamID,
			Position:  p.Position,
		})
	}
	return players, nil
}

// SeasonBaseline returns a player's season averages for fact framing.
// A player with no rows this season yields nil without an error.
func (s *StatsSource) SeasonBaseline(ctx context.Context, season, playerID int) (*models.BaselineContext, error) {
	avg, err := s.client.SeasonAverages(ctx, season, playerID)
	if err != nil {
		return nil, err
	}
	if avg == nil {
		log.Printf("[adapters] no season averages for player %d season %d", playerID, season)
		return nil, nil
	}

	return &models.BaselineContext{
		Season:      avg.Season,
		GamesPlayed: avg.GamesPlayed,
		PointsAvg:   avg.Pts,
		ReboundsAvg: avg.Reb,
		AssistsAvg:  avg.Ast,
		StealsAvg:   avg.Stl,
		BlocksAvg:   avg.Blk,
	}, nil
}
