package milestone

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

var tick = time.Date(2026, 1, 15, 20, 30, 0, 0, time.UTC)

type fakeStats struct {
	rosters       map[int][]models.Player
	rosterErr     error
	rosterCalls   int
	baseline      *models.BaselineContext
	baselineErr   error
	baselineCalls int
}

func (f *fakeStats) ActiveRoster(ctx context.Context, teamID int) ([]models.Player, error) {
	f.rosterCalls++
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.rosters[teamID], nil
}

func (f *fakeStats) SeasonBaseline(ctx context.Context, season, playerID int) (*models.BaselineContext, error) {
	f.baselineCalls++
	if f.baselineErr != nil {
		return nil, f.baselineErr
	}
	return f.baseline, nil
}

func denverRoster() map[int][]models.Player {
	return map[int][]models.Player{
		8: {
			{PlayerID: 15, FirstName: "Nikola", LastName: "Jokic", TeamID: 8},
			{PlayerID: 22, FirstName: "Jamal", LastName: "Murray", TeamID: 8},
		},
	}
}

func intPtr(v int) *int { return &v }

func scored(ts time.Time, period, home, away int) models.Snapshot {
	return models.Snapshot{
		Timestamp: ts,
		Clock:     models.GameClock{Phase: models.PhaseLive, Period: period, Running: true},
		HomeScore: intPtr(home),
		AwayScore: intPtr(away),
	}
}

func record(snaps []models.Snapshot, recorded []models.Milestone) *models.EventRecord {
	return &models.EventRecord{
		Event: models.TrackedEvent{
			EventID:  "1001",
			HomeTeam: "Denver Nuggets", HomeAbbr: "DEN", HomeTeamID: 8,
			AwayTeam: "Boston Celtics", AwayAbbr: "BOS", AwayTeamID: 2,
			Date: "2026-01-15",
		},
		Snapshots:  snaps,
		Milestones: recorded,
	}
}

func jokicLine(pts, reb, ast, stl, blk int) models.PlayerLine {
	return models.PlayerLine{
		PlayerID: 15, Name: "Nikola Jokic", TeamID: 8, TeamAbbr: "DEN",
		Points: pts, Rebounds: reb, Assists: ast, Steals: stl, Blocks: blk,
	}
}

func TestPlayerThresholds(t *testing.T) {
	tests := []struct {
		name     string
		line     models.PlayerLine
		recorded []models.Milestone
		want     []models.Milestone // class+threshold+magnitude only
	}{
		{
			name: "first scoring band",
			line: jokicLine(31, 4, 3, 0, 0),
			want: []models.Milestone{{Class: models.ClassScoring, Threshold: 30, Magnitude: 31}},
		},
		{
			name: "same band never refires",
			line: jokicLine(33, 4, 3, 0, 0),
			recorded: []models.Milestone{
				{Subject: "Nikola Jokic", Class: models.ClassScoring, Threshold: 30},
			},
			want: nil,
		},
		{
			name: "next band fires once crossed",
			line: jokicLine(41, 4, 3, 0, 0),
			recorded: []models.Milestone{
				{Subject: "Nikola Jokic", Class: models.ClassScoring, Threshold: 30},
			},
			want: []models.Milestone{{Class: models.ClassScoring, Threshold: 40, Magnitude: 41}},
		},
		{
			name: "jumping two bands fires only the highest",
			line: jokicLine(42, 4, 3, 0, 0),
			want: []models.Milestone{{Class: models.ClassScoring, Threshold: 40, Magnitude: 42}},
		},
		{
			name: "double-double",
			line: jokicLine(12, 11, 4, 0, 0),
			want: []models.Milestone{{Class: models.ClassDouble, Threshold: 2, Magnitude: 2}},
		},
		{
			name: "triple-double after a recorded double-double",
			line: jokicLine(12, 11, 10, 0, 0),
			recorded: []models.Milestone{
				{Subject: "Nikola Jokic", Class: models.ClassDouble, Threshold: 2},
			},
			want: []models.Milestone{{Class: models.ClassDouble, Threshold: 3, Magnitude: 3}},
		},
		{
			name: "stocks at five",
			line: jokicLine(8, 4, 3, 3, 2),
			want: []models.Milestone{{Class: models.ClassStocks, Threshold: 5, Magnitude: 5}},
		},
		{
			name: "stocks band ten",
			line: jokicLine(8, 4, 3, 6, 4),
			recorded: []models.Milestone{
				{Subject: "Nikola Jokic", Class: models.ClassStocks, Threshold: 5},
			},
			want: []models.Milestone{{Class: models.ClassStocks, Threshold: 10, Magnitude: 10}},
		},
		{
			name: "quiet line fires nothing",
			line: jokicLine(18, 6, 5, 1, 1),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(&fakeStats{rosters: denverRoster()})
			rec := record([]models.Snapshot{scored(tick, 3, 80, 70)}, tt.recorded)

			got := d.Evaluate(context.Background(), rec, []models.PlayerLine{tt.line})

			if len(got) != len(tt.want) {
				t.Fatalf("fired %d milestones %+v, want %d", len(got), got, len(tt.want))
			}
			for i, want := range tt.want {
				if got[i].Class != want.Class || got[i].Threshold != want.Threshold || got[i].Magnitude != want.Magnitude {
					t.Errorf("milestone %d = %s@%d (mag %d), want %s@%d (mag %d)",
						i, got[i].Class, got[i].Threshold, got[i].Magnitude,
						want.Class, want.Threshold, want.Magnitude)
				}
				if got[i].Subject != "Nikola Jokic" || got[i].EventID != "1001" {
					t.Errorf("milestone %d identity = %s/%s", i, got[i].Subject, got[i].EventID)
				}
				if !got[i].Timestamp.Equal(tick) {
					t.Errorf("milestone %d timestamp = %v, want the triggering snapshot's", i, got[i].Timestamp)
				}
			}
		})
	}
}

func TestRosterValidation(t *testing.T) {
	t.Run("unknown player suppressed", func(t *testing.T) {
		d := NewDetector(&fakeStats{rosters: denverRoster()})
		rec := record([]models.Snapshot{scored(tick, 3, 80, 70)}, nil)

		traded := models.PlayerLine{PlayerID: 999, Name: "Former Nugget", TeamID: 8, Points: 35}
		if got := d.Evaluate(context.Background(), rec, []models.PlayerLine{traded}); len(got) != 0 {
			t.Errorf("fired %+v for a player off the roster", got)
		}
	})

	t.Run("fetch failure suppresses one pass only", func(t *testing.T) {
		stats := &fakeStats{rosters: denverRoster(), rosterErr: errors.New("roster feed down")}
		d := NewDetector(stats)
		rec := record([]models.Snapshot{scored(tick, 3, 80, 70)}, nil)
		line := jokicLine(31, 4, 3, 0, 0)

		if got := d.Evaluate(context.Background(), rec, []models.PlayerLine{line}); len(got) != 0 {
			t.Fatalf("fired %+v while the roster feed was down", got)
		}

		// Feed recovers; nothing was recorded, so the milestone fires now.
		stats.rosterErr = nil
		got := d.Evaluate(context.Background(), rec, []models.PlayerLine{line})
		if len(got) != 1 || got[0].Threshold != 30 {
			t.Fatalf("expected the 30-point milestone after recovery, got %+v", got)
		}
	})

	t.Run("roster cached across evaluations", func(t *testing.T) {
		stats := &fakeStats{rosters: denverRoster()}
		d := NewDetector(stats)
		rec := record([]models.Snapshot{scored(tick, 3, 80, 70)}, nil)

		d.Evaluate(context.Background(), rec, []models.PlayerLine{jokicLine(31, 4, 3, 0, 0)})
		d.Evaluate(context.Background(), rec, []models.PlayerLine{jokicLine(33, 4, 3, 0, 0)})
		if stats.rosterCalls != 1 {
			t.Errorf("roster fetched %d times, want 1", stats.rosterCalls)
		}
	})
}

func TestLargestLead(t *testing.T) {
	history := []models.Snapshot{
		scored(tick, 1, 10, 2),                    // home +8, prior max
		scored(tick.Add(30*time.Second), 1, 12, 8), // home +4
	}

	t.Run("new true maximum fires", func(t *testing.T) {
		d := NewDetector(&fakeStats{})
		snaps := append(append([]models.Snapshot{}, history...), scored(tick.Add(time.Minute), 2, 28, 12)) // +16
		rec := record(snaps, nil)

		got := d.Evaluate(context.Background(), rec, nil)
		if len(got) != 1 {
			t.Fatalf("fired %+v, want one lead milestone", got)
		}
		m := got[0]
		if m.Class != models.ClassLargestLead || m.Subject != "DEN" || m.Threshold != 16 || m.Magnitude != 16 {
			t.Errorf("got %s %s@%d, want largest_lead DEN@16", m.Subject, m.Class, m.Threshold)
		}
	})

	t.Run("smaller than true max stays quiet", func(t *testing.T) {
		d := NewDetector(&fakeStats{})
		snaps := append(append([]models.Snapshot{}, history...),
			scored(tick.Add(time.Minute), 2, 28, 12),    // +16
			scored(tick.Add(2*time.Minute), 2, 30, 16),  // +14, below the max
		)
		rec := record(snaps, []models.Milestone{
			{Subject: "DEN", Class: models.ClassLargestLead, Threshold: 16},
		})

		if got := d.Evaluate(context.Background(), rec, nil); len(got) != 0 {
			t.Errorf("fired %+v for a lead below the recorded maximum", got)
		}
	})

	t.Run("first lead below the floor stays quiet", func(t *testing.T) {
		d := NewDetector(&fakeStats{})
		rec := record([]models.Snapshot{scored(tick, 1, 4, 0)}, nil) // +4
		if got := d.Evaluate(context.Background(), rec, nil); len(got) != 0 {
			t.Errorf("fired %+v for a 4-point lead", got)
		}
	})

	t.Run("away side measured independently", func(t *testing.T) {
		d := NewDetector(&fakeStats{})
		snaps := append(append([]models.Snapshot{}, history...), scored(tick.Add(time.Minute), 3, 60, 71)) // away +11
		rec := record(snaps, nil)

		got := d.Evaluate(context.Background(), rec, nil)
		if len(got) != 1 || got[0].Subject != "BOS" || got[0].Threshold != 11 {
			t.Fatalf("got %+v, want largest_lead BOS@11", got)
		}
	})

	t.Run("scoreless snapshot cannot move the record", func(t *testing.T) {
		d := NewDetector(&fakeStats{})
		snaps := append(append([]models.Snapshot{}, history...), models.Snapshot{
			Timestamp: tick.Add(time.Minute),
			Clock:     models.GameClock{Phase: models.PhaseLive, Period: 2},
		})
		rec := record(snaps, nil)

		if got := d.Evaluate(context.Background(), rec, nil); len(got) != 0 {
			t.Errorf("fired %+v from a snapshot with no score", got)
		}
	})
}

func TestBaselineCaching(t *testing.T) {
	stats := &fakeStats{
		baseline: &models.BaselineContext{Season: 2025, GamesPlayed: 38, PointsAvg: 27.2, ReboundsAvg: 12.7},
	}
	d := NewDetector(stats)

	first := d.Baseline(context.Background(), 15, "2026-01-15")
	if first == nil || first.PointsAvg != 27.2 {
		t.Fatalf("baseline = %+v", first)
	}
	d.Baseline(context.Background(), 15, "2026-01-15")
	if stats.baselineCalls != 1 {
		t.Errorf("baseline fetched %d times, want 1", stats.baselineCalls)
	}
}

func TestBaselineFailureNotCached(t *testing.T) {
	stats := &fakeStats{baselineErr: errors.New("stats feed down")}
	d := NewDetector(stats)

	if got := d.Baseline(context.Background(), 15, "2026-01-15"); got != nil {
		t.Fatalf("expected nil baseline on failure, got %+v", got)
	}

	stats.baselineErr = nil
	stats.baseline = &models.BaselineContext{Season: 2025, PointsAvg: 27.2}
	if got := d.Baseline(context.Background(), 15, "2026-01-15"); got == nil {
		t.Fatal("expected baseline after the feed recovered")
	}
	if stats.baselineCalls != 2 {
		t.Errorf("baseline fetched %d times, want 2", stats.baselineCalls)
	}
}

func TestSeasonForDate(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{date: "2025-11-02", want: 2025},
		{date: "2026-01-15", want: 2025},
		{date: "2026-06-10", want: 2025},
		{date: "2026-10-25", want: 2026},
	}

	for _, tt := range tests {
		if got := SeasonForDate(tt.date); got != tt.want {
			t.Errorf("SeasonForDate(%s) = %d, want %d", tt.date, got, tt.want)
		}
	}
}
