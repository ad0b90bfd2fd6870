package consensus

import (
	"math"
	"testing"
	"time"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name        string
		quotes      []models.MarketQuote
		wantNil     bool
		wantProb    float64
		wantSources int
	}{
		{
			name: "two books averaged in probability space",
			quotes: []models.MarketQuote{
				// -110/-110 folds to exactly 0.5
				{Source: "book_a", HomePrice: -110, AwayPrice: -110},
				// -150/+130: implied 0.600/0.4348, no-vig home 0.5798
				{Source: "book_b", HomePrice: -150, AwayPrice: 130},
			},
			wantProb:    (0.5 + 0.6/(0.6+100.0/230.0)) / 2,
			wantSources: 2,
		},
		{
			name: "invalid quote skipped, survivors still fold",
			quotes: []models.MarketQuote{
				{Source: "book_a", HomePrice: -110, AwayPrice: -110},
				{Source: "broken", HomePrice: 0, AwayPrice: 130},
			},
			wantProb:    0.5,
			wantSources: 1,
		},
		{
			name:    "no quotes",
			quotes:  nil,
			wantNil: true,
		},
		{
			name: "all quotes invalid",
			quotes: []models.MarketQuote{
				{Source: "broken", HomePrice: 0, AwayPrice: 0},
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point := Fold(tt.quotes)

			if tt.wantNil {
				if point != nil {
					t.Fatalf("expected nil consensus, got %+v", point)
				}
				return
			}
			if point == nil {
				t.Fatal("expected consensus, got nil")
			}

			if math.Abs(point.Probability-tt.wantProb) > 0.0001 {
				t.Errorf("probability = %.4f, want %.4f", point.Probability, tt.wantProb)
			}
			if point.SourceCount != tt.wantSources {
				t.Errorf("source count = %d, want %d", point.SourceCount, tt.wantSources)
			}
			if len(point.Sources) != tt.wantSources {
				t.Errorf("sources = %v, want %d entries", point.Sources, tt.wantSources)
			}
			if point.Frozen {
				t.Error("Fold must not mark estimates frozen")
			}
		})
	}
}

func TestForTickFreezesPregame(t *testing.T) {
	quotes := []models.MarketQuote{
		{Source: "book_a", HomePrice: -150, AwayPrice: 130},
	}

	first := ForTick(nil, models.PhasePregame, quotes)
	if first == nil {
		t.Fatal("expected pregame consensus")
	}
	if !first.Frozen {
		t.Error("first pregame observation should be frozen")
	}

	// Wrap the first observation in a durable record, then tick again
	// with moved prices. The frozen estimate must come back untouched.
	rec := &models.EventRecord{
		Snapshots: []models.Snapshot{
			{Timestamp: time.Now(), Consensus: first},
		},
	}
	moved := []models.MarketQuote{
		{Source: "book_a", HomePrice: -200, AwayPrice: 170},
		{Source: "book_b", HomePrice: -190, AwayPrice: 165},
	}

	for i := 0; i < 5; i++ {
		again := ForTick(rec, models.PhasePregame, moved)
		if again == nil {
			t.Fatal("expected frozen consensus on re-tick")
		}
		if again.Probability != first.Probability {
			t.Fatalf("tick %d: frozen probability drifted: %.10f != %.10f",
				i, again.Probability, first.Probability)
		}
		if again.SourceCount != first.SourceCount || !again.Frozen {
			t.Fatalf("tick %d: frozen provenance changed: %+v", i, again)
		}
	}

	// Live ticks recompute from the market instead.
	live := ForTick(rec, models.PhaseLive, moved)
	if live == nil {
		t.Fatal("expected live consensus")
	}
	if live.Frozen {
		t.Error("live consensus must not be frozen")
	}
	if live.SourceCount != 2 {
		t.Errorf("live source count = %d, want 2", live.SourceCount)
	}
	if math.Abs(live.Probability-first.Probability) < 1e-9 {
		t.Error("live consensus should track the moved market")
	}
}

func TestForTickPregameWithoutQuotes(t *testing.T) {
	if point := ForTick(nil, models.PhasePregame, nil); point != nil {
		t.Fatalf("expected nil consensus before any market observation, got %+v", point)
	}
}

func TestLatest(t *testing.T) {
	if Latest(nil) != nil {
		t.Error("nil record should have no consensus")
	}

	rec := &models.EventRecord{
		Snapshots: []models.Snapshot{
			{Consensus: &models.ConsensusPoint{Probability: 0.55, SourceCount: 1}},
			{Consensus: nil},
			{Consensus: &models.ConsensusPoint{Probability: 0.61, SourceCount: 3}},
			{Consensus: nil},
		},
	}

	got := Latest(rec)
	if got == nil {
		t.Fatal("expected a consensus point")
	}
	if got.Probability != 0.61 || got.SourceCount != 3 {
		t.Errorf("latest = %+v, want the 0.61 estimate", got)
	}
}

func TestChanged(t *testing.T) {
	base := &models.ConsensusPoint{
		Probability: 0.6,
		SourceCount: 2,
		Sources:     []string{"book_a", "book_b"},
		Frozen:      true,
	}
	same := &models.ConsensusPoint{
		Probability: 0.6,
		SourceCount: 2,
		Sources:     []string{"book_a", "book_b"},
		Frozen:      true,
	}

	tests := []struct {
		name string
		a, b *models.ConsensusPoint
		want bool
	}{
		{name: "both nil", a: nil, b: nil, want: false},
		{name: "nil vs value", a: nil, b: base, want: true},
		{name: "equal values", a: base, b: same, want: false},
		{
			name: "probability moved",
			a:    base,
			b:    &models.ConsensusPoint{Probability: 0.62, SourceCount: 2, Sources: []string{"book_a", "book_b"}, Frozen: true},
			want: true,
		},
		{
			name: "source joined",
			a:    base,
			b:    &models.ConsensusPoint{Probability: 0.6, SourceCount: 3, Sources: []string{"book_a", "book_b", "book_c"}, Frozen: true},
			want: true,
		},
		{
			name: "thaw",
			a:    base,
			b:    &models.ConsensusPoint{Probability: 0.6, SourceCount: 2, Sources: []string{"book_a", "book_b"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Changed(tt.a, tt.b); got != tt.want {
				t.Errorf("Changed = %v, want %v", got, tt.want)
			}
		})
	}
}
