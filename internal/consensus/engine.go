// Package consensus folds per-source market quotes into a single home
// win-probability estimate with provenance. Estimates are always derived
// from the quotes at hand plus the event's durable record; there is no
// long-lived "current probability" variable to drift after a restart.
package consensus

import (
	"log"
	"math"
	"sort"

	"github.com/jasper9/nbastats.fun/pkg/models"
	"github.com/jasper9/nbastats.fun/pkg/oddsmath"
)

// Fold converts each quote to no-vig probabilities and averages the home
// side across sources. Quotes that fail conversion are skipped with a
// log line. Returns nil when no quote survives.
func Fold(quotes []models.MarketQuote) *models.ConsensusPoint {
	var probs []float64
	var sources []string

	for _, q := range quotes {
		home, _, err := oddsmath.FairProbabilities(q.HomePrice, q.AwayPrice)
		if err != nil {
			log.Printf("[consensus] skipping %s quote %d/%d: %v",
				q.Source, q.HomePrice, q.AwayPrice, err)
			continue
		}
		probs = append(probs, home)
		sources = append(sources, q.Source)
	}

	if len(probs) == 0 {
		return nil
	}

	mean, err := oddsmath.ConsensusProbability(probs)
	if err != nil {
		log.Printf("[consensus] folding %d sources: %v", len(probs), err)
		return nil
	}

	sort.Strings(sources)
	return &models.ConsensusPoint{
		Probability: mean,
		SourceCount: len(probs),
		Sources:     sources,
	}
}

// ForTick returns the consensus estimate to attach to the next snapshot.
// Before tip-off the first observed estimate is frozen and reused
// verbatim from the durable record on every later tick, so a restart
// reproduces it bit for bit. Once the game is live the estimate
// recomputes from fresh quotes every tick.
func ForTick(rec *models.EventRecord, phase models.GamePhase, quotes []models.MarketQuote) *models.ConsensusPoint {
	if phase == models.PhasePregame {
		if frozen := Latest(rec); frozen != nil && frozen.Frozen {
			return frozen
		}
		point := Fold(quotes)
		if point != nil {
			point.Frozen = true
		}
		return point
	}

	return Fold(quotes)
}

// Latest returns the most recent consensus estimate in an event's stored
// sequence, or nil if none has been observed yet.
func Latest(rec *models.EventRecord) *models.ConsensusPoint {
	return rec.LatestConsensus()
}

// Changed reports whether two estimates differ in value or provenance.
// Used to skip redundant pre-game appends.
func Changed(a, b *models.ConsensusPoint) bool {
	if a == nil && b == nil {
		return false
	}
	if (a == nil) != (b == nil) {
		return true
	}
	if a.SourceCount != b.SourceCount || a.Frozen != b.Frozen {
		return true
	}
	if math.Abs(a.Probability-b.Probability) > 1e-9 {
		return true
	}
	if len(a.Sources) != len(b.Sources) {
		return true
	}
	for i := range a.Sources {
		if a.Sources[i] != b.Sources[i] {
			return true
		}
	}
	return false
}
