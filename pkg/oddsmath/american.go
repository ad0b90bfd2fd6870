// Package oddsmath converts American moneyline prices into win
// probabilities. All math happens in probability space; averaging raw
// prices across bookmakers is never correct and nothing here supports it.
package oddsmath

import (
	"fmt"
	"math"
)

// AmericanToImpliedProbability converts an American moneyline to the
// bookmaker's implied probability (vig included).
// -150 → 0.600, +130 → 0.435
func AmericanToImpliedProbability(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}

	if american < 0 {
		// Favorite: |price| / (|price| + 100)
		abs := float64(-american)
		return abs / (abs + 100.0), nil
	}

	// Underdog: 100 / (price + 100)
	return 100.0 / (float64(american) + 100.0), nil
}

// RemoveVig normalizes a two-way market's implied probabilities so they
// sum to 1.0, proportionally removing the bookmaker's margin.
//
// Side A: -110 (52.38%) | Side B: -110 (52.38%)
// Overround 104.76% → fair 50% / 50%
func RemoveVig(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	total := prob1 + prob2
	if total <= 1.0 {
		return 0, 0, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	return prob1 / total, prob2 / total, nil
}

// FairProbabilities converts one bookmaker's moneyline pair into no-vig
// probabilities for each side.
func FairProbabilities(homePrice, awayPrice int) (home, away float64, err error) {
	homeImplied, err := AmericanToImpliedProbability(homePrice)
	if err != nil {
		return 0, 0, fmt.Errorf("home price: %w", err)
	}

	awayImplied, err := AmericanToImpliedProbability(awayPrice)
	if err != nil {
		return 0, 0, fmt.Errorf("away price: %w", err)
	}

	return RemoveVig(homeImplied, awayImplied)
}

// ConsensusProbability averages per-source fair probabilities into a
// single estimate. The inputs must already be in probability space.
func ConsensusProbability(probs []float64) (float64, error) {
	if len(probs) == 0 {
		return 0, fmt.Errorf("no source probabilities provided")
	}

	sum := 0.0
	for _, p := range probs {
		if p <= 0 || p >= 1 {
			return 0, fmt.Errorf("probability %.4f out of range", p)
		}
		sum += p
	}

	return sum / float64(len(probs)), nil
}

// VigPercentage returns the overround built into a two-way market.
// -110/-110 → 4.76
func VigPercentage(prob1, prob2 float64) (float64, error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	total := prob1 + prob2
	if total <= 1.0 {
		return 0, nil
	}

	return (total - 1.0) * 100.0, nil
}

// Round4 rounds a probability to four decimal places for display
func Round4(probability float64) float64 {
	return math.Round(probability*10000) / 10000
}
