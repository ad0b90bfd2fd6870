package telemetry

import (
	"fmt"
	"log"
	"time"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// PromotionInput carries the finalization context gathered at terminal
// state: the closing box-score lines to archive on the summary.
type PromotionInput struct {
	PlayerLines []models.PlayerLine
}

// Promote finalizes an event's record as permanent history: trims any
// illegal pre-period-1 scored snapshots, recomputes the summary from the
// surviving sequence, and marks the record promoted. Promoting an
// already promoted record is a no-op returning the existing record, so
// crash-and-retry around promotion is safe. Readers are never blocked;
// they keep seeing the pre-promotion record until the atomic replace
// lands.
func (s *Store) Promote(eventID string, input PromotionInput) (*models.EventRecord, error) {
	lock := s.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Read(eventID)
	if err != nil {
		return nil, fmt.Errorf("promoting event %s: %w", eventID, err)
	}
	if rec.Promoted {
		log.Printf("[store] event %s: already promoted, keeping existing history", eventID)
		return rec, nil
	}

	surviving := rec.Snapshots[:0:0]
	for _, snap := range rec.Snapshots {
		if snap.HasScore() && snap.Clock.Period < 1 {
			continue
		}
		surviving = append(surviving, snap)
	}
	if trimmed := len(rec.Snapshots) - len(surviving); trimmed > 0 {
		log.Printf("[store] event %s: trimmed %d pre-period-1 scored snapshots at promotion", eventID, trimmed)
	}

	summary := summarize(surviving)
	summary.PlayerLines = input.PlayerLines
	summary.PromotedAt = time.Now().UTC()

	rec.Snapshots = surviving
	rec.Summary = &summary
	rec.Terminal = true
	rec.Promoted = true
	rec.Event.State = models.StatePromoted
	rec.UpdatedAt = time.Now().UTC()

	if err := s.write(eventID, rec); err != nil {
		return nil, err
	}
	log.Printf("[store] event %s: promoted to history (%d snapshots, final %d-%d)",
		eventID, summary.SnapshotCount, summary.FinalHomeScore, summary.FinalAwayScore)
	return rec, nil
}

// summarize recomputes summary fields over the full surviving sequence.
// The maximum lead per side is the true maximum across every snapshot,
// not a running value carried between process lifetimes.
func summarize(snaps []models.Snapshot) models.Summary {
	summary := models.Summary{
		SnapshotCount: len(snaps),
		SourceCounts:  make(map[string]int),
	}

	haveFinal := false
	for _, snap := range snaps {
		if snap.HasScore() {
			summary.FinalHomeScore = *snap.HomeScore
			summary.FinalAwayScore = *snap.AwayScore
			haveFinal = true

			lead := snap.Lead()
			if lead > summary.MaxHomeLead {
				summary.MaxHomeLead = lead
			}
			if -lead > summary.MaxAwayLead {
				summary.MaxAwayLead = -lead
			}
		}

		if snap.Consensus != nil {
			for _, src := range snap.Consensus.Sources {
				summary.SourceCounts[src]++
			}
		}
	}

	if !haveFinal {
		log.Printf("[store] summarizing a sequence with no scored snapshots")
	}
	if len(summary.SourceCounts) == 0 {
		summary.SourceCounts = nil
	}
	return summary
}
