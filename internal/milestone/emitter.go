package milestone

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// Presence reports how many non-expired viewers an event has.
type Presence interface {
	ActiveViewerCount(ctx context.Context, eventID string) (int, error)
}

// Guard decides whether a fact should go out, marking it seen when it
// says yes.
type Guard interface {
	ShouldForward(ctx context.Context, fact models.Fact) (bool, error)
}

// FactStream carries facts to the commentary collaborator.
type FactStream interface {
	PublishFact(ctx context.Context, fact models.Fact) error
}

// Audit durably logs forwarded facts. Optional.
type Audit interface {
	LogFact(ctx context.Context, fact models.Fact) error
}

// Emitter gates fact delivery on viewer presence. Snapshots and
// milestone detection run with or without an audience; only the
// generative downstream is spared when nobody is watching.
type Emitter struct {
	presence Presence
	guard    Guard
	stream   FactStream
	audit    Audit
}

// NewEmitter wires the gate. audit may be nil.
func NewEmitter(presence Presence, guard Guard, stream FactStream, audit Audit) *Emitter {
	return &Emitter{
		presence: presence,
		guard:    guard,
		stream:   stream,
		audit:    audit,
	}
}

// Forward publishes one fact if the event has active viewers and the
// fact has not gone out before. Returns whether it was forwarded. Any
// failure suppresses the fact rather than guessing; a presence outage
// means no delivery, not unconditional delivery.
func (e *Emitter) Forward(ctx context.Context, fact models.Fact) (bool, error) {
	count, err := e.presence.ActiveViewerCount(ctx, fact.EventID)
	if err != nil {
		return false, fmt.Errorf("viewer count for event %s: %w", fact.EventID, err)
	}
	if count == 0 {
		log.Printf("[emitter] event %s has no active viewers, suppressing %s %s@%d",
			fact.EventID, fact.Subject, fact.Class, fact.Threshold)
		return false, nil
	}

	ok, err := e.guard.ShouldForward(ctx, fact)
	if err != nil {
		return false, fmt.Errorf("dedup check for fact %s: %w", fact.FactID, err)
	}
	if !ok {
		return false, nil
	}

	if err := e.stream.PublishFact(ctx, fact); err != nil {
		return false, fmt.Errorf("publishing fact %s: %w", fact.FactID, err)
	}

	if e.audit != nil {
		if err := e.audit.LogFact(ctx, fact); err != nil {
			log.Printf("[emitter] audit write failed for fact %s: %v", fact.FactID, err)
		}
	}

	log.Printf("[emitter] forwarded %s %s@%d for event %s (%d viewers)",
		fact.Subject, fact.Class, fact.Threshold, fact.EventID, count)
	return true, nil
}

// NewFact builds the outbound payload for a milestone, situating it in
// the game's current score and attaching baseline framing when known.
func NewFact(m models.Milestone, rec *models.EventRecord, baseline *models.BaselineContext) models.Fact {
	game := models.FactGameContext{
		HomeTeam: rec.Event.HomeTeam,
		AwayTeam: rec.Event.AwayTeam,
	}
	for i := len(rec.Snapshots) - 1; i >= 0; i-- {
		snap := rec.Snapshots[i]
		if game.Period == 0 && snap.Clock.Period > 0 {
			game.Period = snap.Clock.Period
		}
		if snap.HasScore() {
			game.HomeScore = *snap.HomeScore
			game.AwayScore = *snap.AwayScore
			break
		}
	}

	return models.Fact{
		FactID:    uuid.New().String(),
		EventID:   m.EventID,
		Subject:   m.Subject,
		SubjectID: m.SubjectID,
		Class:     m.Class,
		Threshold: m.Threshold,
		Magnitude: m.Magnitude,
		Baseline:  baseline,
		Game:      game,
		FiredAt:   m.Timestamp,
	}
}
