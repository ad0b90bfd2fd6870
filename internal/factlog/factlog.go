// Package factlog persists forwarded facts to Postgres for offline
// review of what the commentary collaborator was handed. Optional; the
// pipeline runs without a DSN configured.
package factlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/jasper9/nbastats.fun/pkg/models"
)

// FactLogger logs forwarded facts to the commentary_facts table
type FactLogger struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection
func Open(ctx context.Context, dsn string) (*FactLogger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening fact log: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging fact log: %w", err)
	}
	return &FactLogger{db: db}, nil
}

// LogFact inserts one forwarded fact
func (l *FactLogger) LogFact(ctx context.Context, fact models.Fact) error {
	query := `
		INSERT INTO commentary_facts (
			fact_id, event_id, subject, subject_id, class, threshold,
			magnitude, baseline, home_score, away_score, period, fired_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var baseline []byte
	if fact.Baseline != nil {
		var err error
		baseline, err = json.Marshal(fact.Baseline)
		if err != nil {
			return fmt.Errorf("marshaling baseline for fact %s: %w", fact.FactID, err)
		}
	}

	_, err := l.db.ExecContext(ctx, query,
		fact.FactID,
		fact.EventID,
		fact.Subject,
		fact.SubjectID,
		string(fact.Class),
		fact.Threshold,
		fact.Magnitude,
		baseline,
		fact.Game.HomeScore,
		fact.Game.AwayScore,
		fact.Game.Period,
		fact.FiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log fact: %w", err)
	}
	return nil
}

// Close releases the database handle
func (l *FactLogger) Close() error {
	return l.db.Close()
}
