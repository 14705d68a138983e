package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smc-engine/internal/smc"

	"github.com/jackc/pgx/v5"
)

// Repository is the PostgreSQL Archive
type Repository struct {
	db *DB
}

var _ Archive = (*Repository)(nil)

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// Close closes the underlying pool
func (r *Repository) Close() error {
	r.db.Close()
	return nil
}

// ============================================================================
// ANALYSES
// ============================================================================

// SaveAnalysis inserts the analysis row and upserts its opportunities in one transaction
func (r *Repository) SaveAnalysis(ctx context.Context, a *smc.Analysis) error {
	rec, opps, err := newRecords(a)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO smc_analyses (symbol, timeframe, analyzed_at, trend, phase, flow_direction,
			                          confidence, recommendation, opportunities, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`
		if err := tx.QueryRow(
			ctx, query,
			rec.Symbol, rec.Timeframe, rec.AnalyzedAt, rec.Trend, rec.Phase, rec.FlowDirection,
			rec.Confidence, rec.Recommendation, rec.Opportunities, rec.Payload,
		).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}

		batch := &pgx.Batch{}
		for _, o := range opps {
			confluence, err := json.Marshal(o.Confluence)
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO smc_opportunities (id, symbol, type, direction, entry, stop_loss, take_profit,
				                               risk_reward, probability, confluence, analyzed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (id) DO UPDATE SET
					probability = EXCLUDED.probability,
					confluence = EXCLUDED.confluence,
					analyzed_at = EXCLUDED.analyzed_at
			`, o.ID, o.Symbol, string(o.Type), string(o.Direction), o.Entry, o.StopLoss, o.TakeProfit,
				o.RiskReward, o.Probability, confluence, o.AnalyzedAt)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Analyses returns the latest archived runs for symbol, newest first
func (r *Repository) Analyses(ctx context.Context, symbol string, limit int) ([]*AnalysisRecord, error) {
	query := `
		SELECT id, symbol, timeframe, analyzed_at, trend, phase, flow_direction,
		       confidence, recommendation, opportunities, payload
		FROM smc_analyses
		WHERE symbol = $1
		ORDER BY analyzed_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, historyLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		rec := &AnalysisRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Timeframe, &rec.AnalyzedAt, &rec.Trend, &rec.Phase,
			&rec.FlowDirection, &rec.Confidence, &rec.Recommendation, &rec.Opportunities, &rec.Payload,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ============================================================================
// OPPORTUNITIES
// ============================================================================

// History returns archived opportunities, newest first. An empty symbol matches all.
func (r *Repository) History(ctx context.Context, symbol string, limit int) ([]*OpportunityRecord, error) {
	query := `
		SELECT id, symbol, type, direction, entry, stop_loss, take_profit,
		       risk_reward, probability, confluence, analyzed_at
		FROM smc_opportunities
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY analyzed_at DESC, probability DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, historyLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*OpportunityRecord
	for rows.Next() {
		rec := &OpportunityRecord{}
		var confluence []byte
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Type, &rec.Direction, &rec.Entry, &rec.StopLoss, &rec.TakeProfit,
			&rec.RiskReward, &rec.Probability, &confluence, &rec.AnalyzedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(confluence, &rec.Confluence); err != nil {
			return nil, fmt.Errorf("decode confluence for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes rows analysed before the cutoff and returns how many went
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		for _, table := range []string{"smc_analyses", "smc_opportunities"} {
			tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE analyzed_at < $1`, before.UTC())
			if err != nil {
				return fmt.Errorf("prune %s: %w", table, err)
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	return total, err
}
