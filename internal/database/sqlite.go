package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/logging"
	"smc-engine/internal/smc"

	_ "modernc.org/sqlite"
)

// SQLiteArchive is the embedded Archive used when PostgreSQL is not configured.
// Times are stored as unix milliseconds.
type SQLiteArchive struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Archive = (*SQLiteArchive)(nil)

// NewSQLiteArchive opens (or creates) the SQLite database and runs migrations.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	// busy_timeout is per connection, so it goes in the DSN
	db, err := sql.Open("sqlite", dbPath+sep+"_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while the engine writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	a := &SQLiteArchive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logging.DatabaseContext("open", "").Info("SQLite archive opened", "path", dbPath)
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS smc_analyses (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol         TEXT NOT NULL,
			timeframe      TEXT NOT NULL,
			analyzed_at    INTEGER NOT NULL,
			trend          TEXT NOT NULL,
			phase          TEXT NOT NULL,
			flow_direction TEXT NOT NULL,
			confidence     REAL NOT NULL,
			recommendation TEXT NOT NULL,
			opportunities  INTEGER NOT NULL DEFAULT 0,
			payload        BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_smc_analyses_symbol_time ON smc_analyses(symbol, analyzed_at)`,

		`CREATE TABLE IF NOT EXISTS smc_opportunities (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			type        TEXT NOT NULL,
			direction   TEXT NOT NULL,
			entry       REAL NOT NULL,
			stop_loss   REAL NOT NULL,
			take_profit REAL NOT NULL,
			risk_reward REAL NOT NULL,
			probability REAL NOT NULL,
			confluence  TEXT NOT NULL DEFAULT '[]',
			analyzed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_smc_opportunities_symbol_time ON smc_opportunities(symbol, analyzed_at)`,
	}

	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// SaveAnalysis inserts the analysis row and upserts its opportunities
func (a *SQLiteArchive) SaveAnalysis(ctx context.Context, an *smc.Analysis) error {
	rec, opps, err := newRecords(an)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO smc_analyses
		(symbol, timeframe, analyzed_at, trend, phase, flow_direction, confidence, recommendation, opportunities, payload)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.Symbol, rec.Timeframe, rec.AnalyzedAt.UnixMilli(), rec.Trend, rec.Phase, rec.FlowDirection,
		rec.Confidence, rec.Recommendation, rec.Opportunities, rec.Payload,
	); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	for _, o := range opps {
		confluence, err := json.Marshal(o.Confluence)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO smc_opportunities
			(id, symbol, type, direction, entry, stop_loss, take_profit, risk_reward, probability, confluence, analyzed_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				probability = excluded.probability,
				confluence = excluded.confluence,
				analyzed_at = excluded.analyzed_at`,
			o.ID, o.Symbol, string(o.Type), string(o.Direction), o.Entry, o.StopLoss, o.TakeProfit,
			o.RiskReward, o.Probability, string(confluence), o.AnalyzedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("upsert opportunity %s: %w", o.ID, err)
		}
	}

	return tx.Commit()
}

// Analyses returns the latest archived runs for symbol, newest first
func (a *SQLiteArchive) Analyses(ctx context.Context, symbol string, limit int) ([]*AnalysisRecord, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, symbol, timeframe, analyzed_at, trend, phase, flow_direction,
		confidence, recommendation, opportunities, payload
		FROM smc_analyses
		WHERE symbol = ?
		ORDER BY analyzed_at DESC, id DESC
		LIMIT ?`, symbol, historyLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		rec := &AnalysisRecord{}
		var analyzedAt int64
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Timeframe, &analyzedAt, &rec.Trend, &rec.Phase,
			&rec.FlowDirection, &rec.Confidence, &rec.Recommendation, &rec.Opportunities, &rec.Payload,
		); err != nil {
			return nil, err
		}
		rec.AnalyzedAt = time.UnixMilli(analyzedAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// History returns archived opportunities, newest first. An empty symbol matches all.
func (a *SQLiteArchive) History(ctx context.Context, symbol string, limit int) ([]*OpportunityRecord, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, symbol, type, direction, entry, stop_loss, take_profit,
		risk_reward, probability, confluence, analyzed_at
		FROM smc_opportunities
		WHERE (? = '' OR symbol = ?)
		ORDER BY analyzed_at DESC, probability DESC
		LIMIT ?`, symbol, symbol, historyLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*OpportunityRecord
	for rows.Next() {
		rec := &OpportunityRecord{}
		var (
			typ, direction, confluence string
			analyzedAt                 int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Symbol, &typ, &direction, &rec.Entry, &rec.StopLoss, &rec.TakeProfit,
			&rec.RiskReward, &rec.Probability, &confluence, &analyzedAt,
		); err != nil {
			return nil, err
		}
		rec.Type = analysis.OpportunityType(typ)
		rec.Direction = analysis.Direction(direction)
		rec.AnalyzedAt = time.UnixMilli(analyzedAt).UTC()
		if err := json.Unmarshal([]byte(confluence), &rec.Confluence); err != nil {
			return nil, fmt.Errorf("decode confluence for %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes rows analysed before the cutoff and returns how many went
func (a *SQLiteArchive) Prune(ctx context.Context, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total int64
	for _, table := range []string{"smc_analyses", "smc_opportunities"} {
		res, err := a.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE analyzed_at < ?`, before.UnixMilli())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// HealthCheck pings the database file
func (a *SQLiteArchive) HealthCheck(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
