package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smc-engine/config"
	"smc-engine/internal/analysis"
	"smc-engine/internal/smc"
)

func newTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func archivedAnalysis(symbol string, at time.Time, opps ...analysis.TradingOpportunity) *smc.Analysis {
	return &smc.Analysis{
		Symbol:    symbol,
		Timeframe: "1h",
		Timestamp: at,
		MarketStructure: analysis.MarketStructure{
			Trend: analysis.TrendUp,
			Phase: analysis.PhaseMarkup,
		},
		InstitutionalFlow: analysis.InstitutionalFlow{Direction: analysis.Bullish},
		Confidence:        0.61,
		Recommendation:    "Moderate bullish institutional flow",
		Opportunities:     opps,
	}
}

func opportunity(id string, probability float64) analysis.TradingOpportunity {
	return analysis.TradingOpportunity{
		ID:          id,
		Type:        analysis.OrderBlockRetest,
		Symbol:      "BTCUSDT",
		Direction:   analysis.Bullish,
		Entry:       98.5,
		StopLoss:    96.53,
		TakeProfit:  103.425,
		RiskReward:  2.5,
		Probability: probability,
		Confluence: []analysis.ConfluenceFactor{
			{Type: analysis.FactorOrderBlock, Strength: 0.7, Description: "Bullish order block"},
		},
	}
}

func TestSQLiteArchiveSaveAndQuery(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base, opportunity("opp-1", 0.8))); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base.Add(time.Hour), opportunity("opp-2", 0.7))); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	runs, err := a.Analyses(ctx, "BTCUSDT", 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if !runs[0].AnalyzedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("Expected newest run first, got %v", runs[0].AnalyzedAt)
	}
	if runs[0].Trend != string(analysis.TrendUp) || runs[0].Opportunities != 1 {
		t.Errorf("Unexpected run %+v", runs[0])
	}

	full, err := runs[0].Analysis()
	if err != nil {
		t.Fatalf("Expected payload to decode, got %v", err)
	}
	if full.Recommendation != "Moderate bullish institutional flow" {
		t.Errorf("Expected recommendation preserved, got %q", full.Recommendation)
	}

	history, err := a.History(ctx, "BTCUSDT", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(history) != 2 || history[0].ID != "opp-2" {
		t.Fatalf("Expected [opp-2 opp-1], got %d records", len(history))
	}
	if len(history[1].Confluence) != 1 || history[1].Confluence[0].Type != analysis.FactorOrderBlock {
		t.Errorf("Expected confluence decoded, got %+v", history[1].Confluence)
	}
	if got := history[1].Opportunity(); got.Entry != 98.5 || got.Type != analysis.OrderBlockRetest {
		t.Errorf("Unexpected opportunity %+v", got)
	}
}

func TestSQLiteArchiveUpsertsOpportunities(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base, opportunity("opp-1", 0.5)))
	if err := a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base.Add(time.Minute), opportunity("opp-1", 0.9))); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	history, _ := a.History(ctx, "", 0)
	if len(history) != 1 {
		t.Fatalf("Expected 1 opportunity after upsert, got %d", len(history))
	}
	if history[0].Probability != 0.9 {
		t.Errorf("Expected probability 0.9, got %f", history[0].Probability)
	}
	if !history[0].AnalyzedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("Expected analyzed_at refreshed, got %v", history[0].AnalyzedAt)
	}
}

func TestSQLiteArchiveHistoryFilters(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	eth := opportunity("eth-1", 0.6)
	eth.Symbol = "ETHUSDT"
	a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base, opportunity("btc-1", 0.6)))
	a.SaveAnalysis(ctx, archivedAnalysis("ETHUSDT", base, eth))

	btc, _ := a.History(ctx, "BTCUSDT", 0)
	if len(btc) != 1 || btc[0].ID != "btc-1" {
		t.Errorf("Expected only btc-1, got %d records", len(btc))
	}
	all, _ := a.History(ctx, "", 0)
	if len(all) != 2 {
		t.Errorf("Expected 2 records across symbols, got %d", len(all))
	}
	limited, _ := a.History(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("Expected limit 1 honoured, got %d", len(limited))
	}
}

func TestSQLiteArchivePrune(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base, opportunity("old", 0.6)))
	a.SaveAnalysis(ctx, archivedAnalysis("BTCUSDT", base.Add(48*time.Hour), opportunity("new", 0.6)))

	removed, err := a.Prune(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 rows pruned, got %d", removed)
	}

	runs, _ := a.Analyses(ctx, "BTCUSDT", 0)
	if len(runs) != 1 {
		t.Errorf("Expected 1 run left, got %d", len(runs))
	}
	history, _ := a.History(ctx, "", 0)
	if len(history) != 1 || history[0].ID != "new" {
		t.Errorf("Expected only new opportunity left, got %d", len(history))
	}
}

func TestSQLiteArchiveEngineRoundTrip(t *testing.T) {
	a := newTestArchive(t)
	engine := smc.NewEngine(analysis.DefaultParams())

	candles := make([]analysis.Candle, 0, 120)
	for i := 0; i < 120; i++ {
		price := 100 + float64(i%10)
		candles = append(candles, analysis.Candle{
			Timestamp: int64(i) * 60_000,
			Open:      price,
			High:      price + 2,
			Low:       price - 2,
			Close:     price + 1,
			Volume:    1000 + float64(i),
		})
	}

	result, err := engine.Analyze("BTCUSDT", "1m", candles)
	if err != nil {
		t.Fatalf("Expected analysis, got %v", err)
	}
	if err := a.SaveAnalysis(context.Background(), result); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}

	history, err := a.History(context.Background(), "BTCUSDT", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(history) != len(result.Opportunities) {
		t.Errorf("Expected %d archived opportunities, got %d", len(result.Opportunities), len(history))
	}
}

func TestHistoryLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultHistoryLimit},
		{-3, DefaultHistoryLimit},
		{25, 25},
		{5000, MaxHistoryLimit},
	}
	for _, tt := range tests {
		if got := historyLimit(tt.in); got != tt.want {
			t.Errorf("historyLimit(%d): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	none, err := Open(ctx, config.ArchiveConfig{Driver: "none"}, config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("Expected noop archive, got %v", err)
	}
	if _, ok := none.(*NoopArchive); !ok {
		t.Errorf("Expected *NoopArchive, got %T", none)
	}

	lite, err := Open(ctx, config.ArchiveConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "a.db")}, config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("Expected sqlite archive, got %v", err)
	}
	defer lite.Close()
	if err := lite.HealthCheck(ctx); err != nil {
		t.Errorf("Expected healthy archive, got %v", err)
	}

	if _, err := Open(ctx, config.ArchiveConfig{Driver: "mongo"}, config.DatabaseConfig{}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
