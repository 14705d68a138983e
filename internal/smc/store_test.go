package smc

import (
	"errors"
	"math"
	"testing"
	"time"

	"smc-engine/internal/analysis"
)

func TestOpportunityLogRing(t *testing.T) {
	log := NewOpportunityLog(3)

	for i := 0; i < 5; i++ {
		symbol := "BTCUSDT"
		if i%2 == 1 {
			symbol = "ETHUSDT"
		}
		log.Append(analysis.TradingOpportunity{ID: string(rune('a' + i)), Symbol: symbol})
	}

	if log.Len() != 3 {
		t.Fatalf("Expected 3 retained, got %d", log.Len())
	}

	all := log.Recent("", 0)
	if len(all) != 3 || all[0].ID != "e" || all[2].ID != "c" {
		t.Errorf("Expected [e d c], got %v", ids(all))
	}

	btc := log.Recent("BTCUSDT", 0)
	if len(btc) != 2 || btc[0].ID != "e" || btc[1].ID != "c" {
		t.Errorf("Expected [e c] for BTCUSDT, got %v", ids(btc))
	}

	if limited := log.Recent("", 1); len(limited) != 1 || limited[0].ID != "e" {
		t.Errorf("Expected [e] with limit 1, got %v", ids(limited))
	}
}

func TestOpportunityLogDefaultSize(t *testing.T) {
	if got := NewOpportunityLog(0).Cap(); got != DefaultOpportunityLogSize {
		t.Errorf("Expected capacity %d, got %d", DefaultOpportunityLogSize, got)
	}
}

func ids(opps []analysis.TradingOpportunity) []string {
	out := make([]string, len(opps))
	for i, o := range opps {
		out[i] = o.ID
	}
	return out
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	store.Put(&Analysis{
		Symbol:      "BTCUSDT",
		OrderBlocks: []analysis.OrderBlock{{ID: "ob"}},
		Opportunities: []analysis.TradingOpportunity{{
			ID:         "opp",
			Confluence: []analysis.ConfluenceFactor{{Type: analysis.FactorOrderBlock}},
		}},
	})

	a, _ := store.Get("BTCUSDT")
	a.OrderBlocks[0].ID = "changed"
	a.Opportunities[0].Confluence[0].Type = analysis.FactorFVG

	b, _ := store.Get("BTCUSDT")
	if b.OrderBlocks[0].ID != "ob" {
		t.Error("Expected order blocks isolated from caller mutation")
	}
	if b.Opportunities[0].Confluence[0].Type != analysis.FactorOrderBlock {
		t.Error("Expected confluence isolated from caller mutation")
	}
}

func TestStoreEvictBefore(t *testing.T) {
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store.Put(&Analysis{Symbol: "A", Timestamp: base})
	store.Put(&Analysis{Symbol: "B", Timestamp: base.Add(time.Hour)})
	store.Put(&Analysis{Symbol: "C", Timestamp: base.Add(-time.Hour)})

	evicted := store.EvictBefore(base.Add(time.Minute))
	if len(evicted) != 2 || evicted[0] != "A" || evicted[1] != "C" {
		t.Errorf("Expected [A C], got %v", evicted)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 remaining, got %d", store.Len())
	}
	if !store.Delete("B") || store.Delete("B") {
		t.Error("Expected Delete to report presence once")
	}
}

func TestValidateCandles(t *testing.T) {
	good := analysis.Candle{Timestamp: 1, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10}

	tests := []struct {
		name  string
		mut   func(c *analysis.Candle)
		field string
	}{
		{"nan close", func(c *analysis.Candle) { c.Close = math.NaN() }, "close"},
		{"negative volume", func(c *analysis.Candle) { c.Volume = -1 }, "volume"},
		{"high below low", func(c *analysis.Candle) { c.High = 98 }, "high"},
		{"close above high", func(c *analysis.Candle) { c.Close = 102 }, "high"},
		{"open below low", func(c *analysis.Candle) { c.Open = 98 }, "low"},
		{"timestamp regression", func(c *analysis.Candle) { c.Timestamp = 1 }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := good
			second.Timestamp = 2
			tt.mut(&second)

			err := ValidateCandles([]analysis.Candle{good, second})

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Index != 1 {
				t.Errorf("Expected index 1, got %d", ve.Index)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}

	if err := ValidateCandles([]analysis.Candle{good}); err != nil {
		t.Errorf("Expected valid candle, got %v", err)
	}
	if !errors.Is(ValidateCandles(nil), ErrNoCandles) {
		t.Error("Expected ErrNoCandles for empty input")
	}
}
