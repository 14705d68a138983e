package analysis

import (
	"testing"
)

func equalHighs() []Candle {
	return []Candle{
		{Timestamp: 60000, Open: 98, High: 100.00, Low: 95, Close: 99, Volume: 1000},
		{Timestamp: 120000, Open: 99, High: 100.05, Low: 90, Close: 92, Volume: 2000},
		{Timestamp: 180000, Open: 92, High: 99.98, Low: 85, Close: 97, Volume: 3000},
	}
}

func TestEqualHighsPool(t *testing.T) {
	finder := NewLiquidityFinder(DefaultParams())

	pools := finder.FindPools("BTCUSDT", equalHighs())

	if len(pools) != 1 {
		t.Fatalf("Expected 1 pool, got %d", len(pools))
	}

	pool := pools[0]
	if pool.Type != SellSide {
		t.Errorf("Expected SELL_SIDE, got %s", pool.Type)
	}
	if pool.Confluence != 3 {
		t.Errorf("Expected confluence 3, got %d", pool.Confluence)
	}
	if !approxEqual(pool.Price, (100.00+100.05+99.98)/3) {
		t.Errorf("Expected cluster mean price, got %f", pool.Price)
	}
	if pool.Size != 3_000_000 {
		t.Errorf("Expected size 3000000, got %f", pool.Size)
	}
	if pool.Accumulated != 6000 {
		t.Errorf("Expected accumulated volume 6000, got %f", pool.Accumulated)
	}
	if pool.Grabbed {
		t.Error("Expected pool not grabbed")
	}
	if !pool.LastTouch.Equal(Candle{Timestamp: 180000}.Time()) {
		t.Errorf("Expected last touch at the third candle, got %v", pool.LastTouch)
	}
}

func TestEqualLowsPool(t *testing.T) {
	finder := NewLiquidityFinder(DefaultParams())

	candles := []Candle{
		{Timestamp: 60000, Open: 102, High: 105, Low: 100.00, Close: 103},
		{Timestamp: 120000, Open: 103, High: 110, Low: 100.02, Close: 108},
	}

	pools := finder.FindPools("BTCUSDT", candles)

	if len(pools) != 1 {
		t.Fatalf("Expected 1 pool, got %d", len(pools))
	}
	if pools[0].Type != BuySide {
		t.Errorf("Expected BUY_SIDE, got %s", pools[0].Type)
	}
	if pools[0].Confluence != 2 {
		t.Errorf("Expected confluence 2, got %d", pools[0].Confluence)
	}
}

func TestNoPoolForDistinctLevels(t *testing.T) {
	finder := NewLiquidityFinder(DefaultParams())

	candles := []Candle{
		{Timestamp: 60000, Open: 98, High: 100, Low: 95, Close: 99},
		{Timestamp: 120000, Open: 99, High: 102, Low: 97, Close: 101},
		{Timestamp: 180000, Open: 101, High: 104, Low: 99, Close: 103},
	}

	if pools := finder.FindPools("BTCUSDT", candles); len(pools) != 0 {
		t.Errorf("Expected 0 pools, got %d", len(pools))
	}
}

func TestPoolGrabbed(t *testing.T) {
	finder := NewLiquidityFinder(DefaultParams())

	// Later candle sweeps above the equal highs and closes back below
	candles := append(equalHighs(), Candle{Timestamp: 240000, Open: 98, High: 100.5, Low: 80, Close: 99.5, Volume: 4000})

	pools := finder.FindPools("BTCUSDT", candles)

	if len(pools) != 1 {
		t.Fatalf("Expected 1 pool, got %d", len(pools))
	}
	if !pools[0].Grabbed {
		t.Error("Expected pool to be grabbed")
	}
}

func TestUpdatePoolStatus(t *testing.T) {
	pool := LiquidityPool{
		Type:      BuySide,
		Price:     100,
		LastTouch: Candle{Timestamp: 60000}.Time(),
	}

	// Trades through but closes below: not a grab
	UpdatePoolStatus(&pool, []Candle{{Timestamp: 120000, Open: 101, High: 101, Low: 98, Close: 99}})
	if pool.Grabbed {
		t.Error("Expected pool not grabbed by a close through the level")
	}

	UpdatePoolStatus(&pool, []Candle{{Timestamp: 180000, Open: 101, High: 102, Low: 99, Close: 101}})
	if !pool.Grabbed {
		t.Error("Expected pool grabbed by a sweep and reclaim")
	}
}

func BenchmarkFindPools(b *testing.B) {
	finder := NewLiquidityFinder(DefaultParams())
	candles := syntheticCandles(500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		finder.FindPools("BTCUSDT", candles)
	}
}
