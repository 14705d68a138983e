package analysis

import (
	"testing"
)

// dojiCandles builds n neutral candles (open == close) that never form blocks
func dojiCandles(n int) []Candle {
	candles := make([]Candle, n)
	for i := range candles {
		candles[i] = Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1000,
		}
	}
	return candles
}

func TestDetectBullishOrderBlock(t *testing.T) {
	detector := NewOrderBlockDetector(DefaultParams())

	candles := dojiCandles(12)
	// Bearish candle then a bullish volume spike with continuation
	candles[4] = Candle{Timestamp: candles[4].Timestamp, Open: 101, High: 101.5, Low: 98.8, Close: 99, Volume: 1000}
	candles[5] = Candle{Timestamp: candles[5].Timestamp, Open: 99, High: 102.5, Low: 98.5, Close: 102, Volume: 2000}
	candles[6] = Candle{Timestamp: candles[6].Timestamp, Open: 102, High: 103.5, Low: 101.5, Close: 103, Volume: 1000}

	blocks := detector.Detect("BTCUSDT", candles)

	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}

	ob := blocks[0]
	if ob.Type != BullishOB {
		t.Errorf("Expected BULLISH_OB, got %s", ob.Type)
	}
	if ob.Price != candles[5].Low {
		t.Errorf("Expected price %f, got %f", candles[5].Low, ob.Price)
	}
	if ob.Top != 102.5 || ob.Bottom != 98.5 {
		t.Errorf("Expected range 98.5-102.5, got %f-%f", ob.Bottom, ob.Top)
	}
	if ob.InstitutionalFlow != FlowBuy {
		t.Errorf("Expected BUY flow, got %s", ob.InstitutionalFlow)
	}
	if ob.Reliability != 0.8 {
		t.Errorf("Expected reliability 0.8, got %f", ob.Reliability)
	}
	if ob.Tested || ob.Breached {
		t.Error("New order block should be untested and unbreached")
	}
	if !ob.Timestamp.Equal(candles[5].Time()) {
		t.Errorf("Expected timestamp %v, got %v", candles[5].Time(), ob.Timestamp)
	}
}

func TestDetectBearishOrderBlock(t *testing.T) {
	detector := NewOrderBlockDetector(DefaultParams())

	candles := dojiCandles(12)
	candles[4] = Candle{Timestamp: candles[4].Timestamp, Open: 99, High: 101.2, Low: 98.5, Close: 101, Volume: 1000}
	candles[5] = Candle{Timestamp: candles[5].Timestamp, Open: 101, High: 101.5, Low: 97.5, Close: 98, Volume: 2500}
	candles[6] = Candle{Timestamp: candles[6].Timestamp, Open: 98, High: 98.5, Low: 96.5, Close: 97, Volume: 1000}

	blocks := detector.Detect("BTCUSDT", candles)

	if len(blocks) != 1 {
		t.Fatalf("Expected 1 order block, got %d", len(blocks))
	}
	if blocks[0].Type != BearishOB {
		t.Errorf("Expected BEARISH_OB, got %s", blocks[0].Type)
	}
	if blocks[0].Price != 101.5 {
		t.Errorf("Expected price 101.5, got %f", blocks[0].Price)
	}
	if blocks[0].InstitutionalFlow != FlowSell {
		t.Errorf("Expected SELL flow, got %s", blocks[0].InstitutionalFlow)
	}
}

func TestOrderBlockRequiresContinuation(t *testing.T) {
	detector := NewOrderBlockDetector(DefaultParams())

	candles := dojiCandles(12)
	candles[4] = Candle{Timestamp: candles[4].Timestamp, Open: 101, High: 101.5, Low: 98.8, Close: 99, Volume: 1000}
	candles[5] = Candle{Timestamp: candles[5].Timestamp, Open: 99, High: 102.5, Low: 98.5, Close: 102, Volume: 2000}
	// Next candle closes below the spike close
	candles[6] = Candle{Timestamp: candles[6].Timestamp, Open: 102, High: 102.2, Low: 100, Close: 100.5, Volume: 1000}

	if blocks := detector.Detect("BTCUSDT", candles); len(blocks) != 0 {
		t.Errorf("Expected 0 order blocks without continuation, got %d", len(blocks))
	}
}

func TestOrderBlockEdgesIgnored(t *testing.T) {
	detector := NewOrderBlockDetector(DefaultParams())

	candles := dojiCandles(8)
	// Qualifying pattern at index 1 sits inside the excluded edge
	candles[0] = Candle{Timestamp: candles[0].Timestamp, Open: 101, High: 101.5, Low: 98.8, Close: 99, Volume: 1000}
	candles[1] = Candle{Timestamp: candles[1].Timestamp, Open: 99, High: 102.5, Low: 98.5, Close: 102, Volume: 2000}
	candles[2] = Candle{Timestamp: candles[2].Timestamp, Open: 102, High: 103.5, Low: 101.5, Close: 103, Volume: 1000}

	if blocks := detector.Detect("BTCUSDT", candles); len(blocks) != 0 {
		t.Errorf("Expected 0 order blocks at the edge, got %d", len(blocks))
	}
}

func TestOrderBlockStrength(t *testing.T) {
	detector := NewOrderBlockDetector(DefaultParams())

	tests := []struct {
		name     string
		candle   Candle
		expected float64
	}{
		{"zero range", Candle{Open: 100, High: 100, Low: 100, Close: 100, Volume: 5e6}, 0},
		{"clamped", Candle{Open: 100, High: 110, Low: 100, Close: 109, Volume: 9e6}, 1},
		{"scaled", Candle{Open: 100, High: 104, Low: 100, Close: 102, Volume: 1e6}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detector.Strength(tt.candle); !approxEqual(got, tt.expected) {
				t.Errorf("Expected strength %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestOrderBlockCapAndBounds(t *testing.T) {
	detector := NewOrderBlockDetector(DefaultParams())

	// Repeating bearish / bullish spike / continuation triplets
	var candles []Candle
	price := 100.0
	for i := 0; i < 120; i++ {
		ts := int64(i+1) * 60000
		switch i % 3 {
		case 0:
			candles = append(candles, Candle{Timestamp: ts, Open: price + 1, High: price + 1.5, Low: price - 0.5, Close: price, Volume: 1e6})
		case 1:
			candles = append(candles, Candle{Timestamp: ts, Open: price, High: price + 2.5, Low: price - 0.5, Close: price + 2, Volume: 4e6})
		case 2:
			candles = append(candles, Candle{Timestamp: ts, Open: price + 2, High: price + 3.5, Low: price + 1.5, Close: price + 3, Volume: 1e6})
			price += 1
		}
	}

	blocks := detector.Detect("ETHUSDT", candles)

	if len(blocks) != 20 {
		t.Fatalf("Expected 20 order blocks after cap, got %d", len(blocks))
	}
	for _, ob := range blocks {
		if ob.Strength < 0 || ob.Strength > 1 {
			t.Errorf("Expected strength in [0,1], got %f", ob.Strength)
		}
	}
}

func TestUpdateOrderBlockStatus(t *testing.T) {
	base := OrderBlock{
		Type:      BullishOB,
		Price:     98.5,
		Top:       102.5,
		Bottom:    98.5,
		Timestamp: Candle{Timestamp: 60000}.Time(),
	}

	t.Run("tested", func(t *testing.T) {
		ob := base
		UpdateOrderBlockStatus(&ob, []Candle{
			{Timestamp: 120000, Open: 104, High: 105, Low: 102, Close: 104},
		})
		if !ob.Tested {
			t.Error("Expected order block to be tested")
		}
		if ob.Breached {
			t.Error("Expected order block not breached")
		}
	})

	t.Run("breached", func(t *testing.T) {
		ob := base
		UpdateOrderBlockStatus(&ob, []Candle{
			{Timestamp: 120000, Open: 100, High: 100.5, Low: 97, Close: 98},
		})
		if !ob.Tested || !ob.Breached {
			t.Errorf("Expected tested and breached, got tested=%v breached=%v", ob.Tested, ob.Breached)
		}
	})

	t.Run("untouched", func(t *testing.T) {
		ob := base
		UpdateOrderBlockStatus(&ob, []Candle{
			{Timestamp: 120000, Open: 104, High: 106, Low: 103, Close: 105},
		})
		if ob.Tested || ob.Breached {
			t.Error("Expected order block untouched")
		}
	})
}

func BenchmarkDetectOrderBlocks(b *testing.B) {
	detector := NewOrderBlockDetector(DefaultParams())
	candles := syntheticCandles(500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.Detect("BTCUSDT", candles)
	}
}
