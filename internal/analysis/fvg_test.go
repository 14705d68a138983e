package analysis

import (
	"testing"
)

// TestDetectBullishFVG tests the gap-up scenario
func TestDetectBullishFVG(t *testing.T) {
	detector := NewFVGDetector(DefaultParams())

	candles := []Candle{
		// Candle A: High at 100
		{Timestamp: 1000000, Open: 98, High: 100, Low: 97, Close: 100, Volume: 1000},
		// Candle B: bullish, Low at 101 (gap between 100 and 101)
		{Timestamp: 2000000, Open: 101.5, High: 104, Low: 101, Close: 103, Volume: 1500},
		// Candle C: continuation
		{Timestamp: 3000000, Open: 103, High: 105, Low: 102, Close: 104, Volume: 1200},
	}

	fvgs := detector.DetectFVGs("BTCUSDT", candles)

	if len(fvgs) != 1 {
		t.Fatalf("Expected 1 FVG, got %d", len(fvgs))
	}

	fvg := fvgs[0]

	if fvg.Type != BullishFVG {
		t.Errorf("Expected BullishFVG, got %s", fvg.Type)
	}
	if fvg.Lower != 100 {
		t.Errorf("Expected Lower 100, got %f", fvg.Lower)
	}
	if fvg.Upper != 101 {
		t.Errorf("Expected Upper 101, got %f", fvg.Upper)
	}
	if fvg.Middle != 100.5 {
		t.Errorf("Expected Middle 100.5, got %f", fvg.Middle)
	}
	if fvg.Strength != 0.01 {
		t.Errorf("Expected Strength 0.01, got %f", fvg.Strength)
	}
	if fvg.Filled || fvg.PartialFill != 0 {
		t.Error("FVG should not be marked as filled initially")
	}
	if fvg.Volume != 1500 {
		t.Errorf("Expected Volume 1500, got %f", fvg.Volume)
	}
}

// TestDetectBearishFVG tests detection of bearish Fair Value Gaps
func TestDetectBearishFVG(t *testing.T) {
	detector := NewFVGDetector(DefaultParams())

	candles := []Candle{
		// Candle 1: Low at 100
		{Timestamp: 1000000, Open: 105, High: 106, Low: 100, Close: 102, Volume: 1000},
		// Candle 2: bearish, High at 99 (gap between 99 and 100)
		{Timestamp: 2000000, Open: 98.5, High: 99, Low: 95, Close: 96, Volume: 1000},
		{Timestamp: 3000000, Open: 96, High: 97, Low: 92, Close: 94, Volume: 1000},
	}

	fvgs := detector.DetectFVGs("BTCUSDT", candles)

	if len(fvgs) != 1 {
		t.Fatalf("Expected 1 FVG, got %d", len(fvgs))
	}

	fvg := fvgs[0]

	if fvg.Type != BearishFVG {
		t.Errorf("Expected BearishFVG, got %s", fvg.Type)
	}
	if fvg.Lower != 99 {
		t.Errorf("Expected Lower 99, got %f", fvg.Lower)
	}
	if fvg.Upper != 100 {
		t.Errorf("Expected Upper 100, got %f", fvg.Upper)
	}
}

// TestNoFVGDetection tests that no FVG is detected when candles overlap
func TestNoFVGDetection(t *testing.T) {
	detector := NewFVGDetector(DefaultParams())

	candles := []Candle{
		// Overlapping candles - no gap
		{Timestamp: 1000000, Open: 95, High: 100, Low: 94, Close: 98},
		{Timestamp: 2000000, Open: 98, High: 102, Low: 97, Close: 100},
		{Timestamp: 3000000, Open: 100, High: 104, Low: 99, Close: 102},
	}

	fvgs := detector.DetectFVGs("BTCUSDT", candles)

	if len(fvgs) != 0 {
		t.Errorf("Expected 0 FVGs for overlapping candles, got %d", len(fvgs))
	}
}

// TestFVGBelowMinimumStrength tests that small gaps are discarded
func TestFVGBelowMinimumStrength(t *testing.T) {
	detector := NewFVGDetector(DefaultParams())

	candles := []Candle{
		{Timestamp: 1000000, Open: 98, High: 100, Low: 97, Close: 100},
		// 0.2% gap, below the 0.5% threshold
		{Timestamp: 2000000, Open: 100.3, High: 101, Low: 100.2, Close: 100.9},
		{Timestamp: 3000000, Open: 100.9, High: 102, Low: 100.5, Close: 101.5},
	}

	if fvgs := detector.DetectFVGs("BTCUSDT", candles); len(fvgs) != 0 {
		t.Errorf("Expected 0 FVGs below minimum strength, got %d", len(fvgs))
	}
}

// TestFVGInvariants checks bounds, strength floor and the rolling cap
func TestFVGInvariants(t *testing.T) {
	detector := NewFVGDetector(DefaultParams())

	// Staircase of gap-ups produces far more gaps than the cap
	var candles []Candle
	price := 100.0
	for i := 0; i < 60; i++ {
		candles = append(candles, Candle{
			Timestamp: int64(i+1) * 60000,
			Open:      price + 0.2,
			High:      price + 2,
			Low:       price,
			Close:     price + 1.8,
			Volume:    1000,
		})
		price += 5
	}

	fvgs := detector.DetectFVGs("ETHUSDT", candles)

	if len(fvgs) != 15 {
		t.Fatalf("Expected 15 FVGs after cap, got %d", len(fvgs))
	}
	for _, fvg := range fvgs {
		if fvg.Upper <= fvg.Lower {
			t.Errorf("Expected upper > lower, got %f <= %f", fvg.Upper, fvg.Lower)
		}
		if fvg.Strength <= 0.005 {
			t.Errorf("Expected strength > 0.005, got %f", fvg.Strength)
		}
	}

	// Cap keeps the most recent gaps
	last := fvgs[len(fvgs)-1]
	if !last.Timestamp.Equal(candles[len(candles)-2].Time()) {
		t.Errorf("Expected newest FVG at %v, got %v", candles[len(candles)-2].Time(), last.Timestamp)
	}
}

// TestFVGIDsAreDeterministic tests that detection yields stable ids
func TestFVGIDsAreDeterministic(t *testing.T) {
	detector := NewFVGDetector(DefaultParams())

	candles := []Candle{
		{Timestamp: 1000000, Open: 98, High: 100, Low: 97, Close: 100},
		{Timestamp: 2000000, Open: 101.5, High: 104, Low: 101, Close: 103},
		{Timestamp: 3000000, Open: 103, High: 105, Low: 102, Close: 104},
	}

	first := detector.DetectFVGs("BTCUSDT", candles)
	second := detector.DetectFVGs("BTCUSDT", candles)
	other := detector.DetectFVGs("ETHUSDT", candles)

	if first[0].ID != second[0].ID {
		t.Errorf("Expected identical ids, got %s and %s", first[0].ID, second[0].ID)
	}
	if first[0].ID == other[0].ID {
		t.Error("Expected ids to differ across symbols")
	}
}

// TestIsPriceInFVG tests price containment
func TestIsPriceInFVG(t *testing.T) {
	fvg := FairValueGap{
		Type:  BullishFVG,
		Upper: 105,
		Lower: 100,
	}

	tests := []struct {
		price    float64
		expected bool
	}{
		{102.5, true}, // Inside FVG
		{100, true},   // At bottom
		{105, true},   // At top
		{99, false},   // Below FVG
		{106, false},  // Above FVG
	}

	for _, tt := range tests {
		result := IsPriceInFVG(tt.price, fvg)
		if result != tt.expected {
			t.Errorf("IsPriceInFVG(%f) = %v, expected %v", tt.price, result, tt.expected)
		}
	}
}

// TestUpdateFVGStatus tests partial and full mitigation
func TestUpdateFVGStatus(t *testing.T) {
	base := FairValueGap{
		Type:      BullishFVG,
		Upper:     101,
		Lower:     100,
		Timestamp: Candle{Timestamp: 2000000}.Time(),
	}

	t.Run("partial fill", func(t *testing.T) {
		fvg := base
		UpdateFVGStatus(&fvg, []Candle{
			{Timestamp: 3000000, Open: 103, High: 104, Low: 100.5, Close: 103},
		})
		if fvg.PartialFill != 0.5 {
			t.Errorf("Expected PartialFill 0.5, got %f", fvg.PartialFill)
		}
		if fvg.Filled {
			t.Error("Expected FVG not filled")
		}
	})

	t.Run("full fill", func(t *testing.T) {
		fvg := base
		UpdateFVGStatus(&fvg, []Candle{
			{Timestamp: 3000000, Open: 103, High: 104, Low: 100.5, Close: 103},
			{Timestamp: 4000000, Open: 103, High: 103, Low: 99.5, Close: 100},
		})
		if !fvg.Filled {
			t.Error("Expected FVG to be filled")
		}
		if fvg.PartialFill != 1 {
			t.Errorf("Expected PartialFill 1, got %f", fvg.PartialFill)
		}
	})

	t.Run("ignores earlier candles", func(t *testing.T) {
		fvg := base
		UpdateFVGStatus(&fvg, []Candle{
			{Timestamp: 1000000, Open: 98, High: 100, Low: 97, Close: 100},
		})
		if fvg.PartialFill != 0 {
			t.Errorf("Expected PartialFill 0, got %f", fvg.PartialFill)
		}
	})

	t.Run("bearish gap", func(t *testing.T) {
		fvg := FairValueGap{
			Type:      BearishFVG,
			Upper:     100,
			Lower:     99,
			Timestamp: Candle{Timestamp: 2000000}.Time(),
		}
		UpdateFVGStatus(&fvg, []Candle{
			{Timestamp: 3000000, Open: 97, High: 100.5, Low: 96, Close: 99.8},
		})
		if !fvg.Filled {
			t.Error("Expected bearish FVG to be filled")
		}
	})
}

// BenchmarkDetectFVGs benchmarks FVG detection
func BenchmarkDetectFVGs(b *testing.B) {
	detector := NewFVGDetector(DefaultParams())
	candles := syntheticCandles(500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		detector.DetectFVGs("BTCUSDT", candles)
	}
}
