package smc

import (
	"fmt"
	"math"

	"smc-engine/internal/analysis"
)

// ValidateCandles checks that every candle is finite, non-negative and
// internally consistent, and that timestamps strictly ascend
func ValidateCandles(candles []analysis.Candle) error {
	if len(candles) == 0 {
		return ErrNoCandles
	}

	for i, c := range candles {
		fields := []struct {
			name  string
			value float64
		}{
			{"open", c.Open},
			{"high", c.High},
			{"low", c.Low},
			{"close", c.Close},
			{"volume", c.Volume},
		}
		for _, f := range fields {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				return &ValidationError{Index: i, Field: f.name, Reason: "is not a finite number"}
			}
			if f.value < 0 {
				return &ValidationError{Index: i, Field: f.name, Reason: "is negative"}
			}
		}

		if c.High < c.Low {
			return &ValidationError{Index: i, Field: "high", Reason: fmt.Sprintf("%g is below low %g", c.High, c.Low)}
		}
		if c.Open > c.High || c.Close > c.High {
			return &ValidationError{Index: i, Field: "high", Reason: "is below open or close"}
		}
		if c.Open < c.Low || c.Close < c.Low {
			return &ValidationError{Index: i, Field: "low", Reason: "is above open or close"}
		}

		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return &ValidationError{Index: i, Field: "timestamp", Reason: fmt.Sprintf("%d does not follow %d", c.Timestamp, candles[i-1].Timestamp)}
		}
	}

	return nil
}

// MergeVolumes folds a parallel volume series into a copy of candles
func MergeVolumes(candles []analysis.Candle, volumes []float64) ([]analysis.Candle, error) {
	if len(candles) != len(volumes) {
		idx := len(candles)
		if len(volumes) < idx {
			idx = len(volumes)
		}
		return nil, &ValidationError{
			Index:  idx,
			Field:  "volume",
			Reason: fmt.Sprintf("series length %d does not match %d candles", len(volumes), len(candles)),
		}
	}

	merged := make([]analysis.Candle, len(candles))
	copy(merged, candles)
	for i := range merged {
		merged[i].Volume = volumes[i]
	}
	return merged, nil
}
