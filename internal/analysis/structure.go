package analysis

import (
	"time"
)

// SwingPoint represents a significant price level
type SwingPoint struct {
	Price       float64
	CandleIndex int
	Type        string // "high" or "low"
}

// StructureAnalyzer classifies trend and phase from recent swing points
type StructureAnalyzer struct {
	params Params
	volume *VolumeAnalyzer
}

// NewStructureAnalyzer creates a new market structure analyzer
func NewStructureAnalyzer(params Params) *StructureAnalyzer {
	params = params.WithDefaults()
	return &StructureAnalyzer{
		params: params,
		volume: NewVolumeAnalyzer(params.RecentVolumePeriod),
	}
}

// Analyze classifies the most recent StructureWindow candles. It never fails:
// too little data yields a sideways, unconfirmed structure.
func (sa *StructureAnalyzer) Analyze(candles []Candle, timeframe string, now time.Time) MarketStructure {
	window := tail(candles, sa.params.StructureWindow)

	structure := MarketStructure{
		Trend:      TrendSideways,
		Phase:      PhaseAccumulation,
		Timeframe:  timeframe,
		LastUpdate: now,
	}

	highs := sa.FindSwingHighs(window)
	lows := sa.FindSwingLows(window)

	structure.Trend, structure.Strength = sa.DetermineTrend(highs, lows)
	structure.Confirmation = structure.Strength > sa.params.ConfirmationLevel
	structure.Phase = sa.DeterminePhase(window, structure.Trend)

	return structure
}

// FindSwingHighs identifies candles whose high strictly exceeds the highs of
// the SwingLookback candles on each side
func (sa *StructureAnalyzer) FindSwingHighs(candles []Candle) []SwingPoint {
	var swingHighs []SwingPoint
	lookback := sa.params.SwingLookback

	for i := lookback; i < len(candles)-lookback; i++ {
		isSwingHigh := true
		currentHigh := candles[i].High

		for j := i - lookback; j <= i+lookback; j++ {
			if j != i && candles[j].High >= currentHigh {
				isSwingHigh = false
				break
			}
		}

		if isSwingHigh {
			swingHighs = append(swingHighs, SwingPoint{
				Price:       currentHigh,
				CandleIndex: i,
				Type:        "high",
			})
		}
	}

	return swingHighs
}

// FindSwingLows identifies candles whose low is strictly below the lows of
// the SwingLookback candles on each side
func (sa *StructureAnalyzer) FindSwingLows(candles []Candle) []SwingPoint {
	var swingLows []SwingPoint
	lookback := sa.params.SwingLookback

	for i := lookback; i < len(candles)-lookback; i++ {
		isSwingLow := true
		currentLow := candles[i].Low

		for j := i - lookback; j <= i+lookback; j++ {
			if j != i && candles[j].Low <= currentLow {
				isSwingLow = false
				break
			}
		}

		if isSwingLow {
			swingLows = append(swingLows, SwingPoint{
				Price:       currentLow,
				CandleIndex: i,
				Type:        "low",
			})
		}
	}

	return swingLows
}

// DetermineTrend compares the two most recent swing highs and lows
func (sa *StructureAnalyzer) DetermineTrend(highs, lows []SwingPoint) (Trend, float64) {
	if len(highs) < 2 || len(lows) < 2 {
		return TrendSideways, 0
	}

	prevHigh, lastHigh := highs[len(highs)-2].Price, highs[len(highs)-1].Price
	prevLow, lastLow := lows[len(lows)-2].Price, lows[len(lows)-1].Price

	switch {
	case lastHigh > prevHigh && lastLow > prevLow:
		return TrendUp, sa.params.TrendStrength
	case lastHigh < prevHigh && lastLow < prevLow:
		return TrendDown, sa.params.TrendStrength
	default:
		return TrendSideways, 0
	}
}

// DeterminePhase maps the trend plus volume and volatility onto a market phase
func (sa *StructureAnalyzer) DeterminePhase(candles []Candle, trend Trend) Phase {
	switch trend {
	case TrendUp:
		return PhaseMarkup
	case TrendDown:
		return PhaseMarkdown
	}

	profile := sa.volume.Profile(candles)
	if profile.VolumeRatio > sa.params.VolumeSpikeRatio && profile.Volatility > sa.params.DistributionVolatility {
		return PhaseDistribution
	}
	return PhaseAccumulation
}
