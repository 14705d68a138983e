package analysis

// BreakDetector finds closes of price beyond recent extremes on rising volume
type BreakDetector struct {
	params Params
}

// NewBreakDetector creates a new structure break detector
func NewBreakDetector(params Params) *BreakDetector {
	return &BreakDetector{params: params.WithDefaults()}
}

// Detect scans the most recent BreakWindow candles. A break against the
// prevailing trend is a CHoCH, anything else a BOS.
func (bd *BreakDetector) Detect(symbol string, candles []Candle, trend Trend) []BreakOfStructure {
	window := tail(candles, bd.params.BreakWindow)
	lookback := bd.params.BreakLookback

	var breaks []BreakOfStructure
	for i := lookback; i < len(window); i++ {
		cur, prev := window[i], window[i-1]
		if !IsVolumeSpike(cur, prev, bd.params.BreakVolumeRatio) {
			continue
		}

		recentHigh, recentLow := window[i-lookback].High, window[i-lookback].Low
		for _, c := range window[i-lookback : i] {
			if c.High > recentHigh {
				recentHigh = c.High
			}
			if c.Low < recentLow {
				recentLow = c.Low
			}
		}

		var next *Candle
		if i+1 < len(window) {
			next = &window[i+1]
		}

		if cur.High > recentHigh && recentHigh > 0 {
			b := bd.newBreak(symbol, cur, Bullish, trend, recentHigh, (cur.High-recentHigh)/recentHigh)
			b.FollowThrough = next != nil && next.Close > cur.Close
			breaks = append(breaks, b)
		}
		if cur.Low < recentLow && recentLow > 0 {
			b := bd.newBreak(symbol, cur, Bearish, trend, recentLow, (recentLow-cur.Low)/recentLow)
			b.FollowThrough = next != nil && next.Close < cur.Close
			breaks = append(breaks, b)
		}
	}

	return keepLast(breaks, bd.params.MaxBreaks)
}

func (bd *BreakDetector) newBreak(symbol string, c Candle, dir Direction, trend Trend, level, strength float64) BreakOfStructure {
	breakType := BOS
	if (dir == Bullish && trend == TrendDown) || (dir == Bearish && trend == TrendUp) {
		breakType = CHoCH
	}
	return BreakOfStructure{
		ID:             EntityID(symbol, "BREAK_"+string(dir), c, 0),
		Type:           breakType,
		Direction:      dir,
		Strength:       clamp(strength, 0, 1),
		ConfirmedLevel: level,
		Volume:         c.Volume,
		Timestamp:      c.Time(),
	}
}
