package analysis

// FVGDetector detects Fair Value Gaps in candlestick data
type FVGDetector struct {
	minStrength float64 // Minimum gap size relative to the prior close
	window      int
	max         int
}

// NewFVGDetector creates a new FVG detector
func NewFVGDetector(params Params) *FVGDetector {
	params = params.WithDefaults()
	return &FVGDetector{
		minStrength: params.FVGMinStrength,
		window:      params.FVGWindow,
		max:         params.MaxFVGs,
	}
}

// DetectFVGs identifies Fair Value Gaps in the most recent window of candles
func (fd *FVGDetector) DetectFVGs(symbol string, candles []Candle) []FairValueGap {
	window := tail(candles, fd.window)
	if len(window) < 3 {
		return nil
	}

	var fvgs []FairValueGap

	// Each gap is judged on a (prev, current, next) triple
	for i := 1; i < len(window)-1; i++ {
		prev := window[i-1]
		cur := window[i]

		// Bullish: current candle opened above everything prev traded
		if prev.High < cur.Low && cur.IsBullish() {
			if fvg, ok := fd.newGap(symbol, prev, cur, BullishFVG, prev.High, cur.Low); ok {
				fvgs = append(fvgs, fvg)
			}
		}

		// Bearish: current candle traded entirely below prev
		if prev.Low > cur.High && cur.IsBearish() {
			if fvg, ok := fd.newGap(symbol, prev, cur, BearishFVG, cur.High, prev.Low); ok {
				fvgs = append(fvgs, fvg)
			}
		}
	}

	return keepLast(fvgs, fd.max)
}

func (fd *FVGDetector) newGap(symbol string, prev, cur Candle, fvgType FVGType, lower, upper float64) (FairValueGap, bool) {
	if prev.Close <= 0 || upper <= lower {
		return FairValueGap{}, false
	}

	gap := upper - lower
	strength := gap / prev.Close
	if strength <= fd.minStrength {
		return FairValueGap{}, false
	}

	var efficiency float64
	if rng := cur.Range(); rng > 0 {
		efficiency = clamp(gap/rng, 0, 1)
	}

	return FairValueGap{
		ID:         EntityID(symbol, string(fvgType), cur, 0),
		Upper:      upper,
		Lower:      lower,
		Middle:     (upper + lower) / 2,
		Type:       fvgType,
		Strength:   strength,
		Volume:     cur.Volume,
		Efficiency: efficiency,
		Timestamp:  cur.Time(),
	}, true
}

// IsPriceInFVG checks if current price is within an FVG zone
func IsPriceInFVG(price float64, fvg FairValueGap) bool {
	return price >= fvg.Lower && price <= fvg.Upper
}

// UpdateFVGStatus records how much of the gap later price action has retraced.
// Candles at or before the gap's own candle are ignored.
func UpdateFVGStatus(fvg *FairValueGap, candles []Candle) {
	if fvg.Filled {
		return // Already filled
	}

	gap := fvg.Upper - fvg.Lower
	if gap <= 0 {
		return
	}

	for _, candle := range candles {
		if !candle.Time().After(fvg.Timestamp) {
			continue
		}

		var retraced float64
		if fvg.Type == BullishFVG {
			// Price coming back down into the gap
			retraced = (fvg.Upper - candle.Low) / gap
		} else {
			// Price coming back up into the gap
			retraced = (candle.High - fvg.Lower) / gap
		}

		if retraced > fvg.PartialFill {
			fvg.PartialFill = clamp(retraced, 0, 1)
		}
		if fvg.PartialFill >= 1 {
			fvg.Filled = true
			return
		}
	}
}
