package analysis

import (
	"math"

	"github.com/markcheno/go-talib"
)

// VolumeAnalyzer provides the volume and volatility statistics used by the
// structure phase heuristic
type VolumeAnalyzer struct {
	recentPeriod int
}

// VolumeProfile summarises volume activity over a window
type VolumeProfile struct {
	RecentAverage float64 `json:"recent_average"`
	WindowAverage float64 `json:"window_average"`
	VolumeRatio   float64 `json:"volume_ratio"` // Recent / Window
	Volatility    float64 `json:"volatility"`   // stdev of log returns
}

// NewVolumeAnalyzer creates a new volume analyzer
func NewVolumeAnalyzer(recentPeriod int) *VolumeAnalyzer {
	if recentPeriod <= 0 {
		recentPeriod = 10
	}
	return &VolumeAnalyzer{
		recentPeriod: recentPeriod,
	}
}

// Profile computes the volume ratio and volatility for the given window
func (va *VolumeAnalyzer) Profile(candles []Candle) VolumeProfile {
	if len(candles) == 0 {
		return VolumeProfile{}
	}

	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}

	profile := VolumeProfile{
		WindowAverage: lastSMA(volumes, len(volumes)),
		RecentAverage: lastSMA(volumes, va.recentPeriod),
		Volatility:    va.Volatility(candles),
	}
	if profile.WindowAverage > 0 {
		profile.VolumeRatio = profile.RecentAverage / profile.WindowAverage
	}
	return profile
}

// Volatility returns the population standard deviation of log returns
func (va *VolumeAnalyzer) Volatility(candles []Candle) float64 {
	returns := make([]float64, 0, len(candles))
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}

	sd := talib.StdDev(returns, len(returns), 1.0)
	return sd[len(sd)-1]
}

// IsVolumeSpike reports whether the current candle's volume exceeds the
// previous candle's by more than ratio
func IsVolumeSpike(current, previous Candle, ratio float64) bool {
	return current.Volume > previous.Volume*ratio
}

// lastSMA returns the simple moving average of the final period values
func lastSMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	if period < 2 {
		return values[len(values)-1]
	}
	sma := talib.Sma(values, period)
	return sma[len(sma)-1]
}
