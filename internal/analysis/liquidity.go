package analysis

// LiquidityFinder clusters equal highs and lows into liquidity pools
type LiquidityFinder struct {
	params Params
}

// NewLiquidityFinder creates a new liquidity pool finder
func NewLiquidityFinder(params Params) *LiquidityFinder {
	return &LiquidityFinder{params: params.WithDefaults()}
}

// FindPools returns sell-side pools from clustered highs followed by buy-side
// pools from clustered lows. Pools already swept within the window are marked
// grabbed.
func (lf *LiquidityFinder) FindPools(symbol string, candles []Candle) []LiquidityPool {
	window := tail(candles, lf.params.LiquidityWindow)
	if len(window) < 2 {
		return nil
	}

	pools := lf.cluster(symbol, window, SellSide, func(c Candle) float64 { return c.High })
	pools = append(pools, lf.cluster(symbol, window, BuySide, func(c Candle) float64 { return c.Low })...)
	return pools
}

func (lf *LiquidityFinder) cluster(symbol string, candles []Candle, poolType PoolType, level func(Candle) float64) []LiquidityPool {
	tol := lf.params.LiquidityTolerance
	var pools []LiquidityPool

	for i := range candles {
		anchor := level(candles[i])

		var members []int
		for j := range candles {
			if withinTolerance(level(candles[j]), anchor, tol) {
				members = append(members, j)
			}
		}
		if len(members) < 2 {
			continue
		}

		var sum, volume float64
		for _, j := range members {
			sum += level(candles[j])
			volume += candles[j].Volume
		}
		price := sum / float64(len(members))

		duplicate := false
		for _, p := range pools {
			if withinTolerance(price, p.Price, tol) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		first, last := candles[members[0]], candles[members[len(members)-1]]
		pool := LiquidityPool{
			ID:          EntityID(symbol, string(poolType), first, 0),
			Price:       price,
			Type:        poolType,
			Size:        float64(len(members)) * lf.params.PoolVolumeUnit,
			Accumulated: volume,
			Efficiency:  clamp(float64(len(members))/5, 0, 1),
			Confluence:  len(members),
			LastTouch:   last.Time(),
		}
		UpdatePoolStatus(&pool, candles)
		pools = append(pools, pool)
	}

	return pools
}

// UpdatePoolStatus marks a pool grabbed once a candle after its last touch
// trades through the level and closes back on the origin side
func UpdatePoolStatus(pool *LiquidityPool, candles []Candle) {
	if pool.Grabbed {
		return
	}

	for _, c := range candles {
		if !c.Time().After(pool.LastTouch) {
			continue
		}

		switch pool.Type {
		case SellSide:
			if c.High > pool.Price && c.Close < pool.Price {
				pool.Grabbed = true
				return
			}
		case BuySide:
			if c.Low < pool.Price && c.Close > pool.Price {
				pool.Grabbed = true
				return
			}
		}
	}
}
