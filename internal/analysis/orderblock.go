package analysis

// OrderBlockDetector finds high-volume candles that preceded a continuation
type OrderBlockDetector struct {
	params Params
}

// NewOrderBlockDetector creates a new order block detector
func NewOrderBlockDetector(params Params) *OrderBlockDetector {
	return &OrderBlockDetector{params: params.WithDefaults()}
}

// Detect scans the most recent OrderBlockWindow candles and returns at most
// MaxOrderBlocks blocks, oldest first
func (od *OrderBlockDetector) Detect(symbol string, candles []Candle) []OrderBlock {
	window := tail(candles, od.params.OrderBlockWindow)
	edge := od.params.OrderBlockEdge
	if edge < 1 {
		edge = 1
	}

	var blocks []OrderBlock
	for i := edge; i < len(window)-edge; i++ {
		prev, cur, next := window[i-1], window[i], window[i+1]

		if !IsVolumeSpike(cur, prev, od.params.OrderBlockVolumeRatio) {
			continue
		}

		switch {
		case cur.IsBullish() && prev.IsBearish() && next.Close > cur.Close:
			blocks = append(blocks, od.newBlock(symbol, cur, BullishOB))
		case cur.IsBearish() && prev.IsBullish() && next.Close < cur.Close:
			blocks = append(blocks, od.newBlock(symbol, cur, BearishOB))
		}
	}

	return keepLast(blocks, od.params.MaxOrderBlocks)
}

func (od *OrderBlockDetector) newBlock(symbol string, c Candle, obType OrderBlockType) OrderBlock {
	ob := OrderBlock{
		ID:          EntityID(symbol, string(obType), c, 0),
		Type:        obType,
		Strength:    od.Strength(c),
		Volume:      c.Volume,
		Timestamp:   c.Time(),
		Top:         c.High,
		Bottom:      c.Low,
		Reliability: od.params.OrderBlockReliability,
	}
	if obType == BullishOB {
		ob.Price = c.Low
		ob.InstitutionalFlow = FlowBuy
	} else {
		ob.Price = c.High
		ob.InstitutionalFlow = FlowSell
	}
	return ob
}

// Strength scores a candle by body-to-range ratio weighted by its volume,
// clamped to [0,1]
func (od *OrderBlockDetector) Strength(c Candle) float64 {
	rng := c.Range()
	if rng <= 0 {
		return 0
	}
	weight := c.Volume / od.params.OrderBlockVolumeUnit
	if weight > od.params.OrderBlockVolumeCap {
		weight = od.params.OrderBlockVolumeCap
	}
	return clamp(c.Body()/rng*weight, 0, 1)
}

// UpdateOrderBlockStatus marks a block tested once later price trades back
// into its range and breached once a later candle closes beyond its far side.
// Candles at or before the block's own timestamp are ignored.
func UpdateOrderBlockStatus(ob *OrderBlock, candles []Candle) {
	if ob.Breached {
		return
	}

	for _, c := range candles {
		if !c.Time().After(ob.Timestamp) {
			continue
		}

		if c.Low <= ob.Top && c.High >= ob.Bottom {
			ob.Tested = true
		}

		if ob.IsBullish() && c.Close < ob.Bottom {
			ob.Breached = true
			return
		}
		if !ob.IsBullish() && c.Close > ob.Top {
			ob.Breached = true
			return
		}
	}
}
