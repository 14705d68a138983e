package analysis

import (
	"fmt"
)

// FlowAnalyzer aggregates detected footprints into a directional read
type FlowAnalyzer struct {
	params Params
}

// NewFlowAnalyzer creates a new institutional flow analyzer
func NewFlowAnalyzer(params Params) *FlowAnalyzer {
	return &FlowAnalyzer{params: params.WithDefaults()}
}

// Analyze builds the flow from a single run's detections. Direction comes from
// order blocks and FVGs; pools and breaks only feed the characteristics.
func (fa *FlowAnalyzer) Analyze(blocks []OrderBlock, fvgs []FairValueGap, pools []LiquidityPool, breaks []BreakOfStructure) InstitutionalFlow {
	var bullish, bearish int
	for _, ob := range blocks {
		if ob.Type == BullishOB {
			bullish++
		} else {
			bearish++
		}
	}
	for _, fvg := range fvgs {
		if fvg.Type == BullishFVG {
			bullish++
		} else {
			bearish++
		}
	}

	grabs := 0
	for _, p := range pools {
		if p.Grabbed {
			grabs++
		}
	}

	flow := InstitutionalFlow{
		Direction: fa.direction(bullish, bearish),
		Characteristics: FlowCharacteristics{
			OrderBlocks:      len(blocks),
			FVGs:             len(fvgs),
			LiquidityGrabs:   grabs,
			StructuralBreaks: len(breaks),
		},
		SmartMoneyActivities: []string{},
	}

	dominant := bullish
	if bearish > dominant {
		dominant = bearish
	}
	flow.Strength = clamp(float64(dominant)/fa.params.FlowSignalScale, 0, 1)

	presence := 0.0
	if len(blocks) > 0 {
		presence = 1
	}
	flow.Confidence = clamp(0.8*flow.Strength+0.2*presence, 0, 1)

	if bullish > 0 {
		flow.SmartMoneyActivities = append(flow.SmartMoneyActivities, fmt.Sprintf("%d bullish footprints (order blocks and gaps)", bullish))
	}
	if bearish > 0 {
		flow.SmartMoneyActivities = append(flow.SmartMoneyActivities, fmt.Sprintf("%d bearish footprints (order blocks and gaps)", bearish))
	}
	if grabs > 0 {
		flow.SmartMoneyActivities = append(flow.SmartMoneyActivities, fmt.Sprintf("%d liquidity pools swept", grabs))
	}
	if len(breaks) > 0 {
		flow.SmartMoneyActivities = append(flow.SmartMoneyActivities, fmt.Sprintf("%d structure breaks", len(breaks)))
	}

	return flow
}

func (fa *FlowAnalyzer) direction(bullish, bearish int) Direction {
	ratio := fa.params.FlowDominanceRatio
	switch {
	case float64(bullish) > ratio*float64(bearish):
		return Bullish
	case float64(bearish) > ratio*float64(bullish):
		return Bearish
	default:
		return Neutral
	}
}
