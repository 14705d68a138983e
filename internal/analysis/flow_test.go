package analysis

import (
	"testing"
)

func blocksOf(bullish, bearish int) []OrderBlock {
	var blocks []OrderBlock
	for i := 0; i < bullish; i++ {
		blocks = append(blocks, OrderBlock{Type: BullishOB})
	}
	for i := 0; i < bearish; i++ {
		blocks = append(blocks, OrderBlock{Type: BearishOB})
	}
	return blocks
}

func fvgsOf(bullish, bearish int) []FairValueGap {
	var fvgs []FairValueGap
	for i := 0; i < bullish; i++ {
		fvgs = append(fvgs, FairValueGap{Type: BullishFVG})
	}
	for i := 0; i < bearish; i++ {
		fvgs = append(fvgs, FairValueGap{Type: BearishFVG})
	}
	return fvgs
}

func TestFlowDirection(t *testing.T) {
	analyzer := NewFlowAnalyzer(DefaultParams())

	tests := []struct {
		name     string
		blocks   []OrderBlock
		fvgs     []FairValueGap
		expected Direction
	}{
		{"six bullish vs two bearish", blocksOf(4, 1), fvgsOf(2, 1), Bullish},
		{"bearish dominance", blocksOf(0, 3), fvgsOf(1, 2), Bearish},
		{"balanced", blocksOf(2, 2), fvgsOf(1, 1), Neutral},
		{"ratio not exceeded", blocksOf(3, 2), nil, Neutral},
		{"no signals", nil, nil, Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := analyzer.Analyze(tt.blocks, tt.fvgs, nil, nil)
			if flow.Direction != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, flow.Direction)
			}
		})
	}
}

func TestFlowStrengthAndConfidence(t *testing.T) {
	analyzer := NewFlowAnalyzer(DefaultParams())

	flow := analyzer.Analyze(blocksOf(4, 1), fvgsOf(2, 1), nil, nil)

	if !approxEqual(flow.Strength, 0.6) {
		t.Errorf("Expected strength 0.6, got %f", flow.Strength)
	}
	if !approxEqual(flow.Confidence, 0.68) {
		t.Errorf("Expected confidence 0.68, got %f", flow.Confidence)
	}

	// FVGs only: no order block presence bonus
	flow = analyzer.Analyze(nil, fvgsOf(3, 0), nil, nil)
	if !approxEqual(flow.Confidence, 0.24) {
		t.Errorf("Expected confidence 0.24, got %f", flow.Confidence)
	}

	// Strength saturates at 1
	flow = analyzer.Analyze(blocksOf(12, 0), nil, nil, nil)
	if flow.Strength != 1 {
		t.Errorf("Expected strength 1, got %f", flow.Strength)
	}
}

func TestFlowCharacteristics(t *testing.T) {
	analyzer := NewFlowAnalyzer(DefaultParams())

	pools := []LiquidityPool{{Grabbed: true}, {Grabbed: false}, {Grabbed: true}}
	breaks := []BreakOfStructure{{Type: BOS}, {Type: CHoCH}}

	flow := analyzer.Analyze(blocksOf(2, 0), fvgsOf(1, 0), pools, breaks)

	c := flow.Characteristics
	if c.OrderBlocks != 2 || c.FVGs != 1 {
		t.Errorf("Expected 2 order blocks and 1 FVG, got %d and %d", c.OrderBlocks, c.FVGs)
	}
	if c.LiquidityGrabs != 2 {
		t.Errorf("Expected 2 liquidity grabs, got %d", c.LiquidityGrabs)
	}
	if c.StructuralBreaks != 2 {
		t.Errorf("Expected 2 structural breaks, got %d", c.StructuralBreaks)
	}
	if len(flow.SmartMoneyActivities) != 3 {
		t.Errorf("Expected 3 activities, got %v", flow.SmartMoneyActivities)
	}
}
