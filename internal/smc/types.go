package smc

import (
	"time"

	"smc-engine/internal/analysis"
)

// Pipeline stage names, as reported in diagnostics and events
const (
	StageStructure     = "market_structure"
	StageOrderBlocks   = "order_blocks"
	StageFVGs          = "fair_value_gaps"
	StageLiquidity     = "liquidity_pools"
	StageBreaks        = "structure_breaks"
	StageFlow          = "institutional_flow"
	StageOpportunities = "opportunities"
)

// Diagnostics records degraded or failed stages of one analysis run
type Diagnostics struct {
	FailedStages     []string `json:"failed_stages"`
	InsufficientData []string `json:"insufficient_data"`
	CandlesAnalyzed  int      `json:"candles_analyzed"`
}

// Analysis is the immutable result of one analysis run for a symbol
type Analysis struct {
	Symbol            string                        `json:"symbol"`
	Timeframe         string                        `json:"timeframe"`
	Timestamp         time.Time                     `json:"timestamp"`
	MarketStructure   analysis.MarketStructure      `json:"market_structure"`
	OrderBlocks       []analysis.OrderBlock         `json:"order_blocks"`
	FairValueGaps     []analysis.FairValueGap       `json:"fair_value_gaps"`
	LiquidityPools    []analysis.LiquidityPool      `json:"liquidity_pools"`
	InstitutionalFlow analysis.InstitutionalFlow    `json:"institutional_flow"`
	StructureBreaks   []analysis.BreakOfStructure   `json:"structure_breaks"`
	Opportunities     []analysis.TradingOpportunity `json:"opportunities"`
	Confidence        float64                       `json:"confidence"`
	Recommendation    string                        `json:"recommendation"`
	Diagnostics       Diagnostics                   `json:"diagnostics"`
}

// Clone returns a deep copy safe to hand to other goroutines
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	c := *a
	c.OrderBlocks = cloneSlice(a.OrderBlocks)
	c.FairValueGaps = cloneSlice(a.FairValueGaps)
	c.LiquidityPools = cloneSlice(a.LiquidityPools)
	c.StructureBreaks = cloneSlice(a.StructureBreaks)
	c.Opportunities = cloneOpportunities(a.Opportunities)
	c.InstitutionalFlow.SmartMoneyActivities = cloneSlice(a.InstitutionalFlow.SmartMoneyActivities)
	c.Diagnostics.FailedStages = cloneSlice(a.Diagnostics.FailedStages)
	c.Diagnostics.InsufficientData = cloneSlice(a.Diagnostics.InsufficientData)
	return &c
}

// RevalidationSummary counts state changes applied by a revalidation pass
type RevalidationSummary struct {
	Symbol              string `json:"symbol"`
	CandlesEvaluated    int    `json:"candles_evaluated"`
	OrderBlocksTested   int    `json:"order_blocks_tested"`
	OrderBlocksBreached int    `json:"order_blocks_breached"`
	FVGsFilled          int    `json:"fvgs_filled"`
	FVGsPartiallyFilled int    `json:"fvgs_partially_filled"`
	PoolsGrabbed        int    `json:"pools_grabbed"`
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func cloneOpportunities(opps []analysis.TradingOpportunity) []analysis.TradingOpportunity {
	out := cloneSlice(opps)
	for i := range out {
		out[i].Confluence = cloneSlice(out[i].Confluence)
	}
	return out
}
