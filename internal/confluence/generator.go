package confluence

import (
	"fmt"
	"sort"

	"smc-engine/internal/analysis"
)

// Inputs bundles one run's detections for opportunity generation
type Inputs struct {
	Symbol      string
	Structure   analysis.MarketStructure
	OrderBlocks []analysis.OrderBlock
	FVGs        []analysis.FairValueGap
	Pools       []analysis.LiquidityPool
	Flow        analysis.InstitutionalFlow
	Breaks      []analysis.BreakOfStructure
}

// Generator turns detected footprints into ranked trade ideas
type Generator struct {
	params analysis.Params
}

// NewGenerator creates a new opportunity generator
func NewGenerator(params analysis.Params) *Generator {
	return &Generator{params: params.WithDefaults()}
}

// Generate returns at most MaxOpportunities opportunities ranked by
// probability. Ties keep generation order, which walks each source newest
// first.
func (g *Generator) Generate(in Inputs) []analysis.TradingOpportunity {
	var opps []analysis.TradingOpportunity

	opps = append(opps, g.orderBlockRetests(in)...)
	if g.params.ExtendedOpportunities {
		opps = append(opps, g.fvgEntries(in)...)
		opps = append(opps, g.liquidityGrabs(in)...)
		opps = append(opps, g.bosContinuations(in)...)
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Probability > opps[j].Probability
	})

	if len(opps) > g.params.MaxOpportunities {
		opps = opps[:g.params.MaxOpportunities]
	}
	return opps
}

func (g *Generator) orderBlockRetests(in Inputs) []analysis.TradingOpportunity {
	var opps []analysis.TradingOpportunity

	for i := len(in.OrderBlocks) - 1; i >= 0; i-- {
		ob := in.OrderBlocks[i]
		if ob.Tested || ob.Breached {
			continue
		}

		dir := analysis.Bearish
		if ob.IsBullish() {
			dir = analysis.Bullish
		}

		factors := []analysis.ConfluenceFactor{{
			Type:        analysis.FactorOrderBlock,
			Strength:    ob.Strength,
			Description: fmt.Sprintf("%s at %.4f", ob.Type, ob.Price),
		}}
		if f, ok := g.fvgNear(in.FVGs, ob.Price); ok {
			factors = append(factors, f)
		}
		factors = append(factors, g.extendedFactors(in, ob.Price, dir)...)

		opps = append(opps, g.newOpportunity(in.Symbol, analysis.OrderBlockRetest, ob.ID, dir, ob.Price, ob.Reliability, factors))
	}
	return opps
}

func (g *Generator) fvgEntries(in Inputs) []analysis.TradingOpportunity {
	var opps []analysis.TradingOpportunity

	for i := len(in.FVGs) - 1; i >= 0; i-- {
		fvg := in.FVGs[i]
		if fvg.Filled || g.orderBlockNear(in.OrderBlocks, fvg.Middle) {
			continue
		}

		dir := analysis.Bearish
		if fvg.Type == analysis.BullishFVG {
			dir = analysis.Bullish
		}

		factors := []analysis.ConfluenceFactor{{
			Type:        analysis.FactorFVG,
			Strength:    clamp01(fvg.Efficiency),
			Description: fmt.Sprintf("%s %.4f-%.4f", fvg.Type, fvg.Lower, fvg.Upper),
		}}
		factors = append(factors, g.extendedFactors(in, fvg.Middle, dir)...)

		opps = append(opps, g.newOpportunity(in.Symbol, analysis.FVGEntry, fvg.ID, dir, fvg.Middle, g.params.FVGEntryReliability, factors))
	}
	return opps
}

func (g *Generator) liquidityGrabs(in Inputs) []analysis.TradingOpportunity {
	var opps []analysis.TradingOpportunity

	for i := len(in.Pools) - 1; i >= 0; i-- {
		pool := in.Pools[i]
		if !pool.Grabbed {
			continue
		}

		// Swept highs reverse down, swept lows reverse up
		dir := analysis.Bullish
		if pool.Type == analysis.SellSide {
			dir = analysis.Bearish
		}

		factors := []analysis.ConfluenceFactor{{
			Type:        analysis.FactorLiquidity,
			Strength:    pool.Efficiency,
			Description: fmt.Sprintf("%s pool swept at %.4f", pool.Type, pool.Price),
		}}
		if f, ok := g.fvgNear(in.FVGs, pool.Price); ok {
			factors = append(factors, f)
		}
		if f, ok := g.structureAgrees(in.Structure, in.Flow, dir); ok {
			factors = append(factors, f)
		}

		opps = append(opps, g.newOpportunity(in.Symbol, analysis.LiquidityGrab, pool.ID, dir, pool.Price, g.params.LiquidityGrabReliability, factors))
	}
	return opps
}

func (g *Generator) bosContinuations(in Inputs) []analysis.TradingOpportunity {
	var opps []analysis.TradingOpportunity

	for i := len(in.Breaks) - 1; i >= 0; i-- {
		b := in.Breaks[i]
		if b.Type != analysis.BOS || !b.FollowThrough {
			continue
		}

		factors := []analysis.ConfluenceFactor{{
			Type:        analysis.FactorStructure,
			Strength:    clamp01(b.Strength),
			Description: fmt.Sprintf("%s BOS through %.4f", b.Direction, b.ConfirmedLevel),
		}}
		if f, ok := g.fvgNear(in.FVGs, b.ConfirmedLevel); ok {
			factors = append(factors, f)
		}
		if f, ok := g.poolNear(in.Pools, b.ConfirmedLevel); ok {
			factors = append(factors, f)
		}

		opps = append(opps, g.newOpportunity(in.Symbol, analysis.BOSContinuation, b.ID, b.Direction, b.ConfirmedLevel, g.params.BOSReliability, factors))
	}
	return opps
}

// extendedFactors adds nearby liquidity and trend agreement when extended
// scoring is on
func (g *Generator) extendedFactors(in Inputs, price float64, dir analysis.Direction) []analysis.ConfluenceFactor {
	if !g.params.ExtendedOpportunities {
		return nil
	}
	var factors []analysis.ConfluenceFactor
	if f, ok := g.poolNear(in.Pools, price); ok {
		factors = append(factors, f)
	}
	if f, ok := g.structureAgrees(in.Structure, in.Flow, dir); ok {
		factors = append(factors, f)
	}
	return factors
}

func (g *Generator) fvgNear(fvgs []analysis.FairValueGap, price float64) (analysis.ConfluenceFactor, bool) {
	for _, fvg := range fvgs {
		if g.near(fvg.Middle, price) {
			return analysis.ConfluenceFactor{
				Type:        analysis.FactorFVG,
				Strength:    clamp01(fvg.Efficiency),
				Description: fmt.Sprintf("%s midpoint %.4f", fvg.Type, fvg.Middle),
			}, true
		}
	}
	return analysis.ConfluenceFactor{}, false
}

func (g *Generator) poolNear(pools []analysis.LiquidityPool, price float64) (analysis.ConfluenceFactor, bool) {
	for _, pool := range pools {
		if g.near(pool.Price, price) {
			return analysis.ConfluenceFactor{
				Type:        analysis.FactorLiquidity,
				Strength:    pool.Efficiency,
				Description: fmt.Sprintf("%s pool at %.4f (%d touches)", pool.Type, pool.Price, pool.Confluence),
			}, true
		}
	}
	return analysis.ConfluenceFactor{}, false
}

func (g *Generator) orderBlockNear(blocks []analysis.OrderBlock, price float64) bool {
	for _, ob := range blocks {
		if g.near(ob.Price, price) {
			return true
		}
	}
	return false
}

// structureAgrees yields a STRUCTURE factor when the trend points in dir.
// Institutional flow in the same direction lifts the factor's strength to the
// mean of both readings.
func (g *Generator) structureAgrees(ms analysis.MarketStructure, flow analysis.InstitutionalFlow, dir analysis.Direction) (analysis.ConfluenceFactor, bool) {
	var want analysis.Trend
	switch dir {
	case analysis.Bullish:
		want = analysis.TrendUp
	case analysis.Bearish:
		want = analysis.TrendDown
	default:
		return analysis.ConfluenceFactor{}, false
	}
	if ms.Trend != want {
		return analysis.ConfluenceFactor{}, false
	}

	strength := clamp01(ms.Strength)
	desc := fmt.Sprintf("%s structure", ms.Trend)
	if flow.Direction == dir {
		strength = clamp01((ms.Strength + flow.Strength) / 2)
		desc += fmt.Sprintf(" with %s institutional flow", flow.Direction)
	}
	return analysis.ConfluenceFactor{
		Type:        analysis.FactorStructure,
		Strength:    strength,
		Description: desc,
	}, true
}

// near reports whether level sits within ConfluenceDistance of price
func (g *Generator) near(level, price float64) bool {
	if price == 0 {
		return false
	}
	d := (level - price) / price
	if d < 0 {
		d = -d
	}
	return d <= g.params.ConfluenceDistance
}

func (g *Generator) newOpportunity(symbol string, oppType analysis.OpportunityType, sourceID string, dir analysis.Direction, entry, reliability float64, factors []analysis.ConfluenceFactor) analysis.TradingOpportunity {
	opp := analysis.TradingOpportunity{
		ID:          analysis.DerivedID(symbol, string(oppType), sourceID),
		Type:        oppType,
		Symbol:      symbol,
		Direction:   dir,
		Entry:       entry,
		RiskReward:  g.params.RiskReward,
		Probability: clamp01(reliability * (1 + g.params.ConfluenceBonus*float64(len(factors)))),
		Confluence:  factors,
	}

	if dir == analysis.Bullish {
		opp.StopLoss = entry * (1 - g.params.StopLossPercent)
		opp.TakeProfit = entry * (1 + g.params.TakeProfitPercent)
	} else {
		opp.StopLoss = entry * (1 + g.params.StopLossPercent)
		opp.TakeProfit = entry * (1 - g.params.TakeProfitPercent)
	}
	return opp
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
