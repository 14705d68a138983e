package smc

import (
	"fmt"
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/confluence"
	"smc-engine/internal/logging"
)

// Engine runs the SMC pipeline and owns per-symbol state. It is safe for
// concurrent use across symbols.
type Engine struct {
	params analysis.Params

	structure *analysis.StructureAnalyzer
	blocks    *analysis.OrderBlockDetector
	fvgs      *analysis.FVGDetector
	liquidity *analysis.LiquidityFinder
	breaks    *analysis.BreakDetector
	flow      *analysis.FlowAnalyzer
	generator *confluence.Generator
	scorer    *confluence.Scorer

	store         *Store
	opportunities *OpportunityLog
	observer      Observer
	logger        *logging.Logger
	now           func() time.Time

	// stageHook runs at the start of every stage; tests use it to inject failures
	stageHook func(stage string)
}

// Option configures an Engine
type Option func(*Engine)

// WithObserver sets the observer notified of engine activity
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the wall clock used for analysis timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOpportunityLogSize sets the global opportunity ring buffer capacity
func WithOpportunityLogSize(size int) Option {
	return func(e *Engine) {
		e.opportunities = NewOpportunityLog(size)
	}
}

// NewEngine creates an engine with the given parameters. Zero-valued
// parameters fall back to analysis.DefaultParams.
func NewEngine(params analysis.Params, opts ...Option) *Engine {
	params = params.WithDefaults()

	e := &Engine{
		params:        params,
		structure:     analysis.NewStructureAnalyzer(params),
		blocks:        analysis.NewOrderBlockDetector(params),
		fvgs:          analysis.NewFVGDetector(params),
		liquidity:     analysis.NewLiquidityFinder(params),
		breaks:        analysis.NewBreakDetector(params),
		flow:          analysis.NewFlowAnalyzer(params),
		generator:     confluence.NewGenerator(params),
		scorer:        confluence.NewScorer(),
		store:         NewStore(),
		opportunities: NewOpportunityLog(DefaultOpportunityLogSize),
		observer:      NopObserver{},
		logger:        logging.WithComponent("smc-engine"),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the effective engine parameters
func (e *Engine) Params() analysis.Params {
	return e.params
}

// AnalyzeWithVolumes accepts a separate volume series, which must match the
// candles one to one and replaces each candle's own volume
func (e *Engine) AnalyzeWithVolumes(symbol, timeframe string, candles []analysis.Candle, volumes []float64) (*Analysis, error) {
	merged, err := MergeVolumes(candles, volumes)
	if err != nil {
		e.rejectInput(symbol, err)
		return nil, err
	}
	return e.Analyze(symbol, timeframe, merged)
}

// Analyze runs every stage over candles, stores the result as the symbol's
// current state and appends its opportunities to the global log. A failing
// stage is recorded in Diagnostics.FailedStages and contributes empty output.
func (e *Engine) Analyze(symbol, timeframe string, candles []analysis.Candle) (*Analysis, error) {
	if symbol == "" {
		return nil, ErrSymbolRequired
	}
	if err := ValidateCandles(candles); err != nil {
		e.rejectInput(symbol, err)
		return nil, fmt.Errorf("analyze %s: %w", symbol, err)
	}

	start := time.Now()
	now := e.now()

	result := &Analysis{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: now,
		MarketStructure: analysis.MarketStructure{
			Trend:      analysis.TrendSideways,
			Phase:      analysis.PhaseAccumulation,
			Timeframe:  timeframe,
			LastUpdate: now,
		},
		OrderBlocks:     []analysis.OrderBlock{},
		FairValueGaps:   []analysis.FairValueGap{},
		LiquidityPools:  []analysis.LiquidityPool{},
		StructureBreaks: []analysis.BreakOfStructure{},
		Opportunities:   []analysis.TradingOpportunity{},
		InstitutionalFlow: analysis.InstitutionalFlow{
			Direction:            analysis.Neutral,
			SmartMoneyActivities: []string{},
		},
		Diagnostics: Diagnostics{
			FailedStages:     []string{},
			InsufficientData: e.insufficientData(len(candles)),
			CandlesAnalyzed:  len(candles),
		},
	}

	e.runStage(result, StageStructure, func() {
		result.MarketStructure = e.structure.Analyze(candles, timeframe, now)
	})
	e.runStage(result, StageOrderBlocks, func() {
		result.OrderBlocks = nonNil(e.blocks.Detect(symbol, candles))
	})
	e.runStage(result, StageFVGs, func() {
		result.FairValueGaps = nonNil(e.fvgs.DetectFVGs(symbol, candles))
	})
	e.runStage(result, StageLiquidity, func() {
		result.LiquidityPools = nonNil(e.liquidity.FindPools(symbol, candles))
	})
	e.runStage(result, StageBreaks, func() {
		result.StructureBreaks = nonNil(e.breaks.Detect(symbol, candles, result.MarketStructure.Trend))
	})
	// Flow is assembled only after breaks so its characteristics are final
	e.runStage(result, StageFlow, func() {
		result.InstitutionalFlow = e.flow.Analyze(result.OrderBlocks, result.FairValueGaps, result.LiquidityPools, result.StructureBreaks)
	})
	e.runStage(result, StageOpportunities, func() {
		result.Opportunities = nonNil(e.generator.Generate(confluence.Inputs{
			Symbol:      symbol,
			Structure:   result.MarketStructure,
			OrderBlocks: result.OrderBlocks,
			FVGs:        result.FairValueGaps,
			Pools:       result.LiquidityPools,
			Flow:        result.InstitutionalFlow,
			Breaks:      result.StructureBreaks,
		}))
	})

	result.Confidence = e.scorer.Confidence(result.MarketStructure, result.InstitutionalFlow, result.Opportunities)
	result.Recommendation = e.scorer.Recommendation(result.MarketStructure, result.InstitutionalFlow)

	e.store.Put(result)
	e.opportunities.Append(result.Opportunities...)

	e.logger.WithDuration(time.Since(start)).Info("Analysis completed",
		"symbol", symbol,
		"timeframe", timeframe,
		"candles", len(candles),
		"trend", result.MarketStructure.Trend,
		"flow", result.InstitutionalFlow.Direction,
		"opportunities", len(result.Opportunities),
		"confidence", result.Confidence,
		"failed_stages", len(result.Diagnostics.FailedStages),
	)

	out := result.Clone()
	e.observer.AnalysisCompleted(out.Clone())
	if len(out.Opportunities) > 0 {
		e.observer.OpportunitiesGenerated(symbol, cloneOpportunities(out.Opportunities))
	}
	return out, nil
}

// runStage executes fn, converting a panic into a recorded stage failure
func (e *Engine) runStage(result *Analysis, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("stage %s panicked: %v", stage, r)
			result.Diagnostics.FailedStages = append(result.Diagnostics.FailedStages, stage)
			e.logger.WithError(err).Error("Stage failed", "symbol", result.Symbol, "stage", stage)
			e.observer.StageFailed(result.Symbol, stage, err)
		}
	}()

	if e.stageHook != nil {
		e.stageHook(stage)
	}
	fn()
}

func (e *Engine) rejectInput(symbol string, err error) {
	e.logger.WithError(err).Warn("Rejected analysis input", "symbol", symbol)
	e.observer.ValidationFailed(symbol, err)
}

// insufficientData lists stages whose window is larger than the input
func (e *Engine) insufficientData(n int) []string {
	windows := []struct {
		stage string
		size  int
	}{
		{StageStructure, e.params.StructureWindow},
		{StageOrderBlocks, e.params.OrderBlockWindow},
		{StageFVGs, e.params.FVGWindow},
		{StageLiquidity, e.params.LiquidityWindow},
		{StageBreaks, e.params.BreakWindow},
	}

	notes := []string{}
	for _, w := range windows {
		if n < w.size {
			notes = append(notes, fmt.Sprintf("%s: %d of %d candles", w.stage, n, w.size))
		}
	}
	return notes
}

// Revalidate re-evaluates the stored order blocks, gaps and pools against
// later price action and refreshes the institutional flow. Stored
// opportunities are left as generated.
func (e *Engine) Revalidate(symbol string, candles []analysis.Candle) (RevalidationSummary, error) {
	summary := RevalidationSummary{Symbol: symbol, CandlesEvaluated: len(candles)}

	if symbol == "" {
		return summary, ErrSymbolRequired
	}
	if err := ValidateCandles(candles); err != nil {
		e.rejectInput(symbol, err)
		return summary, fmt.Errorf("revalidate %s: %w", symbol, err)
	}

	_, ok := e.store.Update(symbol, func(a *Analysis) {
		for i := range a.OrderBlocks {
			ob := &a.OrderBlocks[i]
			tested, breached := ob.Tested, ob.Breached
			analysis.UpdateOrderBlockStatus(ob, candles)
			if ob.Tested && !tested {
				summary.OrderBlocksTested++
			}
			if ob.Breached && !breached {
				summary.OrderBlocksBreached++
			}
		}
		for i := range a.FairValueGaps {
			fvg := &a.FairValueGaps[i]
			filled, partial := fvg.Filled, fvg.PartialFill
			analysis.UpdateFVGStatus(fvg, candles)
			if fvg.Filled && !filled {
				summary.FVGsFilled++
			} else if fvg.PartialFill > partial {
				summary.FVGsPartiallyFilled++
			}
		}
		for i := range a.LiquidityPools {
			pool := &a.LiquidityPools[i]
			grabbed := pool.Grabbed
			analysis.UpdatePoolStatus(pool, candles)
			if pool.Grabbed && !grabbed {
				summary.PoolsGrabbed++
			}
		}
		a.InstitutionalFlow = e.flow.Analyze(a.OrderBlocks, a.FairValueGaps, a.LiquidityPools, a.StructureBreaks)
	})
	if !ok {
		return summary, fmt.Errorf("revalidate %s: %w", symbol, ErrUnknownSymbol)
	}

	e.logger.Info("State revalidated",
		"symbol", symbol,
		"candles", len(candles),
		"order_blocks_tested", summary.OrderBlocksTested,
		"order_blocks_breached", summary.OrderBlocksBreached,
		"fvgs_filled", summary.FVGsFilled,
		"pools_grabbed", summary.PoolsGrabbed,
	)
	e.observer.StateRevalidated(summary)
	return summary, nil
}

// EvictStale drops symbols whose latest analysis is older than cutoff
func (e *Engine) EvictStale(cutoff time.Time) []string {
	evicted := e.store.EvictBefore(cutoff)
	if len(evicted) > 0 {
		e.logger.Info("Evicted stale symbols", "count", len(evicted), "cutoff", cutoff)
		e.observer.SymbolsEvicted(evicted)
	}
	return evicted
}

// Latest returns the most recent analysis for symbol
func (e *Engine) Latest(symbol string) (*Analysis, bool) {
	return e.store.Get(symbol)
}

// Symbols returns every symbol with stored state
func (e *Engine) Symbols() []string {
	return e.store.Symbols()
}

// MarketStructure returns the current structure for symbol
func (e *Engine) MarketStructure(symbol string) (analysis.MarketStructure, bool) {
	a, ok := e.store.Get(symbol)
	if !ok {
		return analysis.MarketStructure{}, false
	}
	return a.MarketStructure, true
}

// OrderBlocks returns the stored order blocks for symbol
func (e *Engine) OrderBlocks(symbol string) ([]analysis.OrderBlock, bool) {
	a, ok := e.store.Get(symbol)
	if !ok {
		return nil, false
	}
	return a.OrderBlocks, true
}

// FairValueGaps returns the stored FVGs for symbol
func (e *Engine) FairValueGaps(symbol string) ([]analysis.FairValueGap, bool) {
	a, ok := e.store.Get(symbol)
	if !ok {
		return nil, false
	}
	return a.FairValueGaps, true
}

// LiquidityPools returns the stored pools for symbol
func (e *Engine) LiquidityPools(symbol string) ([]analysis.LiquidityPool, bool) {
	a, ok := e.store.Get(symbol)
	if !ok {
		return nil, false
	}
	return a.LiquidityPools, true
}

// InstitutionalFlow returns the current flow for symbol
func (e *Engine) InstitutionalFlow(symbol string) (analysis.InstitutionalFlow, bool) {
	a, ok := e.store.Get(symbol)
	if !ok {
		return analysis.InstitutionalFlow{}, false
	}
	return a.InstitutionalFlow, true
}

// StructureBreaks returns the stored breaks for symbol
func (e *Engine) StructureBreaks(symbol string) ([]analysis.BreakOfStructure, bool) {
	a, ok := e.store.Get(symbol)
	if !ok {
		return nil, false
	}
	return a.StructureBreaks, true
}

// Opportunities returns recent opportunities from the global log, newest
// first, optionally filtered by symbol
func (e *Engine) Opportunities(symbol string, limit int) []analysis.TradingOpportunity {
	return e.opportunities.Recent(symbol, limit)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
