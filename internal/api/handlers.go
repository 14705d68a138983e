package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"smc-engine/internal/analysis"
	"smc-engine/internal/cache"
	"smc-engine/internal/database"
	"smc-engine/internal/logging"
	"smc-engine/internal/scanner"
	"smc-engine/internal/smc"

	"github.com/gin-gonic/gin"
)

// Opportunity query bounds
const (
	defaultOpportunityLimit = 20
	maxOpportunityLimit     = 50
)

// AnalyzeRequest is the body of a single analysis submission
type AnalyzeRequest struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Candles   []analysis.Candle `json:"candles"`
	Volumes   []float64         `json:"volumes,omitempty"`
}

// BatchRequest is the body of a batch submission
type BatchRequest struct {
	Requests []AnalyzeRequest `json:"requests"`
}

// RevalidateRequest carries the candles printed since the last analysis
type RevalidateRequest struct {
	Candles []analysis.Candle `json:"candles"`
}

func (r AnalyzeRequest) toScan() scanner.Request {
	return scanner.Request{
		Symbol:    r.Symbol,
		Timeframe: r.Timeframe,
		Candles:   r.Candles,
		Volumes:   r.Volumes,
	}
}

// persist caches the analysis and archives it in the background
func (s *Server) persist(ctx context.Context, a *smc.Analysis) {
	if s.cache != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
		if err := s.cache.Put(cctx, a); err != nil && !errors.Is(err, cache.ErrCacheUnavailable) {
			logging.CacheContext("put", cache.AnalysisKey(a.Symbol)).WithError(err).Warn("Failed to cache analysis")
		}
		cancel()
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		actx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.archive.SaveAnalysis(actx, a); err != nil {
			logging.DatabaseContext("insert", "smc_analyses").WithError(err).Error("Failed to archive analysis", "symbol", a.Symbol)
		}
	}()
}

// handleAnalyze runs the engine over a submitted candle series
func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var (
		result *smc.Analysis
		err    error
	)
	if req.Volumes != nil {
		result, err = s.engine.AnalyzeWithVolumes(req.Symbol, req.Timeframe, req.Candles, req.Volumes)
	} else {
		result, err = s.engine.Analyze(req.Symbol, req.Timeframe, req.Candles)
	}
	if err != nil {
		errorFromErr(c, err)
		return
	}

	s.persist(c.Request.Context(), result)
	successResponse(c, result)
}

// handleAnalyzeBatch analyses several symbols concurrently
func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	reqs := make([]scanner.Request, len(req.Requests))
	for i, r := range req.Requests {
		reqs[i] = r.toScan()
	}

	batch, err := s.scanner.AnalyzeBatch(c.Request.Context(), reqs)
	if err != nil {
		errorFromErr(c, err)
		return
	}
	successResponse(c, batch)
}

// handleGetSymbols lists every symbol with engine state
func (s *Server) handleGetSymbols(c *gin.Context) {
	symbols := s.engine.Symbols()
	successResponse(c, gin.H{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// snapshot returns the latest analysis from the engine, falling back to the
// cached snapshot
func (s *Server) snapshot(ctx context.Context, symbol string) (*smc.Analysis, string, error) {
	if a, ok := s.engine.Latest(symbol); ok {
		return a, "engine", nil
	}
	if s.cache != nil {
		a, err := s.cache.Get(ctx, symbol)
		if err == nil {
			return a, "cache", nil
		}
		if !cache.IsMiss(err) && !errors.Is(err, cache.ErrCacheUnavailable) {
			logging.CacheContext("get", cache.AnalysisKey(symbol)).WithError(err).Warn("Cache lookup failed")
		}
	}
	return nil, "", fmt.Errorf("%s: %w", symbol, smc.ErrUnknownSymbol)
}

// handleGetAnalysis returns the latest analysis for a symbol
func (s *Server) handleGetAnalysis(c *gin.Context) {
	a, source, err := s.snapshot(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		errorFromErr(c, err)
		return
	}
	c.Header("X-SMC-Source", source)
	successResponse(c, a)
}

// component serves one part of a symbol's state, preferring live engine
// state over the cached snapshot
func component[T any](s *Server, c *gin.Context, live func(string) (T, bool), pick func(*smc.Analysis) T) {
	symbol := c.Param("symbol")
	if v, ok := live(symbol); ok {
		successResponse(c, v)
		return
	}
	a, _, err := s.snapshot(c.Request.Context(), symbol)
	if err != nil {
		errorFromErr(c, err)
		return
	}
	successResponse(c, pick(a))
}

func (s *Server) handleGetStructure(c *gin.Context) {
	component(s, c, s.engine.MarketStructure, func(a *smc.Analysis) analysis.MarketStructure { return a.MarketStructure })
}

func (s *Server) handleGetOrderBlocks(c *gin.Context) {
	component(s, c, s.engine.OrderBlocks, func(a *smc.Analysis) []analysis.OrderBlock { return a.OrderBlocks })
}

func (s *Server) handleGetFairValueGaps(c *gin.Context) {
	component(s, c, s.engine.FairValueGaps, func(a *smc.Analysis) []analysis.FairValueGap { return a.FairValueGaps })
}

func (s *Server) handleGetLiquidityPools(c *gin.Context) {
	component(s, c, s.engine.LiquidityPools, func(a *smc.Analysis) []analysis.LiquidityPool { return a.LiquidityPools })
}

func (s *Server) handleGetInstitutionalFlow(c *gin.Context) {
	component(s, c, s.engine.InstitutionalFlow, func(a *smc.Analysis) analysis.InstitutionalFlow { return a.InstitutionalFlow })
}

func (s *Server) handleGetStructureBreaks(c *gin.Context) {
	component(s, c, s.engine.StructureBreaks, func(a *smc.Analysis) []analysis.BreakOfStructure { return a.StructureBreaks })
}

// handleRevalidate updates mitigation state against later candles and
// refreshes the cached snapshot
func (s *Server) handleRevalidate(c *gin.Context) {
	symbol := c.Param("symbol")

	var req RevalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	summary, err := s.engine.Revalidate(symbol, req.Candles)
	if err != nil {
		errorFromErr(c, err)
		return
	}

	if a, ok := s.engine.Latest(symbol); ok && s.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cacheTimeout)
		if err := s.cache.Put(ctx, a); err != nil && !errors.Is(err, cache.ErrCacheUnavailable) {
			logging.CacheContext("put", cache.AnalysisKey(symbol)).WithError(err).Warn("Failed to refresh cached analysis")
		}
		cancel()
	}

	successResponse(c, summary)
}

// queryLimit parses the limit query parameter within [1, max]
func queryLimit(c *gin.Context, def, max int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

// handleGetOpportunities queries the in-memory opportunity log
func (s *Server) handleGetOpportunities(c *gin.Context) {
	limit, err := queryLimit(c, defaultOpportunityLimit, maxOpportunityLimit)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	opps := s.engine.Opportunities(c.Query("symbol"), limit)
	successResponse(c, gin.H{
		"opportunities": opps,
		"count":         len(opps),
	})
}

// handleGetOpportunityHistory queries archived opportunities
func (s *Server) handleGetOpportunityHistory(c *gin.Context) {
	limit, err := queryLimit(c, database.DefaultHistoryLimit, database.MaxHistoryLimit)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.archive.History(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		logging.DatabaseContext("select", "smc_opportunities").WithError(err).Error("Failed to query opportunity history")
		errorResponse(c, http.StatusInternalServerError, "failed to query opportunity history")
		return
	}

	opps := make([]analysis.TradingOpportunity, 0, len(records))
	for _, r := range records {
		opps = append(opps, r.Opportunity())
	}
	successResponse(c, gin.H{
		"opportunities": opps,
		"count":         len(opps),
	})
}
