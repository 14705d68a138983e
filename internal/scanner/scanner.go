// Package scanner analyses batches of symbols in parallel.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/logging"
	"smc-engine/internal/smc"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyBatch is returned for a batch without requests
	ErrEmptyBatch = errors.New("batch has no requests")

	// ErrDuplicateSymbol is returned when a batch names a symbol twice
	ErrDuplicateSymbol = errors.New("duplicate symbol in batch")

	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize
	ErrBatchTooLarge = errors.New("batch too large")
)

// Analyzer is the engine surface the scanner drives
type Analyzer interface {
	Analyze(symbol, timeframe string, candles []analysis.Candle) (*smc.Analysis, error)
	AnalyzeWithVolumes(symbol, timeframe string, candles []analysis.Candle, volumes []float64) (*smc.Analysis, error)
}

// Sink receives every successful analysis of a batch
type Sink func(ctx context.Context, a *smc.Analysis)

// Scanner fans a batch of symbols out over a bounded set of goroutines
type Scanner struct {
	engine     Analyzer
	config     ScannerConfig
	sink       Sink
	logger     *logging.Logger
	mu         sync.RWMutex
	lastResult *BatchResult
}

// NewScanner creates a new scanner instance. sink may be nil.
func NewScanner(engine Analyzer, config ScannerConfig, sink Sink) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	return &Scanner{
		engine: engine,
		config: config,
		sink:   sink,
		logger: logging.WithComponent("scanner"),
	}
}

// validate rejects empty, oversized and duplicate-symbol batches
func (sc *Scanner) validate(reqs []Request) error {
	if len(reqs) == 0 {
		return ErrEmptyBatch
	}
	if sc.config.MaxBatchSize > 0 && len(reqs) > sc.config.MaxBatchSize {
		return fmt.Errorf("%w: %d requests, max %d", ErrBatchTooLarge, len(reqs), sc.config.MaxBatchSize)
	}

	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		key := strings.ToUpper(r.Symbol)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSymbol, r.Symbol)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// AnalyzeBatch analyses every request concurrently. A failing symbol is
// reported in its Result and never cancels the others. Requests not started
// before ctx is done fail with the context error.
func (sc *Scanner) AnalyzeBatch(ctx context.Context, reqs []Request) (*BatchResult, error) {
	if err := sc.validate(reqs); err != nil {
		return nil, err
	}

	startTime := time.Now()
	batchID := uuid.NewString()
	log := sc.logger.WithField("batch_id", batchID)
	log.Debug("Starting batch", "symbols", len(reqs), "workers", sc.config.WorkerCount)

	results := make([]Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.config.WorkerCount)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			results[i] = sc.analyze(gctx, req)
			return nil
		})
	}
	// Workers never return errors
	_ = g.Wait()

	batch := &BatchResult{
		BatchID:        batchID,
		StartTime:      startTime,
		EndTime:        time.Now(),
		Duration:       time.Since(startTime),
		SymbolsScanned: len(reqs),
		Results:        results,
	}
	for _, r := range results {
		if r.Err != nil {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}

	sc.mu.Lock()
	sc.lastResult = batch
	sc.mu.Unlock()

	log.WithDuration(batch.Duration).Info("Batch completed",
		"succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch, nil
}

func (sc *Scanner) analyze(ctx context.Context, req Request) Result {
	start := time.Now()
	res := Result{Symbol: req.Symbol}

	if err := ctx.Err(); err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}

	var (
		a   *smc.Analysis
		err error
	)
	if req.Volumes != nil {
		a, err = sc.engine.AnalyzeWithVolumes(req.Symbol, req.Timeframe, req.Candles, req.Volumes)
	} else {
		a, err = sc.engine.Analyze(req.Symbol, req.Timeframe, req.Candles)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}

	res.Analysis = a
	if sc.sink != nil {
		sc.sink(ctx, a)
	}
	return res
}

// GetLastResult returns the most recent batch result
func (sc *Scanner) GetLastResult() *BatchResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}
