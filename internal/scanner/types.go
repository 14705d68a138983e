package scanner

import (
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/smc"
)

// Request is one symbol's candles in a batch
type Request struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"timeframe"`
	Candles   []analysis.Candle `json:"candles"`
	Volumes   []float64         `json:"volumes,omitempty"`
}

// Result is the outcome of analysing one Request
type Result struct {
	Symbol   string        `json:"symbol"`
	Analysis *smc.Analysis `json:"analysis,omitempty"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// BatchResult aggregates the results of one AnalyzeBatch call, in request order
type BatchResult struct {
	BatchID        string        `json:"batch_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	SymbolsScanned int           `json:"symbols_scanned"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Results        []Result      `json:"results"`
}

// ScannerConfig holds scanner configuration
type ScannerConfig struct {
	WorkerCount  int
	MaxBatchSize int
}
