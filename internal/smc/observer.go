package smc

import (
	"smc-engine/internal/analysis"
)

// Observer receives engine notifications. Calls are made synchronously from
// the analysing goroutine, so implementations must not block.
type Observer interface {
	AnalysisCompleted(a *Analysis)
	OpportunitiesGenerated(symbol string, opps []analysis.TradingOpportunity)
	StageFailed(symbol, stage string, err error)
	ValidationFailed(symbol string, err error)
	StateRevalidated(summary RevalidationSummary)
	SymbolsEvicted(symbols []string)
}

// NopObserver ignores every notification
type NopObserver struct{}

func (NopObserver) AnalysisCompleted(*Analysis) {}
func (NopObserver) OpportunitiesGenerated(string, []analysis.TradingOpportunity) {}
func (NopObserver) StageFailed(string, string, error) {}
func (NopObserver) ValidationFailed(string, error) {}
func (NopObserver) StateRevalidated(RevalidationSummary) {}
func (NopObserver) SymbolsEvicted([]string) {}

// MultiObserver fans notifications out to several observers in order
type MultiObserver []Observer

func (m MultiObserver) AnalysisCompleted(a *Analysis) {
	for _, o := range m {
		o.AnalysisCompleted(a)
	}
}

func (m MultiObserver) OpportunitiesGenerated(symbol string, opps []analysis.TradingOpportunity) {
	for _, o := range m {
		o.OpportunitiesGenerated(symbol, opps)
	}
}

func (m MultiObserver) StageFailed(symbol, stage string, err error) {
	for _, o := range m {
		o.StageFailed(symbol, stage, err)
	}
}

func (m MultiObserver) ValidationFailed(symbol string, err error) {
	for _, o := range m {
		o.ValidationFailed(symbol, err)
	}
}

func (m MultiObserver) StateRevalidated(summary RevalidationSummary) {
	for _, o := range m {
		o.StateRevalidated(summary)
	}
}

func (m MultiObserver) SymbolsEvicted(symbols []string) {
	for _, o := range m {
		o.SymbolsEvicted(symbols)
	}
}
