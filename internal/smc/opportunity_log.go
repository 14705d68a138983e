package smc

import (
	"sync"

	"smc-engine/internal/analysis"
)

// DefaultOpportunityLogSize is the number of recent opportunities retained
// across all symbols
const DefaultOpportunityLogSize = 50

// OpportunityLog is a fixed-size ring buffer of recent opportunities
type OpportunityLog struct {
	mu    sync.RWMutex
	buf   []analysis.TradingOpportunity
	next  int
	count int
}

// NewOpportunityLog creates a ring buffer holding at most size entries
func NewOpportunityLog(size int) *OpportunityLog {
	if size <= 0 {
		size = DefaultOpportunityLogSize
	}
	return &OpportunityLog{
		buf: make([]analysis.TradingOpportunity, size),
	}
}

// Append records opportunities, overwriting the oldest once full
func (l *OpportunityLog) Append(opps ...analysis.TradingOpportunity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range opps {
		o.Confluence = cloneSlice(o.Confluence)
		l.buf[l.next] = o
		l.next = (l.next + 1) % len(l.buf)
		if l.count < len(l.buf) {
			l.count++
		}
	}
}

// Recent returns up to limit opportunities, newest first. An empty symbol
// matches every symbol; a non-positive limit returns all retained matches.
func (l *OpportunityLog) Recent(symbol string, limit int) []analysis.TradingOpportunity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]analysis.TradingOpportunity, 0, l.count)
	for i := 0; i < l.count; i++ {
		idx := (l.next - 1 - i + len(l.buf)) % len(l.buf)
		o := l.buf[idx]
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		o.Confluence = cloneSlice(o.Confluence)
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of retained opportunities
func (l *OpportunityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Cap returns the buffer capacity
func (l *OpportunityLog) Cap() int {
	return len(l.buf)
}
