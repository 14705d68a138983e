package events

import (
	"sync"
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/smc"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAnalysisCompleted    EventType = "ANALYSIS_COMPLETED"
	EventOpportunityGenerated EventType = "OPPORTUNITY_GENERATED"
	EventStageFailed          EventType = "STAGE_FAILED"
	EventValidationFailed     EventType = "VALIDATION_FAILED"
	EventStateRevalidated     EventType = "STATE_REVALIDATED"
	EventSymbolEvicted        EventType = "SYMBOL_EVICTED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// subscriberQueueSize bounds the events buffered per subscriber before
// Publish blocks
const subscriberQueueSize = 1024

// subscription delivers events to one subscriber in publish order
type subscription struct {
	handle Subscriber
	queue  chan Event
}

func newSubscription(handle Subscriber) *subscription {
	s := &subscription{
		handle: handle,
		queue:  make(chan Event, subscriberQueueSize),
	}
	go s.run()
	return s
}

func (s *subscription) run() {
	for event := range s.queue {
		s.handle(event)
	}
}

// EventBus manages event publishing and subscriptions. Each subscriber runs
// on its own goroutine and sees events in the order they were published.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]*subscription
	allSubs     []*subscription // Subscribers to all events
	closed      bool
}

var _ smc.Observer = (*EventBus)(nil)

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]*subscription),
		allSubs:     make([]*subscription, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.subscribers[eventType] = append(eb.subscribers[eventType], newSubscription(subscriber))
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.allSubs = append(eb.allSubs, newSubscription(subscriber))
}

// Publish queues an event for every matching subscriber. Events published
// from one goroutine reach each subscriber in the same order.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	for _, sub := range eb.subscribers[event.Type] {
		sub.queue <- event
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		sub.queue <- event
	}
}

// Close stops delivery. Events already queued are still handed to their
// subscribers; later Publish calls are dropped.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, subs := range eb.subscribers {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	for _, sub := range eb.allSubs {
		close(sub.queue)
	}
}

// AnalysisCompleted publishes a summary of a finished analysis
func (eb *EventBus) AnalysisCompleted(a *smc.Analysis) {
	eb.Publish(Event{
		Type: EventAnalysisCompleted,
		Data: map[string]interface{}{
			"symbol":         a.Symbol,
			"timeframe":      a.Timeframe,
			"trend":          a.MarketStructure.Trend,
			"phase":          a.MarketStructure.Phase,
			"flow":           a.InstitutionalFlow.Direction,
			"confidence":     a.Confidence,
			"recommendation": a.Recommendation,
			"order_blocks":   len(a.OrderBlocks),
			"fvgs":           len(a.FairValueGaps),
			"opportunities":  len(a.Opportunities),
			"failed_stages":  a.Diagnostics.FailedStages,
		},
	})
}

// OpportunitiesGenerated publishes one event per opportunity
func (eb *EventBus) OpportunitiesGenerated(symbol string, opps []analysis.TradingOpportunity) {
	for _, o := range opps {
		eb.Publish(Event{
			Type: EventOpportunityGenerated,
			Data: map[string]interface{}{
				"symbol":      symbol,
				"id":          o.ID,
				"type":        o.Type,
				"direction":   o.Direction,
				"entry":       o.Entry,
				"stop_loss":   o.StopLoss,
				"take_profit": o.TakeProfit,
				"probability": o.Probability,
			},
		})
	}
}

// StageFailed publishes a pipeline stage failure
func (eb *EventBus) StageFailed(symbol, stage string, err error) {
	data := map[string]interface{}{
		"symbol": symbol,
		"stage":  stage,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventStageFailed, Data: data})
}

// ValidationFailed publishes a rejected input
func (eb *EventBus) ValidationFailed(symbol string, err error) {
	data := map[string]interface{}{
		"symbol": symbol,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventValidationFailed, Data: data})
}

// StateRevalidated publishes the outcome of a revalidation pass
func (eb *EventBus) StateRevalidated(s smc.RevalidationSummary) {
	eb.Publish(Event{
		Type: EventStateRevalidated,
		Data: map[string]interface{}{
			"symbol":                s.Symbol,
			"candles":               s.CandlesEvaluated,
			"order_blocks_tested":   s.OrderBlocksTested,
			"order_blocks_breached": s.OrderBlocksBreached,
			"fvgs_filled":           s.FVGsFilled,
			"fvgs_partially_filled": s.FVGsPartiallyFilled,
			"pools_grabbed":         s.PoolsGrabbed,
		},
	})
}

// SymbolsEvicted publishes one event per evicted symbol
func (eb *EventBus) SymbolsEvicted(symbols []string) {
	for _, sym := range symbols {
		eb.Publish(Event{
			Type: EventSymbolEvicted,
			Data: map[string]interface{}{
				"symbol": sym,
			},
		})
	}
}
