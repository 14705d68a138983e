package events

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/smc"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return Event{}
}

func TestSubscribeByType(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 4)
	bus.Subscribe(EventStageFailed, func(e Event) { ch <- e })

	bus.StageFailed("BTCUSDT", smc.StageOrderBlocks, errors.New("boom"))

	e := receive(t, ch)
	if e.Type != EventStageFailed {
		t.Errorf("Expected STAGE_FAILED, got %s", e.Type)
	}
	if e.Data["stage"] != smc.StageOrderBlocks {
		t.Errorf("Expected stage order_blocks, got %v", e.Data["stage"])
	}
	if e.Data["error"] != "boom" {
		t.Errorf("Expected error boom, got %v", e.Data["error"])
	}
	if e.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 8)
	bus.SubscribeAll(func(e Event) { ch <- e })

	bus.AnalysisCompleted(&smc.Analysis{Symbol: "BTCUSDT", Confidence: 0.7})
	bus.OpportunitiesGenerated("BTCUSDT", []analysis.TradingOpportunity{{ID: "a"}, {ID: "b"}})
	bus.SymbolsEvicted([]string{"ETHUSDT"})

	seen := map[EventType]int{}
	for i := 0; i < 4; i++ {
		seen[receive(t, ch).Type]++
	}

	if seen[EventAnalysisCompleted] != 1 {
		t.Errorf("Expected 1 ANALYSIS_COMPLETED, got %d", seen[EventAnalysisCompleted])
	}
	if seen[EventOpportunityGenerated] != 2 {
		t.Errorf("Expected 2 OPPORTUNITY_GENERATED, got %d", seen[EventOpportunityGenerated])
	}
	if seen[EventSymbolEvicted] != 1 {
		t.Errorf("Expected 1 SYMBOL_EVICTED, got %d", seen[EventSymbolEvicted])
	}
}

func TestBusAsEngineObserver(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 16)
	bus.Subscribe(EventValidationFailed, func(e Event) { ch <- e })

	engine := smc.NewEngine(analysis.DefaultParams(), smc.WithObserver(bus))
	if _, err := engine.Analyze("BTCUSDT", "1h", nil); err == nil {
		t.Fatal("Expected error for empty candles")
	}

	e := receive(t, ch)
	if e.Data["symbol"] != "BTCUSDT" {
		t.Errorf("Expected symbol BTCUSDT, got %v", e.Data["symbol"])
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := make(chan Event, 64)
	bus.SubscribeAll(func(e Event) { ch <- e })

	opps := make([]analysis.TradingOpportunity, 20)
	for i := range opps {
		opps[i] = analysis.TradingOpportunity{ID: fmt.Sprintf("opp-%d", i)}
	}
	bus.AnalysisCompleted(&smc.Analysis{Symbol: "BTCUSDT"})
	bus.OpportunitiesGenerated("BTCUSDT", opps)

	first := receive(t, ch)
	if first.Type != EventAnalysisCompleted {
		t.Fatalf("Expected ANALYSIS_COMPLETED first, got %s", first.Type)
	}
	for i := range opps {
		e := receive(t, ch)
		want := fmt.Sprintf("opp-%d", i)
		if e.Data["id"] != want {
			t.Fatalf("Expected %s at position %d, got %v", want, i+1, e.Data["id"])
		}
	}
}

func TestCloseDropsLaterEvents(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 4)
	bus.SubscribeAll(func(e Event) { ch <- e })

	bus.SymbolsEvicted([]string{"BTCUSDT"})
	bus.Close()
	bus.SymbolsEvicted([]string{"ETHUSDT"})
	bus.Close()

	e := receive(t, ch)
	if e.Data["symbol"] != "BTCUSDT" {
		t.Errorf("Expected queued BTCUSDT event, got %v", e.Data["symbol"])
	}
	select {
	case e := <-ch:
		t.Errorf("Expected no event after Close, got %v", e.Data["symbol"])
	case <-time.After(100 * time.Millisecond):
	}
}
