package database

import (
	"encoding/json"
	"time"

	"smc-engine/internal/analysis"
	"smc-engine/internal/smc"
)

// AnalysisRecord is one archived analysis run
type AnalysisRecord struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	Timeframe      string    `json:"timeframe"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
	Trend          string    `json:"trend"`
	Phase          string    `json:"phase"`
	FlowDirection  string    `json:"flow_direction"`
	Confidence     float64   `json:"confidence"`
	Recommendation string    `json:"recommendation"`
	Opportunities  int       `json:"opportunities"`
	Payload        []byte    `json:"-"`
}

// Analysis decodes the full archived analysis
func (r *AnalysisRecord) Analysis() (*smc.Analysis, error) {
	var a smc.Analysis
	if err := json.Unmarshal(r.Payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// OpportunityRecord is one archived trading opportunity
type OpportunityRecord struct {
	ID          string                      `json:"id"`
	Symbol      string                      `json:"symbol"`
	Type        analysis.OpportunityType    `json:"type"`
	Direction   analysis.Direction          `json:"direction"`
	Entry       float64                     `json:"entry"`
	StopLoss    float64                     `json:"stop_loss"`
	TakeProfit  float64                     `json:"take_profit"`
	RiskReward  float64                     `json:"risk_reward"`
	Probability float64                     `json:"probability"`
	Confluence  []analysis.ConfluenceFactor `json:"confluence"`
	AnalyzedAt  time.Time                   `json:"analyzed_at"`
}

// Opportunity converts the record back to the engine type
func (r *OpportunityRecord) Opportunity() analysis.TradingOpportunity {
	return analysis.TradingOpportunity{
		ID:          r.ID,
		Type:        r.Type,
		Symbol:      r.Symbol,
		Direction:   r.Direction,
		Entry:       r.Entry,
		StopLoss:    r.StopLoss,
		TakeProfit:  r.TakeProfit,
		RiskReward:  r.RiskReward,
		Probability: r.Probability,
		Confluence:  r.Confluence,
	}
}

// newRecords flattens an analysis into its archive rows
func newRecords(a *smc.Analysis) (*AnalysisRecord, []*OpportunityRecord, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, nil, err
	}

	rec := &AnalysisRecord{
		Symbol:         a.Symbol,
		Timeframe:      a.Timeframe,
		AnalyzedAt:     a.Timestamp.UTC(),
		Trend:          string(a.MarketStructure.Trend),
		Phase:          string(a.MarketStructure.Phase),
		FlowDirection:  string(a.InstitutionalFlow.Direction),
		Confidence:     a.Confidence,
		Recommendation: a.Recommendation,
		Opportunities:  len(a.Opportunities),
		Payload:        payload,
	}

	opps := make([]*OpportunityRecord, 0, len(a.Opportunities))
	for _, o := range a.Opportunities {
		opps = append(opps, &OpportunityRecord{
			ID:          o.ID,
			Symbol:      a.Symbol,
			Type:        o.Type,
			Direction:   o.Direction,
			Entry:       o.Entry,
			StopLoss:    o.StopLoss,
			TakeProfit:  o.TakeProfit,
			RiskReward:  o.RiskReward,
			Probability: o.Probability,
			Confluence:  o.Confluence,
			AnalyzedAt:  a.Timestamp.UTC(),
		})
	}
	return rec, opps, nil
}
