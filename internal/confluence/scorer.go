package confluence

import (
	"fmt"
	"strings"

	"smc-engine/internal/analysis"
)

// Scorer combines structure, flow and opportunity quality into one confidence
type Scorer struct {
	// Weights for the different components (should sum to 1.0)
	structureWeight   float64
	flowWeight        float64
	opportunityWeight float64
}

// NewScorer creates a new scorer with default weights
func NewScorer() *Scorer {
	return &Scorer{
		structureWeight:   0.40,
		flowWeight:        0.40,
		opportunityWeight: 0.20,
	}
}

// Confidence returns the weighted overall confidence of an analysis
func (s *Scorer) Confidence(structure analysis.MarketStructure, flow analysis.InstitutionalFlow, opps []analysis.TradingOpportunity) float64 {
	avg := 0.0
	if len(opps) > 0 {
		for _, o := range opps {
			avg += o.Probability
		}
		avg /= float64(len(opps))
	}

	score := structure.Strength*s.structureWeight +
		flow.Confidence*s.flowWeight +
		avg*s.opportunityWeight

	return clamp01(score)
}

// Recommendation describes the analysis in one sentence, tiered by flow confidence
func (s *Scorer) Recommendation(structure analysis.MarketStructure, flow analysis.InstitutionalFlow) string {
	tier := s.flowTier(flow.Confidence)

	var b strings.Builder
	switch flow.Direction {
	case analysis.Bullish:
		fmt.Fprintf(&b, "%s bullish institutional flow", tier)
	case analysis.Bearish:
		fmt.Fprintf(&b, "%s bearish institutional flow", tier)
	default:
		fmt.Fprintf(&b, "%s conviction, no dominant institutional flow", tier)
	}
	fmt.Fprintf(&b, " (confidence %.2f) in a %s %s market", flow.Confidence, strings.ToLower(string(structure.Phase)), strings.ToLower(string(structure.Trend)))

	switch {
	case tier == "Strong" && flow.Direction == analysis.Bullish:
		b.WriteString(": favour long setups at bullish order blocks")
	case tier == "Strong" && flow.Direction == analysis.Bearish:
		b.WriteString(": favour short setups at bearish order blocks")
	case tier == "Moderate":
		b.WriteString(": wait for confirmation before entering")
	default:
		b.WriteString(": stand aside")
	}
	return b.String()
}

// flowTier converts flow confidence to a tier label
func (s *Scorer) flowTier(confidence float64) string {
	if confidence > 0.7 {
		return "Strong"
	} else if confidence > 0.5 {
		return "Moderate"
	}
	return "Low"
}

// SetWeights allows custom weight configuration
func (s *Scorer) SetWeights(structure, flow, opportunity float64) error {
	// Validate weights sum to 1.0
	total := structure + flow + opportunity
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %.2f", total)
	}

	s.structureWeight = structure
	s.flowWeight = flow
	s.opportunityWeight = opportunity

	return nil
}
