package analysis

// Params holds every window, threshold and weighting used by the detectors.
// Several values (OrderBlockReliability, RiskReward, PoolVolumeUnit and the
// extended opportunity reliabilities) are heuristics, not calibrated figures.
type Params struct {
	// Market structure
	StructureWindow        int     `json:"structure_window" yaml:"structure_window" toml:"structure_window"`
	SwingLookback          int     `json:"swing_lookback" yaml:"swing_lookback" toml:"swing_lookback"`
	TrendStrength          float64 `json:"trend_strength" yaml:"trend_strength" toml:"trend_strength"`
	ConfirmationLevel      float64 `json:"confirmation_level" yaml:"confirmation_level" toml:"confirmation_level"`
	RecentVolumePeriod     int     `json:"recent_volume_period" yaml:"recent_volume_period" toml:"recent_volume_period"`
	VolumeSpikeRatio       float64 `json:"volume_spike_ratio" yaml:"volume_spike_ratio" toml:"volume_spike_ratio"`
	DistributionVolatility float64 `json:"distribution_volatility" yaml:"distribution_volatility" toml:"distribution_volatility"`

	// Order blocks
	OrderBlockWindow      int     `json:"order_block_window" yaml:"order_block_window" toml:"order_block_window"`
	OrderBlockEdge        int     `json:"order_block_edge" yaml:"order_block_edge" toml:"order_block_edge"`
	OrderBlockVolumeRatio float64 `json:"order_block_volume_ratio" yaml:"order_block_volume_ratio" toml:"order_block_volume_ratio"`
	OrderBlockVolumeUnit  float64 `json:"order_block_volume_unit" yaml:"order_block_volume_unit" toml:"order_block_volume_unit"`
	OrderBlockVolumeCap   float64 `json:"order_block_volume_cap" yaml:"order_block_volume_cap" toml:"order_block_volume_cap"`
	OrderBlockReliability float64 `json:"order_block_reliability" yaml:"order_block_reliability" toml:"order_block_reliability"`
	MaxOrderBlocks        int     `json:"max_order_blocks" yaml:"max_order_blocks" toml:"max_order_blocks"`

	// Fair value gaps
	FVGWindow      int     `json:"fvg_window" yaml:"fvg_window" toml:"fvg_window"`
	FVGMinStrength float64 `json:"fvg_min_strength" yaml:"fvg_min_strength" toml:"fvg_min_strength"`
	MaxFVGs        int     `json:"max_fvgs" yaml:"max_fvgs" toml:"max_fvgs"`

	// Liquidity pools
	LiquidityWindow    int     `json:"liquidity_window" yaml:"liquidity_window" toml:"liquidity_window"`
	LiquidityTolerance float64 `json:"liquidity_tolerance" yaml:"liquidity_tolerance" toml:"liquidity_tolerance"`
	PoolVolumeUnit     float64 `json:"pool_volume_unit" yaml:"pool_volume_unit" toml:"pool_volume_unit"`

	// Institutional flow
	FlowDominanceRatio float64 `json:"flow_dominance_ratio" yaml:"flow_dominance_ratio" toml:"flow_dominance_ratio"`
	FlowSignalScale    float64 `json:"flow_signal_scale" yaml:"flow_signal_scale" toml:"flow_signal_scale"`

	// Structure breaks
	BreakWindow      int     `json:"break_window" yaml:"break_window" toml:"break_window"`
	BreakLookback    int     `json:"break_lookback" yaml:"break_lookback" toml:"break_lookback"`
	BreakVolumeRatio float64 `json:"break_volume_ratio" yaml:"break_volume_ratio" toml:"break_volume_ratio"`
	MaxBreaks        int     `json:"max_breaks" yaml:"max_breaks" toml:"max_breaks"`

	// Opportunities
	ConfluenceDistance       float64 `json:"confluence_distance" yaml:"confluence_distance" toml:"confluence_distance"`
	StopLossPercent          float64 `json:"stop_loss_percent" yaml:"stop_loss_percent" toml:"stop_loss_percent"`
	TakeProfitPercent        float64 `json:"take_profit_percent" yaml:"take_profit_percent" toml:"take_profit_percent"`
	RiskReward               float64 `json:"risk_reward" yaml:"risk_reward" toml:"risk_reward"`
	ConfluenceBonus          float64 `json:"confluence_bonus" yaml:"confluence_bonus" toml:"confluence_bonus"`
	MaxOpportunities         int     `json:"max_opportunities" yaml:"max_opportunities" toml:"max_opportunities"`
	ExtendedOpportunities    bool    `json:"extended_opportunities" yaml:"extended_opportunities" toml:"extended_opportunities"`
	FVGEntryReliability      float64 `json:"fvg_entry_reliability" yaml:"fvg_entry_reliability" toml:"fvg_entry_reliability"`
	LiquidityGrabReliability float64 `json:"liquidity_grab_reliability" yaml:"liquidity_grab_reliability" toml:"liquidity_grab_reliability"`
	BOSReliability           float64 `json:"bos_reliability" yaml:"bos_reliability" toml:"bos_reliability"`
}

// DefaultParams returns the stock engine parameters
func DefaultParams() Params {
	return Params{
		StructureWindow:        50,
		SwingLookback:          3,
		TrendStrength:          0.8,
		ConfirmationLevel:      0.6,
		RecentVolumePeriod:     10,
		VolumeSpikeRatio:       1.5,
		DistributionVolatility: 0.05,

		OrderBlockWindow:      100,
		OrderBlockEdge:        3,
		OrderBlockVolumeRatio: 1.5,
		OrderBlockVolumeUnit:  1_000_000,
		OrderBlockVolumeCap:   3,
		OrderBlockReliability: 0.8,
		MaxOrderBlocks:        20,

		FVGWindow:      100,
		FVGMinStrength: 0.005,
		MaxFVGs:        15,

		LiquidityWindow:    50,
		LiquidityTolerance: 0.001,
		PoolVolumeUnit:     1_000_000,

		FlowDominanceRatio: 1.5,
		FlowSignalScale:    10,

		BreakWindow:      30,
		BreakLookback:    5,
		BreakVolumeRatio: 1.3,
		MaxBreaks:        10,

		ConfluenceDistance:       0.01,
		StopLossPercent:          0.02,
		TakeProfitPercent:        0.05,
		RiskReward:               2.5,
		ConfluenceBonus:          0.1,
		MaxOpportunities:         10,
		ExtendedOpportunities:    false,
		FVGEntryReliability:      0.6,
		LiquidityGrabReliability: 0.65,
		BOSReliability:           0.7,
	}
}

// WithDefaults fills zero-valued numeric fields from DefaultParams so that
// partially specified configs stay usable. ExtendedOpportunities is opt-in,
// so its zero value already matches the default.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	fillInt(&p.StructureWindow, d.StructureWindow)
	fillInt(&p.SwingLookback, d.SwingLookback)
	fillFloat(&p.TrendStrength, d.TrendStrength)
	fillFloat(&p.ConfirmationLevel, d.ConfirmationLevel)
	fillInt(&p.RecentVolumePeriod, d.RecentVolumePeriod)
	fillFloat(&p.VolumeSpikeRatio, d.VolumeSpikeRatio)
	fillFloat(&p.DistributionVolatility, d.DistributionVolatility)

	fillInt(&p.OrderBlockWindow, d.OrderBlockWindow)
	fillInt(&p.OrderBlockEdge, d.OrderBlockEdge)
	fillFloat(&p.OrderBlockVolumeRatio, d.OrderBlockVolumeRatio)
	fillFloat(&p.OrderBlockVolumeUnit, d.OrderBlockVolumeUnit)
	fillFloat(&p.OrderBlockVolumeCap, d.OrderBlockVolumeCap)
	fillFloat(&p.OrderBlockReliability, d.OrderBlockReliability)
	fillInt(&p.MaxOrderBlocks, d.MaxOrderBlocks)

	fillInt(&p.FVGWindow, d.FVGWindow)
	fillFloat(&p.FVGMinStrength, d.FVGMinStrength)
	fillInt(&p.MaxFVGs, d.MaxFVGs)

	fillInt(&p.LiquidityWindow, d.LiquidityWindow)
	fillFloat(&p.LiquidityTolerance, d.LiquidityTolerance)
	fillFloat(&p.PoolVolumeUnit, d.PoolVolumeUnit)

	fillFloat(&p.FlowDominanceRatio, d.FlowDominanceRatio)
	fillFloat(&p.FlowSignalScale, d.FlowSignalScale)

	fillInt(&p.BreakWindow, d.BreakWindow)
	fillInt(&p.BreakLookback, d.BreakLookback)
	fillFloat(&p.BreakVolumeRatio, d.BreakVolumeRatio)
	fillInt(&p.MaxBreaks, d.MaxBreaks)

	fillFloat(&p.ConfluenceDistance, d.ConfluenceDistance)
	fillFloat(&p.StopLossPercent, d.StopLossPercent)
	fillFloat(&p.TakeProfitPercent, d.TakeProfitPercent)
	fillFloat(&p.RiskReward, d.RiskReward)
	fillFloat(&p.ConfluenceBonus, d.ConfluenceBonus)
	fillInt(&p.MaxOpportunities, d.MaxOpportunities)
	fillFloat(&p.FVGEntryReliability, d.FVGEntryReliability)
	fillFloat(&p.LiquidityGrabReliability, d.LiquidityGrabReliability)
	fillFloat(&p.BOSReliability, d.BOSReliability)
	return p
}

func fillInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func fillFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}
