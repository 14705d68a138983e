package analysis

import (
	"time"
)

// Candle is a single OHLCV bar. Timestamp is the bar open time in unix milliseconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// IsBullish reports whether the candle closed above its open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Body returns the absolute open/close distance
func (c Candle) Body() float64 {
	return abs(c.Close - c.Open)
}

// Range returns the high/low distance
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Time returns the candle open time
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Trend classifies the direction of market structure
type Trend string

const (
	TrendUp       Trend = "UPTREND"
	TrendDown     Trend = "DOWNTREND"
	TrendSideways Trend = "SIDEWAYS"
)

// Phase is the Wyckoff-style market phase
type Phase string

const (
	PhaseAccumulation Phase = "ACCUMULATION"
	PhaseMarkup       Phase = "MARKUP"
	PhaseDistribution Phase = "DISTRIBUTION"
	PhaseMarkdown     Phase = "MARKDOWN"
)

// MarketStructure is the current trend/phase classification for a symbol
type MarketStructure struct {
	Trend        Trend     `json:"trend"`
	Phase        Phase     `json:"phase"`
	Strength     float64   `json:"strength"`
	Confirmation bool      `json:"confirmation"`
	Timeframe    string    `json:"timeframe"`
	LastUpdate   time.Time `json:"last_update"`
}

// OrderBlockType distinguishes bullish and bearish order blocks
type OrderBlockType string

const (
	BullishOB OrderBlockType = "BULLISH_OB"
	BearishOB OrderBlockType = "BEARISH_OB"
)

// FlowSide is the side institutions are assumed to be trading
type FlowSide string

const (
	FlowBuy  FlowSide = "BUY"
	FlowSell FlowSide = "SELL"
)

// OrderBlock is a high-volume candle that preceded a directional continuation.
// Top and Bottom are the source candle's high and low.
type OrderBlock struct {
	ID                string         `json:"id"`
	Price             float64        `json:"price"`
	Type              OrderBlockType `json:"type"`
	Strength          float64        `json:"strength"`
	Volume            float64        `json:"volume"`
	Timestamp         time.Time      `json:"timestamp"`
	Top               float64        `json:"top"`
	Bottom            float64        `json:"bottom"`
	Tested            bool           `json:"tested"`
	Breached          bool           `json:"breached"`
	Reliability       float64        `json:"reliability"`
	InstitutionalFlow FlowSide       `json:"institutional_flow"`
}

// IsBullish reports whether the block is a bullish order block
func (ob OrderBlock) IsBullish() bool {
	return ob.Type == BullishOB
}

// FVGType represents the type of Fair Value Gap
type FVGType string

const (
	BullishFVG FVGType = "BULLISH_FVG"
	BearishFVG FVGType = "BEARISH_FVG"
)

// FairValueGap is a price range skipped between two adjacent candles
type FairValueGap struct {
	ID          string    `json:"id"`
	Upper       float64   `json:"upper"`
	Lower       float64   `json:"lower"`
	Middle      float64   `json:"middle"`
	Type        FVGType   `json:"type"`
	Strength    float64   `json:"strength"`
	Filled      bool      `json:"filled"`
	PartialFill float64   `json:"partial_fill"`
	Volume      float64   `json:"volume"`
	Efficiency  float64   `json:"efficiency"`
	Timestamp   time.Time `json:"timestamp"`
}

// PoolType is the side of resting liquidity
type PoolType string

const (
	BuySide  PoolType = "BUY_SIDE"
	SellSide PoolType = "SELL_SIDE"
)

// LiquidityPool is a cluster of equal highs or lows
type LiquidityPool struct {
	ID          string    `json:"id"`
	Price       float64   `json:"price"`
	Type        PoolType  `json:"type"`
	Size        float64   `json:"size"`
	Accumulated float64   `json:"accumulated"`
	Grabbed     bool      `json:"grabbed"`
	Efficiency  float64   `json:"efficiency"`
	Confluence  int       `json:"confluence"`
	LastTouch   time.Time `json:"last_touch"`
}

// Direction is a directional bias shared by flow and structure breaks
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
	Neutral Direction = "NEUTRAL"
)

// FlowCharacteristics counts the signals that fed a flow assessment
type FlowCharacteristics struct {
	OrderBlocks      int `json:"order_blocks"`
	FVGs             int `json:"fvgs"`
	LiquidityGrabs   int `json:"liquidity_grabs"`
	StructuralBreaks int `json:"structural_breaks"`
}

// InstitutionalFlow is the aggregated directional read of smart money activity
type InstitutionalFlow struct {
	Direction            Direction           `json:"direction"`
	Strength             float64             `json:"strength"`
	Confidence           float64             `json:"confidence"`
	Characteristics      FlowCharacteristics `json:"characteristics"`
	SmartMoneyActivities []string            `json:"smart_money_activities"`
}

// BreakType distinguishes continuation breaks from reversals
type BreakType string

const (
	BOS   BreakType = "BOS"
	CHoCH BreakType = "CHoCH"
)

// BreakOfStructure is a move beyond a recent extreme
type BreakOfStructure struct {
	ID             string    `json:"id"`
	Type           BreakType `json:"type"`
	Direction      Direction `json:"direction"`
	Strength       float64   `json:"strength"`
	ConfirmedLevel float64   `json:"confirmed_level"`
	Volume         float64   `json:"volume"`
	FollowThrough  bool      `json:"follow_through"`
	Timestamp      time.Time `json:"timestamp"`
}

// FactorType names the source of a confluence factor
type FactorType string

const (
	FactorOrderBlock    FactorType = "ORDER_BLOCK"
	FactorFVG           FactorType = "FVG"
	FactorLiquidity     FactorType = "LIQUIDITY"
	FactorStructure     FactorType = "STRUCTURE"
	FactorFibonacci     FactorType = "FIBONACCI"
	FactorVolumeProfile FactorType = "VOLUME_PROFILE"
)

// ConfluenceFactor is one supporting signal behind an opportunity
type ConfluenceFactor struct {
	Type        FactorType `json:"type"`
	Strength    float64    `json:"strength"`
	Description string     `json:"description"`
}

// OpportunityType is the setup an opportunity trades
type OpportunityType string

const (
	OrderBlockRetest OpportunityType = "ORDER_BLOCK_RETEST"
	FVGEntry         OpportunityType = "FVG_ENTRY"
	LiquidityGrab    OpportunityType = "LIQUIDITY_GRAB"
	BOSContinuation  OpportunityType = "BOS_CONTINUATION"
)

// TradingOpportunity is a ranked trade idea derived from the detected footprints
type TradingOpportunity struct {
	ID          string             `json:"id"`
	Type        OpportunityType    `json:"type"`
	Symbol      string             `json:"symbol"`
	Direction   Direction          `json:"direction"`
	Entry       float64            `json:"entry"`
	StopLoss    float64            `json:"stop_loss"`
	TakeProfit  float64            `json:"take_profit"`
	RiskReward  float64            `json:"risk_reward"`
	Probability float64            `json:"probability"`
	Confluence  []ConfluenceFactor `json:"confluence"`
}
