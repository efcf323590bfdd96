package feed

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Known upstream event types. Anything else is dropped at the boundary.
const (
	EventAiAnalysis          = "ai_analysis"
	EventPositionOpened      = "position_opened"
	EventPositionClosed      = "position_closed"
	EventTakeProfitTriggered = "take_profit_triggered"
	EventWalletBuyDetected   = "wallet_buy_detected"
	EventWalletSignal        = "wallet_signal"
	EventSignalDetected      = "signal_detected"
	EventAiReasoning         = "ai_reasoning"
	EventNoMarketData        = "no_market_data"
)

// RawEvent is the loosely typed envelope delivered by the upstream stream.
// Data is decoded exactly once, inside Normalize; nothing downstream touches
// the raw payload again.
type RawEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DecisionKind is the closed set of normalized feed record kinds.
type DecisionKind string

const (
	KindBuy       DecisionKind = "BUY"
	KindReject    DecisionKind = "REJECT"
	KindSell      DecisionKind = "SELL"
	KindProfit    DecisionKind = "PROFIT"
	KindLoss      DecisionKind = "LOSS"
	KindSignal    DecisionKind = "SIGNAL"
	KindAnalyzing DecisionKind = "ANALYZING"
)

// TradeDetails carries the optional trade sub-record for entry events.
type TradeDetails struct {
	EntryPrice decimal.Decimal `json:"entry_price"`
	AmountSol  decimal.Decimal `json:"amount_sol"`
}

// NormalizedDecision is the canonical record derived from exactly one
// RawEvent. It is never mutated after creation.
type NormalizedDecision struct {
	ID          string           `json:"id"`
	Kind        DecisionKind     `json:"kind"`
	TokenSymbol string           `json:"token_symbol"`
	TokenMint   string           `json:"token_mint,omitempty"`
	Confidence  *float64         `json:"confidence,omitempty"`
	Reasoning   string           `json:"reasoning,omitempty"`
	PnlSol      *decimal.Decimal `json:"pnl_sol,omitempty"`
	PnlPercent  *decimal.Decimal `json:"pnl_percent,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Details     *TradeDetails    `json:"details,omitempty"`
}

// Key implements Keyed for buffer de-duplication.
func (d NormalizedDecision) Key() string {
	return d.ID
}

// RejectionCause buckets rejection reasoning for badge display.
type RejectionCause string

const (
	CauseLowLiquidity RejectionCause = "low-liq"
	CauseLowVolume    RejectionCause = "low-vol"
	CauseNoData       RejectionCause = "no-data"
	CauseHighRisk     RejectionCause = "high-risk"
	CauseAge          RejectionCause = "age"
	CauseHolders      RejectionCause = "holders"
	CauseCriteria     RejectionCause = "criteria"
)
