package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	defaultTokenSymbol = "Token"
	defaultWalletLabel = "Unknown"

	// Entry events carry no model output, so the feed shows a fixed
	// confidence for them.
	openedConfidence = 0.85
)

// Normalize maps a raw upstream event onto a normalized feed record. The
// second return value is false for event types outside the recognized set;
// callers must skip those, not treat them as errors. Malformed payloads
// never fail the mapping: missing fields fall back to per-field defaults.
func Normalize(ev RawEvent) (NormalizedDecision, bool) {
	switch ev.Type {
	case EventAiAnalysis:
		return normalizeAiAnalysis(ev), true
	case EventPositionOpened:
		return normalizePositionOpened(ev), true
	case EventTakeProfitTriggered, EventPositionClosed:
		return normalizePositionClosed(ev), true
	case EventWalletBuyDetected, EventWalletSignal:
		return normalizeWalletSignal(ev), true
	case EventSignalDetected:
		return normalizeSignalDetected(ev), true
	case EventAiReasoning:
		return normalizeAiReasoning(ev), true
	case EventNoMarketData:
		return normalizeNoMarketData(ev), true
	default:
		return NormalizedDecision{}, false
	}
}

type aiAnalysisPayload struct {
	Decision    string   `json:"decision"`
	TokenSymbol string   `json:"token_symbol"`
	Symbol      string   `json:"symbol"`
	Mint        string   `json:"mint"`
	Confidence  *float64 `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
}

func normalizeAiAnalysis(ev RawEvent) NormalizedDecision {
	var p aiAnalysisPayload
	decodePayload(ev.Data, &p)

	kind := KindAnalyzing
	switch strings.ToUpper(p.Decision) {
	case "ENTER", "BUY":
		kind = KindBuy
	case "PASS", "REJECT":
		kind = KindReject
	}

	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        kind,
		TokenSymbol: firstNonEmpty(p.TokenSymbol, p.Symbol, defaultTokenSymbol),
		TokenMint:   p.Mint,
		Confidence:  clampConfidence(p.Confidence),
		Reasoning:   p.Reasoning,
		Timestamp:   ev.Timestamp,
	}
}

type positionOpenedPayload struct {
	Symbol      string          `json:"symbol"`
	Ticker      string          `json:"ticker"`
	TokenSymbol string          `json:"tokenSymbol"`
	Mint        string          `json:"mint"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	AmountSol   decimal.Decimal `json:"amount_sol"`
}

func normalizePositionOpened(ev RawEvent) NormalizedDecision {
	var p positionOpenedPayload
	decodePayload(ev.Data, &p)

	conf := openedConfidence
	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        KindBuy,
		TokenSymbol: firstNonEmpty(p.Symbol, p.Ticker, p.TokenSymbol, defaultTokenSymbol),
		TokenMint:   p.Mint,
		Confidence:  &conf,
		Reasoning:   "Entry criteria met, position opened",
		Timestamp:   ev.Timestamp,
		Details: &TradeDetails{
			EntryPrice: p.EntryPrice,
			AmountSol:  p.AmountSol,
		},
	}
}

type positionClosedPayload struct {
	Symbol           string           `json:"symbol"`
	Ticker           string           `json:"ticker"`
	Mint             string           `json:"mint"`
	TotalPnlSol      *decimal.Decimal `json:"total_pnl_sol"`
	Realized         *decimal.Decimal `json:"realized"`
	PnlPercent       *decimal.Decimal `json:"pnl_percent"`
	TargetMultiplier *float64         `json:"target_multiplier"`
	Reason           string           `json:"reason"`
}

func normalizePositionClosed(ev RawEvent) NormalizedDecision {
	var p positionClosedPayload
	decodePayload(ev.Data, &p)

	pnl := decimal.Zero
	if p.TotalPnlSol != nil {
		pnl = *p.TotalPnlSol
	} else if p.Realized != nil {
		pnl = *p.Realized
	}

	kind := KindProfit
	if pnl.IsNegative() {
		kind = KindLoss
	}

	reasoning := "Position closed"
	switch {
	case p.TargetMultiplier != nil:
		reasoning = fmt.Sprintf("Take profit triggered at %.1fx", *p.TargetMultiplier)
	case p.Reason != "":
		reasoning = "Position closed: " + p.Reason
	}

	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        kind,
		TokenSymbol: firstNonEmpty(p.Symbol, p.Ticker, defaultTokenSymbol),
		TokenMint:   p.Mint,
		Reasoning:   reasoning,
		PnlSol:      &pnl,
		PnlPercent:  p.PnlPercent,
		Timestamp:   ev.Timestamp,
	}
}

type walletSignalPayload struct {
	Wallet string `json:"wallet"`
	Token  string `json:"token"`
	Mint   string `json:"mint"`
}

func normalizeWalletSignal(ev RawEvent) NormalizedDecision {
	var p walletSignalPayload
	decodePayload(ev.Data, &p)

	wallet := firstNonEmpty(p.Wallet, defaultWalletLabel)
	token := firstNonEmpty(p.Token, defaultTokenSymbol)

	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        KindSignal,
		TokenSymbol: token,
		TokenMint:   p.Mint,
		Reasoning:   fmt.Sprintf("Tracked wallet %s bought %s", wallet, token),
		Timestamp:   ev.Timestamp,
	}
}

type signalDetectedPayload struct {
	Signal struct {
		TokenSymbol    string   `json:"token_symbol"`
		Mint           string   `json:"mint"`
		SignalStrength *float64 `json:"signal_strength"`
		Description    string   `json:"description"`
	} `json:"signal"`
}

func normalizeSignalDetected(ev RawEvent) NormalizedDecision {
	var p signalDetectedPayload
	decodePayload(ev.Data, &p)

	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        KindSignal,
		TokenSymbol: firstNonEmpty(p.Signal.TokenSymbol, defaultTokenSymbol),
		TokenMint:   p.Signal.Mint,
		Confidence:  clampConfidence(p.Signal.SignalStrength),
		Reasoning:   p.Signal.Description,
		Timestamp:   ev.Timestamp,
	}
}

type aiReasoningPayload struct {
	WillTrade  bool     `json:"will_trade"`
	Symbol     string   `json:"symbol"`
	Mint       string   `json:"mint"`
	Conviction *float64 `json:"conviction"`
	Reasoning  string   `json:"reasoning"`
}

func normalizeAiReasoning(ev RawEvent) NormalizedDecision {
	var p aiReasoningPayload
	decodePayload(ev.Data, &p)

	kind := KindReject
	if p.WillTrade {
		kind = KindBuy
	}

	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        kind,
		TokenSymbol: firstNonEmpty(p.Symbol, defaultTokenSymbol),
		TokenMint:   p.Mint,
		Confidence:  clampConfidence(p.Conviction),
		Reasoning:   p.Reasoning,
		Timestamp:   ev.Timestamp,
	}
}

type noMarketDataPayload struct {
	Symbol string `json:"symbol"`
	Mint   string `json:"mint"`
	Reason string `json:"reason"`
}

func normalizeNoMarketData(ev RawEvent) NormalizedDecision {
	var p noMarketDataPayload
	decodePayload(ev.Data, &p)

	return NormalizedDecision{
		ID:          ev.ID,
		Kind:        KindReject,
		TokenSymbol: firstNonEmpty(p.Symbol, defaultTokenSymbol),
		TokenMint:   p.Mint,
		Reasoning:   firstNonEmpty(p.Reason, "No market data available"),
		Timestamp:   ev.Timestamp,
	}
}

// rejectionRules is consulted in order; the first keyword hit wins.
var rejectionRules = []struct {
	keywords []string
	cause    RejectionCause
}{
	{[]string{"liquidity"}, CauseLowLiquidity},
	{[]string{"volume"}, CauseLowVolume},
	{[]string{"market data", "no data"}, CauseNoData},
	{[]string{"risk"}, CauseHighRisk},
	{[]string{"age", "too new", "too old"}, CauseAge},
	{[]string{"holder"}, CauseHolders},
}

// ClassifyRejection tags rejection reasoning with a display cause. Empty
// reasoning yields no cause; text with no keyword hit falls through to the
// generic criteria bucket.
func ClassifyRejection(reasoning string) (RejectionCause, bool) {
	if strings.TrimSpace(reasoning) == "" {
		return "", false
	}

	lowered := strings.ToLower(reasoning)
	for _, rule := range rejectionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.cause, true
			}
		}
	}
	return CauseCriteria, true
}

// decodePayload tolerates nil, empty, and malformed payloads. Decode errors
// leave the target at its zero value so field defaults apply.
func decodePayload(data json.RawMessage, target any) {
	if len(data) == 0 {
		return
	}
	_ = json.Unmarshal(data, target)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clampConfidence(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return &c
}
