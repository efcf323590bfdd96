package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AiDecision is the last verdict the analysis engine gave for a candidate.
type AiDecision string

const (
	DecisionEnter AiDecision = "ENTER"
	DecisionWait  AiDecision = "WAIT"
	DecisionPass  AiDecision = "PASS"
)

// WalletSignal records one tracked-wallet buy observed for a candidate.
type WalletSignal struct {
	Wallet     string          `json:"wallet"`
	DetectedAt time.Time       `json:"detected_at"`
	AmountSol  decimal.Decimal `json:"amount_sol"`
}

// Snapshot is the collaborator-supplied view of one migration candidate.
// Missing AI fields mean "no AI input yet" and contribute nothing to the
// score; they are never an error.
type Snapshot struct {
	TokenMint        string          `json:"token_mint"`
	TokenSymbol      string          `json:"token_symbol"`
	DetectedAt       time.Time       `json:"detected_at"`
	ExpiresAt        time.Time       `json:"expires_at,omitzero"`
	WalletSignals    []WalletSignal  `json:"wallet_signals"`
	LastAiDecision   AiDecision      `json:"last_ai_decision,omitempty"`
	LastAiConfidence *float64        `json:"last_ai_confidence,omitempty"`
	PriceSol         decimal.Decimal `json:"price_sol"`
	PriceChangePct   float64         `json:"price_change_pct"`
	LiquiditySol     decimal.Decimal `json:"liquidity_sol"`
}

// Breakdown holds the independently capped component scores.
type Breakdown struct {
	Freshness     float64 `json:"freshness"`
	WalletSignals float64 `json:"wallet_signals"`
	AiConfidence  float64 `json:"ai_confidence"`
	PriceAction   float64 `json:"price_action"`
	Liquidity     float64 `json:"liquidity"`
}

// RankedMigration is the scored view of a candidate. Instances are
// superseded by each refresh, never mutated in place.
type RankedMigration struct {
	TokenMint        string         `json:"token_mint"`
	TokenSymbol      string         `json:"token_symbol"`
	Score            float64        `json:"score"`
	Breakdown        Breakdown      `json:"breakdown"`
	IsReadyToTrade   bool           `json:"is_ready_to_trade"`
	DetectedAt       time.Time      `json:"detected_at"`
	ExpiresAt        time.Time      `json:"expires_at,omitzero"`
	Expired          bool           `json:"expired"`
	ExpiresIn        time.Duration  `json:"expires_in"`
	LastAiDecision   AiDecision     `json:"last_ai_decision,omitempty"`
	LastAiConfidence *float64       `json:"last_ai_confidence,omitempty"`
	WalletSignals    []WalletSignal `json:"wallet_signals"`
}

// Weights caps each component and carries the readiness policy. The caps
// are contract; the shapes inside them (decay curve, per-wallet points) are
// tunable policy.
type Weights struct {
	FreshnessMax    float64       `mapstructure:"freshness_max"`
	WalletMax       float64       `mapstructure:"wallet_max"`
	AiConfidenceMax float64       `mapstructure:"ai_confidence_max"`
	PriceActionMax  float64       `mapstructure:"price_action_max"`
	LiquidityMax    float64       `mapstructure:"liquidity_max"`
	WalletPoints    float64       `mapstructure:"wallet_points"`
	LiquidityFull   float64       `mapstructure:"liquidity_full_sol"`
	MaxAge          time.Duration `mapstructure:"max_age"`
	ReadyThreshold  float64       `mapstructure:"ready_threshold"`
}

// DefaultWeights mirror the product's observed caps.
func DefaultWeights() Weights {
	return Weights{
		FreshnessMax:    30,
		WalletMax:       50,
		AiConfidenceMax: 25,
		PriceActionMax:  15,
		LiquidityMax:    10,
		WalletPoints:    12,
		LiquidityFull:   100,
		MaxAge:          30 * time.Minute,
		ReadyThreshold:  60,
	}
}

// MaxScore is the ceiling of the composite score under these weights.
func (w Weights) MaxScore() float64 {
	return w.FreshnessMax + w.WalletMax + w.AiConfidenceMax + w.PriceActionMax + w.LiquidityMax
}

// Evaluator computes composite scores and readiness. Pure and synchronous;
// callers pass the evaluation instant explicitly.
type Evaluator struct {
	weights Weights
}

// NewEvaluator builds an evaluator, filling zero weights from defaults.
func NewEvaluator(weights Weights) *Evaluator {
	def := DefaultWeights()
	if weights.FreshnessMax <= 0 {
		weights.FreshnessMax = def.FreshnessMax
	}
	if weights.WalletMax <= 0 {
		weights.WalletMax = def.WalletMax
	}
	if weights.AiConfidenceMax <= 0 {
		weights.AiConfidenceMax = def.AiConfidenceMax
	}
	if weights.PriceActionMax <= 0 {
		weights.PriceActionMax = def.PriceActionMax
	}
	if weights.LiquidityMax <= 0 {
		weights.LiquidityMax = def.LiquidityMax
	}
	if weights.WalletPoints <= 0 {
		weights.WalletPoints = def.WalletPoints
	}
	if weights.LiquidityFull <= 0 {
		weights.LiquidityFull = def.LiquidityFull
	}
	if weights.MaxAge <= 0 {
		weights.MaxAge = def.MaxAge
	}
	if weights.ReadyThreshold <= 0 {
		weights.ReadyThreshold = def.ReadyThreshold
	}
	return &Evaluator{weights: weights}
}

// Weights exposes the effective configuration.
func (e *Evaluator) Weights() Weights {
	return e.weights
}

// Rank scores a single candidate at the given instant.
func (e *Evaluator) Rank(s Snapshot, now time.Time) RankedMigration {
	w := e.weights

	breakdown := Breakdown{
		Freshness:     e.freshnessScore(s, now),
		WalletSignals: e.walletScore(s, now),
		AiConfidence:  e.aiConfidenceScore(s),
		PriceAction:   e.priceActionScore(s),
		Liquidity:     e.liquidityScore(s),
	}

	score := math.Round(breakdown.Freshness + breakdown.WalletSignals +
		breakdown.AiConfidence + breakdown.PriceAction + breakdown.Liquidity)

	expired := false
	var expiresIn time.Duration
	if !s.ExpiresAt.IsZero() {
		expiresIn = s.ExpiresAt.Sub(now)
		if expiresIn <= 0 {
			// Report expired state rather than a negative countdown.
			expired = true
			expiresIn = 0
		}
	}

	ready := s.LastAiDecision == DecisionEnter && score >= w.ReadyThreshold && !expired

	return RankedMigration{
		TokenMint:        s.TokenMint,
		TokenSymbol:      s.TokenSymbol,
		Score:            score,
		Breakdown:        breakdown,
		IsReadyToTrade:   ready,
		DetectedAt:       s.DetectedAt,
		ExpiresAt:        s.ExpiresAt,
		Expired:          expired,
		ExpiresIn:        expiresIn,
		LastAiDecision:   s.LastAiDecision,
		LastAiConfidence: s.LastAiConfidence,
		WalletSignals:    s.WalletSignals,
	}
}

// RankAll scores every snapshot and orders the result by score descending,
// breaking ties by earlier detection. Expired entries stay in the list with
// the flag set; filtering is the consumer's call.
func (e *Evaluator) RankAll(snapshots []Snapshot, now time.Time) []RankedMigration {
	ranked := make([]RankedMigration, 0, len(snapshots))
	for _, s := range snapshots {
		ranked = append(ranked, e.Rank(s, now))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].DetectedAt.Before(ranked[j].DetectedAt)
	})
	return ranked
}

// freshnessScore decays linearly from the cap to 0 across the candidate's
// window, hitting 0 no later than expiry.
func (e *Evaluator) freshnessScore(s Snapshot, now time.Time) float64 {
	if s.DetectedAt.IsZero() {
		return 0
	}

	window := e.window(s)
	age := now.Sub(s.DetectedAt)
	if age < 0 {
		age = 0
	}
	if age >= window {
		return 0
	}

	score := e.weights.FreshnessMax * (1 - float64(age)/float64(window))
	return clamp(score, e.weights.FreshnessMax)
}

// walletScore awards points per distinct wallet, halved once a signal has
// aged past half the window.
func (e *Evaluator) walletScore(s Snapshot, now time.Time) float64 {
	if len(s.WalletSignals) == 0 {
		return 0
	}

	halfWindow := e.window(s) / 2
	seen := make(map[string]struct{}, len(s.WalletSignals))
	score := 0.0
	for _, sig := range s.WalletSignals {
		if _, dup := seen[sig.Wallet]; dup {
			continue
		}
		seen[sig.Wallet] = struct{}{}

		points := e.weights.WalletPoints
		if !sig.DetectedAt.IsZero() && now.Sub(sig.DetectedAt) > halfWindow {
			points /= 2
		}
		score += points
	}
	return clamp(score, e.weights.WalletMax)
}

func (e *Evaluator) aiConfidenceScore(s Snapshot) float64 {
	if s.LastAiDecision == "" || s.LastAiConfidence == nil {
		return 0
	}
	conf := *s.LastAiConfidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return clamp(conf*e.weights.AiConfidenceMax, e.weights.AiConfidenceMax)
}

// priceActionScore credits upward momentum one point per percent gained.
func (e *Evaluator) priceActionScore(s Snapshot) float64 {
	if s.PriceChangePct <= 0 {
		return 0
	}
	return clamp(s.PriceChangePct, e.weights.PriceActionMax)
}

// liquidityScore grows linearly toward the cap at the full-credit depth.
func (e *Evaluator) liquidityScore(s Snapshot) float64 {
	liq := s.LiquiditySol.InexactFloat64()
	if liq <= 0 {
		return 0
	}
	return clamp(e.weights.LiquidityMax*liq/e.weights.LiquidityFull, e.weights.LiquidityMax)
}

func (e *Evaluator) window(s Snapshot) time.Duration {
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.After(s.DetectedAt) {
		return s.ExpiresAt.Sub(s.DetectedAt)
	}
	return e.weights.MaxAge
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
