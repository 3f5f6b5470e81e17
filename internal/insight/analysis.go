package insight

import (
	"fmt"
	"fortunex-api/internal/model"
	"math"
	"time"
)

type Label string

const (
	Favorable   Label = "favorable"
	Neutral     Label = "neutral"
	Unfavorable Label = "unfavorable"
)

// Bias is the display name shown next to the score.
func (l Label) Bias() string {
	switch l {
	case Favorable:
		return "Bullish"
	case Unfavorable:
		return "Bearish"
	default:
		return "Neutral"
	}
}

type Action struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Bars are 0-10 gauges derived from the same inputs as the score.
type Bars struct {
	Stability float64 `json:"stability"`
	Growth    float64 `json:"growth"`
	Momentum  float64 `json:"momentum"`
}

// Metrics are the sanitized inputs the score was computed from.
type Metrics struct {
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24h    float64 `json:"volume_24h"`
	Buys24h      float64 `json:"buys_24h"`
	Sells24h     float64 `json:"sells_24h"`
	BuyerShare   float64 `json:"buyer_share"`
	Change1h     float64 `json:"change_1h"`
	Change6h     float64 `json:"change_6h"`
	Change24h    float64 `json:"change_24h"`
	MarketCap    float64 `json:"market_cap"`
	AgeDays      *int    `json:"age_days,omitempty"`
}

func (m Metrics) Txns24h() float64 {
	return m.Buys24h + m.Sells24h
}

type Analysis struct {
	Score      float64  `json:"score"`
	Label      Label    `json:"label"`
	Bias       string   `json:"bias"`
	Confidence float64  `json:"confidence"`
	Pros       []string `json:"pros"`
	Cons       []string `json:"cons"`
	Flags      []string `json:"flags"`
	Rationale  string   `json:"rationale"`
	Action     Action   `json:"action"`
	Bars       Bars     `json:"bars"`
	Metrics    Metrics  `json:"metrics"`
	Disclaimer string   `json:"disclaimer"`
}

// Analyze scores pair with DefaultPolicy.
func Analyze(pair *model.Pair, now time.Time) Analysis {
	return DefaultPolicy().Analyze(pair, now)
}

// MetricsFrom extracts scoring inputs. A nil pair yields all zeros.
func MetricsFrom(pair *model.Pair, now time.Time) Metrics {
	if pair == nil {
		return Metrics{}
	}

	m := Metrics{
		LiquidityUSD: finite(pair.Liquidity.USD.Float()),
		Volume24h:    finite(pair.Volume.H24.Float()),
		Buys24h:      finite(pair.Txns.H24.Buys.Float()),
		Sells24h:     finite(pair.Txns.H24.Sells.Float()),
		Change1h:     finite(pair.PriceChange.H1.Float()),
		Change6h:     finite(pair.PriceChange.H6.Float()),
		Change24h:    finite(pair.PriceChange.H24.Float()),
		MarketCap:    finite(pair.FDV.Float()),
	}
	if m.LiquidityUSD == 0 {
		m.LiquidityUSD = finite(pair.Liquidity.Base.Float())
	}
	if m.MarketCap == 0 {
		m.MarketCap = finite(pair.MarketCap.Float())
	}
	if m.Buys24h < 0 {
		m.Buys24h = 0
	}
	if m.Sells24h < 0 {
		m.Sells24h = 0
	}
	if tx := m.Txns24h(); tx > 0 {
		m.BuyerShare = m.Buys24h / tx
	}
	if created, ok := pair.CreatedAt(); ok {
		days := int(now.Sub(created).Hours() / 24)
		if days < 0 {
			days = 0
		}
		m.AgeDays = &days
	}
	return m
}

func (p Policy) Analyze(pair *model.Pair, now time.Time) Analysis {
	m := MetricsFrom(pair, now)

	a := Analysis{
		Pros:       []string{},
		Cons:       []string{},
		Flags:      []string{},
		Metrics:    m,
		Disclaimer: Disclaimer,
	}

	p.explain(&a, m)

	score := p.Baseline
	score += p.Liquidity.points(m.LiquidityUSD)
	score += p.Volume.points(m.Volume24h)
	score += p.Txns.points(m.Txns24h())
	switch {
	case m.Change24h >= p.StrongMomentum24h:
		score += p.StrongMomentumPts
	case m.Change24h <= p.Dump24h:
		score += p.DumpPts
	}
	if m.Txns24h() > 0 {
		switch {
		case m.BuyerShare >= p.BuyerShareHigh:
			score += p.BuyerShareHighPts
		case m.BuyerShare <= p.BuyerShareLow:
			score += p.BuyerShareLowPts
		}
	}
	if m.AgeDays != nil {
		switch {
		case *m.AgeDays >= p.MatureAgeDays:
			score += p.MaturePts
		case *m.AgeDays <= p.NewPairDays:
			score += p.NewPairPts
		}
	}
	a.Score = clamp(score, 0, 100)

	a.Label = p.label(a.Score)
	a.Bias = a.Label.Bias()
	a.Confidence = p.confidence(a.Score, m)
	a.Rationale = rationale(a.Label)
	a.Action = p.action(a.Label, m)
	a.Bars = p.bars(m)

	return a
}

func (p Policy) explain(a *Analysis, m Metrics) {
	switch {
	case m.LiquidityUSD >= p.Liquidity.High:
		a.Pros = append(a.Pros, "Strong liquidity pool supports smoother execution.")
	case m.LiquidityUSD >= p.Liquidity.Mid:
		a.Pros = append(a.Pros, "Adequate liquidity for typical retail entries.")
	case m.LiquidityUSD > 0:
		a.Cons = append(a.Cons, "Low liquidity may cause slippage and exit risk.")
		a.Flags = append(a.Flags, "Slippage/exit risk")
	default:
		a.Cons = append(a.Cons, "No liquidity data reported.")
	}

	switch {
	case m.Volume24h >= p.Volume.High:
		a.Pros = append(a.Pros, "High 24h volume indicating active interest.")
	case m.Volume24h > 0 && m.Volume24h < p.ThinVolume:
		a.Cons = append(a.Cons, "Thin 24h volume; may be illiquid outside peak hours.")
	}

	tx := m.Txns24h()
	switch {
	case tx >= p.Txns.High:
		a.Pros = append(a.Pros, "Heavy transaction count; strong market participation.")
	case tx > 0 && tx < p.LowTxns:
		a.Cons = append(a.Cons, "Low transaction count; weak participation.")
	}

	if m.Change24h >= p.StrongMomentum24h {
		a.Pros = append(a.Pros, "Strong 24h price momentum.")
	}
	if m.Change6h >= p.Uptrend6h {
		a.Pros = append(a.Pros, "Short-term uptrend visible in last 6h.")
	}
	if m.Change24h <= p.Dump24h {
		a.Cons = append(a.Cons, "Down 24h significantly; momentum risk.")
		a.Flags = append(a.Flags, "Momentum dump risk")
	}
	if m.Change1h <= p.Pullback1h && m.Change24h > 0 {
		a.Cons = append(a.Cons, "Sharp 1h pullback; watch for continuation or reversal.")
	}

	if tx > 0 {
		share := int(math.Round(m.BuyerShare * 100))
		switch {
		case m.BuyerShare >= p.BuyerShareHigh:
			a.Pros = append(a.Pros, fmt.Sprintf("Buyer share %d%% (demand bias).", share))
		case m.BuyerShare <= p.BuyerShareLow:
			a.Cons = append(a.Cons, fmt.Sprintf("Buyer share only %d%% (supply pressure).", share))
		}
	}

	if m.AgeDays != nil {
		switch {
		case *m.AgeDays >= p.MatureAgeDays:
			a.Pros = append(a.Pros, "Mature pair age (trust/price discovery).")
		case *m.AgeDays <= p.NewPairDays:
			a.Cons = append(a.Cons, "Very new pair; heightened rug/scam risk.")
			a.Flags = append(a.Flags, "New pair risk")
		}
	}

	switch {
	case m.MarketCap > 0 && m.MarketCap < p.SmallCap:
		a.Pros = append(a.Pros, "Low cap with room for upside if traction holds.")
	case m.MarketCap >= p.LargeCap:
		a.Cons = append(a.Cons, "Large market cap; upside may be slower.")
	}
}

// confidence discounts the score by how many inputs were reported and by
// how violent the last hour was.
func (p Policy) confidence(score float64, m Metrics) float64 {
	inputs := []float64{
		m.LiquidityUSD, m.Volume24h, m.Txns24h(),
		m.Change1h, m.Change6h, m.Change24h,
		m.BuyerShare, m.MarketCap,
	}
	present := 0
	for _, v := range inputs {
		if v != 0 {
			present++
		}
	}
	total := len(inputs) + 1
	if m.AgeDays != nil {
		present++
	}
	completeness := float64(present) / float64(total)

	penalty := math.Max(0, math.Abs(m.Change1h)-p.CalmMove1h) / 30
	return clamp(score*(0.6+0.4*completeness)*(1-penalty), 0, 100)
}

func rationale(l Label) string {
	switch l {
	case Favorable:
		return "Setup leans favorable: liquidity & participation are solid with positive momentum. Consider staged entries and strict risk caps."
	case Neutral:
		return "Mixed signals: watch liquidity and near-term momentum. Consider waiting for confirmation or tighter stops."
	default:
		return "Risk-heavy profile: weak participation/liquidity or negative momentum. Best skipped unless a clear catalyst emerges."
	}
}

func (p Policy) action(l Label, m Metrics) Action {
	switch {
	case l == Favorable && m.Change1h <= p.DipMove1h && m.Change24h > p.DipTrend24h:
		return Action{Title: "Buy the dip (laddered)", Detail: "24h uptrend with healthy pullback. Scale in across 2-3 entries."}
	case l == Favorable && m.Change1h > p.OverheatedMove1h:
		return Action{Title: "Wait for cooldown", Detail: "1h overheated. Look for consolidation or a 5-10% pullback."}
	case l == Unfavorable && m.Change24h < p.Dump24h:
		return Action{Title: "Avoid / Protect capital", Detail: "Momentum down and participation weak. Preserve cash for better setups."}
	case l != Unfavorable && m.Change24h > p.TrailGain24h:
		return Action{Title: "Trail profits / Reduce risk", Detail: "Large 24h gain. Consider trailing stops or partial take-profit."}
	default:
		return Action{Title: "Wait for retest", Detail: "Neutral read. Let price confirm with sustained buys and volume."}
	}
}

func (p Policy) bars(m Metrics) Bars {
	var stability float64
	switch {
	case m.LiquidityUSD >= p.Liquidity.High:
		stability += 6
	case m.LiquidityUSD >= p.Liquidity.Mid:
		stability += 4
	default:
		stability += 2
	}
	switch tx := m.Txns24h(); {
	case tx >= p.Txns.High:
		stability += 4
	case tx >= p.Txns.Mid:
		stability += 2
	}

	var growth float64
	switch {
	case m.Volume24h >= p.Volume.High:
		growth += 6
	case m.Volume24h >= p.Volume.Mid:
		growth += 4
	default:
		growth += 2
	}
	if m.MarketCap > 0 && m.MarketCap < p.SmallCap {
		growth += 4
	} else {
		growth += 2
	}

	momentum := 5 + m.Change6h/20 + m.Change24h/20

	return Bars{
		Stability: clamp(stability, 0, 10),
		Growth:    clamp(growth, 0, 10),
		Momentum:  clamp(momentum, 0, 10),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
