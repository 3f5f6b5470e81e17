package insight

import (
	"fmt"
	"fortunex-api/internal/model"
	"math"
	"strings"
)

// Compact formats n as 1.23M, 4.5k or 12.34.
func Compact(n float64) string {
	abs := math.Abs(n)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM", n/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", n/1_000)
	default:
		return fmt.Sprintf("%.2f", n)
	}
}

// Euro prefixes Compact with a euro sign, keeping the minus in front.
func Euro(n float64) string {
	if n < 0 {
		return "-€" + Compact(-n)
	}
	return "€" + Compact(n)
}

// Summary renders the plain-text quick read shared by the copy button.
func Summary(pair *model.Pair, a Analysis) string {
	symbol := "?/?"
	if pair != nil {
		symbol = pair.Symbol()
	}

	share := "n/a"
	if a.Metrics.Txns24h() > 0 {
		share = fmt.Sprintf("%.1f%%", a.Metrics.BuyerShare*100)
	}

	var b strings.Builder
	b.WriteString("FORTUNEX AI - Quick Read\n")
	fmt.Fprintf(&b, "Pair: %s\n", symbol)
	fmt.Fprintf(&b, "Bias: %s • Score %d/100 • Confidence %d%%\n",
		a.Bias, int(math.Round(a.Score)), int(math.Round(a.Confidence)))
	fmt.Fprintf(&b, "Liquidity: %s • Vol24: %s\n", Euro(a.Metrics.LiquidityUSD), Euro(a.Metrics.Volume24h))
	fmt.Fprintf(&b, "Tx24: %d buys / %d sells • Buyer Share: %s\n",
		int64(a.Metrics.Buys24h), int64(a.Metrics.Sells24h), share)
	fmt.Fprintf(&b, "Action: %s: %s\n", a.Action.Title, a.Action.Detail)
	fmt.Fprintf(&b, "(%s)", a.Disclaimer)
	return b.String()
}
