// Package insight turns a market pair snapshot into an advisory score.
//
// Every result is advisory and carries Disclaimer. Nothing here is a
// pricing or risk model; thresholds live in Policy so a single place
// decides them.
package insight

// Disclaimer is part of every Analysis and must be shown with it.
const Disclaimer = "Educational use only. Not financial advice."

// Band scores a non-negative metric in three tiers. A zero value means the
// metric was not reported and scores nothing.
type Band struct {
	High    float64
	Mid     float64
	HighPts float64
	MidPts  float64
	LowPts  float64
}

func (b Band) points(v float64) float64 {
	switch {
	case v <= 0:
		return 0
	case v >= b.High:
		return b.HighPts
	case v >= b.Mid:
		return b.MidPts
	default:
		return b.LowPts
	}
}

type Policy struct {
	Baseline    float64
	FavorableAt float64
	NeutralAt   float64

	Liquidity Band
	Volume    Band
	Txns      Band

	ThinVolume float64
	LowTxns    float64

	StrongMomentum24h float64
	StrongMomentumPts float64
	Dump24h           float64
	DumpPts           float64
	Uptrend6h         float64
	Pullback1h        float64

	BuyerShareHigh    float64
	BuyerShareLow     float64
	BuyerShareHighPts float64
	BuyerShareLowPts  float64

	MatureAgeDays int
	NewPairDays   int
	MaturePts     float64
	NewPairPts    float64

	SmallCap float64
	LargeCap float64

	// 1h moves above this start eating into confidence.
	CalmMove1h float64

	OverheatedMove1h float64
	DipMove1h        float64
	DipTrend24h      float64
	TrailGain24h     float64
}

// DefaultPolicy is the 0-100 policy used by the API.
func DefaultPolicy() Policy {
	return Policy{
		Baseline:    50,
		FavorableAt: 70,
		NeutralAt:   45,

		Liquidity: Band{High: 150_000, Mid: 40_000, HighPts: 12, MidPts: 6, LowPts: -8},
		Volume:    Band{High: 1_000_000, Mid: 100_000, HighPts: 10, MidPts: 5, LowPts: -6},
		Txns:      Band{High: 2000, Mid: 300, HighPts: 8, MidPts: 3, LowPts: -5},

		ThinVolume: 50_000,
		LowTxns:    100,

		StrongMomentum24h: 20,
		StrongMomentumPts: 7,
		Dump24h:           -15,
		DumpPts:           -8,
		Uptrend6h:         10,
		Pullback1h:        -7,

		BuyerShareHigh:    0.55,
		BuyerShareLow:     0.45,
		BuyerShareHighPts: 5,
		BuyerShareLowPts:  -4,

		MatureAgeDays: 60,
		NewPairDays:   2,
		MaturePts:     5,
		NewPairPts:    -6,

		SmallCap: 10_000_000,
		LargeCap: 100_000_000,

		CalmMove1h: 5,

		OverheatedMove1h: 6,
		DipMove1h:        -3,
		DipTrend24h:      10,
		TrailGain24h:     30,
	}
}

func (p Policy) label(score float64) Label {
	switch {
	case score >= p.FavorableAt:
		return Favorable
	case score >= p.NeutralAt:
		return Neutral
	default:
		return Unfavorable
	}
}
