package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Number decodes a JSON number, a numeric string or null. Anything it
// cannot parse becomes zero instead of failing the whole snapshot.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = 0

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		b = []byte(s)
	}

	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Number(v)
	return nil
}

func (n Number) Float() float64 {
	return float64(n)
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type TxnCount struct {
	Buys  Number `json:"buys"`
	Sells Number `json:"sells"`
}

type Txns struct {
	M5  TxnCount `json:"m5"`
	H1  TxnCount `json:"h1"`
	H6  TxnCount `json:"h6"`
	H24 TxnCount `json:"h24"`
}

type Windowed struct {
	M5  Number `json:"m5"`
	H1  Number `json:"h1"`
	H6  Number `json:"h6"`
	H24 Number `json:"h24"`
}

type Liquidity struct {
	USD   Number `json:"usd"`
	Base  Number `json:"base"`
	Quote Number `json:"quote"`
}

// Pair is one market listing as returned by the DexScreener search API.
type Pair struct {
	ChainID       string    `json:"chainId"`
	DexID         string    `json:"dexId"`
	URL           string    `json:"url"`
	PairAddress   string    `json:"pairAddress"`
	BaseToken     Token     `json:"baseToken"`
	QuoteToken    Token     `json:"quoteToken"`
	PriceNative   Number    `json:"priceNative"`
	PriceUSD      Number    `json:"priceUsd"`
	Txns          Txns      `json:"txns"`
	Volume        Windowed  `json:"volume"`
	PriceChange   Windowed  `json:"priceChange"`
	Liquidity     Liquidity `json:"liquidity"`
	FDV           Number    `json:"fdv"`
	MarketCap     Number    `json:"marketCap"`
	PairCreatedAt Number    `json:"pairCreatedAt"` // unix ms
}

func (p *Pair) Symbol() string {
	return p.BaseToken.Symbol + "/" + p.QuoteToken.Symbol
}

// CreatedAt returns the pair creation time, or false when the API omitted it.
func (p *Pair) CreatedAt() (time.Time, bool) {
	if p.PairCreatedAt <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(p.PairCreatedAt)), true
}

type SearchResponse struct {
	SchemaVersion string  `json:"schemaVersion"`
	Pairs         []*Pair `json:"pairs"`
}
