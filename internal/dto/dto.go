package dto

import (
	"fortunex-api/internal/insight"
	"time"
)

type AnalyzeRequest struct {
	// Query is a DexScreener link, a pair or token address, or a name.
	Query string `json:"query"`
}

type PairInfo struct {
	Symbol      string  `json:"symbol"`
	ChainID     string  `json:"chain_id"`
	DexID       string  `json:"dex_id"`
	PairAddress string  `json:"pair_address"`
	URL         string  `json:"url"`
	PriceUSD    float64 `json:"price_usd"`
}

type Usage struct {
	Entitled  bool `json:"entitled"`
	InTrial   bool `json:"in_trial"`
	UsedToday int  `json:"used_today"`
	// DailyCap is the free allowance once the trial is over.
	DailyCap  int        `json:"daily_cap"`
	TrialEnds *time.Time `json:"trial_ends,omitempty"`
}

type AnalyzeResponse struct {
	Query    string           `json:"query"`
	Pair     PairInfo         `json:"pair"`
	Analysis insight.Analysis `json:"analysis"`
	Summary  string           `json:"summary"`
	Cached   bool             `json:"cached"`
	Usage    Usage            `json:"usage"`
}

type PlanResponse struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Price       string `json:"price"`
	Cents       int64  `json:"cents"`
	Currency    string `json:"currency"`
	Recurring   bool   `json:"recurring"`
	CheckoutURL string `json:"checkout_url"`
}

type UpgradeRequired struct {
	Error string         `json:"error"`
	Usage Usage          `json:"usage"`
	Plans []PlanResponse `json:"plans"`
}

type EntitlementResponse struct {
	ClientRef string     `json:"client_ref"`
	Entitled  bool       `json:"entitled"`
	Plan      string     `json:"plan,omitempty"`
	Status    string     `json:"status,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

type SessionResponse struct {
	// ClientRef is the public referral code.
	ClientRef string `json:"client_ref"`
	// Token authenticates the client in X-Session-Token. Keep it private.
	Token     string `json:"token"`
	RefSource string `json:"ref_source,omitempty"`
	Created   bool   `json:"created"`
}

type WatchlistItem struct {
	Symbol  string    `json:"symbol"`
	URL     string    `json:"url"`
	AddedAt time.Time `json:"added_at"`
}

type WatchlistRequest struct {
	Symbol string `json:"symbol"`
	URL    string `json:"url"`
}
