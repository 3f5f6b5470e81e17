package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"fortunex-api/internal/cache"
	"fortunex-api/internal/checkout"
	"fortunex-api/internal/client"
	"fortunex-api/internal/config"
	"fortunex-api/internal/middleware"
	"fortunex-api/internal/model"
	"fortunex-api/internal/repository"
	"fortunex-api/internal/server"
	"fortunex-api/internal/service"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const webhookSecret = "whsec_server_test"

type testApp struct {
	srv         *server.Server
	entitlement repository.EntitlementRepository
	dexHits     *atomic.Int32
}

func newApp(t *testing.T, stripeCfg config.Stripe, dexBody string, opts ...func(*config.Config)) *testApp {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	hits := &atomic.Int32{}
	dex := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dexBody))
	}))
	t.Cleanup(dex.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		BaseURL:     "https://api.fortunex.test",
		Stripe:      stripeCfg,
		DexScreener: config.DexScreener{BaseURL: dex.URL, Timeout: time.Second},
		Checkout: config.Checkout{
			MonthlyURL:  "https://buy.stripe.com/test-monthly",
			AnnualURL:   "https://buy.stripe.com/test-annual",
			LifetimeURL: "https://buy.stripe.com/test-lifetime",
			PromoCode:   "REF8",
		},
		Usage:     config.Usage{FreeDailyCap: 2, TrialDays: 3},
		RateLimit: config.RateLimit{PerMinute: 600, Burst: 100},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	log := zap.NewNop()

	catalog := checkout.NewCatalog(cfg.Checkout)
	entitlementRepo := repository.NewEntitlementRepository(db)
	entitlementService := service.NewEntitlementService(entitlementRepo)
	sessionRepo := repository.NewSessionRepository(db)

	srv := server.NewServer(cfg, log, server.Services{
		Webhook: service.NewWebhookService(db, client.NewStripeClient(&cfg.Stripe), cfg.Stripe.Configured(), catalog,
			repository.NewWebhookEventRepository(db), entitlementRepo, log),
		Analyzer: service.NewAnalyzerService(client.NewDexScreenerClient(&cfg.DexScreener),
			cache.NewRedisSnapshotCache(rdb, time.Minute), repository.NewUsageRepository(db), sessionRepo, entitlementService, cfg.Usage, log),
		Entitlement: entitlementService,
		Session:     service.NewSessionService(sessionRepo),
		Watchlist:   service.NewWatchlistService(repository.NewWatchlistRepository(db)),
		Catalog:     catalog,
	})

	return &testApp{srv: srv, entitlement: entitlementRepo, dexHits: hits}
}

func configuredStripe() config.Stripe {
	return config.Stripe{SecretKey: "sk_test_123", WebhookSecret: webhookSecret, WebhookTolerance: 5 * time.Minute, MaxBodyBytes: 65536}
}

func (a *testApp) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(middleware.SessionTokenHeader, token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

type session struct {
	ClientRef string `json:"client_ref"`
	Token     string `json:"token"`
	RefSource string `json:"ref_source"`
}

func (a *testApp) session(t *testing.T, query string) session {
	t.Helper()

	rec := a.do(http.MethodPost, "/api/session"+query, "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	return s
}

func signature(payload string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	}).Header
}

func checkoutEventFor(code string) string {
	return fmt.Sprintf(`{"id":"evt_checkout_%s","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"plan=lifetime|ref=none|my=%s","customer":"cus_1","subscription":null,"payment_status":"paid"}}}`,
		code, code)
}

var checkoutEvent = checkoutEventFor("AB12CD")

const dexPairs = `{"schemaVersion":"1.0.0","pairs":[{"chainId":"solana","dexId":"raydium","url":"https://dexscreener.com/solana/pair_bonk","pairAddress":"pair_bonk","baseToken":{"symbol":"BONK"},"quoteToken":{"symbol":"SOL"},"priceUsd":"0.00002","liquidity":{"usd":400000},"volume":{"h24":2500000}}]}`

func TestWebhook_SignedCheckoutCompleted(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	buyer := app.session(t, "")
	event := checkoutEventFor(buyer.ClientRef)

	rec := app.do(http.MethodPost, "/api/webhook", "", event, "Stripe-Signature", signature(event))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())

	ent := app.do(http.MethodGet, "/api/entitlement", buyer.Token, "")
	require.Equal(t, http.StatusOK, ent.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(ent.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["entitled"])
	assert.Equal(t, "lifetime", resp["plan"])
}

func TestEntitlement_ReferralCodeIsNotACredential(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	buyer := app.session(t, "")
	event := checkoutEventFor(buyer.ClientRef)
	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/api/webhook", "", event, "Stripe-Signature", signature(event)).Code)

	// the buyer's public code, as shared in referral links
	rec := app.do(http.MethodGet, "/api/entitlement", buyer.ClientRef, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = app.do(http.MethodPost, "/api/analyze", buyer.ClientRef, `{"query":"bonk"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a session started from the referral link is a different client
	referred := app.session(t, "?ref="+buyer.ClientRef)
	assert.Equal(t, buyer.ClientRef, referred.RefSource)
	rec = app.do(http.MethodGet, "/api/entitlement", referred.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entitled":false`)
}

func TestWebhook_AliasRoute(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)

	rec := app.do(http.MethodPost, "/api/stripe/webhook", "", checkoutEvent, "Stripe-Signature", signature(checkoutEvent))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_OneByteAlteredIsRejected(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)

	header := signature(checkoutEvent)
	altered := strings.Replace(checkoutEvent, "AB12CD", "AB12CE", 1)

	rec := app.do(http.MethodPost, "/api/webhook", "", altered, "Stripe-Signature", header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Webhook Error: invalid signature", rec.Body.String())

	_, err := app.entitlement.Get(context.Background(), "AB12CE")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestWebhook_RedeliveryIsAcknowledgedOnce(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	header := signature(checkoutEvent)

	first := app.do(http.MethodPost, "/api/webhook", "", checkoutEvent, "Stripe-Signature", header)
	second := app.do(http.MethodPost, "/api/webhook", "", checkoutEvent, "Stripe-Signature", header)

	assert.JSONEq(t, `{"received":true}`, first.Body.String())
	assert.JSONEq(t, `{"received":true,"duplicate":true}`, second.Body.String())
}

func TestWebhook_NonPostAndMisconfigured(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	rec := app.do(http.MethodGet, "/api/webhook", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	bare := newApp(t, config.Stripe{WebhookSecret: webhookSecret}, dexPairs)
	rec = bare.do(http.MethodPost, "/api/webhook", "", checkoutEvent, "Stripe-Signature", signature(checkoutEvent))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server misconfigured", rec.Body.String())
}

func TestAnalyze_EndToEnd(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	caller := app.session(t, "")

	rec := app.do(http.MethodPost, "/api/analyze", caller.Token, `{"query":"https://dexscreener.com/solana/pair_bonk"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Pair struct {
			Symbol string `json:"symbol"`
		} `json:"pair"`
		Analysis struct {
			Score      float64 `json:"score"`
			Disclaimer string  `json:"disclaimer"`
		} `json:"analysis"`
		Cached bool `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BONK/SOL", resp.Pair.Symbol)
	assert.InDelta(t, 50, resp.Analysis.Score, 50)
	assert.NotEmpty(t, resp.Analysis.Disclaimer)
	assert.False(t, resp.Cached)

	rec = app.do(http.MethodPost, "/api/analyze", caller.Token, `{"query":"pair_bonk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, int32(1), app.dexHits.Load())
}

func TestAnalyze_ZeroPairsIsNoMatch(t *testing.T) {
	app := newApp(t, configuredStripe(), `{"schemaVersion":"1.0.0","pairs":[]}`)
	caller := app.session(t, "")

	rec := app.do(http.MethodPost, "/api/analyze", caller.Token, `{"query":"nothing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No matching pair found")
}

func TestAnalyze_RequiresSessionAndQuery(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	caller := app.session(t, "")

	rec := app.do(http.MethodPost, "/api/analyze", "", `{"query":"bonk"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, token := range []string{"NEVER-ISSUED-0", uuid.NewString(), strings.Repeat("A", 300)} {
		rec = app.do(http.MethodPost, "/api/analyze", token, `{"query":"bonk"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, token)
	}
	assert.Zero(t, app.dexHits.Load())

	rec = app.do(http.MethodPost, "/api/analyze", caller.Token, `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_RateLimitIgnoresRotatingSessions(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimit{PerMinute: 1, Burst: 1}
	})

	passed := 0
	for i := 0; i < 20; i++ {
		rec := app.do(http.MethodPost, "/api/analyze", uuid.NewString(), `{"query":"bonk"}`, echo.HeaderXRealIP, "203.0.113.7")
		if rec.Code != http.StatusTooManyRequests {
			passed++
		}
	}
	assert.Equal(t, 1, passed)

	rec := app.do(http.MethodPost, "/api/session", "", "", echo.HeaderXRealIP, "203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSessionCheckoutAndPlans(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)

	s := app.session(t, "?ref=ZZ99XX")
	assert.Len(t, s.ClientRef, 6)
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "ZZ99XX", s.RefSource)

	// known token keeps the session, a stale one gets a new session
	rec := app.do(http.MethodPost, "/api/session", s.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), s.ClientRef)
	rec = app.do(http.MethodPost, "/api/session", uuid.NewString(), "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(http.MethodGet, "/api/checkout/monthly?my="+s.ClientRef, "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "https://buy.stripe.com/test-monthly?"), location)
	assert.Contains(t, location, "prefilled_promo_code=REF8")
	assert.Contains(t, location, fmt.Sprintf("my%%3D%s", s.ClientRef))
	assert.NotContains(t, location, s.Token)

	rec = app.do(http.MethodGet, "/api/checkout/annual", s.Token, "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), fmt.Sprintf("my%%3D%s", s.ClientRef))

	rec = app.do(http.MethodGet, "/api/checkout/weekly?my="+s.ClientRef, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodGet, "/api/checkout/monthly", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = app.do(http.MethodGet, "/api/checkout/monthly?my=QQ11QQ", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodGet, "/api/plans", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":"€7.10"`)
	assert.Contains(t, rec.Body.String(), "https://api.fortunex.test/api/checkout/lifetime")
}

func TestWatchlistRoutes(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)
	caller := app.session(t, "")

	rec := app.do(http.MethodPost, "/api/watchlist", caller.Token, `{"symbol":"BONK/SOL","url":"https://dexscreener.com/solana/pair_bonk"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "BONK/SOL")

	rec = app.do(http.MethodGet, "/api/watchlist", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(http.MethodPost, "/api/watchlist", caller.Token, `{"symbol":"","url":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(http.MethodDelete, "/api/watchlist?url=https://dexscreener.com/solana/pair_bonk", caller.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	app := newApp(t, configuredStripe(), dexPairs)

	rec := app.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
