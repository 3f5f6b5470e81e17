package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database    Database    `envPrefix:"DATABASE_"`
	Stripe      Stripe      `envPrefix:"STRIPE_"`
	DexScreener DexScreener `envPrefix:"DEXSCREENER_"`
	Redis       Redis       `envPrefix:"REDIS_"`
	Checkout    Checkout    `envPrefix:"CHECKOUT_"`
	Usage       Usage       `envPrefix:"USAGE_"`
	RateLimit   RateLimit   `envPrefix:"RATE_LIMIT_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // sqlite, mysql
	URL    string `env:"URL" envDefault:"fortunex.db"`
}

// Stripe secrets are optional at startup. The webhook endpoint answers 500
// until both are present.
type Stripe struct {
	SecretKey        string        `env:"SECRET_KEY"`
	WebhookSecret    string        `env:"WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`
	MaxBodyBytes     int64         `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"65536"`
}

func (s Stripe) Configured() bool {
	return s.SecretKey != "" && s.WebhookSecret != ""
}

type DexScreener struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.dexscreener.com"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"8s"`
}

type Redis struct {
	Addr        string        `env:"ADDR"`
	Password    string        `env:"PASSWORD"`
	DB          int           `env:"DB" envDefault:"0"`
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" envDefault:"30s"`
}

type Checkout struct {
	MonthlyURL  string `env:"MONTHLY_URL" envDefault:"https://buy.stripe.com/test-monthly_710"`
	AnnualURL   string `env:"ANNUAL_URL" envDefault:"https://buy.stripe.com/test-annual_7100"`
	LifetimeURL string `env:"LIFETIME_URL" envDefault:"https://buy.stripe.com/test-lifetime_10700"`
	PromoCode   string `env:"PROMO_CODE"`
}

type Usage struct {
	FreeDailyCap int `env:"FREE_DAILY_CAP" envDefault:"2"`
	TrialDays    int `env:"TRIAL_DAYS" envDefault:"3"`
}

type RateLimit struct {
	PerMinute int `env:"PER_MINUTE" envDefault:"30"`
	Burst     int `env:"BURST" envDefault:"10"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
