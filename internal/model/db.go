package model

import "time"

type EntitlementStatus string

const (
	EntitlementActive   EntitlementStatus = "ACTIVE"
	EntitlementPastDue  EntitlementStatus = "PAST_DUE"
	EntitlementCanceled EntitlementStatus = "CANCELED"
)

// Entitlement is the authoritative paid-access record for one client
// reference. Only verified webhook events write it.
type Entitlement struct {
	ClientRef      string            `gorm:"primaryKey;size:32;not null"`
	Plan           string            `gorm:"size:16;not null"` // monthly, annual, lifetime
	Status         EntitlementStatus `gorm:"size:16;index;not null"`
	CustomerID     string            `gorm:"size:64;index"`
	SubscriptionID string            `gorm:"size:64;index"`
	ExpiresAt      *time.Time        // nil for lifetime
	LastEventID    string            `gorm:"size:128"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e *Entitlement) ActiveAt(now time.Time) bool {
	if e == nil || e.Status != EntitlementActive {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

type UsageCounter struct {
	ClientRef string `gorm:"primaryKey;size:32;not null"`
	Day       string `gorm:"primaryKey;size:10;not null"` // YYYY-MM-DD, UTC
	Count     int    `gorm:"not null"`
	UpdatedAt time.Time
}

type TrialStart struct {
	ClientRef string `gorm:"primaryKey;size:32;not null"`
	StartedAt time.Time
}

// ClientSession pairs the public referral code of a client with the secret
// token it authenticates with. Only the token grants access.
type ClientSession struct {
	ClientRef string `gorm:"primaryKey;size:32;not null"`
	Token     string `gorm:"uniqueIndex;size:36;not null"`
	RefSource string `gorm:"size:32"` // referral code of whoever referred this client
	CreatedAt time.Time
}

type WatchlistEntry struct {
	ID        uint   `gorm:"primaryKey"`
	ClientRef string `gorm:"size:32;not null;uniqueIndex:ux_watchlist_client_url,priority:1"`
	Symbol    string `gorm:"size:64;not null"`
	URL       string `gorm:"size:512;not null;uniqueIndex:ux_watchlist_client_url,priority:2"`
	CreatedAt time.Time
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&Entitlement{},
		&WebhookEvent{},
		&UsageCounter{},
		&TrialStart{},
		&ClientSession{},
		&WatchlistEntry{},
	}
}
