package client

import (
	"context"
	"fmt"
	"fortunex-api/internal/config"
	"time"

	"github.com/stripe/stripe-go/v80"
	stripeapi "github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

const SignatureHeader = "Stripe-Signature"

type StripeClient interface {
	// ConstructEvent verifies sigHeader against the exact raw payload and
	// decodes the event. The payload must not have been re-serialized.
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)

	// GetSubscription looks up the current billing period of a subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

type stripeClientImpl struct {
	api           *stripeapi.API
	webhookSecret string
	tolerance     time.Duration
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	return &stripeClientImpl{
		api:           stripeapi.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     tolerance,
	}
}

func (c *stripeClientImpl) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		Tolerance: c.tolerance,
		// events are decoded field by field; the account API version may lag the SDK
		IgnoreAPIVersionMismatch: true,
	})
}

func (c *stripeClientImpl) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}
