package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"fortunex-api/internal/checkout"
	"fortunex-api/internal/client"
	"fortunex-api/internal/model"
	"fortunex-api/internal/repository"
	"time"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EventCheckoutCompleted             stripe.EventType = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded stripe.EventType = "checkout.session.async_payment_succeeded"
	EventInvoicePaymentSucceeded       stripe.EventType = "invoice.payment_succeeded"
	EventInvoicePaid                   stripe.EventType = "invoice.paid"
	EventInvoicePaymentFailed          stripe.EventType = "invoice.payment_failed"
	EventSubscriptionDeleted           stripe.EventType = "customer.subscription.deleted"

	// entitlementGrace keeps access alive while a renewal settles.
	entitlementGrace = 24 * time.Hour
)

var (
	ErrNotConfigured    = errors.New("stripe webhook is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrHandlerFailed    = errors.New("webhook handler failed")
)

// EventHandler applies one verified event. Writes go through tx so they
// commit together with the dedup record.
type EventHandler func(ctx context.Context, tx *gorm.DB, event *stripe.Event) error

type WebhookResult struct {
	EventID   string
	EventType string
	Duplicate bool
	// Handled is false when no handler is registered for the event type.
	Handled bool
}

type WebhookService interface {
	Configured() bool
	// HandleWebhook verifies payload against sigHeader and dispatches the
	// event at most once per event id.
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*WebhookResult, error)
	Handle(eventType stripe.EventType, h EventHandler)
}

type webhookServiceImpl struct {
	db               *gorm.DB
	stripeClient     client.StripeClient
	configured       bool
	catalog          *checkout.Catalog
	webhookEventRepo repository.WebhookEventRepository
	entitlementRepo  repository.EntitlementRepository
	handlers         map[stripe.EventType]EventHandler
	log              *zap.Logger
	now              func() time.Time
}

func NewWebhookService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	configured bool,
	catalog *checkout.Catalog,
	webhookEventRepo repository.WebhookEventRepository,
	entitlementRepo repository.EntitlementRepository,
	log *zap.Logger,
) WebhookService {
	s := &webhookServiceImpl{
		db:               db,
		stripeClient:     stripeClient,
		configured:       configured,
		catalog:          catalog,
		webhookEventRepo: webhookEventRepo,
		entitlementRepo:  entitlementRepo,
		handlers:         map[stripe.EventType]EventHandler{},
		log:              log.Named("webhook"),
		now:              time.Now,
	}

	s.Handle(EventCheckoutCompleted, s.handleCheckoutCompleted)
	s.Handle(EventCheckoutAsyncPaymentSucceeded, s.handleCheckoutCompleted)
	s.Handle(EventInvoicePaymentSucceeded, s.handleInvoicePaid)
	s.Handle(EventInvoicePaid, s.handleInvoicePaid)
	s.Handle(EventInvoicePaymentFailed, s.handleInvoicePaymentFailed)
	s.Handle(EventSubscriptionDeleted, s.handleSubscriptionDeleted)

	return s
}

func (s *webhookServiceImpl) Configured() bool {
	return s.configured
}

func (s *webhookServiceImpl) Handle(eventType stripe.EventType, h EventHandler) {
	s.handlers[eventType] = h
}

func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*WebhookResult, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	event, err := s.stripeClient.ConstructEvent(payload, sigHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: check processed: %v", ErrHandlerFailed, err)
	}
	if processed {
		log.Info("Duplicate event skipped")
		result.Duplicate = true
		return result, nil
	}

	h, ok := s.handlers[event.Type]
	result.Handled = ok

	// provider lookups happen before the transaction opens
	if ok {
		s.expandSubscription(ctx, &event)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok {
			if err := safeDispatch(ctx, h, tx, &event); err != nil {
				return err
			}
		} else {
			log.Info("Unhandled event type")
		}
		return s.webhookEventRepo.MarkProcessed(ctx, tx, event.ID, string(event.Type))
	})
	if errors.Is(err, repository.ErrDuplicateEvent) {
		log.Info("Concurrent delivery already processed event")
		result.Duplicate = true
		result.Handled = false
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHandlerFailed, event.Type, err)
	}

	log.Info("Event processed", zap.Bool("handled", ok))
	return result, nil
}

func safeDispatch(ctx context.Context, h EventHandler, tx *gorm.DB, event *stripe.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, tx, event)
}

func decodeObject(event *stripe.Event, v any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("event %s has no data object", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("decode %s object: %w", event.Type, err)
	}
	return nil
}

func (s *webhookServiceImpl) handleCheckoutCompleted(ctx context.Context, tx *gorm.DB, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := decodeObject(event, &sess); err != nil {
		return err
	}

	// delayed methods complete the session before the money arrives; the
	// async_payment_succeeded event follows once it does
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
	default:
		s.log.Info("Checkout session not paid yet",
			zap.String("session_id", sess.ID), zap.String("payment_status", string(sess.PaymentStatus)))
		return nil
	}

	// a session we cannot attribute will not get better on retry
	ref, err := checkout.ParseReference(sess.ClientReferenceID)
	if err != nil {
		s.log.Warn("Checkout session without usable client reference",
			zap.String("session_id", sess.ID), zap.Error(err))
		return nil
	}
	plan, err := s.catalog.Plan(ref.Plan)
	if err != nil {
		s.log.Warn("Checkout session for unknown plan",
			zap.String("session_id", sess.ID), zap.String("plan", ref.Plan))
		return nil
	}

	e := &model.Entitlement{
		ClientRef:   ref.ClientRef,
		Plan:        plan.ID,
		Status:      model.EntitlementActive,
		LastEventID: event.ID,
	}
	if sess.Customer != nil {
		e.CustomerID = sess.Customer.ID
	}

	if plan.Recurring() {
		expires := s.now().UTC().Add(plan.Period + entitlementGrace)
		if sess.Subscription != nil && sess.Subscription.ID != "" {
			e.SubscriptionID = sess.Subscription.ID
			if sess.Subscription.CurrentPeriodEnd > 0 {
				expires = time.Unix(sess.Subscription.CurrentPeriodEnd, 0).UTC().Add(entitlementGrace)
			}
		}
		e.ExpiresAt = &expires
	}

	if err := s.entitlementRepo.Upsert(ctx, tx, e); err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}

	s.log.Info("Entitlement granted",
		zap.String("client_ref", e.ClientRef),
		zap.String("plan", e.Plan),
		zap.String("ref_source", ref.RefSource))
	return nil
}

// expandSubscription replaces a bare subscription id on a checkout session
// with the subscription's current period, like the provider's own expand
// parameter. It is best effort: on failure the session keeps the bare id and
// the provisional expiry is used.
func (s *webhookServiceImpl) expandSubscription(ctx context.Context, event *stripe.Event) {
	if event.Type != EventCheckoutCompleted && event.Type != EventCheckoutAsyncPaymentSucceeded {
		return
	}

	var sess stripe.CheckoutSession
	if err := decodeObject(event, &sess); err != nil {
		return
	}
	if sess.Subscription == nil || sess.Subscription.ID == "" || sess.Subscription.CurrentPeriodEnd > 0 {
		return
	}

	sub, err := s.stripeClient.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		s.log.Warn("Subscription lookup failed", zap.String("subscription_id", sess.Subscription.ID), zap.Error(err))
		return
	}
	if sub == nil || sub.CurrentPeriodEnd <= 0 {
		return
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
		return
	}
	expanded, err := json.Marshal(map[string]any{
		"id":                 sess.Subscription.ID,
		"object":             "subscription",
		"current_period_end": sub.CurrentPeriodEnd,
	})
	if err != nil {
		return
	}
	object["subscription"] = expanded

	raw, err := json.Marshal(object)
	if err != nil {
		return
	}
	event.Data.Raw = raw
}

func (s *webhookServiceImpl) entitlementForInvoice(ctx context.Context, tx *gorm.DB, event *stripe.Event) (*model.Entitlement, *stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := decodeObject(event, &inv); err != nil {
		return nil, nil, err
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return nil, &inv, nil
	}

	e, err := s.entitlementRepo.GetBySubscriptionID(ctx, tx, inv.Subscription.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("Invoice for unknown subscription",
			zap.String("invoice_id", inv.ID), zap.String("subscription_id", inv.Subscription.ID))
		return nil, &inv, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find entitlement: %w", err)
	}
	return e, &inv, nil
}

func (s *webhookServiceImpl) handleInvoicePaid(ctx context.Context, tx *gorm.DB, event *stripe.Event) error {
	e, inv, err := s.entitlementForInvoice(ctx, tx, event)
	if err != nil || e == nil {
		return err
	}
	if e.Status == model.EntitlementCanceled {
		s.log.Info("Invoice for canceled entitlement ignored",
			zap.String("client_ref", e.ClientRef), zap.String("invoice_id", inv.ID))
		return nil
	}

	expires := invoicePeriodEnd(inv)
	if expires.IsZero() {
		period := 30 * 24 * time.Hour
		if plan, err := s.catalog.Plan(e.Plan); err == nil && plan.Recurring() {
			period = plan.Period
		}
		expires = s.now().UTC().Add(period)
	}
	expires = expires.Add(entitlementGrace)

	// renewals never shorten access
	if e.ExpiresAt != nil && e.ExpiresAt.After(expires) {
		expires = *e.ExpiresAt
	}

	e.Status = model.EntitlementActive
	e.ExpiresAt = &expires
	e.LastEventID = event.ID
	if err := s.entitlementRepo.Save(ctx, tx, e); err != nil {
		return fmt.Errorf("extend entitlement: %w", err)
	}

	s.log.Info("Entitlement extended", zap.String("client_ref", e.ClientRef), zap.Time("expires_at", expires))
	return nil
}

func invoicePeriodEnd(inv *stripe.Invoice) time.Time {
	var end int64
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line != nil && line.Period != nil && line.Period.End > end {
				end = line.Period.End
			}
		}
	}
	if end == 0 {
		end = inv.PeriodEnd
	}
	if end <= 0 {
		return time.Time{}
	}
	return time.Unix(end, 0).UTC()
}

func (s *webhookServiceImpl) setStatus(ctx context.Context, tx *gorm.DB, e *model.Entitlement, event *stripe.Event, status model.EntitlementStatus) error {
	e.Status = status
	e.LastEventID = event.ID
	if err := s.entitlementRepo.Save(ctx, tx, e); err != nil {
		return fmt.Errorf("set entitlement %s: %w", status, err)
	}

	s.log.Info("Entitlement status changed", zap.String("client_ref", e.ClientRef), zap.String("status", string(status)))
	return nil
}

func (s *webhookServiceImpl) handleInvoicePaymentFailed(ctx context.Context, tx *gorm.DB, event *stripe.Event) error {
	e, _, err := s.entitlementForInvoice(ctx, tx, event)
	if err != nil || e == nil {
		return err
	}
	// deliveries are unordered; a late failure must not revive a cancellation
	if e.Status == model.EntitlementCanceled {
		return nil
	}
	return s.setStatus(ctx, tx, e, event, model.EntitlementPastDue)
}

func (s *webhookServiceImpl) handleSubscriptionDeleted(ctx context.Context, tx *gorm.DB, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return err
	}

	e, err := s.entitlementRepo.GetBySubscriptionID(ctx, tx, sub.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("Cancellation for unknown subscription", zap.String("subscription_id", sub.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find entitlement: %w", err)
	}
	return s.setStatus(ctx, tx, e, event, model.EntitlementCanceled)
}
