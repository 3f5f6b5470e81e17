package service

import (
	"context"
	"fmt"
	"fortunex-api/internal/client"
	"fortunex-api/internal/config"
	"fortunex-api/internal/model"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_service_test"

func newTestDB(t *testing.T) *gorm.DB {
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

	return db
}

// mockStripe verifies signatures for real and mocks the API lookups.
type mockStripe struct {
	client.StripeClient
	mock.Mock
}

func newMockStripe() *mockStripe {
	return &mockStripe{
		StripeClient: client.NewStripeClient(&config.Stripe{
			SecretKey:     "sk_test_123",
			WebhookSecret: testWebhookSecret,
		}),
	}
}

func (m *mockStripe) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

type mockDex struct {
	mock.Mock
}

func (m *mockDex) Search(ctx context.Context, query string) ([]*model.Pair, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Pair), args.Error(1)
}

func eventJSON(id string, eventType stripe.EventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, eventType, object))
}

func signed(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	}).Header
}
