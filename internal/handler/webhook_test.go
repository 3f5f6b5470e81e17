package handler

import (
	"context"
	"errors"
	"fortunex-api/internal/client"
	"fortunex-api/internal/service"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockWebhookService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) (*service.WebhookResult, error) {
	args := m.Called(ctx, payload, sigHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.WebhookResult), args.Error(1)
}

func (m *MockWebhookService) Handle(eventType stripe.EventType, h service.EventHandler) {
	m.Called(eventType, h)
}

// countingReader records whether the handler touched the body.
type countingReader struct {
	r    *strings.Reader
	read bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.read = true
	return c.r.Read(p)
}

func serve(h *WebhookHandler, method, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, "/api/webhook", strings.NewReader(body))
	req.Header.Set(client.SignatureHeader, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	_ = h.StripeWebhook(e.NewContext(req, rec))
	return rec
}

func TestStripeWebhook_RejectsNonPost(t *testing.T) {
	svc := new(MockWebhookService)
	h := NewWebhookHandler(svc, 1024, zap.NewNop())

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete} {
		rec := serve(h, method, `{}`)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, http.MethodPost, rec.Header().Get(echo.HeaderAllow), method)
	}

	svc.AssertNotCalled(t, "Configured")
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhook_MisconfiguredDoesNotReadBody(t *testing.T) {
	svc := new(MockWebhookService)
	svc.On("Configured").Return(false)
	h := NewWebhookHandler(svc, 1024, zap.NewNop())

	body := &countingReader{r: strings.NewReader(`{"id":"evt_1"}`)}
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", body)
	rec := httptest.NewRecorder()
	_ = h.StripeWebhook(e.NewContext(req, rec))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server misconfigured", rec.Body.String())
	assert.False(t, body.read)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhook_BodyTooLarge(t *testing.T) {
	svc := new(MockWebhookService)
	svc.On("Configured").Return(true)
	h := NewWebhookHandler(svc, 16, zap.NewNop())

	rec := serve(h, http.MethodPost, strings.Repeat("x", 17))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestStripeWebhook_ErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		body   string
	}{
		"bad signature": {
			err:    errors.Join(service.ErrInvalidSignature, errors.New("no signatures found matching the expected signature")),
			status: http.StatusBadRequest,
			body:   "Webhook Error: invalid signature",
		},
		"handler failed": {
			err:    errors.Join(service.ErrHandlerFailed, errors.New("boom")),
			status: http.StatusInternalServerError,
			body:   "Internal error",
		},
		"not configured": {
			err:    service.ErrNotConfigured,
			status: http.StatusInternalServerError,
			body:   "Server misconfigured",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(MockWebhookService)
			svc.On("Configured").Return(true)
			svc.On("HandleWebhook", mock.Anything, []byte(`{"id":"evt_1"}`), "t=1,v1=abc").Return(nil, tc.err).Once()
			h := NewWebhookHandler(svc, 1024, zap.NewNop())

			rec := serve(h, http.MethodPost, `{"id":"evt_1"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestStripeWebhook_Acknowledges(t *testing.T) {
	svc := new(MockWebhookService)
	svc.On("Configured").Return(true)
	svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return(&service.WebhookResult{EventID: "evt_1", Handled: true}, nil).Once()
	svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
		Return(&service.WebhookResult{EventID: "evt_1", Duplicate: true}, nil).Once()
	h := NewWebhookHandler(svc, 1024, zap.NewNop())

	rec := serve(h, http.MethodPost, `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = serve(h, http.MethodPost, `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"duplicate":true}`, rec.Body.String())
}
