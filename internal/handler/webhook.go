package handler

import (
	"errors"
	"fortunex-api/internal/client"
	"fortunex-api/internal/service"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	webhookService service.WebhookService
	maxBodyBytes   int64
	log            *zap.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, maxBodyBytes int64, log *zap.Logger) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &WebhookHandler{
		webhookService: webhookService,
		maxBodyBytes:   maxBodyBytes,
		log:            log.Named("webhook"),
	}
}

func isProbe(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// StripeWebhook receives Stripe events. Every failure answers in plain text;
// details stay in the log.
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	req := c.Request()

	if req.Method != http.MethodPost {
		if isProbe(req.Method) {
			h.log.Debug("Webhook probe rejected", zap.String("method", req.Method))
		} else {
			h.log.Warn("Webhook method rejected", zap.String("method", req.Method))
		}
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
		return c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	}

	if !h.webhookService.Configured() {
		h.log.Error("Missing STRIPE_SECRET_KEY or STRIPE_WEBHOOK_SECRET")
		return c.String(http.StatusInternalServerError, "Server misconfigured")
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn("Webhook body too large", zap.Int64("limit", tooLarge.Limit))
			return c.String(http.StatusRequestEntityTooLarge, "Webhook Error: body too large")
		}
		h.log.Warn("Webhook body unreadable", zap.Error(err))
		return c.String(http.StatusBadRequest, "Webhook Error: unreadable body")
	}

	result, err := h.webhookService.HandleWebhook(req.Context(), body, req.Header.Get(client.SignatureHeader))
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		h.log.Warn("Webhook signature verification failed", zap.Error(err))
		return c.String(http.StatusBadRequest, "Webhook Error: invalid signature")
	case errors.Is(err, service.ErrNotConfigured):
		h.log.Error("Webhook secrets missing", zap.Error(err))
		return c.String(http.StatusInternalServerError, "Server misconfigured")
	case err != nil:
		h.log.Error("Webhook handler error", zap.Error(err))
		return c.String(http.StatusInternalServerError, "Internal error")
	}

	resp := map[string]bool{"received": true}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	return c.JSON(http.StatusOK, resp)
}
