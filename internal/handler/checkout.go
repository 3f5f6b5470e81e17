package handler

import (
	"errors"
	"fortunex-api/internal/apperror"
	"fortunex-api/internal/checkout"
	"fortunex-api/internal/dto"
	"fortunex-api/internal/middleware"
	"fortunex-api/internal/service"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	catalog        *checkout.Catalog
	sessionService service.SessionService
	baseURL        string
}

func NewCheckoutHandler(catalog *checkout.Catalog, sessionService service.SessionService, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		catalog:        catalog,
		sessionService: sessionService,
		baseURL:        strings.TrimRight(baseURL, "/"),
	}
}

func planResponses(catalog *checkout.Catalog, baseURL string) []dto.PlanResponse {
	plans := catalog.Plans()
	resp := make([]dto.PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, dto.PlanResponse{
			ID:          p.ID,
			Label:       p.Label,
			Price:       p.Price(),
			Cents:       p.Cents,
			Currency:    p.Currency,
			Recurring:   p.Recurring(),
			CheckoutURL: baseURL + "/api/checkout/" + p.ID,
		})
	}
	return resp
}

func (h *CheckoutHandler) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, planResponses(h.catalog, h.baseURL))
}

// Checkout redirects to the payment link of a plan. Browsers cannot set
// headers on a navigation, so the public client code may also come as ?my=.
// The code only attributes the purchase; it grants nothing to the caller.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := h.catalog.Plan(c.Param("plan")); err != nil {
		return apperror.NotFound("unknown plan", err)
	}

	clientRef := middleware.GetClientRef(c)
	if clientRef == "" {
		clientRef = c.QueryParam("my")
	}
	session, err := h.sessionService.Lookup(ctx, clientRef)
	if errors.Is(err, service.ErrUnknownSession) {
		return apperror.BadRequest("Missing or unknown client code. Call POST /api/session first.", err)
	}
	if err != nil {
		return err
	}

	url, err := h.catalog.BuildURL(c.Param("plan"), session.RefSource, session.ClientRef)
	if errors.Is(err, checkout.ErrUnknownPlan) {
		return apperror.NotFound("unknown plan", err)
	}
	if err != nil {
		return err
	}

	return c.Redirect(http.StatusFound, url)
}
