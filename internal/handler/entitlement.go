package handler

import (
	"fortunex-api/internal/middleware"
	"fortunex-api/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type EntitlementHandler struct {
	entitlementService service.EntitlementService
	analyzerService    service.AnalyzerService
}

func NewEntitlementHandler(entitlementService service.EntitlementService, analyzerService service.AnalyzerService) *EntitlementHandler {
	return &EntitlementHandler{
		entitlementService: entitlementService,
		analyzerService:    analyzerService,
	}
}

func (h *EntitlementHandler) GetEntitlement(c echo.Context) error {
	ctx := c.Request().Context()
	clientRef := middleware.GetClientRef(c)
	if clientRef == "" {
		return toAppError(service.ErrMissingClientRef)
	}

	resp, err := h.entitlementService.Get(ctx, clientRef)
	if err != nil {
		return err
	}

	usage, err := h.analyzerService.Usage(ctx, clientRef)
	if err != nil {
		return toAppError(err)
	}
	resp.Usage = &usage

	return c.JSON(http.StatusOK, resp)
}
