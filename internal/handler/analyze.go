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

type AnalyzeHandler struct {
	analyzerService service.AnalyzerService
	catalog         *checkout.Catalog
	baseURL         string
}

func NewAnalyzeHandler(analyzerService service.AnalyzerService, catalog *checkout.Catalog, baseURL string) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzerService: analyzerService,
		catalog:         catalog,
		baseURL:         strings.TrimRight(baseURL, "/"),
	}
}

func (h *AnalyzeHandler) Analyze(c echo.Context) error {
	ctx := c.Request().Context()
	clientRef := middleware.GetClientRef(c)

	var req dto.AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body", err)
	}
	if req.Query == "" {
		req.Query = c.QueryParam("q")
	}

	resp, err := h.analyzerService.Analyze(ctx, clientRef, req.Query)
	if errors.Is(err, service.ErrUsageLimit) {
		usage, uerr := h.analyzerService.Usage(ctx, clientRef)
		if uerr != nil {
			return uerr
		}
		return c.JSON(http.StatusPaymentRequired, dto.UpgradeRequired{
			Error: "Free daily limit reached. Upgrade for unlimited analyses.",
			Usage: usage,
			Plans: planResponses(h.catalog, h.baseURL),
		})
	}
	if err != nil {
		return toAppError(err)
	}

	return c.JSON(http.StatusOK, resp)
}
