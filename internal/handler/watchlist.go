package handler

import (
	"fortunex-api/internal/apperror"
	"fortunex-api/internal/dto"
	"fortunex-api/internal/middleware"
	"fortunex-api/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type WatchlistHandler struct {
	watchlistService service.WatchlistService
}

func NewWatchlistHandler(watchlistService service.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		watchlistService: watchlistService,
	}
}

func (h *WatchlistHandler) List(c echo.Context) error {
	items, err := h.watchlistService.List(c.Request().Context(), middleware.GetClientRef(c))
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *WatchlistHandler) Add(c echo.Context) error {
	var req dto.WatchlistRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body", err)
	}

	items, err := h.watchlistService.Add(c.Request().Context(), middleware.GetClientRef(c), req)
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *WatchlistHandler) Remove(c echo.Context) error {
	items, err := h.watchlistService.Remove(c.Request().Context(), middleware.GetClientRef(c), c.QueryParam("url"))
	if err != nil {
		return toAppError(err)
	}
	return c.JSON(http.StatusOK, items)
}
