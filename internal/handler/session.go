package handler

import (
	"fortunex-api/internal/middleware"
	"fortunex-api/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) StartSession(c echo.Context) error {
	ctx := c.Request().Context()

	// a stale token is replaced rather than rejected
	token := c.Request().Header.Get(middleware.SessionTokenHeader)
	resp, err := h.sessionService.Start(ctx, token, c.QueryParam("ref"))
	if err != nil {
		return err
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}
