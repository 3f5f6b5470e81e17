package handler

import (
	"errors"
	"fortunex-api/internal/apperror"
	"fortunex-api/internal/client"
	"fortunex-api/internal/service"
	"net/http"
)

// toAppError maps service errors shared by several handlers. Anything it
// does not know is returned unchanged and ends up as a 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, service.ErrMissingClientRef):
		return apperror.Unauthorized("Missing X-Session-Token header. Call POST /api/session first.", err)
	case errors.Is(err, service.ErrUnknownSession):
		return apperror.Unauthorized("Unknown session. Call POST /api/session for a new one.", err)
	case errors.Is(err, service.ErrEmptyQuery):
		return apperror.BadRequest("Paste a valid DEX link, token address or name.", err)
	case errors.Is(err, service.ErrNoMatch):
		return apperror.NotFound("No matching pair found. Try a different link, address or name.", err)
	case errors.Is(err, client.ErrUpstreamTimeout):
		return apperror.New(http.StatusGatewayTimeout, "Market data timed out. Try again.", err)
	case errors.Is(err, client.ErrUpstreamStatus), errors.Is(err, client.ErrUpstreamDecode):
		return apperror.New(http.StatusBadGateway, "Market data is unavailable right now.", err)
	case errors.Is(err, service.ErrInvalidWatchlistEntry):
		return apperror.BadRequest(service.ErrInvalidWatchlistEntry.Error(), err)
	}
	return err
}
