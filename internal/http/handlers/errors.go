package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dialogforge-backend/internal/http/response"
	"github.com/yungbote/dialogforge-backend/internal/platform/anthropic"
	"github.com/yungbote/dialogforge-backend/internal/platform/apierr"
	"github.com/yungbote/dialogforge-backend/internal/services"
)

// serviceError maps service sentinels onto HTTP statuses. fallbackCode names the failed
// operation for anything unrecognised.
func serviceError(err error, fallbackCode string) *apierr.Error {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return apierr.New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, services.ErrForbidden):
		return apierr.New(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, services.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrInvalidInput):
		return apierr.New(http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, services.ErrNotRestartable):
		return apierr.New(http.StatusConflict, "not_restartable", err)
	}
	switch anthropic.KindOf(err) {
	case anthropic.KindRateLimited:
		return apierr.New(http.StatusTooManyRequests, "provider_rate_limited", err)
	case anthropic.KindOverloaded:
		return apierr.New(http.StatusServiceUnavailable, "provider_overloaded", err)
	case anthropic.KindTransport, anthropic.KindInvalidResponse, anthropic.KindAPI:
		return apierr.New(http.StatusBadGateway, "provider_error", err)
	}
	return apierr.New(http.StatusInternalServerError, fallbackCode, err)
}

func respondServiceError(c *gin.Context, err error, fallbackCode string) {
	response.RespondAPIError(c, serviceError(err, fallbackCode))
}
