package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/policies"
	"roomstay/internal/app/queries"
	"roomstay/internal/domain/shared/apperr"
)

func statusFor(err error) int {
	if errors.Is(err, policies.ErrPaymentDeclined) {
		return http.StatusPaymentRequired
	}
	if errors.Is(err, commands.ErrNilBus) || errors.Is(err, queries.ErrNilBus) {
		return http.StatusServiceUnavailable
	}
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Conflict, apperr.InvalidTransition:
		return http.StatusConflict
	case apperr.Upstream:
		return http.StatusBadGateway
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		}
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": "internal error"})
			return
		}
	}
	body := gin.H{"error": err.Error()}
	if kind := apperr.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": string(apperr.Validation)})
}

func dispatch(c *gin.Context, bus commands.Bus, logger *slog.Logger, status int, cmd commands.Command) {
	if bus == nil {
		respondError(c, logger, commands.ErrNilBus)
		return
	}
	res, err := bus.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(status, res)
}

func ask[Q queries.Query, R any](c *gin.Context, bus queries.Bus, logger *slog.Logger, q Q) {
	result, err := queries.Ask[Q, R](c.Request.Context(), bus, q)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
