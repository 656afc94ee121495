package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	bookingapp "roomstay/internal/app/handlers/booking"
	"roomstay/internal/app/middleware"
)

type PaymentHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type callbackRequest struct {
	EventID     string `json:"event_id"`
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// Callback receives the gateway's asynchronous charge result. Redelivered
// events are answered from the idempotency store.
func (h PaymentHandler) Callback(c *gin.Context) {
	if _, ok := requireRole(c, middleware.RoleSystem); !ok {
		return
	}
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, bookingapp.ApplyPaymentResultCommand{
		EventID:     req.EventID,
		BookingID:   req.BookingID,
		Status:      req.Status,
		ProviderRef: req.ProviderRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
}

var _ PaymentHTTP = PaymentHandler{}
