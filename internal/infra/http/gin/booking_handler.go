package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	bookingapp "roomstay/internal/app/handlers/booking"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/queries"
)

const headerIdempotencyKey = "Idempotency-Key"

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type stayRequest struct {
	UnitID              string   `json:"unit_id"`
	CheckIn             string   `json:"check_in"`
	CheckOut            string   `json:"check_out"`
	Adults              int      `json:"adults"`
	Children            int      `json:"children"`
	Rooms               int      `json:"rooms"`
	AddOnIDs            []string `json:"add_on_ids"`
	PromotionID         string   `json:"promotion_id"`
	ClientDiscountCents *int64   `json:"discount_cents"`
}

func (h BookingHandler) Quote(c *gin.Context) {
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	q := bookingapp.QuoteStayQuery{
		UnitID:              req.UnitID,
		CheckIn:             req.CheckIn,
		CheckOut:            req.CheckOut,
		Adults:              req.Adults,
		Children:            req.Children,
		Rooms:               req.Rooms,
		AddOnIDs:            req.AddOnIDs,
		PromotionID:         req.PromotionID,
		ClientDiscountCents: req.ClientDiscountCents,
	}
	result, err := queries.Ask[bookingapp.QuoteStayQuery, dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Hold(c *gin.Context) {
	user, ok := requireRole(c, middleware.RoleGuest)
	if !ok {
		return
	}
	var req stayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.HoldBookingCommand{
		GuestID:             user.ID,
		UnitID:              req.UnitID,
		CheckIn:             req.CheckIn,
		CheckOut:            req.CheckOut,
		Adults:              req.Adults,
		Children:            req.Children,
		Rooms:               req.Rooms,
		AddOnIDs:            req.AddOnIDs,
		PromotionID:         req.PromotionID,
		ClientDiscountCents: req.ClientDiscountCents,
		IdempotencyKeyV:     c.GetHeader(headerIdempotencyKey),
	}
	h.dispatchBooking(c, http.StatusCreated, cmd)
}

type payRequest struct {
	PaymentToken string `json:"payment_token"`
}

func (h BookingHandler) Pay(c *gin.Context) {
	user, ok := requireRole(c, middleware.RoleGuest)
	if !ok {
		return
	}
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.dispatchBooking(c, http.StatusOK, bookingapp.PayBookingCommand{
		BookingID:       c.Param("id"),
		GuestID:         user.ID,
		PaymentToken:    req.PaymentToken,
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

type confirmRequest struct {
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (h BookingHandler) Confirm(c *gin.Context) {
	if _, ok := requireRole(c, middleware.RoleOperator); !ok {
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.dispatchBooking(c, http.StatusOK, bookingapp.ConfirmBookingCommand{
		BookingID:   c.Param("id"),
		PaymentRef:  req.PaymentRef,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
	})
}

func (h BookingHandler) Abort(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	h.dispatchBooking(c, http.StatusOK, bookingapp.AbortBookingCommand{BookingID: c.Param("id"), ActorID: user.ID, Operator: isOperator(user)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	h.dispatchBooking(c, http.StatusOK, bookingapp.CancelBookingCommand{
		BookingID: c.Param("id"),
		ActorID:   user.ID,
		Operator:  isOperator(user),
		Reason:    req.Reason,
	})
}

func (h BookingHandler) CheckIn(c *gin.Context)  { h.stay(c, "check_in") }
func (h BookingHandler) CheckOut(c *gin.Context) { h.stay(c, "check_out") }
func (h BookingHandler) NoShow(c *gin.Context)   { h.stay(c, "no_show") }

func (h BookingHandler) stay(c *gin.Context, action string) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	h.dispatchBooking(c, http.StatusOK, bookingapp.StayCommand{Action: action, BookingID: c.Param("id"), ActorID: user.ID, Operator: isOperator(user)})
}

type balanceRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (h BookingHandler) RecordBalance(c *gin.Context) {
	if _, ok := requireRole(c, middleware.RoleOperator); !ok {
		return
	}
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.dispatchBooking(c, http.StatusOK, bookingapp.RecordBalanceCommand{
		BookingID:       c.Param("id"),
		AmountCents:     req.AmountCents,
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id"), ActorID: user.ID, Operator: isOperator(user)}
	ask[bookingapp.GetBookingQuery, dto.Booking](c, h.Queries, h.Logger, q)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireRole(c, middleware.RoleGuest)
	if !ok {
		return
	}
	ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c, h.Queries, h.Logger, bookingapp.ListGuestBookingsQuery{GuestID: user.ID})
}

func (h BookingHandler) dispatchBooking(c *gin.Context, status int, cmd commands.Command) {
	dispatch(c, h.Commands, h.Logger, status, cmd)
}

var _ BookingHTTP = BookingHandler{}
