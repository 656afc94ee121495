package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	availabilityapp "roomstay/internal/app/handlers/availability"
	bookingapp "roomstay/internal/app/handlers/booking"
	"roomstay/internal/app/queries"
)

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// Calendar is public; owners and operators additionally see block references.
func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{UnitID: c.Param("id"), From: c.Query("from"), To: c.Query("to")}
	if p, ok := currentPrincipal(c); ok {
		query.ActorID = p.ID
		query.Operator = isOperator(p)
	}
	ask[availabilityapp.GetCalendarQuery, dto.Calendar](c, h.Queries, h.Logger, query)
}

type blockRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h AvailabilityHandler) Block(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusCreated, availabilityapp.BlockDatesCommand{
		ActorID:  user.ID,
		Operator: isOperator(user),
		UnitID:   c.Param("id"),
		From:     req.From,
		To:       req.To,
	})
}

func (h AvailabilityHandler) Unblock(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, availabilityapp.UnblockDatesCommand{
		ActorID:   user.ID,
		Operator:  isOperator(user),
		UnitID:    c.Param("id"),
		Reference: c.Param("ref"),
	})
}

func (h AvailabilityHandler) UnitBookings(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.ListUnitBookingsQuery{UnitID: c.Param("id"), ActorID: user.ID, Operator: isOperator(user)}
	ask[bookingapp.ListUnitBookingsQuery, dto.BookingCollection](c, h.Queries, h.Logger, q)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
