package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	refundsapp "roomstay/internal/app/handlers/refunds"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/queries"
)

type RefundHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type refundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

func (h RefundHandler) Request(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req refundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	dispatch(c, h.Commands, h.Logger, http.StatusCreated, refundsapp.RequestRefundCommand{
		BookingID:       c.Param("id"),
		RequesterID:     user.ID,
		Operator:        isOperator(user),
		RequestedCents:  req.AmountCents,
		Reason:          req.Reason,
		IdempotencyKeyV: c.GetHeader(headerIdempotencyKey),
	})
}

func (h RefundHandler) List(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := refundsapp.ListRefundsQuery{BookingID: c.Param("id"), ActorID: user.ID, Operator: isOperator(user)}
	ask[refundsapp.ListRefundsQuery, dto.RefundCollection](c, h.Queries, h.Logger, q)
}

// Preview shows what cancelling now would refund, without changing anything.
func (h RefundHandler) Preview(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := refundsapp.PreviewRefundQuery{BookingID: c.Param("id"), ActorID: user.ID, Operator: isOperator(user)}
	ask[refundsapp.PreviewRefundQuery, dto.RefundPreview](c, h.Queries, h.Logger, q)
}

type decisionRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Override    bool   `json:"override"`
	Note        string `json:"note"`
}

func (h RefundHandler) Approve(c *gin.Context) {
	user, ok := requireRole(c, middleware.RoleOperator)
	if !ok {
		return
	}
	var req decisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, refundsapp.ApproveRefundCommand{
		RequestID:   c.Param("id"),
		ReviewerID:  user.ID,
		AmountCents: req.AmountCents,
		Override:    req.Override,
		Note:        req.Note,
	})
}

func (h RefundHandler) Reject(c *gin.Context) {
	user, ok := requireRole(c, middleware.RoleOperator)
	if !ok {
		return
	}
	var req decisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, refundsapp.RejectRefundCommand{RequestID: c.Param("id"), ReviewerID: user.ID, Note: req.Note})
}

func (h RefundHandler) Withdraw(c *gin.Context) {
	user, ok := requireRole(c, middleware.RoleGuest)
	if !ok {
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, refundsapp.WithdrawRefundCommand{RequestID: c.Param("id"), GuestID: user.ID})
}

func (h RefundHandler) Payout(c *gin.Context) {
	if _, ok := requireRole(c, middleware.RoleOperator); !ok {
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, refundsapp.PayoutRefundCommand{RequestID: c.Param("id")})
}

var _ RefundHTTP = RefundHandler{}
