package refunds

import (
	"context"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	refundsvc "roomstay/internal/app/services/refunds"
	domainbooking "roomstay/internal/domain/booking"
)

const (
	requestRefundKey  = "refunds.request"
	approveRefundKey  = "refunds.approve"
	rejectRefundKey   = "refunds.reject"
	withdrawRefundKey = "refunds.withdraw"
	payoutRefundKey   = "refunds.payout"
)

type RequestRefundCommand struct {
	BookingID       string `validate:"required"`
	RequesterID     string `validate:"required"`
	Operator        bool
	RequestedCents  int64  `validate:"gte=0"`
	Reason          string `validate:"max=512"`
	IdempotencyKeyV string `validate:"max=128"`
}

func (c RequestRefundCommand) Key() string { return requestRefundKey }

func (c RequestRefundCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestRefundCommand) ResultPrototype() any { return &dto.Refund{} }

func (c RequestRefundCommand) AllowedRoles() []string {
	return []string{middleware.RoleGuest, middleware.RoleOperator}
}

type RequestRefundHandler struct {
	Refunds *refundsvc.Service
}

func (h *RequestRefundHandler) Handle(ctx context.Context, cmd RequestRefundCommand) (*dto.Refund, error) {
	r, err := h.Refunds.Request(ctx, refundsvc.RequestInput{
		BookingID:      domainbooking.BookingID(cmd.BookingID),
		RequesterID:    cmd.RequesterID,
		Operator:       cmd.Operator,
		RequestedCents: cmd.RequestedCents,
		Reason:         cmd.Reason,
	})
	if err != nil {
		return nil, err
	}
	result := dto.MapRefund(r)
	return &result, nil
}

type ApproveRefundCommand struct {
	RequestID  string `validate:"required"`
	ReviewerID string `validate:"required"`
	// AmountCents of zero approves the requested amount.
	AmountCents int64 `validate:"gte=0"`
	Override    bool
	Note        string `validate:"max=512"`
}

func (c ApproveRefundCommand) Key() string { return approveRefundKey }

func (c ApproveRefundCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type ApproveRefundHandler struct {
	Refunds *refundsvc.Service
}

func (h *ApproveRefundHandler) Handle(ctx context.Context, cmd ApproveRefundCommand) (*dto.Refund, error) {
	r, err := h.Refunds.Approve(ctx, refundsvc.ApproveInput{
		RequestID:   cmd.RequestID,
		ReviewerID:  cmd.ReviewerID,
		AmountCents: cmd.AmountCents,
		Override:    cmd.Override,
		Note:        cmd.Note,
	})
	if err != nil {
		return nil, err
	}
	result := dto.MapRefund(r)
	return &result, nil
}

type RejectRefundCommand struct {
	RequestID  string `validate:"required"`
	ReviewerID string `validate:"required"`
	Note       string `validate:"max=512"`
}

func (c RejectRefundCommand) Key() string { return rejectRefundKey }

func (c RejectRefundCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type RejectRefundHandler struct {
	Refunds *refundsvc.Service
}

func (h *RejectRefundHandler) Handle(ctx context.Context, cmd RejectRefundCommand) (*dto.Refund, error) {
	r, err := h.Refunds.Reject(ctx, cmd.RequestID, cmd.ReviewerID, cmd.Note)
	if err != nil {
		return nil, err
	}
	result := dto.MapRefund(r)
	return &result, nil
}

type WithdrawRefundCommand struct {
	RequestID string `validate:"required"`
	GuestID   string `validate:"required"`
}

func (c WithdrawRefundCommand) Key() string { return withdrawRefundKey }

func (c WithdrawRefundCommand) AllowedRoles() []string { return []string{middleware.RoleGuest} }

type WithdrawRefundHandler struct {
	Refunds *refundsvc.Service
}

func (h *WithdrawRefundHandler) Handle(ctx context.Context, cmd WithdrawRefundCommand) (*dto.Refund, error) {
	r, err := h.Refunds.Withdraw(ctx, cmd.RequestID, cmd.GuestID)
	if err != nil {
		return nil, err
	}
	result := dto.MapRefund(r)
	return &result, nil
}

// PayoutRefundCommand pays an approved request. Repeating it is safe.
type PayoutRefundCommand struct {
	RequestID string `validate:"required"`
}

func (c PayoutRefundCommand) Key() string { return payoutRefundKey }

func (c PayoutRefundCommand) AllowedRoles() []string { return []string{middleware.RoleOperator} }

type PayoutRefundHandler struct {
	Refunds *refundsvc.Service
}

func (h *PayoutRefundHandler) Handle(ctx context.Context, cmd PayoutRefundCommand) (*dto.Refund, error) {
	r, err := h.Refunds.Payout(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	result := dto.MapRefund(r)
	return &result, nil
}

var (
	_ commands.Handler[RequestRefundCommand, *dto.Refund]  = (*RequestRefundHandler)(nil)
	_ commands.Handler[ApproveRefundCommand, *dto.Refund]  = (*ApproveRefundHandler)(nil)
	_ commands.Handler[RejectRefundCommand, *dto.Refund]   = (*RejectRefundHandler)(nil)
	_ commands.Handler[WithdrawRefundCommand, *dto.Refund] = (*WithdrawRefundHandler)(nil)
	_ commands.Handler[PayoutRefundCommand, *dto.Refund]   = (*PayoutRefundHandler)(nil)
	_ middleware.IdempotentCommand                         = (*RequestRefundCommand)(nil)
)
