package availability

import (
	"context"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/queries"
	"roomstay/internal/app/services/lifecycle"
	domainavailability "roomstay/internal/domain/availability"
	domainrange "roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

const (
	getCalendarKey = "availability.calendar"
	blockDatesKey  = "availability.block"
	unblockKey     = "availability.unblock"
)

// GetCalendarQuery lists the blocks of a unit, optionally limited to those
// overlapping [From, To). Block references are shown to owners and operators.
type GetCalendarQuery struct {
	UnitID   string `validate:"required"`
	From     string
	To       string
	ActorID  string
	Operator bool
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	Index   domainavailability.Index
	Catalog units.Catalog
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	unitID := units.UnitID(q.UnitID)
	u, err := h.Catalog.Unit(ctx, unitID)
	if err != nil {
		return dto.Calendar{}, err
	}
	var window *domainrange.DateRange
	if q.From != "" || q.To != "" {
		r, err := domainrange.Parse(q.From, q.To)
		if err != nil {
			return dto.Calendar{}, err
		}
		window = &r
	}
	blocks, err := h.Index.Blocks(ctx, unitID)
	if err != nil {
		return dto.Calendar{}, err
	}
	if window != nil {
		kept := blocks[:0]
		for _, b := range blocks {
			if b.Range.Overlaps(*window) {
				kept = append(kept, b)
			}
		}
		blocks = kept
	}
	withRefs := q.Operator
	if !withRefs && q.ActorID != "" {
		if prop, err := h.Catalog.Property(ctx, u.PropertyID); err == nil {
			withRefs = prop.OwnedBy(q.ActorID)
		}
	}
	return dto.MapCalendar(unitID, blocks, withRefs), nil
}

type BlockDatesCommand struct {
	ActorID  string `validate:"required"`
	Operator bool
	UnitID   string `validate:"required"`
	From     string `validate:"required"`
	To       string `validate:"required"`
}

func (c BlockDatesCommand) Key() string { return blockDatesKey }

func (c BlockDatesCommand) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type BlockDatesHandler struct {
	Lifecycle *lifecycle.Manager
}

func (h *BlockDatesHandler) Handle(ctx context.Context, cmd BlockDatesCommand) (*dto.BlockCreated, error) {
	stay, err := domainrange.Parse(cmd.From, cmd.To)
	if err != nil {
		return nil, err
	}
	block, err := h.Lifecycle.BlockDates(ctx, lifecycle.Actor{ID: cmd.ActorID, Operator: cmd.Operator}, units.UnitID(cmd.UnitID), stay)
	if err != nil {
		return nil, err
	}
	return &dto.BlockCreated{
		UnitID:    string(block.UnitID),
		Reference: block.Reference,
		From:      block.Range.CheckIn.Format(domainrange.DateLayout),
		To:        block.Range.CheckOut.Format(domainrange.DateLayout),
	}, nil
}

type UnblockDatesCommand struct {
	ActorID   string `validate:"required"`
	Operator  bool
	UnitID    string `validate:"required"`
	Reference string `validate:"required"`
}

func (c UnblockDatesCommand) Key() string { return unblockKey }

func (c UnblockDatesCommand) AllowedRoles() []string {
	return []string{middleware.RoleOwner, middleware.RoleOperator}
}

type UnblockDatesHandler struct {
	Lifecycle *lifecycle.Manager
}

func (h *UnblockDatesHandler) Handle(ctx context.Context, cmd UnblockDatesCommand) (*dto.Created, error) {
	err := h.Lifecycle.UnblockDates(ctx, lifecycle.Actor{ID: cmd.ActorID, Operator: cmd.Operator}, units.UnitID(cmd.UnitID), cmd.Reference)
	if err != nil {
		return nil, err
	}
	return &dto.Created{ID: cmd.Reference}, nil
}

var (
	_ queries.Handler[GetCalendarQuery, dto.Calendar]        = (*GetCalendarHandler)(nil)
	_ commands.Handler[BlockDatesCommand, *dto.BlockCreated] = (*BlockDatesHandler)(nil)
	_ commands.Handler[UnblockDatesCommand, *dto.Created]    = (*UnblockDatesHandler)(nil)
)
