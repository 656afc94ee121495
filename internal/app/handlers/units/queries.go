package units

import (
	"context"

	"roomstay/internal/app/dto"
	handlersupport "roomstay/internal/app/handlers/support"
	"roomstay/internal/app/queries"
	"roomstay/internal/app/uow"
	domainunits "roomstay/internal/domain/units"
)

const (
	getUnitKey   = "catalog.units.get"
	listUnitsKey = "catalog.units.list"
	getPolicyKey = "catalog.policies.get"
)

type GetUnitQuery struct {
	UnitID string `validate:"required"`
}

func (q GetUnitQuery) Key() string { return getUnitKey }

type GetUnitHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetUnitHandler) Handle(ctx context.Context, q GetUnitQuery) (dto.Unit, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Unit{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	u, err := unit.Catalog().Unit(execCtx, domainunits.UnitID(q.UnitID))
	if err != nil {
		return dto.Unit{}, err
	}
	return dto.MapUnit(u), nil
}

type ListUnitsQuery struct {
	PropertyID string
}

func (q ListUnitsQuery) Key() string { return listUnitsKey }

type UnitCollection struct {
	Items []dto.Unit `json:"items"`
}

type ListUnitsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListUnitsHandler) Handle(ctx context.Context, q ListUnitsQuery) (UnitCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return UnitCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	list, err := unit.Catalog().ListUnits(execCtx)
	if err != nil {
		return UnitCollection{}, err
	}
	items := make([]dto.Unit, 0, len(list))
	for _, u := range list {
		if q.PropertyID != "" && string(u.PropertyID) != q.PropertyID {
			continue
		}
		items = append(items, dto.MapUnit(u))
	}
	return UnitCollection{Items: items}, nil
}

type GetPolicyQuery struct {
	PolicyID string `validate:"required"`
}

func (q GetPolicyQuery) Key() string { return getPolicyKey }

type GetPolicyHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetPolicyHandler) Handle(ctx context.Context, q GetPolicyQuery) (dto.Policy, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Policy{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	p, err := unit.Policies().Policy(execCtx, q.PolicyID)
	if err != nil {
		return dto.Policy{}, err
	}
	return dto.MapPolicy(p), nil
}

var (
	_ queries.Handler[GetUnitQuery, dto.Unit]         = (*GetUnitHandler)(nil)
	_ queries.Handler[ListUnitsQuery, UnitCollection] = (*ListUnitsHandler)(nil)
	_ queries.Handler[GetPolicyQuery, dto.Policy]     = (*GetPolicyHandler)(nil)
)
