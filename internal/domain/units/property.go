package units

import (
	"strings"
	"time"

	"roomstay/internal/domain/shared/apperr"
	"roomstay/internal/domain/shared/money"
)

var (
	ErrPropertyNotFound = apperr.New(apperr.NotFound, "units: property not found")
	ErrInvalidProperty  = apperr.New(apperr.Validation, "units: invalid property definition")
	ErrTaxRateBounds    = apperr.New(apperr.Validation, "units: tax rate must be within 0..10000 basis points")
)

type PropertyID string

// Property groups units under one owner, one currency and one tax rate.
type Property struct {
	ID              PropertyID
	OwnerID         string
	Name            string
	Currency        string
	TaxRateBps      int64
	DefaultPolicyID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

type CreatePropertyParams struct {
	ID              PropertyID
	OwnerID         string
	Name            string
	Currency        string
	TaxRateBps      int64
	DefaultPolicyID string
	Now             time.Time
}

func NewProperty(params CreatePropertyParams) (*Property, error) {
	if params.ID == "" || strings.TrimSpace(params.OwnerID) == "" {
		return nil, ErrInvalidProperty
	}
	if _, err := money.New(0, params.Currency); err != nil {
		return nil, err
	}
	if params.TaxRateBps < 0 || params.TaxRateBps > 10000 {
		return nil, ErrTaxRateBounds
	}
	now := params.Now.UTC()
	return &Property{
		ID:              params.ID,
		OwnerID:         params.OwnerID,
		Name:            strings.TrimSpace(params.Name),
		Currency:        strings.ToUpper(params.Currency),
		TaxRateBps:      params.TaxRateBps,
		DefaultPolicyID: params.DefaultPolicyID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// OwnedBy reports whether ownerID manages this property.
func (p *Property) OwnedBy(ownerID string) bool {
	return p != nil && p.OwnerID == ownerID
}
