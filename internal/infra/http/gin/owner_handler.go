package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/dto"
	unitsapp "roomstay/internal/app/handlers/units"
	"roomstay/internal/app/middleware"
	"roomstay/internal/app/queries"
)

// CatalogHandler serves the public read side of the catalog.
type CatalogHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h CatalogHandler) GetUnit(c *gin.Context) {
	ask[unitsapp.GetUnitQuery, dto.Unit](c, h.Queries, h.Logger, unitsapp.GetUnitQuery{UnitID: c.Param("id")})
}

func (h CatalogHandler) ListUnits(c *gin.Context) {
	ask[unitsapp.ListUnitsQuery, unitsapp.UnitCollection](c, h.Queries, h.Logger, unitsapp.ListUnitsQuery{PropertyID: c.Query("property_id")})
}

func (h CatalogHandler) GetPolicy(c *gin.Context) {
	ask[unitsapp.GetPolicyQuery, dto.Policy](c, h.Queries, h.Logger, unitsapp.GetPolicyQuery{PolicyID: c.Param("id")})
}

type OwnerHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (h OwnerHandler) owner(c *gin.Context) (unitsapp.Owner, bool) {
	p, ok := requireRole(c, "")
	if !ok {
		return unitsapp.Owner{}, false
	}
	if !p.HasRole(middleware.RoleOwner) && !isOperator(p) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return unitsapp.Owner{}, false
	}
	return unitsapp.Owner{ID: p.ID, Operator: isOperator(p)}, true
}

type propertyRequest struct {
	Name            string `json:"name"`
	Currency        string `json:"currency"`
	TaxRateBps      int64  `json:"tax_rate_bps"`
	DefaultPolicyID string `json:"default_policy_id"`
}

func (h OwnerHandler) CreateProperty(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req propertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusCreated, unitsapp.CreatePropertyCommand{
		Owner:           owner,
		Name:            req.Name,
		Currency:        req.Currency,
		TaxRateBps:      req.TaxRateBps,
		DefaultPolicyID: req.DefaultPolicyID,
	})
}

type unitRequest struct {
	Name                string `json:"name"`
	BaseRateCents       int64  `json:"base_rate_cents"`
	PricingMode         string `json:"pricing_mode"`
	IncludedGuests      int    `json:"included_guests"`
	ExtraGuestRateCents int64  `json:"extra_guest_rate_cents"`
	MinGuests           int    `json:"min_guests"`
	MaxGuests           int    `json:"max_guests"`
	MinNights           int    `json:"min_nights"`
	MaxNights           int    `json:"max_nights"`
	Rooms               int    `json:"rooms"`
	CheckInHour         int    `json:"check_in_hour"`
	PolicyID            string `json:"policy_id"`
	DepositPercent      int    `json:"deposit_percent"`
}

func (h OwnerHandler) CreateUnit(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req unitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusCreated, unitsapp.CreateUnitCommand{
		Owner:               owner,
		PropertyID:          c.Param("id"),
		Name:                req.Name,
		BaseRateCents:       req.BaseRateCents,
		PricingMode:         req.PricingMode,
		IncludedGuests:      req.IncludedGuests,
		ExtraGuestRateCents: req.ExtraGuestRateCents,
		MinGuests:           req.MinGuests,
		MaxGuests:           req.MaxGuests,
		MinNights:           req.MinNights,
		MaxNights:           req.MaxNights,
		Rooms:               req.Rooms,
		CheckInHour:         req.CheckInHour,
		PolicyID:            req.PolicyID,
		DepositPercent:      req.DepositPercent,
	})
}

func (h OwnerHandler) RepriceUnit(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req unitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, unitsapp.RepriceUnitCommand{
		Owner:               owner,
		UnitID:              c.Param("id"),
		BaseRateCents:       req.BaseRateCents,
		PricingMode:         req.PricingMode,
		IncludedGuests:      req.IncludedGuests,
		ExtraGuestRateCents: req.ExtraGuestRateCents,
	})
}

type seasonalRateRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	RateCents int64  `json:"rate_cents"`
}

func (h OwnerHandler) AddSeasonalRate(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req seasonalRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusCreated, unitsapp.AddSeasonalRateCommand{
		Owner: owner, UnitID: c.Param("id"), From: req.From, To: req.To, RateCents: req.RateCents,
	})
}

func (h OwnerHandler) RemoveSeasonalRate(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, unitsapp.RemoveSeasonalRateCommand{Owner: owner, UnitID: c.Param("id"), RateID: c.Param("rate")})
}

type promotionRequest struct {
	ID          string   `json:"id"`
	UnitIDs     []string `json:"unit_ids"`
	Kind        string   `json:"kind"`
	PercentBps  int64    `json:"percent_bps"`
	AmountCents int64    `json:"amount_cents"`
	ValidFrom   string   `json:"valid_from"`
	ValidTo     string   `json:"valid_to"`
	MinNights   int      `json:"min_nights"`
	Active      bool     `json:"active"`
}

func (h OwnerHandler) UpsertPromotion(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req promotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, unitsapp.UpsertPromotionCommand{
		Owner:       owner,
		ID:          req.ID,
		PropertyID:  c.Param("id"),
		UnitIDs:     req.UnitIDs,
		Kind:        req.Kind,
		PercentBps:  req.PercentBps,
		AmountCents: req.AmountCents,
		ValidFrom:   req.ValidFrom,
		ValidTo:     req.ValidTo,
		MinNights:   req.MinNights,
		Active:      req.Active,
	})
}

type addOnRequest struct {
	ID         string `json:"id"`
	UnitID     string `json:"unit_id"`
	Name       string `json:"name"`
	Pricing    string `json:"pricing"`
	PriceCents int64  `json:"price_cents"`
	Active     bool   `json:"active"`
}

func (h OwnerHandler) UpsertAddOn(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req addOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, unitsapp.UpsertAddOnCommand{
		Owner:      owner,
		ID:         req.ID,
		PropertyID: c.Param("id"),
		UnitID:     req.UnitID,
		Name:       req.Name,
		Pricing:    req.Pricing,
		PriceCents: req.PriceCents,
		Active:     req.Active,
	})
}

type policyRequest struct {
	UnitID string                `json:"unit_id"`
	Tiers  []unitsapp.PolicyTier `json:"tiers"`
}

func (h OwnerHandler) SetPolicy(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatch(c, h.Commands, h.Logger, http.StatusOK, unitsapp.SetCancellationPolicyCommand{
		Owner:      owner,
		PolicyID:   c.Param("policy"),
		PropertyID: c.Param("id"),
		UnitID:     req.UnitID,
		Tiers:      req.Tiers,
	})
}

var (
	_ CatalogHTTP = CatalogHandler{}
	_ OwnerHTTP   = OwnerHandler{}
)
