package cancellation

import (
	"context"
	"sort"

	"roomstay/internal/domain/shared/apperr"
)

var (
	ErrPolicyNotFound = apperr.New(apperr.NotFound, "cancellation: policy not found")
	ErrInvalidTier    = apperr.New(apperr.Validation, "cancellation: tier percent must be within 0..100 and hours non-negative")
	ErrNonMonotonic   = apperr.New(apperr.Validation, "cancellation: refund percent must not grow closer to check-in")
)

// Tier grants RefundPercent when the guest cancels at least MinHoursBeforeCheckIn
// hours ahead of check-in.
type Tier struct {
	MinHoursBeforeCheckIn int `json:"min_hours_before_checkin" bson:"min_hours_before_checkin"`
	RefundPercent         int `json:"refund_percent" bson:"refund_percent"`
}

// Policy is declared per unit or per property. Bookings keep a copy of the
// policy that was in force when they were held.
type Policy struct {
	ID      string `json:"id" bson:"_id"`
	Scope   string `json:"scope" bson:"scope"`
	Tiers   []Tier `json:"tiers" bson:"tiers"`
	Version int64  `json:"-" bson:"version"`
}

type Repository interface {
	Policy(ctx context.Context, id string) (*Policy, error)
	Save(ctx context.Context, p *Policy) error
}

func NewPolicy(id, scope string, tiers []Tier) (*Policy, error) {
	p := &Policy{ID: id, Scope: scope, Tiers: append([]Tier(nil), tiers...)}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects tiers out of bounds and any schedule where a later (fewer
// hours) tier refunds more than an earlier one.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return ErrInvalidTier
	}
	for _, t := range p.Tiers {
		if t.MinHoursBeforeCheckIn < 0 || t.RefundPercent < 0 || t.RefundPercent > 100 {
			return ErrInvalidTier
		}
	}
	ordered := p.ordered()
	for i := 1; i < len(ordered); i++ {
		if ordered[i].RefundPercent > ordered[i-1].RefundPercent {
			return ErrNonMonotonic
		}
	}
	return nil
}

// TierFor returns the refund percentage for a cancellation hours ahead of
// check-in: the tier with the largest MinHoursBeforeCheckIn not above hours,
// equal thresholds resolved in favour of the larger percentage. Negative
// hours or no matching tier give 0.
func (p *Policy) TierFor(hours float64) int {
	if p == nil || hours < 0 {
		return 0
	}
	for _, t := range p.ordered() {
		if float64(t.MinHoursBeforeCheckIn) <= hours {
			return t.RefundPercent
		}
	}
	return 0
}

func (p *Policy) Snapshot() Policy {
	return Policy{ID: p.ID, Scope: p.Scope, Tiers: append([]Tier(nil), p.Tiers...)}
}

func (p *Policy) ordered() []Tier {
	out := append([]Tier(nil), p.Tiers...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MinHoursBeforeCheckIn != out[j].MinHoursBeforeCheckIn {
			return out[i].MinHoursBeforeCheckIn > out[j].MinHoursBeforeCheckIn
		}
		return out[i].RefundPercent > out[j].RefundPercent
	})
	return out
}
