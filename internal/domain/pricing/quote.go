package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"roomstay/internal/domain/shared/money"
)

type LineKind string

const (
	LineNight     LineKind = "night"
	LineAddOn     LineKind = "addon"
	LinePromotion LineKind = "promotion"
	LineTax       LineKind = "tax"
)

// Line is one priced row of a quote. AmountCents is already rounded and is
// negative for discounts.
type Line struct {
	Kind        LineKind `json:"kind" bson:"kind"`
	Code        string   `json:"code" bson:"code"`
	Source      string   `json:"source,omitempty" bson:"source,omitempty"`
	Quantity    int64    `json:"quantity" bson:"quantity"`
	UnitCents   int64    `json:"unit_cents" bson:"unit_cents"`
	AmountCents int64    `json:"amount_cents" bson:"amount_cents"`
}

// Breakdown is the data shared by a live Quote and a FrozenQuote.
type Breakdown struct {
	UnitID        string   `json:"unit_id" bson:"unit_id"`
	PropertyID    string   `json:"property_id" bson:"property_id"`
	Currency      string   `json:"currency" bson:"currency"`
	CheckIn       string   `json:"check_in" bson:"check_in"`
	CheckOut      string   `json:"check_out" bson:"check_out"`
	Nights        int      `json:"nights" bson:"nights"`
	Guests        int      `json:"guests" bson:"guests"`
	Rooms         int      `json:"rooms" bson:"rooms"`
	Mode          string   `json:"pricing_mode" bson:"pricing_mode"`
	Lines         []Line   `json:"lines" bson:"lines"`
	RoomCents     int64    `json:"room_cents" bson:"room_cents"`
	AddOnCents    int64    `json:"addon_cents" bson:"addon_cents"`
	DiscountCents int64    `json:"discount_cents" bson:"discount_cents"`
	SubtotalCents int64    `json:"subtotal_cents" bson:"subtotal_cents"`
	TaxRateBps    int64    `json:"tax_rate_bps" bson:"tax_rate_bps"`
	TaxCents      int64    `json:"tax_cents" bson:"tax_cents"`
	TotalCents    int64    `json:"total_cents" bson:"total_cents"`
	PromotionID   string   `json:"promotion_id,omitempty" bson:"promotion_id,omitempty"`
	AddOnIDs      []string `json:"addon_ids,omitempty" bson:"addon_ids,omitempty"`
}

func (b Breakdown) Total() money.Money {
	return money.Money{Amount: b.TotalCents, Currency: b.Currency}
}

func (b Breakdown) clone() Breakdown {
	out := b
	out.Lines = append([]Line(nil), b.Lines...)
	out.AddOnIDs = append([]string(nil), b.AddOnIDs...)
	return out
}

// Quote is an ephemeral, reproducible price. It carries no timestamps so equal
// inputs give byte-identical quotes and digests.
type Quote struct {
	Breakdown
	Digest string `json:"digest"`
}

// FrozenQuote is the price copied onto a booking at hold time. It is only ever
// produced by Quote.Freeze or loaded back from storage; it is never recomputed.
type FrozenQuote struct {
	Breakdown `bson:",inline"`
	Digest    string `json:"digest" bson:"digest"`
}

func (q Quote) Freeze() FrozenQuote {
	return FrozenQuote{Breakdown: q.Breakdown.clone(), Digest: q.Digest}
}

// Verify reports whether the stored digest still matches the breakdown.
func (f FrozenQuote) Verify() bool {
	d, err := digestOf(f.Breakdown)
	return err == nil && d == f.Digest
}

func digestOf(b Breakdown) (string, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
