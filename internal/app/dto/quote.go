package dto

import "roomstay/internal/domain/pricing"

type Quote struct {
	pricing.Breakdown
	Digest string `json:"digest"`
}

func MapQuote(q pricing.Quote) Quote {
	return Quote{Breakdown: q.Breakdown, Digest: q.Digest}
}
