package dto

import (
	"time"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

type CalendarBlock struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Calendar struct {
	UnitID string          `json:"unit_id"`
	Blocks []CalendarBlock `json:"blocks"`
}

// MapCalendar hides booking references from callers that do not own the unit.
func MapCalendar(unitID units.UnitID, blocks []availability.Block, withRefs bool) Calendar {
	out := Calendar{UnitID: string(unitID), Blocks: make([]CalendarBlock, 0, len(blocks))}
	for _, b := range blocks {
		block := CalendarBlock{
			From:      b.Range.CheckIn.Format(daterange.DateLayout),
			To:        b.Range.CheckOut.Format(daterange.DateLayout),
			Reason:    string(b.Reason),
			CreatedAt: b.CreatedAt,
		}
		if withRefs {
			block.Reference = b.Reference
		}
		out.Blocks = append(out.Blocks, block)
	}
	return out
}

type BlockCreated struct {
	UnitID    string `json:"unit_id"`
	Reference string `json:"reference"`
	From      string `json:"from"`
	To        string `json:"to"`
}
