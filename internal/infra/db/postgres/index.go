package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"roomstay/internal/domain/availability"
	"roomstay/internal/domain/shared/daterange"
	"roomstay/internal/domain/units"
)

const (
	codeExclusionViolation = "23P01"
	codeCheckViolation     = "23514"
)

// BlockIndex implements availability.Index on a table guarded by an exclusion
// constraint, so the database itself refuses overlapping blocks on a unit.
type BlockIndex struct {
	DB  *DB
	Now func() time.Time
}

func NewBlockIndex(db *DB) *BlockIndex {
	return &BlockIndex{DB: db}
}

type blockRow struct {
	UnitID    string    `db:"unit_id"`
	Reference string    `db:"reference"`
	Reason    string    `db:"reason"`
	CheckIn   string    `db:"check_in"`
	CheckOut  string    `db:"check_out"`
	CreatedAt time.Time `db:"created_at"`
}

const selectBlocks = `
	SELECT unit_id, reference, reason,
	       to_char(check_in, 'YYYY-MM-DD') AS check_in,
	       to_char(check_out, 'YYYY-MM-DD') AS check_out,
	       created_at
	FROM unit_blocks`

// Reserve inserts the block. Re-reserving the identical range for the same
// reference is a no-op.
func (x *BlockIndex) Reserve(ctx context.Context, unitID units.UnitID, r daterange.DateRange, reason availability.BlockReason, ref string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	res, err := x.DB.ExecContext(ctx, `
		INSERT INTO unit_blocks (unit_id, reference, reason, check_in, check_out, created_at)
		VALUES ($1, $2, $3, $4::date, $5::date, $6)
		ON CONFLICT (unit_id, reference) DO NOTHING`,
		string(unitID), ref, string(reason),
		r.CheckIn.Format(daterange.DateLayout), r.CheckOut.Format(daterange.DateLayout), x.now())
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}
	existing, err := x.find(ctx, unitID, ref)
	if err != nil {
		return err
	}
	if existing.Range.Equal(r) {
		return nil
	}
	return availability.ErrDuplicateRef
}

func (x *BlockIndex) Release(ctx context.Context, unitID units.UnitID, ref string) error {
	res, err := x.DB.ExecContext(ctx, `DELETE FROM unit_blocks WHERE unit_id = $1 AND reference = $2`, string(unitID), ref)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return availability.ErrBlockNotFound
	}
	return nil
}

func (x *BlockIndex) IsFree(ctx context.Context, unitID units.UnitID, r daterange.DateRange) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	var taken bool
	err := x.DB.GetContext(ctx, &taken, `
		SELECT EXISTS (
			SELECT 1 FROM unit_blocks
			WHERE unit_id = $1 AND during && daterange($2::date, $3::date, '[)')
		)`,
		string(unitID), r.CheckIn.Format(daterange.DateLayout), r.CheckOut.Format(daterange.DateLayout))
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (x *BlockIndex) Blocks(ctx context.Context, unitID units.UnitID) ([]availability.Block, error) {
	var rows []blockRow
	if err := x.DB.SelectContext(ctx, &rows, selectBlocks+` WHERE unit_id = $1 ORDER BY check_in`, string(unitID)); err != nil {
		return nil, err
	}
	out := make([]availability.Block, 0, len(rows))
	for _, row := range rows {
		b, err := row.toBlock()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (x *BlockIndex) find(ctx context.Context, unitID units.UnitID, ref string) (availability.Block, error) {
	var row blockRow
	err := x.DB.GetContext(ctx, &row, selectBlocks+` WHERE unit_id = $1 AND reference = $2`, string(unitID), ref)
	if errors.Is(err, sql.ErrNoRows) {
		return availability.Block{}, availability.ErrBlockNotFound
	}
	if err != nil {
		return availability.Block{}, err
	}
	return row.toBlock()
}

func (row blockRow) toBlock() (availability.Block, error) {
	r, err := daterange.Parse(row.CheckIn, row.CheckOut)
	if err != nil {
		return availability.Block{}, err
	}
	return availability.Block{
		UnitID:    units.UnitID(row.UnitID),
		Range:     r,
		Reason:    availability.BlockReason(row.Reason),
		Reference: row.Reference,
		CreatedAt: row.CreatedAt.UTC(),
	}, nil
}

func (x *BlockIndex) now() time.Time {
	if x.Now != nil {
		return x.Now().UTC()
	}
	return time.Now().UTC()
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeExclusionViolation:
			return availability.ErrOverlappingRange
		case codeCheckViolation:
			return daterange.ErrInvalidRange
		}
	}
	return err
}

var _ availability.Index = (*BlockIndex)(nil)
