package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"roomstay/internal/domain/cancellation"
)

type PolicyRepository struct {
	col *mongo.Collection
}

func NewPolicyRepository(db *mongo.Database) *PolicyRepository {
	return &PolicyRepository{col: db.Collection(colPolicies)}
}

func (r *PolicyRepository) Policy(ctx context.Context, id string) (*cancellation.Policy, error) {
	var p cancellation.Policy
	if err := findOne(ctx, r.col, bson.M{"_id": id}, &p, cancellation.ErrPolicyNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save replaces the policy. Bookings keep their own copy, so edits never
// reach stays that were already held.
func (r *PolicyRepository) Save(ctx context.Context, p *cancellation.Policy) error {
	p.Version++
	return replaceByID(ctx, r.col, p.ID, p)
}

var _ cancellation.Repository = (*PolicyRepository)(nil)
