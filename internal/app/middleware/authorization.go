package middleware

import (
	"context"
	"slices"

	"roomstay/internal/app/commands"
	"roomstay/internal/app/queries"
	"roomstay/internal/domain/shared/apperr"
)

const (
	RoleGuest    = "guest"
	RoleOwner    = "owner"
	RoleOperator = "operator"
	RoleSystem   = "system"
)

var (
	ErrUnauthenticated = apperr.New(apperr.Unauthenticated, "auth: principal required")
	ErrForbidden       = apperr.New(apperr.Forbidden, "auth: role not permitted")
)

// Principal is the caller identity supplied by the upstream identity gateway.
type Principal struct {
	ID    string
	Roles []string
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ID != ""
}

// RoleRestricted is implemented by messages limited to some roles.
type RoleRestricted interface {
	AllowedRoles() []string
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RoleAuthorizer admits unrestricted messages and checks the principal's roles
// for restricted ones.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	restricted, ok := message.(RoleRestricted)
	if !ok {
		return nil
	}
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if p.HasRole(RoleSystem) {
		return nil
	}
	for _, role := range restricted.AllowedRoles() {
		if p.HasRole(role) {
			return nil
		}
	}
	return ErrForbidden
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
