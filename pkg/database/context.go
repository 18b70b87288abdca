package database

import "context"

type contextKey string

// OwnerScopeKey is the context key for the request's owner-scoped connection.
const OwnerScopeKey contextKey = "ownerScope"

// GetOwnerScope retrieves the owner-scoped connection from context.
func GetOwnerScope(ctx context.Context) (*OwnerScope, bool) {
	scope, ok := ctx.Value(OwnerScopeKey).(*OwnerScope)
	return scope, ok && scope != nil
}

// SetOwnerScope stores an owner-scoped connection in context.
func SetOwnerScope(ctx context.Context, scope *OwnerScope) context.Context {
	return context.WithValue(ctx, OwnerScopeKey, scope)
}
