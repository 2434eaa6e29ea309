// Package ctxkeys defines typed context keys shared between middleware and
// handlers, so neither package has to import the other.
package ctxkeys

import (
	"context"

	"github.com/newoon/backoffice-server/internal/models"
)

// Key is a typed string used as context key to prevent collisions.
type Key string

const (
	Principal Key = "principal"
	TokenID   Key = "tokenID"
)

// WithPrincipal stores the authenticated account and its session token id
func WithPrincipal(ctx context.Context, acct *models.Account, tokenID string) context.Context {
	ctx = context.WithValue(ctx, Principal, acct)
	return context.WithValue(ctx, TokenID, tokenID)
}

// PrincipalFrom returns the authenticated account, or nil on public routes
func PrincipalFrom(ctx context.Context) *models.Account {
	acct, _ := ctx.Value(Principal).(*models.Account)
	return acct
}

// TokenIDFrom returns the session token id of the current request
func TokenIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(TokenID).(string)
	return id
}
