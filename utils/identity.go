package utils

import (
	"context"

	"github.com/dcode-github/property_marketplace/models"
)

// Caller is the verified identity attached to a request by the auth
// middleware.
type Caller struct {
	UserID string
	Email  string
	Role   string
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

type contextKey string

const callerKey = contextKey("caller")

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok && c.UserID != ""
}
