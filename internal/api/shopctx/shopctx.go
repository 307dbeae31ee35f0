package shopctx

import (
	"context"
	"strings"
)

type ctxKeyShop struct{}

func WithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, ctxKeyShop{}, strings.ToLower(strings.TrimSpace(shop)))
}

// Shop returns the authenticated shop domain, or "" when none is set.
func Shop(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyShop{}).(string)
	return v
}
