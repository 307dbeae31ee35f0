package worker

import (
	"context"

	"github.com/ETAnderson/merchantdesk/internal/api/shopctx"
)

type ctxKey string

const jobIDKey ctxKey = "worker_job_id"

// WithJobID stores the job ID on the context.
func WithJobID(ctx context.Context, jobID string) context.Context {
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID reads the job ID from context.
func JobID(ctx context.Context) string {
	v := ctx.Value(jobIDKey)
	s, _ := v.(string)
	return s
}

// WithShop stores the shop domain on context using the shared shopctx package.
func WithShop(ctx context.Context, shop string) context.Context {
	return shopctx.WithShop(ctx, shop)
}
