package async

import (
	"context"
	"time"
)

// Service is a long running background worker.
type Service interface {
	Start(ctx context.Context, interval time.Duration) error
}
