package flowsvc

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region constants

const maxRetries = 2 // max 2 retries = 3 total attempts

// #endregion

// #region retry
// WithRetry wraps a remote engine so that a call the transport reports as
// Unavailable is tried again, up to maxRetries times, waiting backoff and
// then twice that between attempts. Other errors return at once.
func WithRetry(e flow.Engine, backoff time.Duration) flow.Engine {
	return flow.EngineFunc(func(ctx context.Context, prev, curr flow.Frame) (flow.Field, error) {
		wait := backoff
		for attempt := 0; ; attempt++ {
			field, err := e.Compute(ctx, prev, curr)
			if err == nil || attempt == maxRetries || !retryable(err) {
				return field, err
			}
			select {
			case <-ctx.Done():
				return flow.Field{}, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	})
}

func retryable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// #endregion
