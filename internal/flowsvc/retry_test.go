package flowsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

func failing(n int, err error) (flow.Engine, *int) {
	calls := 0
	return flow.EngineFunc(func(_ context.Context, _, curr flow.Frame) (flow.Field, error) {
		calls++
		if calls <= n {
			return flow.Field{}, err
		}
		return flow.NewField(curr.Shape()), nil
	}), &calls
}

func TestWithRetryRecoversFromUnavailable(t *testing.T) {
	e, calls := failing(2, status.Error(codes.Unavailable, "connection refused"))
	frame := flow.NewFrame(2, 2)

	field, err := WithRetry(e, time.Millisecond).Compute(context.Background(), frame, frame)
	require.NoError(t, err)
	assert.Equal(t, frame.Shape(), field.Shape())
	assert.Equal(t, 3, *calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	e, calls := failing(10, status.Error(codes.Unavailable, "down"))
	frame := flow.NewFrame(2, 2)

	_, err := WithRetry(e, time.Millisecond).Compute(context.Background(), frame, frame)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, 1+maxRetries, *calls)
}

func TestWithRetrySkipsOtherErrors(t *testing.T) {
	e, calls := failing(1, flow.ErrShapeMismatch)
	frame := flow.NewFrame(2, 2)

	_, err := WithRetry(e, time.Millisecond).Compute(context.Background(), frame, frame)
	assert.True(t, errors.Is(err, flow.ErrShapeMismatch))
	assert.Equal(t, 1, *calls)
}

func TestWithRetryHonoursContext(t *testing.T) {
	e, calls := failing(10, status.Error(codes.Unavailable, "down"))
	frame := flow.NewFrame(2, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(e, time.Hour).Compute(ctx, frame, frame)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
}
