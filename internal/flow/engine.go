package flow

import "context"

// #region engine
// Engine computes dense optical flow between two grayscale frames of equal size.
// Implementations live outside this package: OpenCV through gocv, or a remote
// service over gRPC.
type Engine interface {
	Compute(ctx context.Context, prev, curr Frame) (Field, error)
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(ctx context.Context, prev, curr Frame) (Field, error)

// Compute calls fn.
func (fn EngineFunc) Compute(ctx context.Context, prev, curr Frame) (Field, error) {
	return fn(ctx, prev, curr)
}

// #endregion engine
