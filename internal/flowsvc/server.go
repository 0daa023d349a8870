package flowsvc

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "akinetopsia.flow.v1.FlowEngine"
	// ComputeMethod is the full method path of Compute.
	ComputeMethod = "/" + ServiceName + "/Compute"
)

// #region service-desc
// FlowEngineServer is the server API of akinetopsia.flow.v1.FlowEngine.
type FlowEngineServer interface {
	Compute(ctx context.Context, req *ComputeRequest) (*ComputeResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FlowEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compute", Handler: computeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/flow/v1/flow.proto",
}

func computeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ComputeRequest)
	if err := dec(in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if interceptor == nil {
		return srv.(FlowEngineServer).Compute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ComputeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FlowEngineServer).Compute(ctx, req.(*ComputeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region server
// Server exposes a flow.Engine over gRPC.
type Server struct {
	engine flow.Engine
	logger *zap.Logger
}

// NewServer wraps engine. A nil logger discards output.
func NewServer(engine flow.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, logger: logger.Named("flowsvc")}
}

// Register adds the FlowEngine service to s. The grpc.Server must be built
// with ServerOptions so requests decode with Codec.
func Register(s *grpc.Server, srv FlowEngineServer) {
	s.RegisterService(&serviceDesc, srv)
}

// ServerOptions returns the options a grpc.Server needs to host FlowEngine.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(Codec{})}
}

// NewGRPCServer builds a grpc.Server hosting engine.
func NewGRPCServer(engine flow.Engine, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(append(ServerOptions(), opts...)...)
	Register(s, NewServer(engine, logger))
	return s
}

// Compute implements FlowEngineServer.
func (s *Server) Compute(ctx context.Context, req *ComputeRequest) (*ComputeResponse, error) {
	if err := flow.CheckShapes(req.Prev.Shape(), req.Curr.Shape()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !req.Curr.Shape().Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "empty frame %s", req.Curr.Shape())
	}

	field, err := s.engine.Compute(ctx, req.Prev, req.Curr)
	if err != nil {
		s.logger.Warn("compute failed", zap.Stringer("shape", req.Curr.Shape()), zap.Error(err))
		return nil, toStatus(err)
	}
	if field.Shape() != req.Curr.Shape() || len(field.Vec) != 2*field.Width*field.Height {
		return nil, status.Errorf(codes.Internal, "engine returned field %s for frames %s", field.Shape(), req.Curr.Shape())
	}
	s.logger.Debug("computed flow",
		zap.Stringer("shape", field.Shape()),
		zap.Float64("mean_magnitude", field.MeanMagnitude()),
	)
	return &ComputeResponse{Field: field}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, flow.ErrShapeMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, fmt.Sprintf("flow engine: %v", err))
}

// #endregion server
