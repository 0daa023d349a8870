package flowsvc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/akinetopsia/internal/flow"
)

// #region client-struct
// Client is a flow.Engine backed by a remote FlowEngine service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a FlowEngine server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close does not close it.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region compute
// Compute implements flow.Engine. A server-side InvalidArgument is reported
// as flow.ErrShapeMismatch.
func (c *Client) Compute(ctx context.Context, prev, curr flow.Frame) (flow.Field, error) {
	if err := flow.CheckShapes(prev.Shape(), curr.Shape()); err != nil {
		return flow.Field{}, err
	}
	resp := new(ComputeResponse)
	err := c.cc.Invoke(ctx, ComputeMethod, &ComputeRequest{Prev: prev, Curr: curr}, resp, grpc.ForceCodec(Codec{}))
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return flow.Field{}, fmt.Errorf("compute rpc: %w: %s", flow.ErrShapeMismatch, status.Convert(err).Message())
		}
		return flow.Field{}, fmt.Errorf("compute rpc: %w", err)
	}
	if err := flow.CheckShapes(resp.Field.Shape(), curr.Shape()); err != nil {
		return flow.Field{}, fmt.Errorf("compute rpc response: %w", err)
	}
	return resp.Field, nil
}

// #endregion compute
