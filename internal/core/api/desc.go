package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service descriptor for listingkeeper.rules.v1.ProductRules.
 *
 * Every method takes and returns google.protobuf.Struct, so the service is
 * registered with a hand-written grpc.ServiceDesc instead of generated
 * stubs. Field names inside the Structs are documented on each handler.
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "listingkeeper.rules.v1.ProductRules"

// Method names.
const (
	MethodEvaluate        = "Evaluate"
	MethodEvaluateBatch   = "EvaluateBatch"
	MethodListRules       = "ListRules"
	MethodInvalidateRules = "InvalidateRules"
)

// FullMethod returns the gRPC full method name ("/service/method").
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ProductRulesServer is the server API for the ProductRules service.
type ProductRulesServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InvalidateRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ProductRulesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ProductRulesServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ProductRulesServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for the ProductRules service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProductRulesServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodEvaluate, ProductRulesServer.Evaluate),
		unaryMethod(MethodEvaluateBatch, ProductRulesServer.EvaluateBatch),
		unaryMethod(MethodListRules, ProductRulesServer.ListRules),
		unaryMethod(MethodInvalidateRules, ProductRulesServer.InvalidateRules),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "listingkeeper/rules/v1/product_rules.proto",
}

// RegisterProductRulesServer registers srv on s.
func RegisterProductRulesServer(s grpc.ServiceRegistrar, srv ProductRulesServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the ProductRules service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a ProductRules client.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Evaluate runs the caller's rules against one product.
func (c *Client) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEvaluate, in, opts...)
}

// EvaluateBatch runs the caller's rules against many products.
func (c *Client) EvaluateBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEvaluateBatch, in, opts...)
}

// ListRules returns the caller's enabled rules.
func (c *Client) ListRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListRules, in, opts...)
}

// InvalidateRules drops the caller's cached rule snapshot.
func (c *Client) InvalidateRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodInvalidateRules, in, opts...)
}
