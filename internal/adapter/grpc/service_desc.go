package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "navfolio.v1.PortfolioService"

// Method names of the PortfolioService
const (
	MethodGetPortfolioSummary  = "GetPortfolioSummary"
	MethodGetFundSummary       = "GetFundSummary"
	MethodGetFundReturns       = "GetFundReturns"
	MethodEstimateCapitalGains = "EstimateCapitalGains"
	MethodSimulateInvestment   = "SimulateInvestment"
	MethodRecordTransaction    = "RecordTransaction"
	MethodListTransactions     = "ListTransactions"
)

// PortfolioServer is the server API for the PortfolioService.
// Requests and responses are google.protobuf.Struct messages; decimals travel as strings.
type PortfolioServer interface {
	GetPortfolioSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFundSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFundReturns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EstimateCapitalGains(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SimulateInvestment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordTransaction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(PortfolioServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a PortfolioServer method to a grpc.MethodHandler
func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PortfolioServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PortfolioServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for the PortfolioService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PortfolioServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetPortfolioSummary, Handler: unaryHandler(MethodGetPortfolioSummary, PortfolioServer.GetPortfolioSummary)},
		{MethodName: MethodGetFundSummary, Handler: unaryHandler(MethodGetFundSummary, PortfolioServer.GetFundSummary)},
		{MethodName: MethodGetFundReturns, Handler: unaryHandler(MethodGetFundReturns, PortfolioServer.GetFundReturns)},
		{MethodName: MethodEstimateCapitalGains, Handler: unaryHandler(MethodEstimateCapitalGains, PortfolioServer.EstimateCapitalGains)},
		{MethodName: MethodSimulateInvestment, Handler: unaryHandler(MethodSimulateInvestment, PortfolioServer.SimulateInvestment)},
		{MethodName: MethodRecordTransaction, Handler: unaryHandler(MethodRecordTransaction, PortfolioServer.RecordTransaction)},
		{MethodName: MethodListTransactions, Handler: unaryHandler(MethodListTransactions, PortfolioServer.ListTransactions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "navfolio/v1/portfolio.proto",
}

// RegisterPortfolioServer registers srv on the gRPC server
func RegisterPortfolioServer(s grpc.ServiceRegistrar, srv PortfolioServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls PortfolioService methods with plain maps
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new PortfolioService client
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and returns the decoded response
func (c *Client) Call(ctx context.Context, method string, req map[string]interface{}, opts ...grpc.CallOption) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
