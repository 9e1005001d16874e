// Package api describes the kasa.v1.SettlementService gRPC service: its
// messages, the service descriptor and a client.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/iho/kasa/internal/adapter/grpc/codec"
)

// ServiceName is the fully qualified service name.
const ServiceName = "kasa.v1.SettlementService"

// Full method names.
const (
	MethodPreview       = "/" + ServiceName + "/Preview"
	MethodClose         = "/" + ServiceName + "/Close"
	MethodGetSettlement = "/" + ServiceName + "/GetSettlement"
	MethodCarry         = "/" + ServiceName + "/Carry"
)

// PeriodRequest selects a month.
type PeriodRequest struct {
	Month string `json:"month"`
}

// CloseRequest closes a month.
type CloseRequest struct {
	Month string `json:"month"`
	Force bool   `json:"force,omitempty"`
}

// CarryRequest is empty.
type CarryRequest struct{}

// Row is one shareholder's line. Amounts are decimal strings.
type Row struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Percent     string `json:"percent"`
	Entitlement string `json:"entitlement"`
	Advance     string `json:"advance"`
	PrevCarry   string `json:"prev_carry"`
	Paid        string `json:"paid"`
	NewCarry    string `json:"new_carry"`
}

// Distribution is a computed distribution.
type Distribution struct {
	Month            string `json:"month"`
	Distributable    string `json:"distributable"`
	TotalEntitlement string `json:"total_entitlement"`
	TotalPaid        string `json:"total_paid"`
	TotalClaims      string `json:"total_claims"`
	Policy           string `json:"policy"`
	Shortfall        bool   `json:"shortfall"`
	Rows             []Row  `json:"rows"`
}

// Settlement is a closed month.
type Settlement struct {
	ID           string                 `json:"id"`
	Month        string                 `json:"month"`
	ClosedAt     *timestamppb.Timestamp `json:"closed_at"`
	ClosedBy     string                 `json:"closed_by"`
	Distribution *Distribution          `json:"distribution"`
	NewCarry     map[string]string      `json:"new_carry"`
}

// Carry lists carried balances.
type Carry struct {
	Balances map[string]string `json:"balances"`
	Total    string            `json:"total"`
}

// SettlementServiceServer is implemented by the server.
type SettlementServiceServer interface {
	Preview(context.Context, *PeriodRequest) (*Distribution, error)
	Close(context.Context, *CloseRequest) (*Settlement, error)
	GetSettlement(context.Context, *PeriodRequest) (*Settlement, error)
	Carry(context.Context, *CarryRequest) (*Carry, error)
}

// RegisterSettlementServiceServer registers srv on s.
func RegisterSettlementServiceServer(s grpc.ServiceRegistrar, srv SettlementServiceServer) {
	s.RegisterService(&SettlementServiceDesc, srv)
}

// SettlementServiceDesc describes the service for grpc.Server.
var SettlementServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SettlementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Preview", Handler: unaryHandler(MethodPreview, func(s SettlementServiceServer, ctx context.Context, req *PeriodRequest) (any, error) {
			return s.Preview(ctx, req)
		})},
		{MethodName: "Close", Handler: unaryHandler(MethodClose, func(s SettlementServiceServer, ctx context.Context, req *CloseRequest) (any, error) {
			return s.Close(ctx, req)
		})},
		{MethodName: "GetSettlement", Handler: unaryHandler(MethodGetSettlement, func(s SettlementServiceServer, ctx context.Context, req *PeriodRequest) (any, error) {
			return s.GetSettlement(ctx, req)
		})},
		{MethodName: "Carry", Handler: unaryHandler(MethodCarry, func(s SettlementServiceServer, ctx context.Context, req *CarryRequest) (any, error) {
			return s.Carry(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kasa/v1/settlement",
}

// unaryHandler adapts a typed method to grpc.MethodDesc, running the
// configured interceptor chain.
func unaryHandler[Req any](fullMethod string, call func(SettlementServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(SettlementServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

// SettlementClient calls the service with the JSON codec.
type SettlementClient struct {
	cc grpc.ClientConnInterface
}

// NewSettlementClient creates a client on cc.
func NewSettlementClient(cc grpc.ClientConnInterface) *SettlementClient {
	return &SettlementClient{cc: cc}
}

func (c *SettlementClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codec.Name)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// Preview computes a month without saving it.
func (c *SettlementClient) Preview(ctx context.Context, in *PeriodRequest, opts ...grpc.CallOption) (*Distribution, error) {
	out := new(Distribution)
	if err := c.invoke(ctx, MethodPreview, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Close settles a month.
func (c *SettlementClient) Close(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*Settlement, error) {
	out := new(Settlement)
	if err := c.invoke(ctx, MethodClose, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSettlement returns a closed month.
func (c *SettlementClient) GetSettlement(ctx context.Context, in *PeriodRequest, opts ...grpc.CallOption) (*Settlement, error) {
	out := new(Settlement)
	if err := c.invoke(ctx, MethodGetSettlement, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Carry returns carried balances.
func (c *SettlementClient) Carry(ctx context.Context, in *CarryRequest, opts ...grpc.CallOption) (*Carry, error) {
	out := new(Carry)
	if err := c.invoke(ctx, MethodCarry, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
