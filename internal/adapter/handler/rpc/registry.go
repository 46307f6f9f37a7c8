// Package rpc declares the reseller.v1.SellerRegistry gRPC service. Messages
// are plain structs carried by the JSON codec registered in this package.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "reseller.v1.SellerRegistry"

	// CallerMetadataKey carries the caller address on every call.
	CallerMetadataKey = "x-caller-address"
)

type DeployRequest struct{}

type RegistryRequest struct {
	RegistryId string `json:"registry_id"`
}

type RegistryResponse struct {
	RegistryId  string `json:"registry_id"`
	Owner       string `json:"owner"`
	SellerCount uint64 `json:"seller_count"`
	CreatedAt   string `json:"created_at"`
}

type OwnerResponse struct {
	Owner string `json:"owner"`
}

type RegisterSellerRequest struct {
	RequestId  string `json:"request_id"`
	RegistryId string `json:"registry_id"`
	Seller     string `json:"seller"`
}

type SellersRequest struct {
	RegistryId string `json:"registry_id"`
	Index      uint64 `json:"index"`
}

type SellerResponse struct {
	Index  uint64 `json:"index"`
	Seller string `json:"seller"`
}

type SellerRegistryServer interface {
	Deploy(context.Context, *DeployRequest) (*RegistryResponse, error)
	GetRegistry(context.Context, *RegistryRequest) (*RegistryResponse, error)
	Owner(context.Context, *RegistryRequest) (*OwnerResponse, error)
	RegisterSeller(context.Context, *RegisterSellerRequest) (*SellerResponse, error)
	Sellers(context.Context, *SellersRequest) (*SellerResponse, error)
}

// UnimplementedSellerRegistryServer can be embedded for forward compatibility.
type UnimplementedSellerRegistryServer struct{}

func (UnimplementedSellerRegistryServer) Deploy(context.Context, *DeployRequest) (*RegistryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Deploy not implemented")
}

func (UnimplementedSellerRegistryServer) GetRegistry(context.Context, *RegistryRequest) (*RegistryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRegistry not implemented")
}

func (UnimplementedSellerRegistryServer) Owner(context.Context, *RegistryRequest) (*OwnerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Owner not implemented")
}

func (UnimplementedSellerRegistryServer) RegisterSeller(context.Context, *RegisterSellerRequest) (*SellerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterSeller not implemented")
}

func (UnimplementedSellerRegistryServer) Sellers(context.Context, *SellersRequest) (*SellerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Sellers not implemented")
}

func RegisterSellerRegistryServer(s grpc.ServiceRegistrar, srv SellerRegistryServer) {
	s.RegisterService(&SellerRegistryServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](method string, call func(SellerRegistryServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SellerRegistryServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SellerRegistryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var SellerRegistryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SellerRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deploy",
			Handler:    unaryHandler("Deploy", SellerRegistryServer.Deploy),
		},
		{
			MethodName: "GetRegistry",
			Handler:    unaryHandler("GetRegistry", SellerRegistryServer.GetRegistry),
		},
		{
			MethodName: "Owner",
			Handler:    unaryHandler("Owner", SellerRegistryServer.Owner),
		},
		{
			MethodName: "RegisterSeller",
			Handler:    unaryHandler("RegisterSeller", SellerRegistryServer.RegisterSeller),
		},
		{
			MethodName: "Sellers",
			Handler:    unaryHandler("Sellers", SellerRegistryServer.Sellers),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reseller/v1/registry",
}
