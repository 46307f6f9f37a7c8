package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// SellerRegistryClient calls the registry service as a fixed caller.
type SellerRegistryClient struct {
	cc     grpc.ClientConnInterface
	caller string
}

func NewSellerRegistryClient(cc grpc.ClientConnInterface, caller string) *SellerRegistryClient {
	return &SellerRegistryClient{cc: cc, caller: caller}
}

func (c *SellerRegistryClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	if c.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CallerMetadataKey, c.caller)
	}
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *SellerRegistryClient) Deploy(ctx context.Context, in *DeployRequest, opts ...grpc.CallOption) (*RegistryResponse, error) {
	out := new(RegistryResponse)
	if err := c.invoke(ctx, "Deploy", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SellerRegistryClient) GetRegistry(ctx context.Context, in *RegistryRequest, opts ...grpc.CallOption) (*RegistryResponse, error) {
	out := new(RegistryResponse)
	if err := c.invoke(ctx, "GetRegistry", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SellerRegistryClient) Owner(ctx context.Context, in *RegistryRequest, opts ...grpc.CallOption) (*OwnerResponse, error) {
	out := new(OwnerResponse)
	if err := c.invoke(ctx, "Owner", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SellerRegistryClient) RegisterSeller(ctx context.Context, in *RegisterSellerRequest, opts ...grpc.CallOption) (*SellerResponse, error) {
	out := new(SellerResponse)
	if err := c.invoke(ctx, "RegisterSeller", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SellerRegistryClient) Sellers(ctx context.Context, in *SellersRequest, opts ...grpc.CallOption) (*SellerResponse, error) {
	out := new(SellerResponse)
	if err := c.invoke(ctx, "Sellers", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
